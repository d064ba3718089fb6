// SousChef — a voice-guided cooking session engine.
//
// Usage:
//
//	souschef [-verbose] [-quiet] [-voice]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/mirepoix/souschef/internal/display"
	"github.com/mirepoix/souschef/internal/domain"
	"github.com/mirepoix/souschef/internal/interpret"
	"github.com/mirepoix/souschef/internal/logger"
	"github.com/mirepoix/souschef/internal/normalize"
	"github.com/mirepoix/souschef/internal/playback"
	"github.com/mirepoix/souschef/internal/recipe"
	"github.com/mirepoix/souschef/internal/recognizer"
	"github.com/mirepoix/souschef/internal/speech"
	"github.com/mirepoix/souschef/internal/storage"
	"github.com/mirepoix/souschef/internal/wakeword"
)

// envSettings are the tuning knobs read from the environment (and the
// optional .env file). Flags cover operational switches; these cover
// behaviour that rarely changes between runs.
type envSettings struct {
	AdvanceDelay   time.Duration `envconfig:"ADVANCE_DELAY" default:"15s"`
	ListenTimeout  time.Duration `envconfig:"LISTEN_TIMEOUT" default:"10s"`
	ErrorThreshold int           `envconfig:"RECOGNIZER_ERROR_THRESHOLD" default:"0"`
	Voice          string        `envconfig:"TTS_VOICE" default:"en-US-AvaNeural"`
	WakeThreshold  float64       `envconfig:"WAKE_THRESHOLD" default:"0.3"`
	WakeCooldown   time.Duration `envconfig:"WAKE_COOLDOWN" default:"1500ms"`
}

func main() {
	_ = godotenv.Load()

	verbose := flag.Bool("verbose", false, "enable verbose/debug logging")
	quiet := flag.Bool("quiet", false, "disable all logging")
	logFile := flag.String("log-file", ".souschef-logs/souschef.log", "file to write logs to (use \"stderr\" to log to console)")
	noSpeech := flag.Bool("no-speech", false, "disable text-to-speech even if Azure keys are set")
	cacheDir := flag.String("cache-dir", ".souschef-cache", "directory for persistent TTS audio cache")
	autoplay := flag.Bool("autoplay", true, "advance to the next step automatically after narration")
	voiceIn := flag.Bool("voice", false, "enable hands-free voice input (wake word + local Whisper STT)")
	whisperBin := flag.String("whisper-bin", "whisper-cli", "path to the whisper-cpp CLI binary")
	whisperModel := flag.String("whisper-model", "bin/ggml-small.bin", "path to the Whisper GGML model file")
	wakeModel := flag.String("wake-model", "models/hey_chef.onnx", "path to the wake-word ONNX model")
	melspecModel := flag.String("melspec-model", "bin/melspectrogram.onnx", "path to the melspectrogram ONNX model")
	embedModel := flag.String("embedding-model", "bin/embedding_model.onnx", "path to the speech embedding ONNX model")
	onnxLib := flag.String("onnx-lib", "bin/libonnxruntime.so", "path to the ONNX Runtime shared library")
	flag.Parse()

	var cfg envSettings
	if err := envconfig.Process("", &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "error: bad environment configuration: %v\n", err)
		os.Exit(1)
	}

	// Configure logger.
	logLevel := logger.LevelNormal
	if *verbose {
		logLevel = logger.LevelVerbose
	}
	if *quiet {
		logLevel = logger.LevelOff
	}

	// Direct logs to a file by default so the terminal stays clean.
	var logOut io.Writer = os.Stderr
	if *logFile != "" && *logFile != "stderr" {
		dir := filepath.Dir(*logFile)
		if dir != "" && dir != "." {
			os.MkdirAll(dir, 0o755)
		}
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not open log file %s: %v (falling back to stderr)\n", *logFile, err)
		} else {
			logOut = f
			defer f.Close()
		}
	}

	// Redirect Go's default log package (used by third-party libs like
	// the whisper transcriber) to the same output so it doesn't spam
	// the terminal.
	stdlog.SetOutput(logOut)
	stdlog.SetFlags(stdlog.Ltime)

	log := logger.New(logLevel, logOut)

	// Set up context — cancelled when the UI quits.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Wire dependencies.
	recipes := recipe.NewMemorySource(log)
	store := storage.NewMemoryStore(log)

	app := &cliApp{
		cfg:      cfg,
		autoplay: *autoplay,
		recipes:  recipes,
		store:    store,
		log:      log,
	}
	app.ui = display.NewUI(app.status)

	// Build the synthesizer. Azure TTS when credentials are present,
	// otherwise a no-op that only logs.
	var voice domain.Synthesizer = speech.NewNoOp(log)

	azureKey := os.Getenv(speech.EnvAzureSpeechKey)
	azureRegion := os.Getenv(speech.EnvAzureSpeechRegion)

	if azureKey != "" && azureRegion != "" && !*noSpeech {
		ttsClient := speech.NewAzureClient(azureKey, azureRegion, log,
			speech.WithVoice(cfg.Voice),
		)
		player, err := speech.NewPlayer(log)
		if err != nil {
			log.Error("audio player init failed, speech disabled: %v", err)
		} else {
			speaker := speech.NewSpeaker(ttsClient, player, log,
				speech.WithCacheDir(*cacheDir),
			)
			speaker.Prefetch(ctx, speech.ListeningFillers()...)
			speaker.Prefetch(ctx, speech.LineWelcome())
			voice = speaker
			log.Info("TTS enabled (voice=%s, region=%s)", cfg.Voice, azureRegion)
		}
	} else if !*noSpeech {
		log.Info("TTS disabled: set %s and %s env vars to enable", speech.EnvAzureSpeechKey, speech.EnvAzureSpeechRegion)
	}
	app.voice = voice

	// Build hands-free input: wake-word detector feeding the recognizer.
	if *voiceIn {
		app.listener = recognizer.New(*whisperBin, *whisperModel, log,
			recognizer.WithListenTimeout(cfg.ListenTimeout),
			recognizer.WithErrorThreshold(cfg.ErrorThreshold),
			recognizer.WithOnStart(app.onListeningStart),
			recognizer.WithOnResult(app.onListeningResult),
			recognizer.WithOnError(func(err error) {
				log.Error("recognizer: %v", err)
				if errors.Is(err, domain.ErrPermissionDenied) {
					// Denied once means denied for the session; don't
					// keep reopening the microphone.
					app.micDenied.Store(true)
					app.ui.PrintUrgent("Microphone access denied; voice input is off for this session.")
				}
			}),
		)
		if !app.listener.Supported() {
			fmt.Fprintf(os.Stderr, "error: voice input needs %s on PATH and a model at %s\n", *whisperBin, *whisperModel)
			os.Exit(1)
		}

		detector := wakeword.New(wakeword.Config{
			WakewordModel:  *wakeModel,
			MelspecModel:   *melspecModel,
			EmbeddingModel: *embedModel,
			OnnxLib:        *onnxLib,
			Threshold:      cfg.WakeThreshold,
			Cooldown:       cfg.WakeCooldown,
		}, log)
		detector.OnDetected = func() {
			app.onWake(ctx)
		}
		app.detector = detector

		go func() {
			if err := detector.Start(ctx); err != nil {
				log.Error("wakeword: %v", err)
				app.ui.PrintUrgent("Wake-word detection failed to start; see logs. Typed commands still work.")
			}
		}()
		log.Info("voice input enabled (bin=%s, model=%s, wake=%s)", *whisperBin, *whisperModel, *wakeModel)
	}

	fmt.Println(display.RenderBanner())
	if *voiceIn {
		fmt.Println(display.BannerStyle.Render("  Voice mode ON — say \"Hey Chef\" to give a command, or type below."))
		fmt.Println(display.BannerStyle.Render("  Type 'quit' to exit."))
	} else {
		fmt.Println(display.BannerStyle.Render("  Type 'help' for commands, 'quit' to exit."))
	}
	fmt.Println()

	// Run app logic in a background goroutine.
	go func() {
		app.ui.WaitReady()
		app.run(ctx)
		app.ui.Quit()
	}()

	// Bubble Tea owns the terminal — blocks until quit.
	if err := app.ui.Run(); err != nil {
		log.Error("display: %v", err)
	}
	cancel()
}

// cliApp holds the wired application. One cooking session is active at
// a time; orch is nil between sessions.
type cliApp struct {
	cfg      envSettings
	autoplay bool

	recipes  domain.RecipeSource
	store    domain.SnapshotStore
	voice    domain.Synthesizer
	listener *recognizer.Listener // nil when voice input is disabled
	detector *wakeword.Detector   // nil when voice input is disabled
	ui       *display.UI
	log      *logger.Logger

	micDenied atomic.Bool

	mu      sync.RWMutex
	session sessionRef
}

// sessionRef is the currently active playback session as seen by the
// status bar and the voice callbacks. Replaced atomically as a unit.
type sessionRef struct {
	orch       *playback.Orchestrator
	recipeName string
	stepTotal  int
}

func (a *cliApp) setSession(s sessionRef) {
	a.mu.Lock()
	a.session = s
	a.mu.Unlock()
}

func (a *cliApp) orch() *playback.Orchestrator {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.session.orch
}

// status feeds the UI's session bar. Called once per second from the
// UI goroutine.
func (a *cliApp) status() display.Status {
	a.mu.RLock()
	s := a.session
	a.mu.RUnlock()
	if s.orch == nil {
		return display.Status{}
	}
	snap := s.orch.Snapshot()
	return display.Status{
		RecipeName: s.recipeName,
		StepIndex:  snap.StepIndex,
		StepTotal:  s.stepTotal,
		Phase:      s.orch.Phase(),
		AutoPlay:   snap.AutoPlay,
		Timer:      s.orch.TimerSnapshot(),
	}
}

// say prints a line and speaks it. Only used outside active narration;
// during a session the orchestrator owns the synthesizer.
func (a *cliApp) say(text string) {
	a.ui.PrintSpeech(text)
	a.voice.Speak(text, nil)
}

func (a *cliApp) run(ctx context.Context) {
	a.say(speech.LineWelcome())
	a.ui.Println("")

	for {
		id, quit := a.selectRecipe(ctx)
		if quit {
			break
		}
		if id == "" {
			continue
		}
		if quit := a.cook(ctx, id); quit {
			break
		}
	}

	a.say(speech.LineBye())
	// Give the farewell a moment before the terminal is torn down.
	time.Sleep(300 * time.Millisecond)
}

// selectRecipe shows the recipe list and reads input until the user
// picks one. Returns the recipe ID, or quit=true on quit/EOF.
func (a *cliApp) selectRecipe(ctx context.Context) (id string, quit bool) {
	summaries, err := a.recipes.List(ctx)
	if err != nil {
		a.ui.PrintUrgent("Could not load recipes: " + err.Error())
		return "", true
	}

	a.ui.PrintHint("Recipes:")
	names := make([]string, len(summaries))
	for i, s := range summaries {
		names[i] = s.Name
		line := fmt.Sprintf("%d. %s", i+1, s.Name)
		if s.Description != "" {
			line += " — " + s.Description
		}
		a.ui.PrintInstruction(line)
	}
	a.ui.Println("")
	a.voice.Speak(speech.LineRecipeList(names), nil)

	for {
		input, ok := a.readLine(ctx)
		if !ok {
			return "", true
		}
		switch strings.ToLower(input) {
		case "quit", "exit", "q":
			return "", true
		case "help":
			a.showHelp()
			continue
		case "recipes", "menu", "list":
			return "", false // re-print the list
		}

		// Numeric selection.
		var n int
		if _, err := fmt.Sscanf(input, "%d", &n); err == nil {
			if n >= 1 && n <= len(summaries) {
				return summaries[n-1].ID, false
			}
			a.say(speech.LineInvalidSelection(input))
			continue
		}

		// Name selection.
		for _, s := range summaries {
			if strings.EqualFold(s.Name, input) || strings.EqualFold(s.ID, input) {
				return s.ID, false
			}
		}
		a.say(speech.LineInvalidSelection(input))
	}
}

// cook runs one full cooking session. Returns true when the user quit
// the whole app, false to go back to recipe selection.
func (a *cliApp) cook(ctx context.Context, recipeID string) (quit bool) {
	r, err := a.recipes.Get(ctx, recipeID)
	if err != nil {
		a.ui.PrintUrgent("Could not load recipe: " + err.Error())
		return false
	}

	steps := normalize.Normalize(r.Steps)
	if len(steps) == 0 {
		a.log.Error("recipe %s: %v", r.ID, domain.ErrNoSteps)
		a.ui.PrintUrgent("This recipe has no steps.")
		return false
	}

	sessionKey := "session:" + r.ID
	orch := playback.New(a.log, a.voice, sessionKey, r.ID, steps,
		playback.WithAdvanceDelay(a.cfg.AdvanceDelay),
		playback.WithAutoPlay(a.autoplay),
		playback.WithSnapshotFunc(func(snap domain.SessionSnapshot) {
			if err := a.store.Save(context.Background(), snap); err != nil {
				a.log.Error("snapshot save: %v", err)
			}
		}),
	)
	a.setSession(sessionRef{orch: orch, recipeName: r.Name, stepTotal: len(steps)})
	defer a.setSession(sessionRef{})
	defer orch.Stop()

	a.ui.PrintStep(fmt.Sprintf("%s — %d steps", r.Name, len(steps)))

	// Restore a previous run of this recipe, if one was checkpointed.
	if snap, err := a.store.Load(ctx, sessionKey); err == nil &&
		snap.StepIndex > 0 && snap.StepIndex < len(steps) && snap.Phase != domain.PhaseCompleted {
		a.ui.PrintHint(speech.LineSessionRestored(snap.StepIndex))
		orch.SetAutoPlay(snap.AutoPlay)
		orch.GoTo(snap.StepIndex)
	} else {
		a.say(speech.LineRecipeSelected(r.Name, len(steps)))
	}

	for {
		input, ok := a.readLine(ctx)
		if !ok {
			return true
		}
		switch strings.ToLower(input) {
		case "quit", "exit", "q":
			return true
		case "help":
			a.showHelp()
			continue
		case "recipes", "menu", "list":
			return false
		case "start", "play", "go":
			orch.Play()
			continue
		case "restart":
			a.store.Delete(ctx, sessionKey)
			orch.SetAutoPlay(a.autoplay)
			orch.GoTo(0)
			continue
		case "autoplay on":
			orch.SetAutoPlay(true)
			a.ui.PrintHint("Autoplay on.")
			continue
		case "autoplay off":
			orch.SetAutoPlay(false)
			a.ui.PrintHint("Autoplay off.")
			continue
		}

		cmd := interpret.Interpret(input)
		if cmd.Type == domain.CommandUnknown {
			a.ui.PrintHint(speech.LineUnknown(input))
			continue
		}
		a.log.Debug("command: %s (%dm%ds)", cmd.Type, cmd.Minutes, cmd.Seconds)
		orch.Dispatch(cmd)
	}
}

// readLine blocks on the next typed input line, trimmed. ok=false on
// context cancellation or input channel close.
func (a *cliApp) readLine(ctx context.Context) (string, bool) {
	for {
		select {
		case <-ctx.Done():
			return "", false
		case input, ok := <-a.ui.InputChan():
			if !ok {
				return "", false
			}
			input = strings.TrimSpace(input)
			if input == "" {
				continue
			}
			return input, true
		}
	}
}

func (a *cliApp) showHelp() {
	a.ui.PrintHint("Session:  start · next · back · repeat · pause · resume · restart")
	a.ui.PrintHint("Timers:   start timer [for N minutes] · pause the timer · resume the timer · reset the timer")
	a.ui.PrintHint("Other:    autoplay on/off · recipes · help · quit")
	if a.detector != nil {
		a.ui.PrintHint("Voice:    say \"Hey Chef\", then speak any of the above")
	}
}

// ── Hands-free path ──────────────────────────────────────────────
// Wake word → pause detection, open a listening window → interpret the
// transcript → dispatch to the active session → resume detection.

func (a *cliApp) onWake(ctx context.Context) {
	if a.micDenied.Load() {
		return
	}
	a.log.Info("wake word detected")
	a.detector.Pause()
	if a.orch() == nil {
		// No session narrating, so an acknowledgment can't talk over
		// anything.
		a.voice.Speak(speech.LineListening(), nil)
	}
	a.listener.Trigger(ctx)
}

func (a *cliApp) onListeningStart() {
	a.ui.PrintHint("Listening…")
	if orch := a.orch(); orch != nil {
		orch.OnVoiceListeningStart()
	}
}

func (a *cliApp) onListeningResult(transcript string) {
	defer a.detector.Resume()

	orch := a.orch()
	if transcript == "" {
		a.log.Debug("listening window closed with no command")
		if orch != nil {
			orch.OnVoiceListeningEnd(nil)
		}
		return
	}

	a.ui.PrintVoice(transcript)
	cmd := interpret.Interpret(transcript)
	a.log.Debug("voice command: %s (%dm%ds)", cmd.Type, cmd.Minutes, cmd.Seconds)

	if orch == nil {
		// Between sessions only typed selection is supported; surface
		// what was heard and move on.
		if cmd.Type == domain.CommandUnknown {
			a.ui.PrintHint(speech.LineUnknown(transcript))
		} else {
			a.ui.PrintHint("Pick a recipe first.")
		}
		return
	}

	if cmd.Type == domain.CommandUnknown {
		a.ui.PrintHint(speech.LineUnknown(transcript))
	}
	orch.OnVoiceListeningEnd(&cmd)
}
