// Package playback orchestrates a guided cooking session: it walks the
// normalized steps, drives the synthesizer sentence by sentence, runs
// the step countdown, and arbitrates between voice commands, listening
// interruptions, and auto-advance.
package playback

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mirepoix/souschef/internal/countdown"
	"github.com/mirepoix/souschef/internal/domain"
	"github.com/mirepoix/souschef/internal/logger"
)

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithAdvanceDelay sets the pause between finishing a step's narration
// and auto-advancing to the next step. Default 15 seconds.
func WithAdvanceDelay(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.advanceDelay = d
	}
}

// WithAutoPlay sets the initial auto-play mode.
func WithAutoPlay(on bool) Option {
	return func(o *Orchestrator) {
		o.autoPlay = on
	}
}

// WithCountdownInterval sets the countdown tick interval. Tests shrink
// it so timed steps complete in milliseconds.
func WithCountdownInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.countdownInterval = d
	}
}

// WithSnapshotFunc registers a callback invoked with a fresh session
// snapshot after every state-changing operation. Invoked outside the
// orchestrator lock; implementations may block briefly (e.g. to
// persist) without stalling playback decisions.
func WithSnapshotFunc(fn func(domain.SessionSnapshot)) Option {
	return func(o *Orchestrator) {
		o.snapshotFn = fn
	}
}

// WithOnTimerTick registers a callback for countdown ticks, for display
// surfaces that render remaining time.
func WithOnTimerTick(fn func(domain.TimerState)) Option {
	return func(o *Orchestrator) {
		o.onTimerTick = fn
	}
}

// Orchestrator is the per-session playback state machine. One
// orchestrator serves exactly one session over one normalized recipe.
// All exported methods are safe for concurrent use; synthesizer and
// countdown callbacks re-enter through the same lock.
type Orchestrator struct {
	log   *logger.Logger
	voice domain.Synthesizer
	steps []domain.NormalizedStep

	sessionKey string
	recipeID   string

	advanceDelay      time.Duration
	countdownInterval time.Duration
	snapshotFn        func(domain.SessionSnapshot)
	onTimerTick       func(domain.TimerState)

	timer *countdown.Timer

	mu             sync.Mutex
	phase          domain.Phase
	index          int
	completed      map[int]bool
	autoPlay       bool
	generation     int // invalidates stale speech-done and delay callbacks
	sentences      []string
	sentenceIdx    int
	speechPaused   bool
	pendingAdvance *time.Timer

	// advanceOnFire marks that the running countdown should advance the
	// session when it fires. Navigation away from the step clears it;
	// the countdown itself keeps running.
	advanceOnFire bool

	// wasPlayingBeforeInterrupt records whether narration was in flight
	// when the microphone opened, so an empty listening window can
	// resume it. Any state-altering command clears it.
	wasPlayingBeforeInterrupt bool
	phaseBeforeInterrupt      domain.Phase
}

// New creates an orchestrator for one session over the given steps.
func New(log *logger.Logger, voice domain.Synthesizer, sessionKey, recipeID string, steps []domain.NormalizedStep, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		log:               log,
		voice:             voice,
		steps:             steps,
		sessionKey:        sessionKey,
		recipeID:          recipeID,
		advanceDelay:      15 * time.Second,
		countdownInterval: 1 * time.Second,
		phase:             domain.PhaseIdle,
		completed:         make(map[int]bool),
	}
	for _, opt := range opts {
		opt(o)
	}

	timerOpts := []countdown.Option{
		countdown.WithInterval(o.countdownInterval),
		countdown.WithOnComplete(o.onCountdownFire),
	}
	if o.onTimerTick != nil {
		timerOpts = append(timerOpts, countdown.WithOnTick(o.onTimerTick))
	}
	o.timer = countdown.New(log, timerOpts...)

	return o
}

// ── Public surface ───────────────────────────────────────────────

// Play starts (or restarts) narration of the current step.
func (o *Orchestrator) Play() {
	o.mu.Lock()
	o.cancelPendingLocked()
	o.wasPlayingBeforeInterrupt = false
	utterance := o.beginStepLocked()
	o.mu.Unlock()

	o.speak(utterance)
	o.publishSnapshot()
}

// Pause halts narration and any scheduled auto-advance. The countdown
// is untouched; pausing playback is not pausing the timer. The sentence
// queue survives a pause so ResumeSpeech continues the step; only
// navigation clears it.
func (o *Orchestrator) Pause() {
	o.mu.Lock()
	o.cancelAdvanceLocked()
	o.wasPlayingBeforeInterrupt = false
	pauseSpeech := o.phase == domain.PhaseSpeaking && !o.speechPaused
	if pauseSpeech {
		o.speechPaused = true
	} else if o.phase != domain.PhaseSpeaking {
		o.phase = domain.PhaseIdle
	}
	o.mu.Unlock()

	if pauseSpeech {
		o.voice.Pause()
	}
	o.publishSnapshot()
}

// Repeat re-reads the current step from the beginning.
func (o *Orchestrator) Repeat() {
	o.Play()
}

// Stop cancels narration, the auto-advance, and the countdown, and
// returns the session to idle at the current step.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	o.cancelPendingLocked()
	o.wasPlayingBeforeInterrupt = false
	o.advanceOnFire = false
	o.phase = domain.PhaseIdle
	o.mu.Unlock()

	o.voice.Cancel()
	o.timer.Stop()
	o.publishSnapshot()
}

// Next moves to the following step, marking the current one completed.
// Advancing past the last step completes the session; the cursor stays
// on the last step.
func (o *Orchestrator) Next() {
	o.mu.Lock()
	o.cancelPendingLocked()
	o.wasPlayingBeforeInterrupt = false
	o.advanceOnFire = false
	o.completed[o.index] = true

	var utterance string
	if o.index >= len(o.steps)-1 {
		o.phase = domain.PhaseCompleted
		utterance = completionLine
	} else {
		o.index++
		utterance = o.beginStepLocked()
	}
	o.mu.Unlock()

	o.speak(utterance)
	o.publishSnapshot()
}

// Previous moves back one step and reads it. At the first step it
// re-reads the first step.
func (o *Orchestrator) Previous() {
	o.mu.Lock()
	o.cancelPendingLocked()
	o.wasPlayingBeforeInterrupt = false
	o.advanceOnFire = false
	if o.index > 0 {
		o.index--
	}
	utterance := o.beginStepLocked()
	o.mu.Unlock()

	o.speak(utterance)
	o.publishSnapshot()
}

// GoTo jumps directly to a step index and reads it. Out-of-range
// indices are clamped.
func (o *Orchestrator) GoTo(index int) {
	o.mu.Lock()
	o.cancelPendingLocked()
	o.wasPlayingBeforeInterrupt = false
	o.advanceOnFire = false
	if index < 0 {
		index = 0
	}
	if index > len(o.steps)-1 {
		index = len(o.steps) - 1
	}
	o.index = index
	utterance := o.beginStepLocked()
	o.mu.Unlock()

	o.speak(utterance)
	o.publishSnapshot()
}

// SetAutoPlay toggles auto-play for subsequent steps. It never
// interrupts what is already in flight.
func (o *Orchestrator) SetAutoPlay(on bool) {
	o.mu.Lock()
	o.autoPlay = on
	o.mu.Unlock()
	o.publishSnapshot()
}

// CurrentStep returns the step the cursor is on.
func (o *Orchestrator) CurrentStep() domain.NormalizedStep {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.steps) == 0 {
		return domain.NormalizedStep{}
	}
	return o.steps[o.index]
}

// Phase returns the current playback phase.
func (o *Orchestrator) Phase() domain.Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

// TimerSnapshot returns the countdown state.
func (o *Orchestrator) TimerSnapshot() domain.TimerState {
	return o.timer.Snapshot()
}

// Snapshot returns the externally visible session state.
func (o *Orchestrator) Snapshot() domain.SessionSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

// ── Voice integration ────────────────────────────────────────────

// OnVoiceListeningStart is invoked when the microphone opens. Active
// narration pauses so the recognizer hears the cook, not the recipe.
func (o *Orchestrator) OnVoiceListeningStart() {
	o.mu.Lock()
	pauseSpeech := o.phase == domain.PhaseSpeaking && !o.speechPaused
	if o.phase != domain.PhasePausedByListening {
		o.phaseBeforeInterrupt = o.phase
		o.wasPlayingBeforeInterrupt = pauseSpeech
		o.phase = domain.PhasePausedByListening
	}
	if pauseSpeech {
		o.speechPaused = true
	}
	o.mu.Unlock()

	if pauseSpeech {
		o.voice.Pause()
	}
}

// OnVoiceListeningEnd is invoked when the microphone closes, with the
// interpreted command or nil when nothing actionable was heard. An
// empty window resumes whatever the interruption paused.
func (o *Orchestrator) OnVoiceListeningEnd(cmd *domain.Command) {
	if cmd != nil && cmd.Type != domain.CommandUnknown {
		// Leave the interruption phase before dispatching so commands
		// that don't renarrate (timer controls) don't strand the session
		// in PausedByListening. Speech stays paused; the resume flag is
		// cleared by the dispatch path itself.
		o.mu.Lock()
		if o.phase == domain.PhasePausedByListening {
			o.phase = o.phaseBeforeInterrupt
		}
		o.mu.Unlock()
		o.Dispatch(*cmd)
		return
	}

	o.mu.Lock()
	resume := o.wasPlayingBeforeInterrupt
	o.wasPlayingBeforeInterrupt = false
	if o.phase == domain.PhasePausedByListening {
		o.phase = o.phaseBeforeInterrupt
	}
	if resume {
		o.speechPaused = false
	}
	o.mu.Unlock()

	if resume {
		o.voice.Resume()
	}
	o.publishSnapshot()
}

// Dispatch applies an interpreted voice command to the session.
func (o *Orchestrator) Dispatch(cmd domain.Command) {
	o.log.Debug("dispatch: %s", cmd.Type)

	switch cmd.Type {
	case domain.CommandNext:
		o.Next()
	case domain.CommandPrevious:
		o.Previous()
	case domain.CommandRepeat, domain.CommandReadStep:
		o.Play()
	case domain.CommandStartTimer:
		o.startTimer(cmd.DurationSeconds())
	case domain.CommandPauseTimer:
		o.clearInterruptResume()
		o.timer.Pause()
		o.publishSnapshot()
	case domain.CommandResumeTimer:
		o.clearInterruptResume()
		o.timer.Resume()
		o.publishSnapshot()
	case domain.CommandResetTimer:
		o.clearInterruptResume()
		o.timer.Reset()
		o.publishSnapshot()
	case domain.CommandPauseSpeech, domain.CommandGenericPause:
		o.Pause()
	case domain.CommandResumeSpeech:
		o.resumeSpeech()
	case domain.CommandStopSpeech:
		o.stopSpeech()
	default:
		// Unknown commands are no-ops.
	}
}

// ── Internals ────────────────────────────────────────────────────

const completionLine = "That was the last step. Enjoy your meal!"

// beginStepLocked resets narration state for the current step and
// returns the first utterance. Caller holds o.mu and speaks the
// returned utterance after unlocking.
func (o *Orchestrator) beginStepLocked() string {
	o.generation++
	o.speechPaused = false

	if len(o.steps) == 0 {
		o.phase = domain.PhaseCompleted
		return completionLine
	}

	step := o.steps[o.index]
	o.sentences = splitSentences(step.Text)
	o.sentenceIdx = 0
	o.phase = domain.PhaseSpeaking

	return fmt.Sprintf("Step %d. %s", o.index+1, o.sentences[0])
}

// speak hands one utterance to the synthesizer with a generation-bound
// completion callback. Never called with o.mu held.
func (o *Orchestrator) speak(utterance string) {
	if utterance == "" {
		return
	}
	o.mu.Lock()
	gen := o.generation
	o.mu.Unlock()

	o.voice.Speak(utterance, func() { o.onUtteranceDone(gen) })
}

// onUtteranceDone advances sentence-by-sentence narration. Stale
// generations (the step changed mid-utterance) are dropped.
func (o *Orchestrator) onUtteranceDone(gen int) {
	o.mu.Lock()
	if gen != o.generation || o.phase != domain.PhaseSpeaking {
		o.mu.Unlock()
		return
	}

	o.sentenceIdx++
	if o.sentenceIdx < len(o.sentences) {
		next := o.sentences[o.sentenceIdx]
		o.mu.Unlock()
		o.voice.Speak(next, func() { o.onUtteranceDone(gen) })
		return
	}

	// Narration finished. Decide what the step does next.
	o.finishNarrationLocked(gen)
}

// finishNarrationLocked runs with o.mu held and releases it.
func (o *Orchestrator) finishNarrationLocked(gen int) {
	step := o.steps[o.index]
	lastStep := o.index >= len(o.steps)-1

	switch {
	case step.TimerSeconds > 0:
		// Timed step: wait for the countdown. Auto-advance (when on)
		// rides on the countdown firing.
		o.phase = domain.PhaseTimerWaiting
		o.advanceOnFire = o.autoPlay
		seconds := step.TimerSeconds
		o.mu.Unlock()
		o.timer.Start(seconds)
		o.log.Info("step %d: countdown started (%ds)", o.index, seconds)

	case o.autoPlay && lastStep:
		// Nothing left to wait for.
		o.completed[o.index] = true
		o.phase = domain.PhaseCompleted
		o.mu.Unlock()
		o.speak(completionLine)

	case o.autoPlay:
		o.phase = domain.PhaseAutoAdvancing
		o.pendingAdvance = time.AfterFunc(o.advanceDelay, func() { o.onAdvanceDelay(gen) })
		o.mu.Unlock()

	default:
		o.phase = domain.PhaseIdle
		o.mu.Unlock()
	}
	o.publishSnapshot()
}

// onAdvanceDelay fires when the between-step pause elapses.
func (o *Orchestrator) onAdvanceDelay(gen int) {
	o.mu.Lock()
	if gen != o.generation || o.phase != domain.PhaseAutoAdvancing {
		o.mu.Unlock()
		return
	}
	o.pendingAdvance = nil
	o.mu.Unlock()
	o.Next()
}

// onCountdownFire handles countdown completion. If an auto-advance is
// riding on this countdown the session moves on; otherwise the fire is
// announced and the session stays put.
func (o *Orchestrator) onCountdownFire() {
	o.mu.Lock()
	advance := o.advanceOnFire
	o.advanceOnFire = false
	if o.phase == domain.PhaseTimerWaiting {
		o.phase = domain.PhaseIdle
	}
	gen := o.generation
	o.mu.Unlock()

	o.log.Info("countdown fired (advance=%v)", advance)
	if !advance {
		// Announcement only. Navigation already moved the session on,
		// or auto-play is off and the cook advances by voice.
		o.voice.Speak(timerDoneLine, func() {})
		o.publishSnapshot()
		return
	}

	o.voice.Speak(timerDoneLine, func() {
		o.mu.Lock()
		stale := gen != o.generation
		o.mu.Unlock()
		if !stale {
			o.Next()
		}
	})
}

const timerDoneLine = "Time's up."

// startTimer starts the countdown with the command's duration, falling
// back to the current step's extracted duration.
func (o *Orchestrator) startTimer(seconds int) {
	o.mu.Lock()
	o.wasPlayingBeforeInterrupt = false
	if seconds <= 0 && len(o.steps) > 0 {
		seconds = o.steps[o.index].TimerSeconds
	}
	o.mu.Unlock()

	if seconds <= 0 {
		o.log.Warn("start timer: no duration in command or step")
		o.speak("This step has no timer duration.")
		return
	}
	o.timer.Start(seconds)
	o.publishSnapshot()
}

func (o *Orchestrator) resumeSpeech() {
	o.mu.Lock()
	o.wasPlayingBeforeInterrupt = false
	resume := o.phase == domain.PhaseSpeaking && o.speechPaused
	if resume {
		o.speechPaused = false
	}
	o.mu.Unlock()

	if resume {
		o.voice.Resume()
	} else {
		// Nothing paused: treat as "read the step".
		o.Play()
		return
	}
	o.publishSnapshot()
}

func (o *Orchestrator) stopSpeech() {
	o.mu.Lock()
	o.cancelPendingLocked()
	o.wasPlayingBeforeInterrupt = false
	o.phase = domain.PhaseIdle
	o.mu.Unlock()

	o.voice.Cancel()
	o.publishSnapshot()
}

func (o *Orchestrator) clearInterruptResume() {
	o.mu.Lock()
	o.wasPlayingBeforeInterrupt = false
	o.mu.Unlock()
}

// cancelPendingLocked invalidates in-flight speech callbacks and the
// scheduled auto-advance. Caller holds o.mu.
func (o *Orchestrator) cancelPendingLocked() {
	o.generation++
	o.cancelAdvanceLocked()
}

// cancelAdvanceLocked stops the scheduled auto-advance while leaving
// the in-flight utterance and its completion callback alive. Caller
// holds o.mu.
func (o *Orchestrator) cancelAdvanceLocked() {
	if o.pendingAdvance != nil {
		o.pendingAdvance.Stop()
		o.pendingAdvance = nil
	}
}

func (o *Orchestrator) snapshotLocked() domain.SessionSnapshot {
	done := make([]int, 0, len(o.completed))
	for idx := range o.completed {
		done = append(done, idx)
	}
	sort.Ints(done)

	return domain.SessionSnapshot{
		SessionKey:     o.sessionKey,
		RecipeID:       o.recipeID,
		StepIndex:      o.index,
		CompletedSteps: done,
		AutoPlay:       o.autoPlay,
		Phase:          o.phase,
		Timestamp:      time.Now(),
	}
}

func (o *Orchestrator) publishSnapshot() {
	if o.snapshotFn == nil {
		return
	}
	o.mu.Lock()
	snap := o.snapshotLocked()
	o.mu.Unlock()
	o.snapshotFn(snap)
}

// sentenceEnd splits on sentence-final punctuation followed by space.
var sentenceEnd = regexp.MustCompile(`([.!?])\s+`)

// splitSentences breaks narration text into spoken sentences. Text
// without sentence punctuation is one utterance.
func splitSentences(text string) []string {
	marked := sentenceEnd.ReplaceAllString(text, "$1\x00")
	parts := strings.Split(marked, "\x00")
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{text}
	}
	return out
}
