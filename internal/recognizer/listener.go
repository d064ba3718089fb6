// Package recognizer captures a single spoken command after the wake
// word fires, using a local Whisper model for speech-to-text.
package recognizer

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	audiotranscriber "github.com/sklyt/whisper/pkg"

	"github.com/mirepoix/souschef/internal/domain"
	"github.com/mirepoix/souschef/internal/logger"
)

// envAnnotation matches whisper environmental annotations like
// "(keyboard clicking)", "[laughter]", "(speaking French)", etc.
var envAnnotation = regexp.MustCompile(`[\(\[][a-zA-Z][a-zA-Z\s]*[\)\]]`)

// Option configures the Listener.
type Option func(*Listener)

// WithRecordDuration sets how long each recording chunk lasts.
func WithRecordDuration(d time.Duration) Option {
	return func(l *Listener) { l.recordDuration = d }
}

// WithListenTimeout sets the max length of one listening window.
func WithListenTimeout(d time.Duration) Option {
	return func(l *Listener) { l.listenTimeout = d }
}

// WithTempDir sets the directory for temporary WAV files.
func WithTempDir(dir string) Option {
	return func(l *Listener) { l.tempDir = dir }
}

// WithErrorThreshold sets how many consecutive recognition errors abort
// the listening window. 0 disables the threshold; the window then only
// ends on silence or timeout.
func WithErrorThreshold(n int) Option {
	return func(l *Listener) { l.errorThreshold = n }
}

// WithOnStart registers a callback invoked when a listening window
// opens, before any audio is captured.
func WithOnStart(fn func()) Option {
	return func(l *Listener) { l.onStart = fn }
}

// WithOnResult registers a callback invoked exactly once per listening
// window with the cleaned transcript, or "" when nothing was heard.
func WithOnResult(fn func(transcript string)) Option {
	return func(l *Listener) { l.onResult = fn }
}

// WithOnError registers a callback for non-transient recognition
// errors.
func WithOnError(fn func(error)) Option {
	return func(l *Listener) { l.onError = fn }
}

// Listener runs one listening window at a time: the wake-word detector
// triggers it, it records chunks until the cook stops talking (or the
// window times out), and it reports the accumulated transcript through
// a single OnResult call. A trigger arriving while a window is open is
// dropped, not queued.
type Listener struct {
	whisperBin string
	modelPath  string
	tempDir    string
	log        *logger.Logger

	recordDuration time.Duration
	listenTimeout  time.Duration
	errorThreshold int

	onStart  func()
	onResult func(string)
	onError  func(error)

	mu     sync.Mutex
	active bool
}

// New creates a listener over a whisper-cli binary and GGML model.
func New(whisperBin, modelPath string, log *logger.Logger, opts ...Option) *Listener {
	l := &Listener{
		whisperBin:     whisperBin,
		modelPath:      modelPath,
		tempDir:        ".souschef-stt",
		log:            log,
		recordDuration: 1 * time.Second,
		listenTimeout:  10 * time.Second,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Supported reports whether the whisper binary and model are reachable.
func (l *Listener) Supported() bool {
	if _, err := exec.LookPath(l.whisperBin); err != nil {
		return false
	}
	if _, err := os.Stat(l.modelPath); err != nil {
		return false
	}
	return true
}

// Trigger opens a listening window. Non-blocking; the window runs in
// its own goroutine. Ignored when a window is already open.
func (l *Listener) Trigger(ctx context.Context) {
	if !l.Supported() {
		l.log.Warn("listener: trigger with no whisper binary or model")
		if l.onError != nil {
			l.onError(domain.ErrNotSupported)
		}
		return
	}

	l.mu.Lock()
	if l.active {
		l.mu.Unlock()
		l.log.Debug("listener: trigger ignored, window already open")
		return
	}
	l.active = true
	l.mu.Unlock()

	go l.run(ctx)
}

// run executes one full listening window.
func (l *Listener) run(ctx context.Context) {
	defer func() {
		l.mu.Lock()
		l.active = false
		l.mu.Unlock()
	}()

	l.log.Info("listener: window open")
	if l.onStart != nil {
		l.onStart()
	}

	transcript := l.capture(ctx)

	if transcript == "" {
		l.log.Debug("listener: window ended with no command")
	} else {
		l.log.Info("listener: heard %q", transcript)
	}
	if l.onResult != nil {
		l.onResult(transcript)
	}
}

// capture records chunks until silence, timeout, or too many errors,
// and returns the accumulated cleaned transcript.
func (l *Listener) capture(ctx context.Context) string {
	deadline := time.After(l.listenTimeout)
	var parts []string
	emptyRuns := 0
	errorRuns := 0
	heardSpeech := false
	// Before the cook starts talking, allow more silence. Once they
	// have started, a shorter gap means they're done.
	const graceEmpty = 4
	const postSpeechEmpty = 2

	for {
		select {
		case <-ctx.Done():
			return joined(parts)
		case <-deadline:
			l.log.Debug("listener: timeout reached")
			return joined(parts)
		default:
		}

		chunk, err := l.recordChunk(ctx)
		if err != nil {
			if transientError(err) {
				continue
			}
			errorRuns++
			l.log.Warn("listener: recognition error (%d consecutive): %v", errorRuns, err)
			if l.errorThreshold > 0 && errorRuns >= l.errorThreshold {
				if l.onError != nil {
					l.onError(classifyError(err))
				}
				return joined(parts)
			}
			continue
		}
		errorRuns = 0

		chunk = cleanTranscription(chunk)
		if chunk == "" {
			emptyRuns++
			maxEmpty := graceEmpty
			if heardSpeech {
				maxEmpty = postSpeechEmpty
			}
			if emptyRuns >= maxEmpty {
				l.log.Debug("listener: silence detected (heard_speech=%v)", heardSpeech)
				return joined(parts)
			}
			continue
		}

		emptyRuns = 0
		heardSpeech = true
		l.log.Debug("listener: chunk %q", chunk)
		parts = append(parts, chunk)
	}
}

func joined(parts []string) string {
	return strings.TrimSpace(strings.Join(parts, " "))
}

// transientError reports recognizer noise that should not count toward
// the error threshold.
func transientError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no-speech") || strings.Contains(msg, "aborted")
}

// classifyError maps raw recognizer failures onto the domain sentinels
// when the message identifies a known cause.
func classifyError(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "permission") || strings.Contains(msg, "denied") {
		return fmt.Errorf("%w: %v", domain.ErrPermissionDenied, err)
	}
	return err
}

// recordChunk does one record-and-transcribe cycle.
func (l *Listener) recordChunk(ctx context.Context) (string, error) {
	var result string
	var wg sync.WaitGroup
	wg.Add(1)

	callback := func(text string) {
		result = text
		wg.Done()
	}

	verbose := l.log.GetLevel() >= logger.LevelVerbose
	t, err := audiotranscriber.NewTranscriber(
		l.whisperBin,
		l.modelPath,
		l.tempDir,
		"wav",
		callback,
		verbose,
	)
	if err != nil {
		return "", err
	}

	if err := t.Start(); err != nil {
		return "", err
	}

	select {
	case <-time.After(l.recordDuration):
	case <-ctx.Done():
	}

	t.Stop()
	wg.Wait()

	return result, nil
}

// ── Transcription cleanup ────────────────────────────────────────

// junkPatterns are whisper artifacts stripped from anywhere in the
// text, not just as exact full-string matches.
var junkPatterns = []string{
	"[BLANK_AUDIO]",
	"[BLANK AUDIO]",
	"(silence)",
	"[silence]",
	"(no speech)",
	"[no speech]",
	"[Music]",
	"(music)",
	"(typing)",
	"(clicking)",
	"(breathing)",
	"(sighing)",
	"(coughing)",
	"(laughing)",
	"(water running)",
	"(sizzling)",
	"(chopping)",
	"(background noise)",
	"(inaudible)",
	"(unintelligible)",
	"(beeping)",
}

// hallucinations are full transcripts whisper invents from silence.
var hallucinations = []string{
	"...",
	"you",
	"Thank you.",
	"Thanks for watching!",
	"Thank you for watching.",
	"Bye.",
	"Bye!",
	"The end.",
}

// cleanTranscription strips whitespace, normalizes newlines, and
// removes common whisper artifacts and hallucinations.
func cleanTranscription(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.TrimSpace(s)

	for _, j := range junkPatterns {
		s = strings.ReplaceAll(s, j, "")
		s = strings.ReplaceAll(s, strings.ToLower(j), "")
		s = strings.ReplaceAll(s, strings.ToUpper(j), "")
	}

	// Catch-all for remaining (parenthesized) or [bracketed]
	// environmental annotations.
	s = envAnnotation.ReplaceAllString(s, "")

	for strings.Contains(s, "  ") {
		s = strings.ReplaceAll(s, "  ", " ")
	}
	s = strings.TrimSpace(s)

	lower := strings.ToLower(s)
	for _, h := range hallucinations {
		if strings.ToLower(h) == lower {
			return ""
		}
	}

	// Strip whisper timestamp prefixes like "[00:00:00.000 --> 00:00:05.000]".
	if strings.HasPrefix(s, "[") {
		if idx := strings.Index(s, "]"); idx != -1 && idx < 40 {
			if rest := strings.TrimSpace(s[idx+1:]); rest != "" {
				return rest
			}
		}
	}

	return s
}
