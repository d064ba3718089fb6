package speech

import (
	"github.com/mirepoix/souschef/internal/domain"
	"github.com/mirepoix/souschef/internal/logger"
)

// Compile-time interface check.
var _ domain.Synthesizer = (*NoOp)(nil)

// NoOp is a synthesizer that produces no audio. Used when speech is
// disabled or no audio device is available. Utterances "complete"
// immediately so narration and auto-advance still work silently.
type NoOp struct {
	log *logger.Logger
}

// NewNoOp creates a no-op synthesizer.
func NewNoOp(log *logger.Logger) *NoOp {
	return &NoOp{log: log}
}

// Speak logs the utterance and completes it asynchronously.
func (n *NoOp) Speak(text string, done func()) {
	n.log.Debug("speech no-op: would say %q", text)
	if done != nil {
		go done()
	}
}

// Pause does nothing.
func (n *NoOp) Pause() {}

// Resume does nothing.
func (n *NoOp) Resume() {}

// Cancel does nothing.
func (n *NoOp) Cancel() {}

// Supported reports that no audio output is available.
func (n *NoOp) Supported() bool { return false }
