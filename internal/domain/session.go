package domain

import "time"

// Phase is the playback orchestrator's current state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSpeaking
	PhasePausedByListening
	PhaseAutoAdvancing
	PhaseTimerWaiting
	PhaseCompleted
)

// String returns a human-readable phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSpeaking:
		return "speaking"
	case PhasePausedByListening:
		return "paused_by_listening"
	case PhaseAutoAdvancing:
		return "auto_advancing"
	case PhaseTimerWaiting:
		return "timer_waiting"
	case PhaseCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// TimerState is an observation of the countdown. Owned exclusively by
// the countdown; everyone else reads snapshots.
type TimerState struct {
	RemainingSeconds int
	IsRunning        bool
	IsPaused         bool
}

// SessionSnapshot is the externally visible progress of a playback
// session, handed to the snapshot store for checkpointing. It is a
// copy, never live state.
type SessionSnapshot struct {
	SessionKey     string
	RecipeID       string
	StepIndex      int
	CompletedSteps []int
	AutoPlay       bool
	Phase          Phase
	Timestamp      time.Time
}
