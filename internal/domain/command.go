package domain

// CommandType classifies a recognized voice utterance.
type CommandType int

const (
	CommandUnknown CommandType = iota
	CommandNext
	CommandPrevious
	CommandRepeat
	CommandReadStep
	CommandStartTimer
	CommandPauseTimer
	CommandResumeTimer
	CommandResetTimer
	CommandPauseSpeech
	CommandResumeSpeech
	CommandStopSpeech
	CommandGenericPause
)

// String returns a human-readable command type.
func (c CommandType) String() string {
	switch c {
	case CommandNext:
		return "next"
	case CommandPrevious:
		return "previous"
	case CommandRepeat:
		return "repeat"
	case CommandReadStep:
		return "read_step"
	case CommandStartTimer:
		return "start_timer"
	case CommandPauseTimer:
		return "pause_timer"
	case CommandResumeTimer:
		return "resume_timer"
	case CommandResetTimer:
		return "reset_timer"
	case CommandPauseSpeech:
		return "pause_speech"
	case CommandResumeSpeech:
		return "resume_speech"
	case CommandStopSpeech:
		return "stop_speech"
	case CommandGenericPause:
		return "generic_pause"
	default:
		return "unknown"
	}
}

// Command is a parsed voice utterance. Minutes/Seconds are only
// meaningful for CommandStartTimer; both zero means "use the current
// step's duration" (resolved by the orchestrator, never here).
type Command struct {
	Type    CommandType
	Minutes int
	Seconds int
}

// DurationSeconds returns the explicit timer duration carried by the
// command, or 0 when the utterance named no duration.
func (c Command) DurationSeconds() int {
	return c.Minutes*60 + c.Seconds
}
