// Package interpret maps recognized speech transcripts to discrete
// playback commands. Interpret is pure and case-insensitive, and must
// only ever see final transcripts — interim results are for display.
//
// The rules form an ordered cascade and the ordering is a correctness
// requirement: several commands share vocabulary ("reset the timer"
// contains words generic pause matching would otherwise absorb, and
// "start timer for 5 minutes" contains "start" that generic resume
// matching would claim). Reordering the table changes behavior.
package interpret

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/mirepoix/souschef/internal/domain"
)

// rule pairs a predicate pattern with a command builder. Rules are
// evaluated in order; the first match wins.
type rule struct {
	re    *regexp.Regexp
	build func(transcript string) domain.Command
}

var (
	minutesRe = regexp.MustCompile(`(?i)\b(\d+)\s*minutes?\b`)
	secondsRe = regexp.MustCompile(`(?i)\b(\d+)\s*seconds?\b`)
	timerRe   = regexp.MustCompile(`(?i)\btimer\b`)
)

var rules = []rule{
	// 1. Timer reset/restart first, so "reset the timer" is never
	// absorbed by generic pause/stop matching further down.
	{
		regexp.MustCompile(`(?i)\b(?:reset|restart)\b.*\btimer\b|\btimer\b.*\b(?:reset|restart)\b`),
		command(domain.CommandResetTimer),
	},

	// 2. Navigation.
	{
		regexp.MustCompile(`(?i)\b(?:next(?:\s+step)?|skip(?:\s+(?:this|that))?)\b`),
		command(domain.CommandNext),
	},
	{
		regexp.MustCompile(`(?i)\b(?:previous|go\s+back|back(?:\s+up)?|last\s+step)\b`),
		command(domain.CommandPrevious),
	},

	// 3. Timer start with an explicit duration — before generic
	// resume/continue matching, because "resume" phrasing can co-occur
	// with timer phrases.
	{
		regexp.MustCompile(`(?i)\b(?:start|set)\b.*\btimer\b.*\b\d+\s*(?:minutes?|seconds?)\b`),
		timerWithDuration,
	},

	// 4. Generic timer start/pause/resume (no duration).
	{
		regexp.MustCompile(`(?i)\b(?:pause|hold|stop)\b.*\btimer\b|\btimer\b.*\b(?:pause|hold|stop)\b`),
		command(domain.CommandPauseTimer),
	},
	{
		regexp.MustCompile(`(?i)\b(?:resume|continue|unpause)\b.*\btimer\b|\btimer\b.*\b(?:resume|continue|unpause)\b`),
		command(domain.CommandResumeTimer),
	},
	{
		regexp.MustCompile(`(?i)\b(?:start|set)\b.*\btimer\b|\btimer\b.*\bstart\b`),
		command(domain.CommandStartTimer),
	},

	// 5. Speech-specific commands. Excluded when the utterance also
	// mentions the timer (handled above).
	{
		regexp.MustCompile(`(?i)\bread\b.*\bstep\b`),
		noTimer(domain.CommandReadStep),
	},
	{
		regexp.MustCompile(`(?i)\b(?:repeat|again|say\s+that\s+again)\b`),
		noTimer(domain.CommandRepeat),
	},
	{
		regexp.MustCompile(`(?i)\bpause\b.*\b(?:reading|speaking|speech)\b`),
		noTimer(domain.CommandPauseSpeech),
	},
	{
		regexp.MustCompile(`(?i)\b(?:resume|continue)\b`),
		noTimer(domain.CommandResumeSpeech),
	},
	{
		regexp.MustCompile(`(?i)\bstop\b.*\b(?:reading|speaking|speech)\b`),
		noTimer(domain.CommandStopSpeech),
	},

	// 6. Generic pause/stop applies to speech, but only when "timer"
	// is absent from the utterance.
	{
		regexp.MustCompile(`(?i)\b(?:pause|stop|quiet|silence|hold\s+on)\b`),
		noTimer(domain.CommandGenericPause),
	},
}

// Interpret converts a final transcript into a command. Unmatched
// input resolves to CommandUnknown — not an error, just a no-op.
// Duration fallback for bare timer commands is the caller's job; this
// function never consults step data.
func Interpret(transcript string) domain.Command {
	trimmed := strings.TrimSpace(transcript)
	if trimmed == "" {
		return domain.Command{Type: domain.CommandUnknown}
	}

	for _, r := range rules {
		if !r.re.MatchString(trimmed) {
			continue
		}
		cmd := r.build(trimmed)
		if cmd.Type != domain.CommandUnknown {
			return cmd
		}
	}
	return domain.Command{Type: domain.CommandUnknown}
}

// command builds an unconditional rule result.
func command(t domain.CommandType) func(string) domain.Command {
	return func(string) domain.Command {
		return domain.Command{Type: t}
	}
}

// noTimer builds the command only when the utterance does not mention
// the timer; otherwise the rule is skipped and evaluation continues.
func noTimer(t domain.CommandType) func(string) domain.Command {
	return func(transcript string) domain.Command {
		if timerRe.MatchString(transcript) {
			return domain.Command{Type: domain.CommandUnknown}
		}
		return domain.Command{Type: t}
	}
}

// timerWithDuration extracts minute/second parameters anchored to the
// unit word near the number.
func timerWithDuration(transcript string) domain.Command {
	cmd := domain.Command{Type: domain.CommandStartTimer}
	if m := minutesRe.FindStringSubmatch(transcript); m != nil {
		cmd.Minutes, _ = strconv.Atoi(m[1])
	}
	if m := secondsRe.FindStringSubmatch(transcript); m != nil {
		cmd.Seconds, _ = strconv.Atoi(m[1])
	}
	return cmd
}
