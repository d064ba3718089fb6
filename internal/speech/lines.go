// lines.go centralises every spoken string outside step narration.
// Keep lines short and direct; the TTS engine handles inflection.
package speech

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// ── Greeting / Global ────────────────────────────────────────────

func LineWelcome() string {
	return "Hello. What are we cooking today?"
}

func LineBye() string {
	return "Bye."
}

func LineInvalidSelection(payload string) string {
	return fmt.Sprintf("Invalid selection: %s. Pick a number from the list.", payload)
}

// ── Session ──────────────────────────────────────────────────────

// LineRecipeSelected is spoken after the user picks a recipe.
func LineRecipeSelected(name string, stepCount int) string {
	return fmt.Sprintf("%s. %d steps. Say start when you're ready.", name, stepCount)
}

func LineCookingStart(recipeName string) string {
	return fmt.Sprintf("Cooking %s. Here we go.", recipeName)
}

func LineSessionRestored(stepIndex int) string {
	return fmt.Sprintf("Picking up where you left off, at step %d.", stepIndex+1)
}

func LineUnknown(input string) string {
	return fmt.Sprintf("Didn't catch that: %s.", input)
}

// ── Listening acknowledgment ─────────────────────────────────────
// Spoken when the wake word is detected, so the cook knows they've
// been heard and should start talking.

var listeningFillers = []string{
	"I'm listening.",
	"Listening.",
	"Yes chef?",
	"What do you need?",
	"Yes?",
}

// LineListening returns a random acknowledgment for when the wake
// word is detected.
func LineListening() string {
	return listeningFillers[rand.Intn(len(listeningFillers))]
}

// ListeningFillers returns all acknowledgment strings so they can be
// prefetched into the TTS cache at startup.
func ListeningFillers() []string {
	out := make([]string, len(listeningFillers))
	copy(out, listeningFillers)
	return out
}

// ── Timers ───────────────────────────────────────────────────────

func LineTimerStarted(d time.Duration) string {
	return fmt.Sprintf("Timer started: %s.", FormatDurationSpeech(d))
}

func LineTimerRemaining(d time.Duration) string {
	return fmt.Sprintf("%s remaining.", FormatDurationSpeech(d))
}

// FormatDurationSpeech returns a human-friendly spoken duration.
func FormatDurationSpeech(d time.Duration) string {
	d = d.Round(time.Second)
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	switch {
	case m == 0:
		return fmt.Sprintf("%d seconds", s)
	case s == 0 && m == 1:
		return "1 minute"
	case s == 0:
		return fmt.Sprintf("%d minutes", m)
	default:
		return fmt.Sprintf("%d minutes %d seconds", m, s)
	}
}

// ── Recipe listing ───────────────────────────────────────────────

// LineRecipeList reads out the available recipes for selection.
func LineRecipeList(names []string) string {
	var b strings.Builder
	b.WriteString("Here's what I know how to make: ")
	for i, n := range names {
		if i > 0 && i == len(names)-1 {
			b.WriteString(", and ")
		} else if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%d, %s", i+1, n)
	}
	b.WriteString(". Pick a number.")
	return b.String()
}
