package domain

import "context"

// RecipeSource provides recipes. Implementations can be in-memory
// (hardcoded), file-based, or API-backed. The engine reads the raw
// steps exactly once per session and never mutates them.
type RecipeSource interface {
	List(ctx context.Context) ([]RecipeSummary, error)
	Get(ctx context.Context, id string) (*Recipe, error)
}

// Synthesizer speaks one utterance at a time. Calling Speak while an
// utterance is active cancels the prior utterance first. The done
// callback fires when the utterance finishes naturally (including
// synthesis errors, which count as completion) and never fires for a
// cancelled utterance.
//
// Supported reports whether the environment can actually produce
// audio; callers must disable speech controls when it returns false.
type Synthesizer interface {
	Speak(text string, done func())
	Pause()
	Resume()
	Cancel()
	Supported() bool
}

// SnapshotStore checkpoints session progress so the surrounding
// application can restore a session across reloads. The engine only
// hands out snapshots; it never reads its own state back from here.
type SnapshotStore interface {
	Save(ctx context.Context, snap SessionSnapshot) error
	Load(ctx context.Context, sessionKey string) (*SessionSnapshot, error)
	Delete(ctx context.Context, sessionKey string) error
}
