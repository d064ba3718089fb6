// Package domain defines the core types and interfaces for the guided
// cooking engine. All other packages depend on domain; domain depends
// on nothing.
package domain

// RawStep is an unprocessed recipe instruction as supplied by the
// recipe source. Immutable input to the normalizer.
type RawStep struct {
	Text     string
	ImageRef string // opaque reference, "" when the step has no image
}

// NormalizedStep is a RawStep (or sub-step after compound splitting)
// annotated with an extracted timer duration and a user-action
// classification. Produced once per session and never mutated.
type NormalizedStep struct {
	ID    string
	Index int // dense 0-based position across all sub-steps
	Text  string

	// TimerSeconds is the duration extracted from the step text,
	// 0 when the step carries no duration.
	TimerSeconds int

	// RequiresUserAction is true for steps the cook must actively
	// perform, false for monitor-only steps (simmering, resting).
	RequiresUserAction bool

	ImageRef string
}

// Recipe is the minimal recipe view the engine needs: an ordered list
// of raw instruction steps. Everything else (ingredients, images,
// nutrition) belongs to the surrounding application.
type Recipe struct {
	ID          string
	Name        string
	Description string
	Tags        []string
	Steps       []RawStep
}

// RecipeSummary is a lightweight view of a recipe for listing.
type RecipeSummary struct {
	ID          string
	Name        string
	Description string
	Tags        []string
}
