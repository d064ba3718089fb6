package normalize

import (
	"reflect"
	"testing"

	"github.com/mirepoix/souschef/internal/domain"
)

func TestExtractDuration(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		// Verb-prefixed forms.
		{"Bake for 10 minutes", 600},
		{"Let rest for 2 hours", 7200},
		{"Microwave for 30 seconds", 30},
		{"simmer for 1 minute", 60},

		// Ranges average the bounds.
		{"Simmer for 5-10 minutes", 450},
		{"Roast for 1-2 hours", 5400},
		{"Cook 3 to 5 minutes per side", 240},

		// "about" phrasing.
		{"about 15 minutes total", 900},
		{"approximately 1 hour", 3600},

		// Bare unit fallback.
		{"a quick 10m rest", 600},
		{"needs 2 hrs in the fridge", 7200},
		{"blitz 45 sec", 45},

		// No duration.
		{"Stir well", 0},
		{"", 0},
		{"Season to taste", 0},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := ExtractDuration(tt.text); got != tt.want {
				t.Errorf("ExtractDuration(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestExtractDurationFirstClassWins(t *testing.T) {
	// A verb-prefixed minutes phrase beats a bare-hours mention that
	// appears earlier in the text.
	got := ExtractDuration("After 2 hours of prep, simmer for 10 minutes")
	if got != 600 {
		t.Fatalf("expected verb-prefixed minutes to win, got %d", got)
	}
}

func TestRequiresUserAction(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		// Clause-initial imperative wins even with passive words later.
		{"Add the onions and sauté until golden", true},
		{"Stir constantly until thickened", true},
		{"Chop the parsley. Let it sit.", true},

		// Passive / monitor-only.
		{"Let the sauce simmer until thickened", false},
		{"The dough should rise for about an hour", false},
		{"Wait until the water boils", false},

		// Ties and empty counts classify passive.
		{"", false},
		{"Enjoy your meal", false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := RequiresUserAction(tt.text); got != tt.want {
				t.Errorf("RequiresUserAction(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestNormalizeCompoundSplit(t *testing.T) {
	steps := Normalize([]domain.RawStep{
		{Text: "Add salt and pepper, then stir for 2 minutes", ImageRef: "img-1"},
	})

	if len(steps) != 2 {
		t.Fatalf("expected 2 sub-steps, got %d", len(steps))
	}
	if steps[0].Text != "Add salt and pepper" {
		t.Errorf("first sub-step text = %q", steps[0].Text)
	}
	if steps[1].TimerSeconds != 120 {
		t.Errorf("second sub-step timer = %d, want 120", steps[1].TimerSeconds)
	}
	if !steps[1].RequiresUserAction {
		t.Error("second sub-step should be active (starts with 'stir')")
	}
	// Only the first sub-step keeps the image.
	if steps[0].ImageRef != "img-1" || steps[1].ImageRef != "" {
		t.Errorf("image refs = %q, %q; want img-1, \"\"", steps[0].ImageRef, steps[1].ImageRef)
	}
}

func TestNormalizeNoRecursiveSplit(t *testing.T) {
	// Only the first matching connective class splits; sub-steps are
	// never re-split even when they contain another connective.
	steps := Normalize([]domain.RawStep{
		{Text: "Whisk the eggs, then pour into the pan; tilt to coat"},
	})
	if len(steps) != 2 {
		t.Fatalf("expected 2 sub-steps (single split pass), got %d", len(steps))
	}
	if steps[1].Text != "pour into the pan; tilt to coat" {
		t.Errorf("second sub-step should keep its semicolon, got %q", steps[1].Text)
	}
}

func TestNormalizeIndicesAreDense(t *testing.T) {
	steps := Normalize([]domain.RawStep{
		{Text: "Dice the onion, then mince the garlic"},
		{Text: "Simmer for 10 minutes"},
	})
	if len(steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(steps))
	}
	for i, s := range steps {
		if s.Index != i {
			t.Errorf("step %d has index %d", i, s.Index)
		}
	}
}

func TestNormalizePlaceholderForEmptyText(t *testing.T) {
	steps := Normalize([]domain.RawStep{{Text: "   "}})
	if len(steps) != 1 {
		t.Fatalf("expected 1 placeholder step, got %d", len(steps))
	}
	if steps[0].Text != placeholderText {
		t.Errorf("placeholder text = %q", steps[0].Text)
	}
	if steps[0].RequiresUserAction {
		t.Error("placeholder should be passive")
	}
}

func TestNormalizeDeterministic(t *testing.T) {
	raw := []domain.RawStep{
		{Text: "Brown the beef, then drain the fat", ImageRef: "img"},
		{Text: "Simmer for 5-10 minutes"},
	}
	a := Normalize(raw)
	b := Normalize(raw)
	if !reflect.DeepEqual(a, b) {
		t.Fatal("Normalize is not deterministic for identical input")
	}
}
