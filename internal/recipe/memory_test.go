package recipe

import (
	"context"
	"errors"
	"testing"

	"github.com/mirepoix/souschef/internal/domain"
	"github.com/mirepoix/souschef/internal/logger"
)

func newTestSource() *MemorySource {
	return NewMemorySource(logger.New(logger.LevelOff, nil))
}

func TestListReturnsSeededRecipes(t *testing.T) {
	src := newTestSource()

	summaries, err := src.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(summaries) < 2 {
		t.Fatalf("expected at least 2 seeded recipes, got %d", len(summaries))
	}
	// Sorted by name.
	for i := 1; i < len(summaries); i++ {
		if summaries[i-1].Name > summaries[i].Name {
			t.Errorf("summaries not sorted: %q before %q", summaries[i-1].Name, summaries[i].Name)
		}
	}
}

func TestGetKnownRecipe(t *testing.T) {
	src := newTestSource()

	r, err := src.Get(context.Background(), "tomato-soup")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if r.Name != "Tomato Soup" {
		t.Errorf("recipe name = %q", r.Name)
	}
	if len(r.Steps) == 0 {
		t.Error("seeded recipe has no steps")
	}
}

func TestGetUnknownRecipe(t *testing.T) {
	src := newTestSource()

	_, err := src.Get(context.Background(), "nope")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestAddThenGet(t *testing.T) {
	src := newTestSource()
	src.Add(&domain.Recipe{ID: "custom", Name: "Custom", Steps: []domain.RawStep{{Text: "Stir."}}})

	r, err := src.Get(context.Background(), "custom")
	if err != nil {
		t.Fatalf("Get after Add: %v", err)
	}
	if r.Name != "Custom" {
		t.Errorf("recipe name = %q", r.Name)
	}
}
