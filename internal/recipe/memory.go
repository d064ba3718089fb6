// Package recipe provides recipe source implementations.
package recipe

import (
	"context"
	"sort"
	"sync"

	"github.com/mirepoix/souschef/internal/domain"
	"github.com/mirepoix/souschef/internal/logger"
)

// Compile-time interface check.
var _ domain.RecipeSource = (*MemorySource)(nil)

// MemorySource holds recipes in memory. Safe for concurrent reads.
type MemorySource struct {
	mu      sync.RWMutex
	recipes map[string]*domain.Recipe
	log     *logger.Logger
}

// NewMemorySource creates a recipe source preloaded with built-in recipes.
func NewMemorySource(log *logger.Logger) *MemorySource {
	src := &MemorySource{
		recipes: make(map[string]*domain.Recipe),
		log:     log,
	}
	src.seed()
	return src
}

// List returns summaries of all available recipes.
func (s *MemorySource) List(ctx context.Context) ([]domain.RecipeSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	s.log.Debug("listing all recipes, count=%d", len(s.recipes))

	out := make([]domain.RecipeSummary, 0, len(s.recipes))
	for _, r := range s.recipes {
		out = append(out, domain.RecipeSummary{
			ID:          r.ID,
			Name:        r.Name,
			Description: r.Description,
			Tags:        r.Tags,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Get returns a recipe by ID.
func (s *MemorySource) Get(ctx context.Context, id string) (*domain.Recipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.recipes[id]
	if !ok {
		s.log.Debug("recipe not found: %s", id)
		return nil, domain.ErrNotFound
	}
	return r, nil
}

// Add registers a recipe. Overwrites any recipe with the same ID.
func (s *MemorySource) Add(recipe *domain.Recipe) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recipes[recipe.ID] = recipe
}

// seed populates the source with built-in recipes. Step text is written
// the way recipe sites publish it: compound sentences, duration phrases
// in prose, and the occasional step with nothing to time at all. The
// normalizer is responsible for making sense of it.
func (s *MemorySource) seed() {
	s.recipes["tomato-soup"] = &domain.Recipe{
		ID:          "tomato-soup",
		Name:        "Tomato Soup",
		Description: "A simple stovetop tomato soup.",
		Tags:        []string{"soup", "vegetarian", "easy"},
		Steps: []domain.RawStep{
			{Text: "Dice the onion and mince the garlic.", ImageRef: "tomato-soup/prep.jpg"},
			{Text: "Heat the olive oil in a large pot, then add the onion and cook for 5 minutes."},
			{Text: "Add the garlic and tomato paste. Next, stir for 1 minute."},
			{Text: "Pour in the crushed tomatoes and stock; season with salt and pepper."},
			{Text: "Let the soup simmer for 20-25 minutes.", ImageRef: "tomato-soup/simmer.jpg"},
			{Text: "Blend until smooth and serve with a swirl of cream."},
		},
	}

	s.recipes["pancakes"] = &domain.Recipe{
		ID:          "pancakes",
		Name:        "Buttermilk Pancakes",
		Description: "Fluffy weekend pancakes.",
		Tags:        []string{"breakfast", "sweet"},
		Steps: []domain.RawStep{
			{Text: "Whisk the flour, sugar, baking powder, and salt in a large bowl."},
			{Text: "Crack the eggs into the buttermilk, then whisk in the melted butter."},
			{Text: "Fold the wet ingredients into the dry. The batter should stay a little lumpy."},
			{Text: "Let the batter rest for about 10 minutes.", ImageRef: "pancakes/batter.jpg"},
			{Text: "Heat a griddle over medium heat. After that, pour a quarter cup of batter per pancake."},
			{Text: "Cook for 2-3 minutes until bubbles form, then flip and cook 2 minutes more."},
			{Text: "Serve warm with syrup."},
		},
	}

	s.log.Debug("seeded %d built-in recipes", len(s.recipes))
}
