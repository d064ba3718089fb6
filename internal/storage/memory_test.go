package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/mirepoix/souschef/internal/domain"
	"github.com/mirepoix/souschef/internal/logger"
)

func newTestStore() *MemoryStore {
	return NewMemoryStore(logger.New(logger.LevelOff, nil))
}

func TestSaveAndLoad(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	snap := domain.SessionSnapshot{
		SessionKey:     "session-1",
		RecipeID:       "tomato-soup",
		StepIndex:      3,
		CompletedSteps: []int{0, 1, 2},
		AutoPlay:       true,
		Phase:          domain.PhaseTimerWaiting,
	}
	if err := store.Save(ctx, snap); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load(ctx, "session-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.StepIndex != 3 || got.RecipeID != "tomato-soup" || !got.AutoPlay {
		t.Errorf("loaded snapshot = %+v", got)
	}
}

func TestSaveOverwrites(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	store.Save(ctx, domain.SessionSnapshot{SessionKey: "s", StepIndex: 1})
	store.Save(ctx, domain.SessionSnapshot{SessionKey: "s", StepIndex: 5})

	got, err := store.Load(ctx, "s")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.StepIndex != 5 {
		t.Errorf("step index = %d, want 5", got.StepIndex)
	}
}

func TestLoadMissing(t *testing.T) {
	store := newTestStore()

	_, err := store.Load(context.Background(), "nope")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	store.Save(ctx, domain.SessionSnapshot{SessionKey: "s"})
	if err := store.Delete(ctx, "s"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Load(ctx, "s"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("snapshot still present after delete")
	}

	if err := store.Delete(ctx, "s"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("deleting missing snapshot: err = %v, want ErrNotFound", err)
	}
}
