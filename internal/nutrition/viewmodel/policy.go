package viewmodel

import (
	"context"
	"fmt"

	"nutridash/internal/nutrition/models"
)

// Cache is what a WritePolicy may do to the model's record set after the
// store accepted a write.
type Cache interface {
	// Replace overwrites the cached record with the same id, keeping its
	// position. Reports false when the id is not cached.
	Replace(rec models.NutritionRecord) bool
	// Remove drops the cached record. Reports false when the id is not cached.
	Remove(id string) bool
	// Reload re-lists the store into the cache.
	Reload(ctx context.Context) error
}

// WritePolicy decides how the cache catches up with a successful store write.
type WritePolicy interface {
	Name() string
	Updated(ctx context.Context, c Cache, rec models.NutritionRecord) error
	Deleted(ctx context.Context, c Cache, id string) error
}

// Optimistic patches the cache locally and trusts it until the next refresh.
type Optimistic struct{}

func (Optimistic) Name() string { return "optimistic" }

func (Optimistic) Updated(_ context.Context, c Cache, rec models.NutritionRecord) error {
	c.Replace(rec)
	return nil
}

func (Optimistic) Deleted(_ context.Context, c Cache, id string) error {
	c.Remove(id)
	return nil
}

// RefetchAfterWrite re-lists the store after every write so the cache never
// holds values the store has not confirmed.
type RefetchAfterWrite struct{}

func (RefetchAfterWrite) Name() string { return "refetch" }

func (RefetchAfterWrite) Updated(ctx context.Context, c Cache, _ models.NutritionRecord) error {
	return c.Reload(ctx)
}

func (RefetchAfterWrite) Deleted(ctx context.Context, c Cache, _ string) error {
	return c.Reload(ctx)
}

// PolicyFor maps a configured policy name onto its implementation.
func PolicyFor(name string) (WritePolicy, error) {
	switch name {
	case "", Optimistic{}.Name():
		return Optimistic{}, nil
	case RefetchAfterWrite{}.Name():
		return RefetchAfterWrite{}, nil
	default:
		return nil, fmt.Errorf("unknown write policy %q", name)
	}
}
