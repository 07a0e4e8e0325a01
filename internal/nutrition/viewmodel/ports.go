package viewmodel

import (
	"context"

	"nutridash/internal/nutrition/models"
)

// RecordStore is the subset of the record repository the view model drives.
// Errors carry domain codes (unavailable, not found, timeout).
type RecordStore interface {
	List(ctx context.Context) ([]models.NutritionRecord, error)
	Update(ctx context.Context, id string, rec models.NutritionRecord) error
	Delete(ctx context.Context, id string) error
}
