// Package store is the typed record repository: NutritionRecord values over
// a docstore collection.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"slices"

	"golang.org/x/sync/singleflight"

	"nutridash/internal/docstore"
	"nutridash/internal/nutrition/models"
	dErrors "nutridash/pkg/domain-errors"
	"nutridash/pkg/platform/sentinel"
)

// Records reads and writes nutrition records in one collection.
// Concurrent List calls for the collection share a single store round-trip.
type Records struct {
	docs       docstore.Store
	collection string
	lists      singleflight.Group
}

func New(docs docstore.Store, collection string) *Records {
	return &Records{docs: docs, collection: collection}
}

func (r *Records) Collection() string {
	return r.collection
}

// List fetches every record in store order.
func (r *Records) List(ctx context.Context) ([]models.NutritionRecord, error) {
	v, err, _ := r.lists.Do(r.collection, func() (any, error) {
		docs, err := r.docs.List(ctx, r.collection)
		if err != nil {
			return nil, err
		}
		out := make([]models.NutritionRecord, 0, len(docs))
		for _, doc := range docs {
			out = append(out, FromDocument(doc))
		}
		return out, nil
	})
	if err != nil {
		return nil, translate(err, "failed to fetch records")
	}
	// callers own their slice; the shared result stays untouched
	return slices.Clone(v.([]models.NutritionRecord)), nil
}

// Create stores a new record and returns its assigned id.
func (r *Records) Create(ctx context.Context, rec models.NutritionRecord) (string, error) {
	id, err := r.docs.Create(ctx, r.collection, ToFields(rec))
	if err != nil {
		return "", translate(err, "failed to create record")
	}
	return id, nil
}

// Update overwrites every field of the record with the given id.
func (r *Records) Update(ctx context.Context, id string, rec models.NutritionRecord) error {
	if err := r.docs.Update(ctx, r.collection, id, ToFields(rec)); err != nil {
		return translate(err, "failed to update record")
	}
	return nil
}

func (r *Records) Delete(ctx context.Context, id string) error {
	if err := r.docs.Delete(ctx, r.collection, id); err != nil {
		return translate(err, "failed to delete record")
	}
	return nil
}

func translate(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "record not found")
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg)
	default:
		return dErrors.Wrap(err, dErrors.CodeUnavailable, msg)
	}
}

// ToFields renders a record as its stored document body. The id is not part
// of the body.
func ToFields(rec models.NutritionRecord) docstore.Fields {
	return docstore.Fields{
		"country":               rec.Country,
		"income_classification": int(rec.IncomeClassification),
		"severe_wasting":        rec.SevereWasting,
		"wasting":               rec.Wasting,
		"overweight":            rec.Overweight,
		"stunting":              rec.Stunting,
		"underweight":           rec.Underweight,
		"u5_population":         rec.U5Population,
	}
}

// FromDocument decodes a stored document. Documents written by other clients
// may carry numbers as strings; anything that does not decode reads as 0.
func FromDocument(doc docstore.Document) models.NutritionRecord {
	f := doc.Fields
	country, _ := f["country"].(string)
	return models.NutritionRecord{
		ID:                   doc.ID,
		Country:              country,
		IncomeClassification: models.IncomeClassification(number(f["income_classification"])),
		SevereWasting:        number(f["severe_wasting"]),
		Wasting:              number(f["wasting"]),
		Overweight:           number(f["overweight"]),
		Stunting:             number(f["stunting"]),
		Underweight:          number(f["underweight"]),
		U5Population:         number(f["u5_population"]),
	}
}

func number(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	case string:
		f, _ := models.ParseMetricValue(n)
		return f
	default:
		return 0
	}
}
