// Package docstore is the record store client: a generic document-collection
// API with interchangeable backends. Callers see ordered documents keyed by
// store-assigned ids and nothing else of the backend.
package docstore

import (
	"context"
	"maps"
)

// Fields is the schemaless body of a document. Values are JSON-compatible
// scalars; backends that round-trip through JSON return numbers as float64.
type Fields map[string]any

// Clone returns a shallow copy, enough for scalar-valued documents.
func (f Fields) Clone() Fields {
	if f == nil {
		return Fields{}
	}
	return maps.Clone(f)
}

// Document is one stored entry of a collection.
type Document struct {
	ID     string
	Fields Fields
}

// Store is the document-collection API consumed by the dashboard.
//
// List returns documents in insertion order. Update replaces every field of
// the document (no merge). Update and Delete of an unknown id return an error
// wrapping sentinel.ErrNotFound; infrastructure failures wrap
// sentinel.ErrUnavailable.
type Store interface {
	List(ctx context.Context, collection string) ([]Document, error)
	Create(ctx context.Context, collection string, fields Fields) (string, error)
	Update(ctx context.Context, collection, id string, fields Fields) error
	Delete(ctx context.Context, collection, id string) error
}
