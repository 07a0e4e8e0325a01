// Package events publishes record change events (created, updated, deleted)
// so other processes can follow the collection without polling it.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"nutridash/internal/nutrition/models"
)

type Kind string

const (
	KindCreated Kind = "created"
	KindUpdated Kind = "updated"
	KindDeleted Kind = "deleted"
)

// ChangeEvent describes one successful write to the record store. Record is
// the full record after the write and is nil for deletes.
type ChangeEvent struct {
	Kind       Kind                    `json:"kind"`
	Collection string                  `json:"collection"`
	ID         string                  `json:"id"`
	Record     *models.NutritionRecord `json:"record,omitempty"`
	SessionID  string                  `json:"session_id,omitempty"`
	At         time.Time               `json:"at"`
}

// Publisher hands change events to a transport. Publish must not block on
// the network; delivery failures are the publisher's to report.
type Publisher interface {
	Publish(ctx context.Context, ev ChangeEvent) error
}

// NopPublisher discards events. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, ChangeEvent) error { return nil }

func Encode(ev ChangeEvent) ([]byte, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode change event: %w", err)
	}
	return b, nil
}

func Decode(b []byte) (ChangeEvent, error) {
	var ev ChangeEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		return ChangeEvent{}, fmt.Errorf("decode change event: %w", err)
	}
	return ev, nil
}
