package events

import (
	"context"
	"errors"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Fetcher is the slice of *kgo.Client a Watcher polls.
type Fetcher interface {
	PollFetches(ctx context.Context) kgo.Fetches
}

// Handler receives decoded change events in partition order.
type Handler func(ctx context.Context, ev ChangeEvent) error

// Watcher consumes change events and hands each one to a Handler.
// Undecodable messages are logged and skipped.
type Watcher struct {
	fetcher Fetcher
	handle  Handler
	logger  *slog.Logger
}

func NewWatcher(fetcher Fetcher, handle Handler, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{fetcher: fetcher, handle: handle, logger: logger}
}

// Run polls until ctx is done or the handler fails.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		fetches := w.fetcher.PollFetches(ctx)
		if ctx.Err() != nil || fetches.IsClientClosed() {
			return nil
		}
		for _, fe := range fetches.Errors() {
			if errors.Is(fe.Err, context.Canceled) {
				return nil
			}
			w.logger.WarnContext(ctx, "fetch error", "topic", fe.Topic, "partition", fe.Partition, "error", fe.Err)
		}

		var handleErr error
		fetches.EachRecord(func(rec *kgo.Record) {
			if handleErr != nil {
				return
			}
			ev, err := Decode(rec.Value)
			if err != nil {
				w.logger.WarnContext(ctx, "skipping malformed change event",
					"topic", rec.Topic,
					"offset", rec.Offset,
					"error", err,
				)
				return
			}
			handleErr = w.handle(ctx, ev)
		})
		if handleErr != nil {
			return handleErr
		}
	}
}
