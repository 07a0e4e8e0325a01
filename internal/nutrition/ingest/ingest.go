// Package ingest turns an uploaded CSV file into stored nutrition records,
// one create per row, in file order.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"nutridash/internal/nutrition/events"
	"nutridash/internal/nutrition/metrics"
	"nutridash/internal/nutrition/models"
	dErrors "nutridash/pkg/domain-errors"
	"nutridash/pkg/requestcontext"
)

// ErrNoFileSelected is returned when an ingestion is started without a file.
var ErrNoFileSelected = dErrors.New(dErrors.CodeBadRequest, "Please upload a valid CSV file.")

// ErrNoData is returned when the file has a header but no usable data rows.
var ErrNoData = dErrors.New(dErrors.CodeBadRequest, "No data to save. Please upload a CSV file.")

// Creator persists one record and returns the id the store assigned.
type Creator interface {
	Create(ctx context.Context, rec models.NutritionRecord) (string, error)
}

// Result describes how far a batch got. Rows is the number of data rows
// read; FailedRow is the 1-based data row that stopped the batch, 0 when
// every row was created.
type Result struct {
	Rows      int      `json:"rows"`
	Created   int      `json:"created"`
	Skipped   int      `json:"skipped"`
	FailedRow int      `json:"failed_row,omitempty"`
	IDs       []string `json:"ids"`
}

type Service struct {
	creator    Creator
	publisher  events.Publisher
	collection string
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithCollection(name string) Option {
	return func(s *Service) { s.collection = name }
}

func New(creator Creator, opts ...Option) (*Service, error) {
	if creator == nil {
		return nil, errors.New("record creator is required")
	}
	s := &Service{
		creator:    creator,
		publisher:  events.NopPublisher{},
		collection: "nutritionData",
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Ingest parses r and creates one record per data row, sequentially. The
// first row that fails validation or creation stops the batch; rows created
// before it stay in the store. The returned Result is meaningful even when
// err is non-nil.
func (s *Service) Ingest(ctx context.Context, r io.Reader) (Result, error) {
	if r == nil {
		return Result{}, ErrNoFileSelected
	}
	table, err := Parse(r)
	if err != nil {
		return Result{}, err
	}

	res := Result{Rows: len(table.Rows), Skipped: table.Skipped, IDs: make([]string, 0, len(table.Rows))}
	if len(table.Rows) == 0 {
		return res, ErrNoData
	}
	if table.Skipped > 0 {
		s.logger.WarnContext(ctx, "skipped malformed CSV rows",
			"request_id", requestcontext.RequestID(ctx),
			"skipped", table.Skipped,
		)
	}

	for i, row := range table.Rows {
		rowNum := i + 1
		id, err := s.ingestRow(ctx, row)
		if err != nil {
			res.FailedRow = rowNum
			s.metrics.IncIngestFailure()
			s.logger.ErrorContext(ctx, "ingestion stopped",
				"request_id", requestcontext.RequestID(ctx),
				"row", rowNum,
				"created", res.Created,
				"error", err,
			)
			return res, dErrors.Wrap(err, dErrors.CodeOf(err), fmt.Sprintf("row %d: %s", rowNum, messageOf(err)))
		}
		res.Created++
		res.IDs = append(res.IDs, id)
	}

	s.logger.InfoContext(ctx, "ingestion complete",
		"request_id", requestcontext.RequestID(ctx),
		"rows", res.Rows,
		"created", res.Created,
	)
	return res, nil
}

func (s *Service) ingestRow(ctx context.Context, row Row) (string, error) {
	rec, coercion, err := MapRow(row).Parse()
	if err != nil {
		return "", err
	}
	for _, m := range coercion.ZeroFilled {
		s.metrics.IncZeroFilled(string(m))
	}

	id, err := s.creator.Create(ctx, rec)
	if err != nil {
		return "", err
	}
	s.metrics.IncRecordsIngested()

	rec.ID = id
	if err := s.publisher.Publish(ctx, events.ChangeEvent{
		Kind:       events.KindCreated,
		Collection: s.collection,
		ID:         id,
		Record:     &rec,
		SessionID:  requestcontext.SessionID(ctx),
		At:         requestcontext.Now(ctx),
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to publish change event", "record_id", id, "error", err)
	}
	return id, nil
}

func messageOf(err error) string {
	if msg := dErrors.Message(err); msg != "" {
		return msg
	}
	return err.Error()
}
