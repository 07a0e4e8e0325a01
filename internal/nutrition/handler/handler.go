package handler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"nutridash/internal/nutrition/ingest"
	"nutridash/internal/nutrition/insights"
	"nutridash/internal/nutrition/models"
	"nutridash/internal/nutrition/viewmodel"
	"nutridash/internal/platform/middleware"
	dErrors "nutridash/pkg/domain-errors"
	"nutridash/pkg/platform/httputil"
)

// maxUploadBytes bounds multipart uploads held in memory before spilling to
// temporary files.
const maxUploadBytes = 32 << 20

// Sessions resolves the view model of the session in the request context.
type Sessions interface {
	Get(ctx context.Context) (*viewmodel.Model, error)
}

// Ingester creates records from an uploaded CSV file.
type Ingester interface {
	Ingest(ctx context.Context, r io.Reader) (ingest.Result, error)
}

// Handler serves the dashboard shell and its JSON API.
type Handler struct {
	sessions Sessions
	ingester Ingester
	logger   *slog.Logger
}

func New(sessions Sessions, ingester Ingester, logger *slog.Logger) *Handler {
	return &Handler{
		sessions: sessions,
		ingester: ingester,
		logger:   logger,
	}
}

// Register mounts the shell and API routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/", h.handleShell)

	r.Route("/api", func(r chi.Router) {
		r.Post("/refresh", h.handleRefresh)

		r.Get("/view", h.handleView)
		r.Put("/view/search", h.handleSearch)
		r.Put("/view/page", h.handleGoToPage)
		r.Post("/view/next", h.handleNextPage)
		r.Post("/view/prev", h.handlePrevPage)

		r.Get("/records/{id}/edit", h.handleEditForm)
		r.Put("/records/{id}", h.handleUpdate)
		r.Post("/records/{id}/delete", h.handleRequestDelete)
		r.Post("/delete/confirm", h.handleConfirmDelete)
		r.Post("/delete/cancel", h.handleCancelDelete)

		r.Post("/ingest", h.handleIngest)
		r.Get("/export.csv", h.handleExport)

		r.Get("/insights/stacked", h.handleStacked)
		r.Get("/insights/top", h.handleTop)
		r.Get("/insights/scatter", h.handleScatter)
		r.Get("/insights/summary", h.handleSummary)
		r.Get("/insights/{chart}.png", h.handleChartPNG)
	})
}

// model resolves the session's view model, writing the error response when
// it cannot.
func (h *Handler) model(w http.ResponseWriter, r *http.Request) (*viewmodel.Model, bool) {
	ctx := r.Context()
	m, err := h.sessions.Get(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to resolve session",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "session unavailable"))
		return nil, false
	}
	return m, true
}

// loadedModel is model plus a first-use refresh from the store.
func (h *Handler) loadedModel(w http.ResponseWriter, r *http.Request) (*viewmodel.Model, bool) {
	m, ok := h.model(w, r)
	if !ok {
		return nil, false
	}
	if err := m.EnsureLoaded(r.Context()); err != nil {
		h.writeError(w, r, err, "failed to load records")
		return nil, false
	}
	return m, true
}

// writeError logs client mistakes at warn and everything else at error.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	h.logFailure(r, err, msg)
	httputil.WriteError(w, err)
}

// logFailure logs client mistakes at warn and everything else at error.
func (h *Handler) logFailure(r *http.Request, err error, msg string, extra ...any) {
	ctx := r.Context()
	attrs := append([]any{"request_id", middleware.GetRequestID(ctx), "error", err}, extra...)
	switch dErrors.CodeOf(err) {
	case dErrors.CodeBadRequest, dErrors.CodeValidation, dErrors.CodeNotFound, dErrors.CodeConflict:
		h.logger.WarnContext(ctx, msg, attrs...)
	default:
		h.logger.ErrorContext(ctx, msg, attrs...)
	}
}

func (h *Handler) writeView(w http.ResponseWriter, m *viewmodel.Model) {
	httputil.WriteJSON(w, http.StatusOK, toViewResponse(m.Snapshot()))
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	m, ok := h.model(w, r)
	if !ok {
		return
	}
	if err := m.Refresh(r.Context()); err != nil {
		h.writeError(w, r, err, "refresh failed")
		return
	}
	h.writeView(w, m)
}

func (h *Handler) handleView(w http.ResponseWriter, r *http.Request) {
	m, ok := h.loadedModel(w, r)
	if !ok {
		return
	}
	h.writeView(w, m)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[SearchRequest](w, r, h.logger, ctx, middleware.GetRequestID(ctx))
	if !ok {
		return
	}
	m, ok := h.loadedModel(w, r)
	if !ok {
		return
	}
	m.SetSearch(req.Term)
	h.writeView(w, m)
}

func (h *Handler) handleGoToPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[PageRequest](w, r, h.logger, ctx, middleware.GetRequestID(ctx))
	if !ok {
		return
	}
	m, ok := h.loadedModel(w, r)
	if !ok {
		return
	}
	if err := m.GoToPage(req.Page); err != nil {
		h.writeError(w, r, err, "page change rejected")
		return
	}
	h.writeView(w, m)
}

func (h *Handler) handleNextPage(w http.ResponseWriter, r *http.Request) {
	m, ok := h.loadedModel(w, r)
	if !ok {
		return
	}
	m.NextPage()
	h.writeView(w, m)
}

func (h *Handler) handlePrevPage(w http.ResponseWriter, r *http.Request) {
	m, ok := h.loadedModel(w, r)
	if !ok {
		return
	}
	m.PrevPage()
	h.writeView(w, m)
}

func (h *Handler) handleEditForm(w http.ResponseWriter, r *http.Request) {
	m, ok := h.loadedModel(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	form, err := m.EditForm(id)
	if err != nil {
		h.writeError(w, r, err, "edit form unavailable")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, EditFormResponse{ID: id, Form: form})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[EditRecordRequest](w, r, h.logger, ctx, middleware.GetRequestID(ctx))
	if !ok {
		return
	}
	m, ok := h.loadedModel(w, r)
	if !ok {
		return
	}
	rec, err := m.ApplyEdit(ctx, chi.URLParam(r, "id"), req.Form())
	if err != nil {
		h.writeError(w, r, err, "failed to update record")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

func (h *Handler) handleRequestDelete(w http.ResponseWriter, r *http.Request) {
	m, ok := h.loadedModel(w, r)
	if !ok {
		return
	}
	rec, err := m.RequestDelete(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err, "delete request rejected")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, PendingDeleteResponse{Pending: rec})
}

func (h *Handler) handleConfirmDelete(w http.ResponseWriter, r *http.Request) {
	m, ok := h.loadedModel(w, r)
	if !ok {
		return
	}
	id, err := m.ConfirmDelete(r.Context())
	if err != nil {
		h.writeError(w, r, err, "failed to delete record")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, DeletedResponse{Deleted: id, View: toViewResponse(m.Snapshot())})
}

func (h *Handler) handleCancelDelete(w http.ResponseWriter, r *http.Request) {
	m, ok := h.model(w, r)
	if !ok {
		return
	}
	m.CancelDelete()
	h.writeView(w, m)
}

// handleIngest creates one record per uploaded CSV row. The batch keeps
// running if the client goes away; there is no cancel.
func (h *Handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	m, ok := h.model(w, r)
	if !ok {
		return
	}
	done, err := m.Begin(viewmodel.OpIngest)
	if err != nil {
		h.writeError(w, r, err, "ingestion already running")
		return
	}
	defer done()

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		h.writeError(w, r, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid upload"), "invalid upload")
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, r, ingest.ErrNoFileSelected, "no file selected")
		return
	}
	defer file.Close()

	detached := context.WithoutCancel(ctx)
	res, ingestErr := h.ingester.Ingest(detached, file)
	if res.Created > 0 {
		if err := m.Refresh(detached); err != nil && !errors.Is(err, viewmodel.ErrOperationInFlight) {
			h.logger.WarnContext(ctx, "refresh after ingestion failed",
				"request_id", middleware.GetRequestID(ctx),
				"error", err,
			)
		}
	}
	if ingestErr != nil {
		h.logFailure(r, ingestErr, "ingestion failed", "created", res.Created, "failed_row", res.FailedRow)
		// rows before the failure stay created; report how far the batch got
		httputil.WriteErrorWith(w, ingestErr, map[string]any{"result": res})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	m, ok := h.loadedModel(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="nutrition.csv"`)
	if err := ingest.WriteCSV(w, m.All()); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to write export",
			"request_id", middleware.GetRequestID(r.Context()),
			"error", err,
		)
	}
}

func (h *Handler) handleStacked(w http.ResponseWriter, r *http.Request) {
	m, ok := h.loadedModel(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, insights.Stacked(m.All()))
}

func (h *Handler) handleTop(w http.ResponseWriter, r *http.Request) {
	metric, n, err := topParams(r)
	if err != nil {
		h.writeError(w, r, err, "invalid top-N query")
		return
	}
	m, ok := h.loadedModel(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, insights.TopChart(m.All(), metric, n))
}

func (h *Handler) handleScatter(w http.ResponseWriter, r *http.Request) {
	x, y, err := scatterParams(r)
	if err != nil {
		h.writeError(w, r, err, "invalid scatter query")
		return
	}
	m, ok := h.loadedModel(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, insights.Scatter(m.All(), x, y))
}

// handleSummary returns one metric's summary with ?metric=, otherwise the
// summary of every indicator.
func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("metric")
	var metric models.Metric
	if raw != "" {
		var err error
		if metric, err = models.ParseMetric(raw); err != nil {
			h.writeError(w, r, err, "invalid summary query")
			return
		}
	}
	m, ok := h.loadedModel(w, r)
	if !ok {
		return
	}
	recs := m.All()
	if raw != "" {
		httputil.WriteJSON(w, http.StatusOK, insights.Summarize(recs, metric))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, SummariesResponse{Count: len(recs), Summaries: insights.SummarizeAll(recs)})
}

func (h *Handler) handleChartPNG(w http.ResponseWriter, r *http.Request) {
	chart := chi.URLParam(r, "chart")
	var render func(io.Writer, []models.NutritionRecord) error
	switch chart {
	case "stacked":
		render = func(out io.Writer, recs []models.NutritionRecord) error {
			return insights.RenderStacked(out, insights.Stacked(recs))
		}
	case "top":
		metric, n, err := topParams(r)
		if err != nil {
			h.writeError(w, r, err, "invalid top-N query")
			return
		}
		render = func(out io.Writer, recs []models.NutritionRecord) error {
			return insights.RenderBar(out, insights.TopChart(recs, metric, n))
		}
	case "scatter":
		x, y, err := scatterParams(r)
		if err != nil {
			h.writeError(w, r, err, "invalid scatter query")
			return
		}
		render = func(out io.Writer, recs []models.NutritionRecord) error {
			return insights.RenderScatter(out, insights.Scatter(recs, x, y), x)
		}
	default:
		h.writeError(w, r, dErrors.New(dErrors.CodeNotFound, "unknown chart "+chart), "unknown chart")
		return
	}

	m, ok := h.loadedModel(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := render(&buf, m.All()); err != nil {
		h.writeError(w, r, err, "failed to render chart")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func topParams(r *http.Request) (models.Metric, int, error) {
	q := r.URL.Query()
	metric := insights.DefaultMetric
	if raw := q.Get("metric"); raw != "" {
		m, err := models.ParseMetric(raw)
		if err != nil {
			return "", 0, err
		}
		metric = m
	}
	n := insights.DefaultTopN
	if raw := q.Get("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return "", 0, dErrors.New(dErrors.CodeBadRequest, "n must be a positive integer")
		}
		n = v
	}
	return metric, n, nil
}

func scatterParams(r *http.Request) (models.Metric, models.Metric, error) {
	q := r.URL.Query()
	x, y := models.MetricIncomeClassification, models.MetricStunting
	if raw := q.Get("x"); raw != "" {
		m, err := models.ParseMetric(raw)
		if err != nil {
			return "", "", err
		}
		x = m
	}
	if raw := q.Get("y"); raw != "" {
		m, err := models.ParseMetric(raw)
		if err != nil {
			return "", "", err
		}
		y = m
	}
	return x, y, nil
}
