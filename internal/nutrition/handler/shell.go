package handler

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"strconv"

	"nutridash/internal/nutrition/insights"
	"nutridash/internal/nutrition/models"
	"nutridash/internal/nutrition/viewmodel"
	"nutridash/internal/platform/middleware"
	dErrors "nutridash/pkg/domain-errors"
)

//go:embed templates/*.html
var templateFS embed.FS

var shellTemplate = template.Must(template.New("index.html").Funcs(template.FuncMap{
	"fixed2": func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) },
	"income": func(c models.IncomeClassification) string { return c.Label() },
}).ParseFS(templateFS, "templates/index.html"))

const (
	TabDashboard = "dashboard"
	TabData      = "data"
	TabInsights  = "insights"
)

var tabs = []struct{ ID, Title string }{
	{TabDashboard, "Dashboard"},
	{TabData, "Data Management"},
	{TabInsights, "Insights"},
}

type shellData struct {
	Tabs      []struct{ ID, Title string }
	Tab       string
	Error     string
	View      viewmodel.View
	Summaries []insights.Summary
	Legend    []models.IncomeClassification
	Pending   *models.NutritionRecord
	// FormFields names the edit dialog inputs, matching RecordForm's json tags.
	FormFields []string
}

var formFields = []string{
	"country", "income_classification", "severe_wasting", "wasting",
	"overweight", "stunting", "underweight", "u5_population",
}

// handleShell renders the dashboard page for ?tab=dashboard|data|insights.
// A store outage still renders the page, with the error shown in place of
// the records.
func (h *Handler) handleShell(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tab := r.URL.Query().Get("tab")
	switch tab {
	case "":
		tab = TabDashboard
	case TabDashboard, TabData, TabInsights:
	default:
		h.writeError(w, r, dErrors.New(dErrors.CodeBadRequest, "unknown tab "+strconv.Quote(tab)), "unknown tab")
		return
	}

	m, ok := h.model(w, r)
	if !ok {
		return
	}
	data := shellData{
		Tabs:       tabs,
		Tab:        tab,
		Legend:     models.IncomeClassifications(),
		FormFields: formFields,
	}
	if err := m.EnsureLoaded(ctx); err != nil {
		h.logger.ErrorContext(ctx, "failed to load records for shell",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		data.Error = dErrors.Message(err)
	}
	data.View = m.Snapshot()
	data.Summaries = insights.SummarizeAll(m.All())
	if rec, ok := m.PendingDelete(); ok {
		data.Pending = &rec
	}

	var buf bytes.Buffer
	if err := shellTemplate.Execute(&buf, data); err != nil {
		h.writeError(w, r, dErrors.Wrap(err, dErrors.CodeInternal, "render failed"), "failed to render shell")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
