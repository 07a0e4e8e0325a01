// Package viewmodel is the per-session record cache and its derived views:
// the search-filtered subset, the current page, and the pending deletion.
//
// Store calls happen outside the model's lock; derived state is recomputed
// under the lock whenever records, the search term or the page change, so a
// reader never sees a view that mixes old and new state.
package viewmodel

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"

	"nutridash/internal/nutrition/events"
	"nutridash/internal/nutrition/metrics"
	"nutridash/internal/nutrition/models"
	dErrors "nutridash/pkg/domain-errors"
	"nutridash/pkg/requestcontext"
)

const (
	DefaultPageSize   = 8
	DefaultCollection = "nutritionData"
	pageWindow        = 5
)

// In-flight operation keys. Update and delete keys are suffixed with the id.
const (
	OpRefresh = "refresh"
	OpIngest  = "ingest"
	opUpdate  = "update:"
	opDelete  = "delete:"
)

// ErrOperationInFlight is returned when the same operation is re-triggered
// before the previous run finished.
var ErrOperationInFlight = dErrors.New(dErrors.CodeConflict, "operation already in progress")

// View is a consistent snapshot of the derived state.
type View struct {
	Records       []models.NutritionRecord
	Search        string
	Page          int
	PageSize      int
	TotalPages    int
	PageNumbers   []int
	FilteredCount int
	TotalCount    int
	PendingDelete string
	Loaded        bool
}

type Model struct {
	store      RecordStore
	policy     WritePolicy
	publisher  events.Publisher
	collection string
	pageSize   int
	logger     *slog.Logger
	metrics    *metrics.Metrics

	mu            sync.RWMutex
	all           []models.NutritionRecord
	term          string
	needle        string
	filtered      []models.NutritionRecord
	page          int
	pageView      []models.NutritionRecord
	loaded        bool
	pendingDelete string

	flightMu sync.Mutex
	inflight map[string]struct{}
}

type Option func(*Model)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Model) { m.logger = logger }
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Model) { m.metrics = mt }
}

func WithPublisher(p events.Publisher) Option {
	return func(m *Model) { m.publisher = p }
}

func WithWritePolicy(p WritePolicy) Option {
	return func(m *Model) { m.policy = p }
}

func WithPageSize(n int) Option {
	return func(m *Model) {
		if n > 0 {
			m.pageSize = n
		}
	}
}

// WithCollection names the collection in published change events.
func WithCollection(name string) Option {
	return func(m *Model) { m.collection = name }
}

func New(store RecordStore, opts ...Option) (*Model, error) {
	if store == nil {
		return nil, errors.New("record store is required")
	}
	m := &Model{
		store:      store,
		policy:     Optimistic{},
		publisher:  events.NopPublisher{},
		collection: DefaultCollection,
		pageSize:   DefaultPageSize,
		logger:     slog.Default(),
		page:       1,
		inflight:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Begin marks op as running for this model. The returned func ends it.
// A second Begin of the same op before the first ends fails with
// ErrOperationInFlight.
func (m *Model) Begin(op string) (func(), error) {
	m.flightMu.Lock()
	defer m.flightMu.Unlock()
	if _, busy := m.inflight[op]; busy {
		return nil, ErrOperationInFlight
	}
	m.inflight[op] = struct{}{}
	return func() {
		m.flightMu.Lock()
		delete(m.inflight, op)
		m.flightMu.Unlock()
	}, nil
}

// Refresh replaces the cache with the store's current records. On failure
// the cache is left untouched.
func (m *Model) Refresh(ctx context.Context) error {
	done, err := m.Begin(OpRefresh)
	if err != nil {
		return err
	}
	defer done()
	return m.reload(ctx)
}

// EnsureLoaded refreshes once for a model that has never loaded. A refresh
// already running elsewhere counts as loading.
func (m *Model) EnsureLoaded(ctx context.Context) error {
	if m.Loaded() {
		return nil
	}
	if err := m.Refresh(ctx); err != nil && !errors.Is(err, ErrOperationInFlight) {
		return err
	}
	return nil
}

func (m *Model) reload(ctx context.Context) error {
	recs, err := m.store.List(ctx)
	m.metrics.ObserveRefresh(err)
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to fetch records",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.all = recs
	m.loaded = true
	if m.pendingDelete != "" && indexOf(m.all, m.pendingDelete) < 0 {
		m.pendingDelete = ""
	}
	m.recomputeFiltered()
	m.clampPage()
	m.recomputePage()
	return nil
}

// SetSearch filters by term and returns to the first page.
func (m *Model) SetSearch(term string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.term = term
	m.needle = strings.ToLower(term)
	m.recomputeFiltered()
	m.page = 1
	m.recomputePage()
}

// GoToPage moves to page n. Out-of-range pages leave the view unchanged.
func (m *Model) GoToPage(n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if total := m.totalPages(); n < 1 || n > total {
		return dErrors.New(dErrors.CodeBadRequest,
			"page "+strconv.Itoa(n)+" is outside 1.."+strconv.Itoa(total))
	}
	m.page = n
	m.recomputePage()
	return nil
}

// NextPage advances one page; reports false on the last page.
func (m *Model) NextPage() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.page >= m.totalPages() {
		return false
	}
	m.page++
	m.recomputePage()
	return true
}

// PrevPage goes back one page; reports false on the first page.
func (m *Model) PrevPage() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.page <= 1 {
		return false
	}
	m.page--
	m.recomputePage()
	return true
}

// ApplyEdit coerces the form, overwrites the record in the store and, on
// success, lets the write policy bring the cache up to date.
func (m *Model) ApplyEdit(ctx context.Context, id string, form models.RecordForm) (models.NutritionRecord, error) {
	done, err := m.Begin(opUpdate + id)
	if err != nil {
		return models.NutritionRecord{}, err
	}
	defer done()

	rec, coercion, err := form.Parse()
	if err != nil {
		return models.NutritionRecord{}, err
	}
	for _, metric := range coercion.ZeroFilled {
		m.metrics.IncZeroFilled(string(metric))
	}
	rec.ID = id

	if err := m.store.Update(ctx, id, rec); err != nil {
		m.metrics.ObserveWrite("update", m.policy.Name(), err)
		m.logger.ErrorContext(ctx, "failed to update record",
			"request_id", requestcontext.RequestID(ctx),
			"record_id", id,
			"error", err,
		)
		return models.NutritionRecord{}, err
	}
	m.publish(ctx, events.KindUpdated, id, &rec)

	err = m.policy.Updated(ctx, cache{m}, rec)
	m.metrics.ObserveWrite("update", m.policy.Name(), err)
	return rec, err
}

// ApplyDelete removes the record from the store and, on success, from the
// cache. A pending deletion of the same id is cleared.
func (m *Model) ApplyDelete(ctx context.Context, id string) error {
	done, err := m.Begin(opDelete + id)
	if err != nil {
		return err
	}
	defer done()

	if err := m.store.Delete(ctx, id); err != nil {
		m.metrics.ObserveWrite("delete", m.policy.Name(), err)
		m.logger.ErrorContext(ctx, "failed to delete record",
			"request_id", requestcontext.RequestID(ctx),
			"record_id", id,
			"error", err,
		)
		return err
	}
	m.publish(ctx, events.KindDeleted, id, nil)

	m.mu.Lock()
	if m.pendingDelete == id {
		m.pendingDelete = ""
	}
	m.mu.Unlock()

	err = m.policy.Deleted(ctx, cache{m}, id)
	m.metrics.ObserveWrite("delete", m.policy.Name(), err)
	return err
}

// RequestDelete marks a cached record for deletion pending confirmation.
func (m *Model) RequestDelete(id string) (models.NutritionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := indexOf(m.all, id)
	if i < 0 {
		return models.NutritionRecord{}, errRecordNotFound(id)
	}
	m.pendingDelete = id
	return m.all[i], nil
}

// ConfirmDelete deletes the pending record. On failure the deletion stays
// pending so it can be retried or cancelled.
func (m *Model) ConfirmDelete(ctx context.Context) (string, error) {
	m.mu.RLock()
	id := m.pendingDelete
	m.mu.RUnlock()
	if id == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "no deletion pending")
	}
	if err := m.ApplyDelete(ctx, id); err != nil {
		return "", err
	}
	return id, nil
}

func (m *Model) CancelDelete() {
	m.mu.Lock()
	m.pendingDelete = ""
	m.mu.Unlock()
}

// PendingDelete returns the record awaiting confirmation, if any.
func (m *Model) PendingDelete() (models.NutritionRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.pendingDelete == "" {
		return models.NutritionRecord{}, false
	}
	i := indexOf(m.all, m.pendingDelete)
	if i < 0 {
		return models.NutritionRecord{}, false
	}
	return m.all[i], true
}

// EditForm renders a cached record as the prefilled edit form.
func (m *Model) EditForm(id string) (models.RecordForm, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i := indexOf(m.all, id)
	if i < 0 {
		return models.RecordForm{}, errRecordNotFound(id)
	}
	return m.all[i].Form(), nil
}

// All returns a copy of every cached record in store order.
func (m *Model) All() []models.NutritionRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.all)
}

// FilteredView returns the records matching the search term, in store order.
func (m *Model) FilteredView() []models.NutritionRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.filtered)
}

// PageView returns the records on the current page.
func (m *Model) PageView() []models.NutritionRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.pageView)
}

// TotalPages is ceil(filtered/pageSize), never less than 1.
func (m *Model) TotalPages() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalPages()
}

func (m *Model) Page() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.page
}

func (m *Model) Search() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.term
}

func (m *Model) Loaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loaded
}

// PageNumbers returns up to five page numbers centred on the current page.
func (m *Model) PageNumbers() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pageNumbers()
}

// Snapshot returns every derived value under a single read lock.
func (m *Model) Snapshot() View {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return View{
		Records:       slices.Clone(m.pageView),
		Search:        m.term,
		Page:          m.page,
		PageSize:      m.pageSize,
		TotalPages:    m.totalPages(),
		PageNumbers:   m.pageNumbers(),
		FilteredCount: len(m.filtered),
		TotalCount:    len(m.all),
		PendingDelete: m.pendingDelete,
		Loaded:        m.loaded,
	}
}

func (m *Model) publish(ctx context.Context, kind events.Kind, id string, rec *models.NutritionRecord) {
	err := m.publisher.Publish(ctx, events.ChangeEvent{
		Kind:       kind,
		Collection: m.collection,
		ID:         id,
		Record:     rec,
		SessionID:  requestcontext.SessionID(ctx),
		At:         requestcontext.Now(ctx),
	})
	if err != nil {
		m.logger.WarnContext(ctx, "failed to publish change event",
			"request_id", requestcontext.RequestID(ctx),
			"record_id", id,
			"error", err,
		)
	}
}

// The helpers below expect m.mu to be held.

func (m *Model) totalPages() int {
	n := len(m.filtered)
	if n == 0 {
		return 1
	}
	return (n + m.pageSize - 1) / m.pageSize
}

func (m *Model) clampPage() {
	if total := m.totalPages(); m.page > total {
		m.page = total
	}
	if m.page < 1 {
		m.page = 1
	}
}

func (m *Model) recomputeFiltered() {
	if m.needle == "" {
		m.filtered = slices.Clone(m.all)
		return
	}
	m.filtered = m.filtered[:0:0]
	for _, rec := range m.all {
		if matches(rec, m.needle) {
			m.filtered = append(m.filtered, rec)
		}
	}
}

func (m *Model) recomputePage() {
	start := (m.page - 1) * m.pageSize
	end := min(start+m.pageSize, len(m.filtered))
	if start >= end {
		m.pageView = nil
		return
	}
	m.pageView = m.filtered[start:end]
}

func (m *Model) pageNumbers() []int {
	total := m.totalPages()
	start := max(m.page-2, 1)
	end := min(start+pageWindow-1, total)
	start = max(1, end-pageWindow+1)
	out := make([]int, 0, end-start+1)
	for i := start; i <= end; i++ {
		out = append(out, i)
	}
	return out
}

func (m *Model) replaceLocked(rec models.NutritionRecord) bool {
	i := indexOf(m.all, rec.ID)
	if i < 0 {
		return false
	}
	m.all[i] = rec

	j := indexOf(m.filtered, rec.ID)
	wasIn, nowIn := j >= 0, matches(rec, m.needle)
	switch {
	case wasIn && nowIn:
		m.filtered[j] = rec
	case wasIn != nowIn:
		m.recomputeFiltered()
		m.clampPage()
	}
	m.recomputePage()
	return true
}

func (m *Model) removeLocked(id string) bool {
	i := indexOf(m.all, id)
	if i < 0 {
		return false
	}
	m.all = slices.Delete(m.all, i, i+1)
	if j := indexOf(m.filtered, id); j >= 0 {
		m.filtered = slices.Delete(m.filtered, j, j+1)
	}
	if m.pendingDelete == id {
		m.pendingDelete = ""
	}
	m.clampPage()
	m.recomputePage()
	return true
}

// cache exposes the model to write policies.
type cache struct{ m *Model }

func (c cache) Replace(rec models.NutritionRecord) bool {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return c.m.replaceLocked(rec)
}

func (c cache) Remove(id string) bool {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return c.m.removeLocked(id)
}

func (c cache) Reload(ctx context.Context) error {
	return c.m.reload(ctx)
}

func matches(rec models.NutritionRecord, needle string) bool {
	if needle == "" {
		return true
	}
	for _, text := range rec.SearchTexts() {
		if strings.Contains(strings.ToLower(text), needle) {
			return true
		}
	}
	return false
}

func indexOf(recs []models.NutritionRecord, id string) int {
	return slices.IndexFunc(recs, func(r models.NutritionRecord) bool { return r.ID == id })
}

func errRecordNotFound(id string) error {
	return dErrors.New(dErrors.CodeNotFound, "record "+id+" not found")
}
