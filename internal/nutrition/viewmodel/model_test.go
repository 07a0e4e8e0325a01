package viewmodel

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks RecordStore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"nutridash/internal/nutrition/events"
	"nutridash/internal/nutrition/models"
	"nutridash/internal/nutrition/viewmodel/mocks"
	dErrors "nutridash/pkg/domain-errors"
	"nutridash/pkg/requestcontext"
)

type ModelSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	store     *mocks.MockRecordStore
	publisher *recordingPublisher
	model     *Model
	ctx       context.Context
}

func TestModelSuite(t *testing.T) {
	suite.Run(t, new(ModelSuite))
}

func (s *ModelSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = mocks.NewMockRecordStore(s.ctrl)
	s.publisher = &recordingPublisher{}
	s.ctx = requestcontext.WithSessionID(context.Background(), "session-1")
	model, err := New(s.store,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithPublisher(s.publisher),
	)
	s.Require().NoError(err)
	s.model = model
}

func (s *ModelSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ModelSuite) load(recs []models.NutritionRecord) {
	s.store.EXPECT().List(gomock.Any()).Return(recs, nil)
	s.Require().NoError(s.model.Refresh(s.ctx))
}

func numbered(n int) []models.NutritionRecord {
	out := make([]models.NutritionRecord, n)
	for i := range out {
		out[i] = models.NutritionRecord{
			ID:       fmt.Sprintf("id-%02d", i),
			Country:  fmt.Sprintf("Country %02d", i),
			Stunting: float64(i),
		}
	}
	return out
}

func chad(id string) models.NutritionRecord {
	return models.NutritionRecord{
		ID:                   id,
		Country:              "Chad",
		IncomeClassification: models.IncomeLow,
		SevereWasting:        4.2,
		Wasting:              13.9,
		Overweight:           2.8,
		Stunting:             39.8,
		Underweight:          28.8,
		U5Population:         3127.7,
	}
}

func (s *ModelSuite) TestNew() {
	s.Run("nil store returns error", func() {
		_, err := New(nil)
		s.ErrorContains(err, "record store is required")
	})

	s.Run("defaults", func() {
		m, err := New(s.store)
		s.Require().NoError(err)
		s.Equal(DefaultPageSize, m.pageSize)
		s.Equal("optimistic", m.policy.Name())
		s.Equal(1, m.Page())
		s.Equal(1, m.TotalPages())
		s.False(m.Loaded())
	})
}

func (s *ModelSuite) TestRefresh() {
	s.Run("replaces the cache", func() {
		s.load(numbered(3))
		s.Len(s.model.All(), 3)
		s.True(s.model.Loaded())
	})

	s.Run("failure leaves cache untouched", func() {
		s.store.EXPECT().List(gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeUnavailable, "failed to fetch records"))
		err := s.model.Refresh(s.ctx)
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
		s.Len(s.model.All(), 3)
	})

	s.Run("ensure loaded only fetches once", func() {
		m, err := New(s.store)
		s.Require().NoError(err)
		s.store.EXPECT().List(gomock.Any()).Return(numbered(1), nil).Times(1)
		s.NoError(m.EnsureLoaded(s.ctx))
		s.NoError(m.EnsureLoaded(s.ctx))
	})
}

func (s *ModelSuite) TestSearch() {
	recs := numbered(20)
	recs[7] = chad("chad-id")
	s.load(recs)
	s.Require().NoError(s.model.GoToPage(2))

	s.Run("case-insensitive match on country resets to page 1", func() {
		s.model.SetSearch("chad")
		s.Equal(1, s.model.Page())
		s.Equal([]models.NutritionRecord{chad("chad-id")}, s.model.FilteredView())
	})

	s.Run("matches numeric fields by string form", func() {
		s.model.SetSearch("39.8")
		s.Len(s.model.FilteredView(), 1)
	})

	s.Run("matches the id", func() {
		s.model.SetSearch("ID-1")
		s.Len(s.model.FilteredView(), 10) // id-10 .. id-19
	})

	s.Run("result is an order-preserving subsequence", func() {
		s.model.SetSearch("country 1")
		filtered := s.model.FilteredView()
		all := s.model.All()
		pos := -1
		for _, rec := range filtered {
			next := indexOf(all, rec.ID)
			s.Greater(next, pos)
			pos = next
		}
	})

	s.Run("empty term matches all", func() {
		s.model.SetSearch("")
		s.Equal(s.model.All(), s.model.FilteredView())
	})

	s.Run("no match leaves one empty page", func() {
		s.model.SetSearch("atlantis")
		s.Empty(s.model.PageView())
		s.Equal(1, s.model.TotalPages())
	})
}

func (s *ModelSuite) TestPagination() {
	s.load(numbered(20))

	s.Run("pages are disjoint and cover the filtered view", func() {
		s.Equal(3, s.model.TotalPages())
		var seen []models.NutritionRecord
		for p := 1; p <= s.model.TotalPages(); p++ {
			s.Require().NoError(s.model.GoToPage(p))
			page := s.model.PageView()
			s.LessOrEqual(len(page), DefaultPageSize)
			seen = append(seen, page...)
		}
		s.Equal(s.model.FilteredView(), seen)
		s.Len(s.model.PageView(), 4)
	})

	s.Run("out of range pages are rejected without change", func() {
		s.Require().NoError(s.model.GoToPage(2))
		before := s.model.PageView()

		err := s.model.GoToPage(0)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
		err = s.model.GoToPage(4)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))

		s.Equal(2, s.model.Page())
		s.Equal(before, s.model.PageView())
	})

	s.Run("next and prev stop at the boundaries", func() {
		s.Require().NoError(s.model.GoToPage(1))
		s.False(s.model.PrevPage())
		s.True(s.model.NextPage())
		s.True(s.model.NextPage())
		s.False(s.model.NextPage())
		s.Equal(3, s.model.Page())
		s.True(s.model.PrevPage())
		s.Equal(2, s.model.Page())
	})
}

func (s *ModelSuite) TestPageNumbers() {
	s.load(numbered(80)) // 10 pages

	cases := []struct {
		page int
		want []int
	}{
		{1, []int{1, 2, 3, 4, 5}},
		{2, []int{1, 2, 3, 4, 5}},
		{5, []int{3, 4, 5, 6, 7}},
		{9, []int{6, 7, 8, 9, 10}},
		{10, []int{6, 7, 8, 9, 10}},
	}
	for _, tc := range cases {
		s.Require().NoError(s.model.GoToPage(tc.page))
		s.Equal(tc.want, s.model.PageNumbers(), "page %d", tc.page)
	}

	s.Run("fewer pages than the window", func() {
		s.model.SetSearch("country 0") // ids 00..09 -> 2 pages
		s.Equal([]int{1, 2}, s.model.PageNumbers())
	})
}

func (s *ModelSuite) TestApplyEdit() {
	recs := numbered(3)
	recs[1] = chad("rec-1")
	s.load(recs)

	form := chad("rec-1").Form()
	form.Stunting = "12.5"

	s.Run("success replaces the record in place", func() {
		want := chad("rec-1")
		want.Stunting = 12.5
		s.store.EXPECT().Update(gomock.Any(), "rec-1", want).Return(nil)

		got, err := s.model.ApplyEdit(s.ctx, "rec-1", form)
		s.Require().NoError(err)
		s.Equal(want, got)

		all := s.model.All()
		s.Equal(want, all[1])
		s.Len(all, 3)

		evs := s.publisher.events()
		s.Require().Len(evs, 1)
		s.Equal(events.KindUpdated, evs[0].Kind)
		s.Equal("session-1", evs[0].SessionID)
		s.Equal("nutritionData", evs[0].Collection)
	})

	s.Run("store failure leaves cache and surfaces unavailable", func() {
		before := s.model.All()
		s.store.EXPECT().Update(gomock.Any(), "rec-1", gomock.Any()).
			Return(dErrors.New(dErrors.CodeUnavailable, "failed to update record"))

		bad := form
		bad.Stunting = "99"
		_, err := s.model.ApplyEdit(s.ctx, "rec-1", bad)
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
		s.Equal(before, s.model.All())
	})

	s.Run("invalid income classification never reaches the store", func() {
		bad := form
		bad.IncomeClassification = "seven"
		_, err := s.model.ApplyEdit(s.ctx, "rec-1", bad)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("edit that leaves the search drops the record from the view", func() {
		s.model.SetSearch("chad")
		s.Require().Len(s.model.FilteredView(), 1)

		renamed := form
		renamed.Country = "Niger"
		s.store.EXPECT().Update(gomock.Any(), "rec-1", gomock.Any()).Return(nil)
		_, err := s.model.ApplyEdit(s.ctx, "rec-1", renamed)
		s.Require().NoError(err)
		s.Empty(s.model.FilteredView())
		s.model.SetSearch("")
	})
}

func (s *ModelSuite) TestApplyDelete() {
	s.load(numbered(9)) // 2 pages
	s.Require().NoError(s.model.GoToPage(2))

	s.Run("failure keeps the record", func() {
		s.store.EXPECT().Delete(gomock.Any(), "id-08").
			Return(dErrors.New(dErrors.CodeUnavailable, "failed to delete record"))
		err := s.model.ApplyDelete(s.ctx, "id-08")
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
		s.Len(s.model.All(), 9)
	})

	s.Run("success removes it and clamps the page", func() {
		s.store.EXPECT().Delete(gomock.Any(), "id-08").Return(nil)
		s.Require().NoError(s.model.ApplyDelete(s.ctx, "id-08"))
		s.Len(s.model.All(), 8)
		s.Equal(-1, indexOf(s.model.All(), "id-08"))
		s.Equal(1, s.model.TotalPages())
		s.Equal(1, s.model.Page())
		s.Len(s.model.PageView(), 8)

		evs := s.publisher.events()
		s.Require().NotEmpty(evs)
		s.Equal(events.KindDeleted, evs[len(evs)-1].Kind)
		s.Nil(evs[len(evs)-1].Record)
	})
}

func (s *ModelSuite) TestTwoStepDelete() {
	s.load(numbered(3))

	s.Run("confirm without request", func() {
		_, err := s.model.ConfirmDelete(s.ctx)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("request unknown id", func() {
		_, err := s.model.RequestDelete("nope")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("cancel clears the pending deletion", func() {
		_, err := s.model.RequestDelete("id-01")
		s.Require().NoError(err)
		_, ok := s.model.PendingDelete()
		s.True(ok)
		s.model.CancelDelete()
		_, ok = s.model.PendingDelete()
		s.False(ok)
	})

	s.Run("failed confirm stays pending", func() {
		_, err := s.model.RequestDelete("id-01")
		s.Require().NoError(err)
		s.store.EXPECT().Delete(gomock.Any(), "id-01").Return(errors.New("down"))
		_, err = s.model.ConfirmDelete(s.ctx)
		s.Error(err)
		s.Equal("id-01", s.model.Snapshot().PendingDelete)
	})

	s.Run("confirm deletes the pending record", func() {
		s.store.EXPECT().Delete(gomock.Any(), "id-01").Return(nil)
		id, err := s.model.ConfirmDelete(s.ctx)
		s.Require().NoError(err)
		s.Equal("id-01", id)
		s.Empty(s.model.Snapshot().PendingDelete)
		s.Len(s.model.All(), 2)
	})
}

func (s *ModelSuite) TestEditForm() {
	s.load([]models.NutritionRecord{chad("chad-id")})

	form, err := s.model.EditForm("chad-id")
	s.Require().NoError(err)
	s.Equal("Chad", form.Country)
	s.Equal("0", form.IncomeClassification)
	s.Equal("3127.7", form.U5Population)

	_, err = s.model.EditForm("missing")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ModelSuite) TestInFlightGuard() {
	s.Run("second begin of the same op conflicts", func() {
		done, err := s.model.Begin(OpIngest)
		s.Require().NoError(err)
		_, err = s.model.Begin(OpIngest)
		s.ErrorIs(err, ErrOperationInFlight)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		done()
		again, err := s.model.Begin(OpIngest)
		s.Require().NoError(err)
		again()
	})

	s.Run("refresh while refreshing", func() {
		release := make(chan struct{})
		started := make(chan struct{})
		s.store.EXPECT().List(gomock.Any()).DoAndReturn(func(context.Context) ([]models.NutritionRecord, error) {
			close(started)
			<-release
			return numbered(1), nil
		})

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.NoError(s.model.Refresh(s.ctx))
		}()
		<-started
		s.ErrorIs(s.model.Refresh(s.ctx), ErrOperationInFlight)
		close(release)
		wg.Wait()
	})
}

func (s *ModelSuite) TestRefetchAfterWritePolicy() {
	m, err := New(s.store, WithWritePolicy(RefetchAfterWrite{}))
	s.Require().NoError(err)

	s.store.EXPECT().List(gomock.Any()).Return(numbered(2), nil)
	s.Require().NoError(m.Refresh(s.ctx))

	confirmed := numbered(2)
	confirmed[0].Country = "From Store"
	gomock.InOrder(
		s.store.EXPECT().Update(gomock.Any(), "id-00", gomock.Any()).Return(nil),
		s.store.EXPECT().List(gomock.Any()).Return(confirmed, nil),
	)
	form := numbered(1)[0].Form()
	form.IncomeClassification = "1"
	_, err = m.ApplyEdit(s.ctx, "id-00", form)
	s.Require().NoError(err)
	s.Equal("From Store", m.All()[0].Country)
}

func (s *ModelSuite) TestSnapshot() {
	s.load(numbered(10))
	s.model.SetSearch("country")
	s.Require().NoError(s.model.GoToPage(2))

	v := s.model.Snapshot()
	s.Equal("country", v.Search)
	s.Equal(2, v.Page)
	s.Equal(2, v.TotalPages)
	s.Equal(10, v.FilteredCount)
	s.Equal(10, v.TotalCount)
	s.Len(v.Records, 2)
	s.True(v.Loaded)
}

func TestPolicyFor(t *testing.T) {
	p, err := PolicyFor("refetch")
	if err != nil || p.Name() != "refetch" {
		t.Fatalf("expected refetch policy, got %v, %v", p, err)
	}
	p, err = PolicyFor("")
	if err != nil || p.Name() != "optimistic" {
		t.Fatalf("expected optimistic default, got %v, %v", p, err)
	}
	if _, err := PolicyFor("eventual"); err == nil {
		t.Fatal("expected error for unknown policy")
	}
}

type recordingPublisher struct {
	mu  sync.Mutex
	evs []events.ChangeEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.ChangeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.evs = append(p.evs, ev)
	return nil
}

func (p *recordingPublisher) events() []events.ChangeEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.ChangeEvent(nil), p.evs...)
}
