package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"nutridash/internal/docstore"
	"nutridash/internal/nutrition/models"
	dErrors "nutridash/pkg/domain-errors"
	"nutridash/pkg/platform/sentinel"
)

type RecordsSuite struct {
	suite.Suite
	docs    *docstore.InMemory
	records *Records
	ctx     context.Context
}

func TestRecordsSuite(t *testing.T) {
	suite.Run(t, new(RecordsSuite))
}

func (s *RecordsSuite) SetupTest() {
	s.docs = docstore.NewInMemory()
	s.records = New(s.docs, "nutritionData")
	s.ctx = context.Background()
}

func chad() models.NutritionRecord {
	return models.NutritionRecord{
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

func (s *RecordsSuite) TestCreateThenList() {
	id, err := s.records.Create(s.ctx, chad())
	s.Require().NoError(err)

	got, err := s.records.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(got, 1)

	want := chad()
	want.ID = id
	s.Equal(want, got[0])
}

func (s *RecordsSuite) TestUpdateOverwrites() {
	id, err := s.records.Create(s.ctx, chad())
	s.Require().NoError(err)

	edited := chad()
	edited.Stunting = 12
	s.Require().NoError(s.records.Update(s.ctx, id, edited))

	got, err := s.records.List(s.ctx)
	s.Require().NoError(err)
	s.Equal(12.0, got[0].Stunting)
}

func (s *RecordsSuite) TestUnknownIDMapsToNotFound() {
	err := s.records.Update(s.ctx, "missing", chad())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	err = s.records.Delete(s.ctx, "missing")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *RecordsSuite) TestListReturnsIndependentSlices() {
	_, err := s.records.Create(s.ctx, chad())
	s.Require().NoError(err)

	first, err := s.records.List(s.ctx)
	s.Require().NoError(err)
	first[0].Country = "mutated"

	second, err := s.records.List(s.ctx)
	s.Require().NoError(err)
	s.Equal("Chad", second[0].Country)
}

type failingStore struct{ docstore.Store }

func (failingStore) List(context.Context, string) ([]docstore.Document, error) {
	return nil, fmt.Errorf("list: %w", sentinel.ErrUnavailable)
}

func (failingStore) Create(context.Context, string, docstore.Fields) (string, error) {
	return "", fmt.Errorf("create: %w", sentinel.ErrUnavailable)
}

func TestStoreFailuresMapToUnavailable(t *testing.T) {
	records := New(failingStore{}, "nutritionData")

	_, err := records.List(context.Background())
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeUnavailable))
	assert.True(t, errors.Is(err, sentinel.ErrUnavailable))

	_, err = records.Create(context.Background(), chad())
	assert.True(t, dErrors.Is(err, dErrors.CodeUnavailable))
}

func TestFromDocumentTolerantDecoding(t *testing.T) {
	rec := FromDocument(docstore.Document{
		ID: "x",
		Fields: docstore.Fields{
			"country":               "Chad",
			"income_classification": "2",
			"stunting":              "39.8",
			"wasting":               13,
			"overweight":            "oops",
		},
	})
	assert.Equal(t, "x", rec.ID)
	assert.Equal(t, models.IncomeUpperMiddle, rec.IncomeClassification)
	assert.Equal(t, 39.8, rec.Stunting)
	assert.Equal(t, 13.0, rec.Wasting)
	assert.Zero(t, rec.Overweight)
	assert.Zero(t, rec.U5Population)
}
