package docstore

import (
	"context"

	"github.com/stretchr/testify/suite"

	"nutridash/pkg/platform/sentinel"
)

// StoreSuite holds the behaviour every backend must share. Backend suites
// embed it and set store in SetupTest.
type StoreSuite struct {
	suite.Suite
	store Store
	ctx   context.Context
}

const testCollection = "nutritionData"

func chad() Fields {
	return Fields{"country": "Chad", "income_classification": float64(0), "stunting": float64(35)}
}

func mali() Fields {
	return Fields{"country": "Mali", "income_classification": float64(0), "stunting": float64(25)}
}

func (s *StoreSuite) TestListEmptyCollection() {
	docs, err := s.store.List(s.ctx, "empty")
	s.Require().NoError(err)
	s.Empty(docs)
}

func (s *StoreSuite) TestCreateAssignsUniqueIDsInOrder() {
	first, err := s.store.Create(s.ctx, testCollection, chad())
	s.Require().NoError(err)
	second, err := s.store.Create(s.ctx, testCollection, mali())
	s.Require().NoError(err)
	s.NotEqual(first, second)

	docs, err := s.store.List(s.ctx, testCollection)
	s.Require().NoError(err)
	s.Require().Len(docs, 2)
	s.Equal(first, docs[0].ID)
	s.Equal("Chad", docs[0].Fields["country"])
	s.Equal(second, docs[1].ID)
	s.EqualValues(25, docs[1].Fields["stunting"])
}

func (s *StoreSuite) TestUpdateOverwritesAllFields() {
	id, err := s.store.Create(s.ctx, testCollection, chad())
	s.Require().NoError(err)

	s.Require().NoError(s.store.Update(s.ctx, testCollection, id, Fields{"country": "Tchad"}))

	docs, err := s.store.List(s.ctx, testCollection)
	s.Require().NoError(err)
	s.Require().Len(docs, 1)
	s.Equal("Tchad", docs[0].Fields["country"])
	s.NotContains(docs[0].Fields, "stunting")
}

func (s *StoreSuite) TestUpdateKeepsPosition() {
	a, _ := s.store.Create(s.ctx, testCollection, chad())
	b, _ := s.store.Create(s.ctx, testCollection, mali())
	s.Require().NoError(s.store.Update(s.ctx, testCollection, a, mali()))

	docs, err := s.store.List(s.ctx, testCollection)
	s.Require().NoError(err)
	s.Equal([]string{a, b}, []string{docs[0].ID, docs[1].ID})
}

func (s *StoreSuite) TestDeleteRemovesDocument() {
	a, _ := s.store.Create(s.ctx, testCollection, chad())
	b, _ := s.store.Create(s.ctx, testCollection, mali())

	s.Require().NoError(s.store.Delete(s.ctx, testCollection, a))

	docs, err := s.store.List(s.ctx, testCollection)
	s.Require().NoError(err)
	s.Require().Len(docs, 1)
	s.Equal(b, docs[0].ID)
}

func (s *StoreSuite) TestUnknownIDIsNotFound() {
	missing := "00000000-0000-4000-8000-000000000000"
	s.ErrorIs(s.store.Update(s.ctx, testCollection, missing, chad()), sentinel.ErrNotFound)
	s.ErrorIs(s.store.Delete(s.ctx, testCollection, missing), sentinel.ErrNotFound)
}

func (s *StoreSuite) TestCollectionsAreIsolated() {
	_, err := s.store.Create(s.ctx, "other", chad())
	s.Require().NoError(err)

	docs, err := s.store.List(s.ctx, testCollection)
	s.Require().NoError(err)
	s.Empty(docs)
}
