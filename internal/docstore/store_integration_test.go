//go:build integration

package docstore

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"nutridash/pkg/platform/sentinel"
	"nutridash/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	StoreSuite
	postgres *containers.PostgresContainer
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	pg := NewPostgres(s.postgres.DB)
	s.Require().NoError(pg.EnsureSchema(context.Background()))
	s.store = pg
}

func (s *PostgresStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.Require().NoError(s.postgres.TruncateTables(s.ctx, "documents"))
}

func (s *PostgresStoreSuite) TestMalformedIDIsNotFound() {
	err := s.store.Delete(s.ctx, testCollection, "not-a-uuid")
	s.Error(err)
}

func (s *PostgresStoreSuite) TestUndecodableDocumentIsUnavailable() {
	_, err := s.postgres.DB.ExecContext(s.ctx,
		`INSERT INTO documents (collection, id, fields) VALUES ($1, $2, '[1, 2]'::jsonb)`,
		testCollection, uuid.NewString())
	s.Require().NoError(err)

	_, err = s.store.List(s.ctx, testCollection)
	s.ErrorIs(err, sentinel.ErrUnavailable)
}

type RedisStoreSuite struct {
	StoreSuite
	redis *containers.RedisContainer
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = NewRedis(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.Require().NoError(s.redis.FlushAll(s.ctx))
}

func (s *RedisStoreSuite) TestUndecodableDocumentIsUnavailable() {
	id := uuid.NewString()
	s.Require().NoError(s.redis.Client.Set(s.ctx, docKey(testCollection, id), "not json", 0).Err())
	s.Require().NoError(s.redis.Client.RPush(s.ctx, orderKey(testCollection), id).Err())

	_, err := s.store.List(s.ctx, testCollection)
	s.ErrorIs(err, sentinel.ErrUnavailable)
}
