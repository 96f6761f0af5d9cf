//go:build integration

package mirror_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"certvault/internal/certificate/mirror"
	"certvault/internal/certificate/models"
	"certvault/pkg/platform/sentinel"
	"certvault/pkg/testutil/containers"
)

func mirroredRecord() models.LedgerRecord {
	return models.LedgerRecord{
		Identity: "8add6291004385213471d0675dbe15d87a7c39008367b3e1705af46d5ca2a989",
		Fields: models.CertificateFields{
			UID:           "C-1",
			CandidateName: "Ada Lovelace",
			CourseName:    "Algorithms",
			OrgName:       "Acme Academy",
		},
		ContentAddress:  "QmAda",
		CommitTimestamp: "1715938200",
	}
}

// storeContract runs the same assertions against every durable backend.
type storeContract struct {
	suite.Suite
	store mirror.Store
}

func (s *storeContract) TestSaveThenFind() {
	ctx := context.Background()
	rec := mirroredRecord()
	s.Require().NoError(s.store.Save(ctx, rec))

	got, err := s.store.Find(ctx, rec.Identity)
	s.Require().NoError(err)
	s.Equal(rec, got.Record())
	s.WithinDuration(time.Now(), got.CreatedAt, time.Minute)
}

func (s *storeContract) TestSaveIsIdempotent() {
	ctx := context.Background()
	rec := mirroredRecord()
	s.Require().NoError(s.store.Save(ctx, rec))

	changed := rec
	changed.ContentAddress = "QmOther"
	s.Require().NoError(s.store.Save(ctx, changed))

	got, err := s.store.Find(ctx, rec.Identity)
	s.Require().NoError(err)
	s.Equal(models.ContentAddress("QmAda"), got.Record().ContentAddress, "first write wins")
}

func (s *storeContract) TestFindUnknown() {
	_, err := s.store.Find(context.Background(), "ffff")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

type PostgresStoreSuite struct {
	storeContract
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
	store := mirror.NewPostgresStore(s.postgres.DB)
	s.Require().NoError(store.Migrate(context.Background()))
	s.store = store
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "certificates"))
}

type RedisStoreSuite struct {
	storeContract
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
	s.store = mirror.NewRedisStore(s.redis.Client, time.Hour)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}
