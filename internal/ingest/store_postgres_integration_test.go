//go:build integration

package ingest_test

import (
	"context"
	"database/sql"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"terrasync/internal/container"
	"terrasync/internal/ingest"
	"terrasync/internal/platform/postgres"
	id "terrasync/pkg/domain"
	"terrasync/pkg/platform/sentinel"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg    *tcpostgres.PostgresContainer
	db    *sql.DB
	store *ingest.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	ctx := context.Background()
	pg, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("terrasync"),
		tcpostgres.WithUsername("terrasync"),
		tcpostgres.WithPassword("terrasync"),
		tcpostgres.BasicWaitStrategies(),
	)
	s.Require().NoError(err)
	s.pg = pg

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)

	s.db, err = postgres.Open(dsn)
	s.Require().NoError(err)
	s.Require().NoError(postgres.Migrate(ctx, s.db))
	s.store = ingest.NewPostgresStore(s.db)
}

func (s *PostgresStoreSuite) TearDownSuite() {
	if s.db != nil {
		_ = s.db.Close()
	}
	if s.pg != nil {
		_ = testcontainers.TerminateContainer(s.pg)
	}
}

func (s *PostgresStoreSuite) SetupTest() {
	_, err := s.db.ExecContext(context.Background(), `TRUNCATE import_packages`)
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) newPackage(number, checksum string) *ingest.ImportPackage {
	return ingest.NewImportPackage(number, &container.Manifest{
		FileName:      "export.tsp",
		FileSize:      2048,
		Checksum:      checksum,
		SchemaVersion: "1.0",
		RecordCounts:  map[string]int{"person": 2},
	}, id.NewCollectorID(), time.Now().UTC())
}

func (s *PostgresStoreSuite) TestCreateIfNewAndRoundTrip() {
	ctx := context.Background()
	pkg := s.newPackage("PKG-000001", "aaaa0001")

	created, isNew, err := s.store.CreateIfNew(ctx, pkg)
	s.Require().NoError(err)
	s.True(isNew)

	got, err := s.store.Get(ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(pkg.PackageNumber, got.PackageNumber)
	s.Equal(pkg.Checksum, got.Checksum)
	s.Equal(ingest.StatusPending, got.Status)
	s.Equal(map[string]int{"person": 2}, got.RecordCounts)
}

func (s *PostgresStoreSuite) TestChecksumIdempotency() {
	ctx := context.Background()
	first := s.newPackage("PKG-000001", "aaaa0002")
	_, isNew, err := s.store.CreateIfNew(ctx, first)
	s.Require().NoError(err)
	s.Require().True(isNew)

	resend := s.newPackage("PKG-000002", "aaaa0002")
	existing, isNew, err := s.store.CreateIfNew(ctx, resend)
	s.Require().NoError(err)
	s.False(isNew)
	s.Equal(first.ID, existing.ID, "the original registration wins")
	s.Equal("PKG-000001", existing.PackageNumber)
}

func (s *PostgresStoreSuite) TestConcurrentUploadsOfOneContainer() {
	ctx := context.Background()
	const goroutines = 20

	var wg sync.WaitGroup
	var createdCount atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			pkg := s.newPackage("PKG-RACE", "aaaa0003")
			_, isNew, err := s.store.CreateIfNew(ctx, pkg)
			if err == nil && isNew {
				createdCount.Add(1)
			}
		}(i)
	}
	wg.Wait()
	s.Equal(int32(1), createdCount.Load(), "exactly one upload registers the container")
}

func (s *PostgresStoreSuite) TestUpdatePersistsStateChanges() {
	ctx := context.Background()
	pkg := s.newPackage("PKG-000001", "aaaa0004")
	_, _, err := s.store.CreateIfNew(ctx, pkg)
	s.Require().NoError(err)

	s.Require().NoError(pkg.TransitionTo(ingest.StatusValidating))
	pkg.ErrorCount = 3
	s.Require().NoError(s.store.Update(ctx, pkg))

	got, err := s.store.Get(ctx, pkg.ID)
	s.Require().NoError(err)
	s.Equal(ingest.StatusValidating, got.Status)
	s.Equal(3, got.ErrorCount)
}

func (s *PostgresStoreSuite) TestGetUnknownPackage() {
	_, err := s.store.Get(context.Background(), id.NewPackageID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListRecentOrdersNewestFirst() {
	ctx := context.Background()
	for i, checksum := range []string{"aaaa0005", "aaaa0006", "aaaa0007"} {
		pkg := s.newPackage("PKG-00000"+string(rune('1'+i)), checksum)
		pkg.CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Minute)
		_, _, err := s.store.CreateIfNew(ctx, pkg)
		s.Require().NoError(err)
	}

	recent, err := s.store.ListRecent(ctx, 2)
	s.Require().NoError(err)
	s.Require().Len(recent, 2)
	s.Equal("aaaa0007", recent[0].Checksum)
	s.Equal("aaaa0006", recent[1].Checksum)
}
