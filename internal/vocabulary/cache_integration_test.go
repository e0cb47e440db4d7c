//go:build integration

package vocabulary_test

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"terrasync/internal/vocabulary"
	id "terrasync/pkg/domain"
	"terrasync/pkg/platform/sentinel"
)

type SnapshotCacheSuite struct {
	suite.Suite
	redis  *tcredis.RedisContainer
	client *redis.Client
	cache  *vocabulary.SnapshotCache
}

func TestSnapshotCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(SnapshotCacheSuite))
}

func (s *SnapshotCacheSuite) SetupSuite() {
	ctx := context.Background()
	rc, err := tcredis.Run(ctx, "redis:7-alpine")
	s.Require().NoError(err)
	s.redis = rc

	url, err := rc.ConnectionString(ctx)
	s.Require().NoError(err)
	opts, err := redis.ParseURL(url)
	s.Require().NoError(err)
	s.client = redis.NewClient(opts)
	s.Require().NoError(s.client.Ping(ctx).Err())

	s.cache = vocabulary.NewSnapshotCache(s.client, time.Minute)
}

func (s *SnapshotCacheSuite) TearDownSuite() {
	if s.client != nil {
		_ = s.client.Close()
	}
	if s.redis != nil {
		_ = testcontainers.TerminateContainer(s.redis)
	}
}

func (s *SnapshotCacheSuite) SetupTest() {
	s.Require().NoError(s.client.FlushAll(context.Background()).Err())
}

func (s *SnapshotCacheSuite) snapshot() *vocabulary.Snapshot {
	return &vocabulary.Snapshot{
		Vocabularies: []vocabulary.Vocabulary{{
			Name:    "gender",
			LabelEN: "Gender",
			LabelAR: "الجنس",
			Version: id.SemVer{Major: 1, Minor: 0, Patch: 0},
			Values: []vocabulary.VocabularyValue{
				{Code: 1, LabelEN: "Male", LabelAR: "ذكر"},
				{Code: 2, LabelEN: "Female", LabelAR: "أنثى"},
			},
		}},
		Versions: map[string]string{"gender": "1.0.0"},
	}
}

func (s *SnapshotCacheSuite) TestMissReportsNotFound() {
	_, err := s.cache.Get(context.Background())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *SnapshotCacheSuite) TestPutGetRoundTrip() {
	ctx := context.Background()
	want := s.snapshot()
	s.Require().NoError(s.cache.Put(ctx, want))

	got, err := s.cache.Get(ctx)
	s.Require().NoError(err)
	s.Equal(want, got, "bilingual labels and versions survive the cache")
}

func (s *SnapshotCacheSuite) TestInvalidate() {
	ctx := context.Background()
	s.Require().NoError(s.cache.Put(ctx, s.snapshot()))
	s.Require().NoError(s.cache.Invalidate(ctx))

	_, err := s.cache.Get(ctx)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *SnapshotCacheSuite) TestEntriesExpire() {
	ctx := context.Background()
	short := vocabulary.NewSnapshotCache(s.client, 100*time.Millisecond)
	s.Require().NoError(short.Put(ctx, s.snapshot()))

	s.Eventually(func() bool {
		_, err := short.Get(ctx)
		return err != nil
	}, 2*time.Second, 50*time.Millisecond)
}
