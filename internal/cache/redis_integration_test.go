//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/helixir/syllabus-review-service/internal/config"
	"github.com/helixir/syllabus-review-service/internal/domain"
)

func startRedis(t *testing.T) *goredis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	rdb, err := NewRedisClient(ctx, config.RedisConfig{Addr: endpoint, DialTimeout: 5 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestRedisStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	rdb := startRedis(t)
	s := NewRedisStore(rdb, "syllabus:test:")

	_, err := s.Get(ctx, SyllabusKey("s-1"))
	assert.ErrorIs(t, err, ErrMiss)

	e := NewEntry(SyllabusKey("s-1"), domain.JobKindCLOCheck, "job-1", []byte(`{"overallAssessment":{"score":8}}`), time.Now())
	require.NoError(t, s.Put(ctx, e))

	got, err := s.Get(ctx, e.Key)
	require.NoError(t, err)
	assert.Equal(t, e.JobID, got.JobID)
	assert.Equal(t, e.DisplayTime, got.DisplayTime)
	assert.JSONEq(t, string(e.Result), string(got.Result))

	ttl, err := rdb.TTL(ctx, "syllabus:test:"+e.Key).Result()
	require.NoError(t, err)
	assert.Equal(t, time.Duration(-1), ttl)

	require.NoError(t, rdb.Set(ctx, "other:key", "keep", 0).Err())
	require.NoError(t, s.Put(ctx, NewEntry(DocumentKey("s-1", "d-1"), domain.JobKindSummary, "job-2", []byte(`{}`), time.Now())))
	require.NoError(t, s.Clear(ctx))

	_, err = s.Get(ctx, e.Key)
	assert.ErrorIs(t, err, ErrMiss)
	kept, err := rdb.Get(ctx, "other:key").Result()
	require.NoError(t, err)
	assert.Equal(t, "keep", kept)

	require.NoError(t, s.Delete(ctx, "never-stored"))
}
