//go:build integration

// Package redis_test contains integration tests for the Redis client that
// require a running Redis instance via testcontainers-go. These tests are
// gated behind the "integration" build tag and run in CI with Docker.
//
// Run locally with:
//
//	go test -v -race -tags=integration ./pkg/clients/redis/...
package redis_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/StricklySoft/stricklysoft-functions/internal/testutil/containers"
	"github.com/StricklySoft/stricklysoft-functions/pkg/clients/redis"
)

// RedisIntegrationSuite runs all Redis integration tests against a single
// shared container. The container is started once in SetupSuite and
// terminated in TearDownSuite. Test methods share the same client, using
// unique key prefixes for isolation.
type RedisIntegrationSuite struct {
	suite.Suite

	ctx         context.Context
	redisResult *containers.RedisResult
	client      *redis.Client
	connString  string
}

func (s *RedisIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	result, err := containers.StartRedis(s.ctx)
	require.NoError(s.T(), err, "failed to start Redis container")
	s.redisResult = result
	s.connString = result.ConnString

	cfg := redis.Config{URI: result.ConnString}
	require.NoError(s.T(), cfg.Validate())

	client, err := redis.NewClient(s.ctx, cfg)
	require.NoError(s.T(), err, "failed to create Redis client")
	s.client = client
}

func (s *RedisIntegrationSuite) TearDownSuite() {
	if s.client != nil {
		_ = s.client.Close()
	}
	if s.redisResult != nil {
		if err := s.redisResult.Container.Terminate(s.ctx); err != nil {
			s.T().Logf("failed to terminate redis container: %v", err)
		}
	}
}

func TestRedisIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisIntegrationSuite))
}

func (s *RedisIntegrationSuite) TestSetGetRoundTrip() {
	key := fmt.Sprintf("it:roundtrip:%d", time.Now().UnixNano())

	require.NoError(s.T(), s.client.Set(s.ctx, key, "payload", time.Minute))

	val, err := s.client.Get(s.ctx, key)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "payload", val)
}

func (s *RedisIntegrationSuite) TestGetMissingKey() {
	_, err := s.client.Get(s.ctx, "it:missing:never-written")
	require.Error(s.T(), err)
	assert.True(s.T(), errors.Is(err, redis.Nil))
}

func (s *RedisIntegrationSuite) TestExpiryIsApplied() {
	key := fmt.Sprintf("it:expiry:%d", time.Now().UnixNano())

	require.NoError(s.T(), s.client.Set(s.ctx, key, "v", time.Hour))

	ttl, err := s.client.TTL(s.ctx, key)
	require.NoError(s.T(), err)
	assert.Greater(s.T(), ttl, 59*time.Minute)
}

func (s *RedisIntegrationSuite) TestDelRemovesKey() {
	key := fmt.Sprintf("it:del:%d", time.Now().UnixNano())

	require.NoError(s.T(), s.client.Set(s.ctx, key, "v", 0))

	removed, err := s.client.Del(s.ctx, key)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(1), removed)

	count, err := s.client.Exists(s.ctx, key)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(0), count)
}

func (s *RedisIntegrationSuite) TestHealth() {
	require.NoError(s.T(), s.client.Health(s.ctx))
}
