package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sserr "github.com/StricklySoft/stricklysoft-functions/pkg/errors"
)

// mockCmdable is a hand-written Cmdable mock backed by an in-memory map.
// Setting failWith makes every command return that error, which lets tests
// exercise the error classification paths without a real Redis instance.
type mockCmdable struct {
	data     map[string]string
	failWith error
	closed   bool
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{data: map[string]string{}}
}

func (m *mockCmdable) Set(ctx context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	if m.failWith != nil {
		cmd.SetErr(m.failWith)
		return cmd
	}
	m.data[key] = value.(string)
	cmd.SetVal("OK")
	return cmd
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	if m.failWith != nil {
		cmd.SetErr(m.failWith)
		return cmd
	}
	val, ok := m.data[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(val)
	return cmd
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	if m.failWith != nil {
		cmd.SetErr(m.failWith)
		return cmd
	}
	var removed int64
	for _, k := range keys {
		if _, ok := m.data[k]; ok {
			delete(m.data, k)
			removed++
		}
	}
	cmd.SetVal(removed)
	return cmd
}

func (m *mockCmdable) Exists(ctx context.Context, keys ...string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	if m.failWith != nil {
		cmd.SetErr(m.failWith)
		return cmd
	}
	var count int64
	for _, k := range keys {
		if _, ok := m.data[k]; ok {
			count++
		}
	}
	cmd.SetVal(count)
	return cmd
}

func (m *mockCmdable) Expire(ctx context.Context, key string, _ time.Duration) *redis.BoolCmd {
	cmd := redis.NewBoolCmd(ctx)
	if m.failWith != nil {
		cmd.SetErr(m.failWith)
		return cmd
	}
	_, ok := m.data[key]
	cmd.SetVal(ok)
	return cmd
}

func (m *mockCmdable) TTL(ctx context.Context, key string) *redis.DurationCmd {
	cmd := redis.NewDurationCmd(ctx, time.Second)
	if m.failWith != nil {
		cmd.SetErr(m.failWith)
		return cmd
	}
	if _, ok := m.data[key]; !ok {
		cmd.SetVal(-2)
		return cmd
	}
	cmd.SetVal(-1)
	return cmd
}

func (m *mockCmdable) Ping(ctx context.Context) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	if m.failWith != nil {
		cmd.SetErr(m.failWith)
		return cmd
	}
	cmd.SetVal("PONG")
	return cmd
}

func (m *mockCmdable) Close() error {
	m.closed = true
	return nil
}

func TestClientSetGet(t *testing.T) {
	t.Parallel()

	mock := newMockCmdable()
	client := NewFromClient(mock, nil)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "session:abc", `{"user":"alice"}`, time.Minute))

	val, err := client.Get(ctx, "session:abc")
	require.NoError(t, err)
	assert.Equal(t, `{"user":"alice"}`, val)
}

func TestClientGetMissReturnsNil(t *testing.T) {
	t.Parallel()

	client := NewFromClient(newMockCmdable(), nil)

	_, err := client.Get(context.Background(), "session:absent")
	require.Error(t, err)
	assert.True(t, errors.Is(err, redis.Nil))
	assert.True(t, errors.Is(err, Nil))
}

func TestClientDelExists(t *testing.T) {
	t.Parallel()

	mock := newMockCmdable()
	client := NewFromClient(mock, nil)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "k1", "v1", 0))
	require.NoError(t, client.Set(ctx, "k2", "v2", 0))

	count, err := client.Exists(ctx, "k1", "k2", "k3")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	removed, err := client.Del(ctx, "k1", "k3")
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	count, err = client.Exists(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestClientExpireTTL(t *testing.T) {
	t.Parallel()

	mock := newMockCmdable()
	client := NewFromClient(mock, nil)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "k1", "v1", 0))

	ok, err := client.Expire(ctx, "k1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.Expire(ctx, "absent", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	ttl, err := client.TTL(ctx, "absent")
	require.NoError(t, err)
	assert.Equal(t, time.Duration(-2), ttl)
}

func TestClientErrorClassification(t *testing.T) {
	t.Parallel()

	t.Run("deadline exceeded maps to timeout code", func(t *testing.T) {
		t.Parallel()

		mock := newMockCmdable()
		mock.failWith = context.DeadlineExceeded
		client := NewFromClient(mock, nil)

		err := client.Set(context.Background(), "k", "v", 0)
		require.Error(t, err)
		assert.True(t, sserr.HasCode(err, sserr.CodeTimeoutDependency))
	})

	t.Run("server error maps to storage code", func(t *testing.T) {
		t.Parallel()

		mock := newMockCmdable()
		mock.failWith = errors.New("READONLY you can't write against a read only replica")
		client := NewFromClient(mock, nil)

		err := client.Set(context.Background(), "k", "v", 0)
		require.Error(t, err)
		assert.True(t, sserr.HasCode(err, sserr.CodeInternalStorage))
	})

	t.Run("health failure maps to storage code", func(t *testing.T) {
		t.Parallel()

		mock := newMockCmdable()
		mock.failWith = errors.New("connection refused")
		client := NewFromClient(mock, nil)

		err := client.Health(context.Background())
		require.Error(t, err)
		assert.True(t, sserr.HasCode(err, sserr.CodeInternalStorage))
	})
}

func TestClientClose(t *testing.T) {
	t.Parallel()

	mock := newMockCmdable()
	client := NewFromClient(mock, nil)

	require.NoError(t, client.Close())
	assert.True(t, mock.closed)
}

func TestNewClientRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := NewClient(context.Background(), Config{URI: "http://wrong"})
	require.Error(t, err)
	assert.True(t, sserr.HasCode(err, sserr.CodeValidation))
}
