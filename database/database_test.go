package database

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "storage.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	_, ok, err := store.Get(ctx, "c1", "user")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "c1", "user", `{"id":1}`))
	require.NoError(t, store.Set(ctx, "c2", "user", `{"id":2}`))
	require.NoError(t, store.Set(ctx, "c1", "user", `{"id":3}`))

	value, ok, err := store.Get(ctx, "c1", "user")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"id":3}`, value)

	require.NoError(t, store.Remove(ctx, "c1", "user"))
	_, ok, err = store.Get(ctx, "c1", "user")
	require.NoError(t, err)
	assert.False(t, ok)

	value, ok, err = store.Get(ctx, "c2", "user")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"id":2}`, value)

	// removing a missing key is not an error
	assert.NoError(t, store.Remove(ctx, "c3", "user"))
}

func TestSQLiteStoreReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "storage.sqlite")

	store, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "c1", "user", "persisted"))
	require.NoError(t, store.Close())

	store, err = OpenSQLite(path)
	require.NoError(t, err)
	defer store.Close()

	value, ok, err := store.Get(ctx, "c1", "user")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "persisted", value)
}

func TestPurgeBefore(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	require.NoError(t, store.Set(ctx, "c1", "user", "x"))
	n, err := store.PurgeBefore(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = store.PurgeBefore(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestForClient(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	a := ForClient(store, "a")
	b := ForClient(store, "b")
	require.NoError(t, a.SetItem(ctx, "user", "A"))

	_, ok, err := b.GetItem(ctx, "user")
	require.NoError(t, err)
	assert.False(t, ok)

	value, ok, err := a.GetItem(ctx, "user")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "A", value)

	require.NoError(t, a.RemoveItem(ctx, "user"))
	_, ok, _ = a.GetItem(ctx, "user")
	assert.False(t, ok)
}

func TestOpenRedisBadURL(t *testing.T) {
	_, err := Open("redis://localhost:6379/not-a-db", time.Hour)
	assert.Error(t, err)
}

// openTestRedis connects to SURVEYER_TEST_REDIS (e.g. redis://localhost:6379/15),
// skipping when it is unset or unreachable. The client's keys are flushed
// on cleanup.
func openTestRedis(t *testing.T, ttl time.Duration) *RedisStore {
	t.Helper()
	url := os.Getenv("SURVEYER_TEST_REDIS")
	if url == "" {
		t.Skip("SURVEYER_TEST_REDIS not set")
	}
	storage, err := Open(url, ttl)
	if err != nil {
		t.Skipf("redis not reachable: %s", err)
	}
	store := storage.(*RedisStore)
	t.Cleanup(func() {
		store.client.Del(context.Background(), redisKey("c1"), redisKey("c2"))
		store.Close()
	})
	return store
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	store := openTestRedis(t, time.Hour)

	_, ok, err := store.Get(ctx, "c1", "user")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "c1", "user", `{"id":1}`))
	require.NoError(t, store.Set(ctx, "c2", "user", `{"id":2}`))
	require.NoError(t, store.Set(ctx, "c1", "user", `{"id":3}`))

	value, ok, err := store.Get(ctx, "c1", "user")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"id":3}`, value)

	ttl, err := store.client.TTL(ctx, redisKey("c1")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Hour)

	require.NoError(t, store.Remove(ctx, "c1", "user"))
	_, ok, err = store.Get(ctx, "c1", "user")
	require.NoError(t, err)
	assert.False(t, ok)

	value, ok, err = store.Get(ctx, "c2", "user")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"id":2}`, value)

	assert.NoError(t, store.Remove(ctx, "c3", "user"))
}

func TestRedisStoreExpires(t *testing.T) {
	ctx := context.Background()
	store := openTestRedis(t, time.Second)

	require.NoError(t, store.Set(ctx, "c1", "user", "x"))
	assert.Eventually(t, func() bool {
		_, ok, err := store.Get(ctx, "c1", "user")
		return err == nil && !ok
	}, 5*time.Second, 100*time.Millisecond)
}

// commandLog records the commands a client would send, without a server.
type commandLog struct {
	mu   sync.Mutex
	args [][]any
}

func (l *commandLog) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (l *commandLog) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		l.record(cmd)
		return nil
	}
}

func (l *commandLog) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		for _, cmd := range cmds {
			l.record(cmd)
		}
		return nil
	}
}

func (l *commandLog) record(cmd redis.Cmder) {
	l.mu.Lock()
	l.args = append(l.args, cmd.Args())
	l.mu.Unlock()
}

func (l *commandLog) find(name string) ([]any, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, args := range l.args {
		if args[0] == name {
			return args, true
		}
	}
	return nil, false
}

func TestRedisStoreSetRefreshesTTL(t *testing.T) {
	ctx := context.Background()

	for _, tt := range []struct {
		name string
		ttl  time.Duration
	}{
		{"with ttl", 24 * time.Hour},
		{"without ttl", 0},
	} {
		t.Run(tt.name, func(t *testing.T) {
			client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
			defer client.Close()
			cmds := &commandLog{}
			client.AddHook(cmds)

			require.NoError(t, NewRedisStore(client, tt.ttl).Set(ctx, "c1", "user", "x"))

			hset, ok := cmds.find("hset")
			require.True(t, ok)
			assert.Equal(t, []any{"hset", "surveyer:storage:c1", "user", "x"}, hset)

			expire, ok := cmds.find("expire")
			if tt.ttl == 0 {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, []any{"expire", "surveyer:storage:c1", int64(tt.ttl / time.Second)}, expire)
		})
	}
}
