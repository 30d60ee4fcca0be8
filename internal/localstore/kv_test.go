package localstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("github.com/go-redis/redis/v8/internal/pool.(*ConnPool).reaper"),
	)
}

func newSqliteKV(t *testing.T) *SqliteKV {
	t.Helper()
	kv, err := NewSqliteKV(context.Background(), filepath.Join(t.TempDir(), "data", "tracker.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, kv.Close())
	})
	return kv
}

func TestKV_Backends(t *testing.T) {
	backends := map[string]func(t *testing.T) KV{
		"memory": func(t *testing.T) KV {
			return NewMemoryKV(16 * 1024 * 1024)
		},
		"sqlite": func(t *testing.T) KV {
			return newSqliteKV(t)
		},
	}

	for name, newKV := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			kv := newKV(t)

			_, err := kv.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrKeyNotFound)

			require.NoError(t, kv.Set(ctx, "k1", []byte("v1")))
			value, err := kv.Get(ctx, "k1")
			require.NoError(t, err)
			assert.Equal(t, []byte("v1"), value)

			require.NoError(t, kv.Set(ctx, "k1", []byte("v2")))
			value, err = kv.Get(ctx, "k1")
			require.NoError(t, err)
			assert.Equal(t, []byte("v2"), value)

			require.NoError(t, kv.Delete(ctx, "k1"))
			_, err = kv.Get(ctx, "k1")
			assert.ErrorIs(t, err, ErrKeyNotFound)

			// deleting a missing key is fine
			assert.NoError(t, kv.Delete(ctx, "k1"))
		})
	}
}

func TestSqliteKV_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "tracker.db")

	kv, err := NewSqliteKV(ctx, dbPath)
	require.NoError(t, err)
	require.NoError(t, kv.Set(ctx, "k", []byte("persisted")))
	require.NoError(t, kv.Close())

	kv, err = NewSqliteKV(ctx, dbPath)
	require.NoError(t, err)
	defer kv.Close()

	value, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "persisted", string(value))
}

func TestRedisKV(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	kv := NewRedisKV(db)

	mock.ExpectGet("missing").RedisNil()
	_, err := kv.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	mock.ExpectSet("k", []byte("v"), 0).SetVal("OK")
	require.NoError(t, kv.Set(ctx, "k", []byte("v")))

	mock.ExpectGet("k").SetVal("v")
	value, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), value)

	mock.ExpectDel("k").SetVal(1)
	require.NoError(t, kv.Delete(ctx, "k"))

	mock.ExpectGet("broken").SetErr(errors.New("connection refused"))
	_, err = kv.Get(ctx, "broken")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrKeyNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}
