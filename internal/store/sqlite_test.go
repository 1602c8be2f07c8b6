// ABOUTME: Tests for the KV backends
// ABOUTME: Runs one contract suite against SQLite, Redis (miniredis) and the mock store

package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

func setupRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	srv := miniredis.RunT(t)

	store, err := NewRedisStore(context.Background(), RedisOptions{
		Addr:   srv.Addr(),
		Prefix: "test:",
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

// runKVContract checks the behaviour every backend must share.
func runKVContract(t *testing.T, kv KV) {
	ctx := context.Background()

	_, err := kv.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, kv.Put(ctx, "chat_seen_contacts", []byte(`{"7":1000}`)))
	got, err := kv.Get(ctx, "chat_seen_contacts")
	require.NoError(t, err)
	assert.JSONEq(t, `{"7":1000}`, string(got))

	// Overwrite is unconditional
	require.NoError(t, kv.Put(ctx, "chat_seen_contacts", []byte(`{"7":500}`)))
	got, err = kv.Get(ctx, "chat_seen_contacts")
	require.NoError(t, err)
	assert.JSONEq(t, `{"7":500}`, string(got))

	require.NoError(t, kv.Delete(ctx, "chat_seen_contacts"))
	_, err = kv.Get(ctx, "chat_seen_contacts")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting again is fine
	require.NoError(t, kv.Delete(ctx, "chat_seen_contacts"))
}

func TestSQLiteStore_Contract(t *testing.T) {
	runKVContract(t, setupTestStore(t))
}

func TestRedisStore_Contract(t *testing.T) {
	runKVContract(t, setupRedisStore(t))
}

func TestMockStore_Contract(t *testing.T) {
	runKVContract(t, NewMockStore())
}

func TestSQLiteStore_InMemory(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	runKVContract(t, store)
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "state.db")
	ctx := context.Background()

	first, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, first.Put(ctx, "chat_seen_support", []byte(`{"3":42}`)))
	require.NoError(t, first.Close())

	second, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer second.Close()

	got, err := second.Get(ctx, "chat_seen_support")
	require.NoError(t, err)
	assert.JSONEq(t, `{"3":42}`, string(got))
}

func TestRedisStore_UsesPrefix(t *testing.T) {
	srv := miniredis.RunT(t)
	store, err := NewRedisStore(context.Background(), RedisOptions{Addr: srv.Addr(), Prefix: "u42:"})
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Put(context.Background(), "chat_seen_contacts", []byte("{}")))

	value, err := srv.Get("u42:chat_seen_contacts")
	require.NoError(t, err)
	assert.Equal(t, "{}", value)
}

func TestRedisStore_RequiresAddr(t *testing.T) {
	_, err := NewRedisStore(context.Background(), RedisOptions{})
	assert.Error(t, err)
}

func TestMockStore_InjectedFailures(t *testing.T) {
	m := NewMockStore()
	ctx := context.Background()
	boom := errors.New("quota exceeded")

	m.SetFailures(nil, boom)
	assert.ErrorIs(t, m.Put(ctx, "k", []byte("v")), boom)
	assert.Equal(t, 0, m.Puts)

	m.SetFailures(boom, nil)
	require.NoError(t, m.Put(ctx, "k", []byte("v")))
	_, err := m.Get(ctx, "k")
	assert.ErrorIs(t, err, boom)

	require.NoError(t, m.Close())
	assert.ErrorIs(t, m.Put(ctx, "k", []byte("v")), ErrClosed)
}

func TestMockStore_ReturnsCopies(t *testing.T) {
	m := NewMockStore()
	ctx := context.Background()

	value := []byte("abc")
	require.NoError(t, m.Put(ctx, "k", value))
	value[0] = 'z'

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}
