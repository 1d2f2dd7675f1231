package iocache

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/huangsam/teampulse/internal/contract"
	"github.com/huangsam/teampulse/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStore runs the behavior every real backend shares.
func exerciseStore(t *testing.T, store contract.CacheStore) {
	t.Helper()

	_, _, _, err := store.Get("dashboard:missing")
	assert.ErrorIs(t, err, contract.ErrNotFound, "miss should wrap ErrNotFound")

	now := time.Now().Unix()
	require.NoError(t, store.Set("dashboard:p1", []byte(`{"project_id":"p1"}`), 1, now))
	value, version, ts, err := store.Get("dashboard:p1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"project_id":"p1"}`, string(value))
	assert.Equal(t, 1, version)
	assert.Equal(t, now, ts)

	// Upsert replaces the whole entry.
	require.NoError(t, store.Set("dashboard:p1", []byte(`{"project_id":"p1","team_size":3}`), 2, now+1))
	value, version, ts, err = store.Get("dashboard:p1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"project_id":"p1","team_size":3}`, string(value))
	assert.Equal(t, 2, version)
	assert.Equal(t, now+1, ts)

	require.NoError(t, store.Set("dashboard:p2", []byte(`{}`), 1, now-10))
	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.True(t, status.Connected)
	assert.Equal(t, 2, status.TotalEntries)
	assert.Equal(t, now+1, status.LastEntryTime.Unix())
	assert.Equal(t, now-10, status.OldestEntryTime.Unix())

	require.NoError(t, store.Delete("dashboard:p2"))
	require.NoError(t, store.Delete("dashboard:p2"), "deleting a missing key is fine")
	_, _, _, err = store.Get("dashboard:p2")
	assert.ErrorIs(t, err, contract.ErrNotFound)

	require.NoError(t, store.Clear())
	_, _, _, err = store.Get("dashboard:p1")
	assert.ErrorIs(t, err, contract.ErrNotFound)
	status, err = store.GetStatus()
	require.NoError(t, err)
	assert.Zero(t, status.TotalEntries)
}

func TestSQLiteCacheStore(t *testing.T) {
	t.Run("in memory", func(t *testing.T) {
		store, err := NewCacheStore(schema.SQLiteCache, ":memory:", time.Minute)
		require.NoError(t, err)
		defer func() { _ = store.Close() }()
		exerciseStore(t, store)
	})

	t.Run("file survives reopen", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cache.db")
		store, err := NewCacheStore(schema.SQLiteCache, path, time.Minute)
		require.NoError(t, err)
		require.NoError(t, store.Set("dashboard:p1", []byte("v"), 1, 100))
		require.NoError(t, store.Close())

		store, err = NewCacheStore(schema.SQLiteCache, path, time.Minute)
		require.NoError(t, err)
		defer func() { _ = store.Close() }()
		value, _, _, err := store.Get("dashboard:p1")
		require.NoError(t, err)
		assert.Equal(t, "v", string(value))
	})

	t.Run("write failure wraps ErrCacheWrite", func(t *testing.T) {
		store, err := NewSQLCacheStore(TableName, schema.SQLiteCache, ":memory:")
		require.NoError(t, err)
		require.NoError(t, store.Close())
		err = store.Set("dashboard:p1", []byte("v"), 1, 100)
		assert.ErrorIs(t, err, contract.ErrCacheWrite)
	})
}

func TestMemoryCacheStore(t *testing.T) {
	exerciseStore(t, NewMemoryCacheStore(time.Hour))

	t.Run("expired entries are dropped", func(t *testing.T) {
		now := time.Unix(1_000_000, 0)
		store := NewMemoryCacheStore(5 * time.Minute)
		store.now = func() time.Time { return now }

		require.NoError(t, store.Set("dashboard:p1", []byte("v"), 1, now.Unix()))
		now = now.Add(4 * time.Minute)
		_, _, _, err := store.Get("dashboard:p1")
		assert.NoError(t, err)

		now = now.Add(2 * time.Minute)
		_, _, _, err = store.Get("dashboard:p1")
		assert.ErrorIs(t, err, contract.ErrNotFound)

		require.NoError(t, store.Set("dashboard:p2", []byte("v"), 1, now.Unix()))
		status, err := store.GetStatus()
		require.NoError(t, err)
		assert.Equal(t, 1, status.TotalEntries)
	})

	t.Run("values are copied", func(t *testing.T) {
		store := NewMemoryCacheStore(0)
		value := []byte("abc")
		require.NoError(t, store.Set("k", value, 1, 1))
		value[0] = 'x'
		got, _, _, err := store.Get("k")
		require.NoError(t, err)
		assert.Equal(t, "abc", string(got))
	})
}

func TestRedisCacheStore(t *testing.T) {
	mr := miniredis.RunT(t)

	store, err := NewCacheStore(schema.RedisCache, "redis://"+mr.Addr()+"/0", 5*time.Minute)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	exerciseStore(t, store)

	t.Run("entries expire on the server", func(t *testing.T) {
		require.NoError(t, store.Set("dashboard:p1", []byte("v"), 1, time.Now().Unix()))
		assert.True(t, mr.Exists(redisKeyPrefix+"dashboard:p1"))
		mr.FastForward(6 * time.Minute)
		_, _, _, err := store.Get("dashboard:p1")
		assert.ErrorIs(t, err, contract.ErrNotFound)
	})

	t.Run("clear leaves foreign keys", func(t *testing.T) {
		require.NoError(t, mr.Set("other:key", "x"))
		require.NoError(t, store.Set("dashboard:p1", []byte("v"), 1, 1))
		require.NoError(t, store.Clear())
		assert.True(t, mr.Exists("other:key"))
		assert.False(t, mr.Exists(redisKeyPrefix+"dashboard:p1"))
	})

	t.Run("unreachable server", func(t *testing.T) {
		_, err := NewRedisCacheStore("redis://127.0.0.1:1/0", time.Minute)
		assert.Error(t, err)
	})
}

func TestNoneCacheStore(t *testing.T) {
	store, err := NewCacheStore(schema.NoneCache, "", time.Minute)
	require.NoError(t, err)

	require.NoError(t, store.Set("dashboard:p1", []byte("v"), 1, 1))
	_, _, _, err = store.Get("dashboard:p1")
	assert.ErrorIs(t, err, contract.ErrNotFound)

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.False(t, status.Connected)
	assert.NoError(t, store.Clear())
	assert.NoError(t, store.Close())
}

func TestNewCacheStoreRejectsUnknownBackend(t *testing.T) {
	_, err := NewCacheStore("leveldb", "", time.Minute)
	assert.Error(t, err)
}

func TestValidateTableName(t *testing.T) {
	tests := []struct {
		tableName string
		wantErr   bool
	}{
		{"dashboard_cache", false},
		{"_cache_2", false},
		{"TestTable_123", false},
		{"", true},
		{"123_table", true},
		{"test-table", true},
		{"test table", true},
		{"test'; DROP TABLE users; --", true},
		{"test.table", true},
	}
	for _, tt := range tests {
		t.Run(tt.tableName, func(t *testing.T) {
			err := validateTableName(tt.tableName)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDialectQueries(t *testing.T) {
	tests := []struct {
		backend      schema.CacheBackend
		quoted       string
		placeholder  string
		wantContains []string
	}{
		{schema.SQLiteCache, `"dashboard_cache"`, "?", []string{"INSERT OR REPLACE", `"dashboard_cache"`}},
		{schema.MySQLCache, "`dashboard_cache`", "?", []string{"ON DUPLICATE KEY UPDATE", "`dashboard_cache`"}},
		{schema.PostgreSQLCache, `"dashboard_cache"`, "$1", []string{"ON CONFLICT (cache_key) DO UPDATE SET", "$4"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.backend), func(t *testing.T) {
			store := &SQLCacheStore{backend: tt.backend, tableName: TableName}
			assert.Equal(t, tt.quoted, quoteTableName(TableName, tt.backend))
			assert.Equal(t, tt.placeholder, store.placeholder(1))
			query := store.upsertQuery()
			for _, want := range tt.wantContains {
				assert.Contains(t, query, want)
			}
		})
	}
}

func TestPrintStatus(t *testing.T) {
	var buf bytes.Buffer
	PrintCacheStatus(&buf, schema.CacheStatus{Backend: "memory", Connected: true, TotalEntries: 2, TableSizeBytes: 42})
	assert.Contains(t, buf.String(), "Cache Backend: memory")
	assert.Contains(t, buf.String(), "Total Entries: 2")
	assert.Contains(t, buf.String(), "Size: 42 bytes")

	buf.Reset()
	PrintStoreStatus(&buf, schema.StoreStatus{
		Backend:        "sqlite",
		Connected:      true,
		SchemaVersion:  1,
		TableRowCounts: map[string]int64{"projects": 2, "activity_records": 5},
	})
	out := buf.String()
	assert.Contains(t, out, "Schema Version: 1 (dirty: false)")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("activity_records")), bytes.Index(buf.Bytes(), []byte("  projects")))
}
