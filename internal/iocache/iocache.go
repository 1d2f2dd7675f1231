// Package iocache holds the dashboard cache backends.
package iocache

import (
	"fmt"
	"regexp"
	"time"

	"github.com/huangsam/teampulse/internal/contract"
	"github.com/huangsam/teampulse/schema"
)

// TableName is the table used by the SQL cache backends.
const TableName = "dashboard_cache"

var validTableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// NewCacheStore builds the cache store for a backend. The TTL is used by
// backends that can expire entries on their own; readers still compare the
// stored timestamp against their own TTL.
func NewCacheStore(backend schema.CacheBackend, connStr string, ttl time.Duration) (contract.CacheStore, error) {
	switch backend {
	case schema.SQLiteCache, schema.MySQLCache, schema.PostgreSQLCache:
		return NewSQLCacheStore(TableName, backend, connStr)
	case schema.RedisCache:
		return NewRedisCacheStore(connStr, ttl)
	case schema.MemoryCache, "":
		return NewMemoryCacheStore(ttl), nil
	case schema.NoneCache:
		return NoneCacheStore{}, nil
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s. Must be sqlite, mysql, postgresql, redis, memory, or none", backend)
	}
}

// quoteTableName quotes a table name for the backend.
func quoteTableName(tableName string, backend schema.CacheBackend) string {
	switch backend {
	case schema.MySQLCache:
		return "`" + tableName + "`"
	default:
		return `"` + tableName + `"`
	}
}

// validateTableName checks a table name against a strict allow-list pattern.
func validateTableName(tableName string) error {
	if !validTableName.MatchString(tableName) {
		return fmt.Errorf("invalid table name %q: must only contain letters, digits, and underscores", tableName)
	}
	return nil
}
