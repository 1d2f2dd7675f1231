package iocache

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql" // MySQL driver
	"github.com/huangsam/teampulse/internal/contract"
	"github.com/huangsam/teampulse/schema"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "modernc.org/sqlite"             // SQLite driver
)

// SQLCacheStore keeps dashboard snapshots in a single key/value table.
type SQLCacheStore struct {
	db        *sql.DB
	tableName string
	backend   schema.CacheBackend
	connStr   string
}

var _ contract.CacheStore = &SQLCacheStore{} // Compile-time check

// NewSQLCacheStore opens the database for a SQL backend and creates the cache table.
func NewSQLCacheStore(tableName string, backend schema.CacheBackend, connStr string) (*SQLCacheStore, error) {
	if err := validateTableName(tableName); err != nil {
		return nil, err
	}

	var db *sql.DB
	var err error

	switch backend {
	case schema.SQLiteCache:
		dbPath := connStr
		if dbPath == "" {
			dbPath = contract.GetCacheDBFilePath()
		}
		db, err = sql.Open("sqlite", dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite cache at %q: %w. Ensure the directory is writable", dbPath, err)
		}
		// One connection keeps :memory: databases shared and avoids "database is locked".
		db.SetMaxOpenConns(1)

	case schema.MySQLCache:
		db, err = sql.Open("mysql", connStr)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MySQL cache: %w. Check connection format: user:password@tcp(host:port)/dbname", err)
		}

	case schema.PostgreSQLCache:
		db, err = sql.Open("pgx", connStr)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL cache: %w. Check connection format: host=localhost port=5432 user=postgres dbname=mydb", err)
		}

	default:
		return nil, fmt.Errorf("backend %s is not a SQL cache backend", backend)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s cache database. Check that the server is running and connection parameters are valid: %w", backend, err)
	}

	if _, err := db.Exec(createTableQuery(tableName, backend)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create table %s: %w", tableName, err)
	}

	return &SQLCacheStore{db: db, tableName: tableName, backend: backend, connStr: connStr}, nil
}

func createTableQuery(tableName string, backend schema.CacheBackend) string {
	quoted := quoteTableName(tableName, backend)
	switch backend {
	case schema.MySQLCache:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				cache_key VARCHAR(255) PRIMARY KEY,
				cache_value MEDIUMBLOB NOT NULL,
				cache_version INT NOT NULL,
				cache_timestamp BIGINT NOT NULL
			)`, quoted)

	case schema.PostgreSQLCache:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				cache_key TEXT PRIMARY KEY,
				cache_value BYTEA NOT NULL,
				cache_version INTEGER NOT NULL,
				cache_timestamp BIGINT NOT NULL
			)`, quoted)

	default:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				cache_key TEXT PRIMARY KEY,
				cache_value BLOB NOT NULL,
				cache_version INTEGER NOT NULL,
				cache_timestamp INTEGER NOT NULL
			)`, quoted)
	}
}

// placeholder returns the n-th (1-based) bind parameter for the backend.
func (ps *SQLCacheStore) placeholder(n int) string {
	if ps.backend == schema.PostgreSQLCache {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (ps *SQLCacheStore) upsertQuery() string {
	quoted := quoteTableName(ps.tableName, ps.backend)
	switch ps.backend {
	case schema.MySQLCache:
		return fmt.Sprintf(`INSERT INTO %s (cache_key, cache_value, cache_version, cache_timestamp) VALUES (?, ?, ?, ?) AS new
			ON DUPLICATE KEY UPDATE cache_value = new.cache_value, cache_version = new.cache_version, cache_timestamp = new.cache_timestamp`, quoted)

	case schema.PostgreSQLCache:
		return fmt.Sprintf(`INSERT INTO %s (cache_key, cache_value, cache_version, cache_timestamp) VALUES ($1, $2, $3, $4)
			ON CONFLICT (cache_key) DO UPDATE SET cache_value = EXCLUDED.cache_value, cache_version = EXCLUDED.cache_version, cache_timestamp = EXCLUDED.cache_timestamp`, quoted)

	default:
		return fmt.Sprintf(`INSERT OR REPLACE INTO %s (cache_key, cache_value, cache_version, cache_timestamp) VALUES (?, ?, ?, ?)`, quoted)
	}
}

// Get retrieves a value by key. A missing key wraps ErrNotFound.
func (ps *SQLCacheStore) Get(key string) ([]byte, int, int64, error) {
	var value []byte
	var version int
	var ts int64

	query := fmt.Sprintf(`SELECT cache_value, cache_version, cache_timestamp FROM %s WHERE cache_key = %s`,
		quoteTableName(ps.tableName, ps.backend), ps.placeholder(1))
	err := ps.db.QueryRow(query, key).Scan(&value, &version, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, 0, fmt.Errorf("cache key %s: %w", key, contract.ErrNotFound)
	}
	if err != nil {
		return nil, 0, 0, err
	}
	return value, version, ts, nil
}

// Set inserts or replaces a key/value pair.
func (ps *SQLCacheStore) Set(key string, value []byte, version int, timestamp int64) error {
	if _, err := ps.db.Exec(ps.upsertQuery(), key, value, version, timestamp); err != nil {
		return fmt.Errorf("%w: %s: %v", contract.ErrCacheWrite, key, err)
	}
	return nil
}

// Delete removes a key. Deleting a missing key is not an error.
func (ps *SQLCacheStore) Delete(key string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE cache_key = %s`, quoteTableName(ps.tableName, ps.backend), ps.placeholder(1))
	if _, err := ps.db.Exec(query, key); err != nil {
		return fmt.Errorf("failed to delete cache key %s: %w", key, err)
	}
	return nil
}

// Clear removes every entry from the cache table.
func (ps *SQLCacheStore) Clear() error {
	query := fmt.Sprintf("DELETE FROM %s", quoteTableName(ps.tableName, ps.backend))
	if _, err := ps.db.Exec(query); err != nil {
		return fmt.Errorf("failed to clear %s: %w", ps.tableName, err)
	}
	return nil
}

// Close closes the underlying DB connection.
func (ps *SQLCacheStore) Close() error {
	if ps.db != nil {
		return ps.db.Close()
	}
	return nil
}

// GetStatus returns status information about the cache table.
func (ps *SQLCacheStore) GetStatus() (schema.CacheStatus, error) {
	status := schema.CacheStatus{
		Backend:   string(ps.backend),
		Connected: ps.db != nil,
	}
	if ps.db == nil {
		return status, nil
	}
	if err := ps.db.Ping(); err != nil {
		status.Connected = false
		return status, nil
	}

	quoted := quoteTableName(ps.tableName, ps.backend)

	var lastTs, oldestTs sql.NullInt64
	query := fmt.Sprintf("SELECT COUNT(*), MAX(cache_timestamp), MIN(cache_timestamp) FROM %s", quoted)
	if err := ps.db.QueryRow(query).Scan(&status.TotalEntries, &lastTs, &oldestTs); err != nil {
		return status, fmt.Errorf("failed to get cache entries: %w", err)
	}
	if status.TotalEntries == 0 {
		return status, nil
	}
	status.LastEntryTime = time.Unix(lastTs.Int64, 0)
	status.OldestEntryTime = time.Unix(oldestTs.Int64, 0)

	// Rough estimate used whenever the catalog query is unavailable.
	fallback := int64(status.TotalEntries) * 1000

	switch ps.backend {
	case schema.SQLiteCache:
		sizeQuery := "SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()"
		if err := ps.db.QueryRow(sizeQuery).Scan(&status.TableSizeBytes); err != nil {
			status.TableSizeBytes = 0
		}
	case schema.MySQLCache:
		status.TableSizeBytes = fallback
		cfg, err := mysql.ParseDSN(ps.connStr)
		if err != nil || cfg.DBName == "" {
			break
		}
		sizeQuery := "SELECT data_length + index_length FROM information_schema.tables WHERE table_schema = ? AND table_name = ?"
		if err := ps.db.QueryRow(sizeQuery, cfg.DBName, ps.tableName).Scan(&status.TableSizeBytes); err != nil {
			status.TableSizeBytes = fallback
		}
	case schema.PostgreSQLCache:
		if err := ps.db.QueryRow("SELECT pg_total_relation_size($1)", ps.tableName).Scan(&status.TableSizeBytes); err != nil {
			status.TableSizeBytes = fallback
		}
	}

	return status, nil
}
