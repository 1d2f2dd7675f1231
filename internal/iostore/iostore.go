// Package iostore is the durable SQL store behind the activity pipeline.
package iostore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-sql-driver/mysql"
	"github.com/huangsam/teampulse/internal/contract"
	"github.com/huangsam/teampulse/schema"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	"github.com/sirupsen/logrus"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// MySQL error numbers that signal a retryable writer collision or a key clash.
const (
	mysqlErrDupEntry     = 1062
	mysqlErrLockWait     = 1205
	mysqlErrLockDeadlock = 1213
)

// validTableName allows only alphanumeric characters and underscores.
var validTableName = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// Options tune a Store.
type Options struct {
	MergeRetries int
	Logger       logrus.FieldLogger
	Now          func() time.Time
}

// StoreImpl implements contract.Store over database/sql.
type StoreImpl struct {
	db      *sql.DB
	backend schema.DatabaseBackend
	retries int
	log     logrus.FieldLogger
	now     func() time.Time
}

var _ contract.Store = &StoreImpl{} // Compile-time check

// Open connects to the backend, brings the schema to the latest version and returns a Store.
func Open(backend schema.DatabaseBackend, connStr string, opts Options) (*StoreImpl, error) {
	db, err := openDB(backend, connStr)
	if err != nil {
		return nil, err
	}
	if err := migrateOpen(db, backend, connStr, -1); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate %s store: %w", backend, err)
	}
	return NewWithDB(db, backend, opts), nil
}

// NewWithDB wraps an already migrated connection.
func NewWithDB(db *sql.DB, backend schema.DatabaseBackend, opts Options) *StoreImpl {
	if opts.Logger == nil {
		opts.Logger = contract.NopLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &StoreImpl{
		db:      db,
		backend: backend,
		retries: opts.MergeRetries,
		log:     opts.Logger,
		now:     opts.Now,
	}
}

// openDB opens and pings a connection for the backend.
func openDB(backend schema.DatabaseBackend, connStr string) (*sql.DB, error) {
	var db *sql.DB
	var err error

	switch backend {
	case schema.SQLiteBackend:
		dbPath := connStr
		if dbPath == "" {
			dbPath = contract.GetDBFilePath()
		}
		db, err = sql.Open("sqlite", dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite database at %q: %w. Check that the directory is writable", dbPath, err)
		}
		// Limit SQLite to a single open connection to avoid "database is locked" errors
		db.SetMaxOpenConns(1)

	case schema.MySQLBackend:
		dsn, dsnErr := mysqlDSN(connStr)
		if dsnErr != nil {
			return nil, dsnErr
		}
		db, err = sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open MySQL database: %w. Check connection string format: user:password@tcp(host:port)/dbname", err)
		}

	case schema.PostgreSQLBackend:
		db, err = sql.Open("pgx", connStr)
		if err != nil {
			return nil, fmt.Errorf("failed to open PostgreSQL database: %w. Check connection string format: host=localhost port=5432 user=postgres dbname=mydb", err)
		}

	default:
		return nil, fmt.Errorf("unsupported store backend: %s. Must be sqlite, mysql, or postgresql", backend)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s database. Check that the server is running and connection parameters are valid: %w", backend, err)
	}
	return db, nil
}

// mysqlDSN enables the driver options the store relies on.
func mysqlDSN(connStr string) (string, error) {
	cfg, err := mysql.ParseDSN(connStr)
	if err != nil {
		return "", fmt.Errorf("invalid MySQL connection string: %w", err)
	}
	cfg.MultiStatements = true
	return cfg.FormatDSN(), nil
}

// Backend returns the configured backend.
func (s *StoreImpl) Backend() schema.DatabaseBackend {
	return s.backend
}

// DBStats returns connection pool statistics.
func (s *StoreImpl) DBStats() sql.DBStats {
	return s.db.Stats()
}

// Close closes the underlying DB connection.
func (s *StoreImpl) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// --- dialect helpers ---

// bind rewrites '?' placeholders to the backend's style.
func (s *StoreImpl) bind(query string) string {
	if s.backend != schema.PostgreSQLBackend {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// upsertQuery builds an insert that updates on key conflict. set receives the
// column name, the existing value reference and the incoming value reference.
func (s *StoreImpl) upsertQuery(table string, cols, keys []string, set func(col, existing, incoming string) string) string {
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), marks)

	isKey := make(map[string]bool, len(keys))
	for _, k := range keys {
		isKey[k] = true
	}

	var sets []string
	for _, c := range cols {
		if isKey[c] {
			continue
		}
		existing, incoming := s.refs(table, c)
		sets = append(sets, fmt.Sprintf("%s = %s", c, set(c, existing, incoming)))
	}

	switch s.backend {
	case schema.MySQLBackend:
		return insert + " AS new ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
	default:
		return s.bind(insert + fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET ", strings.Join(keys, ", ")) + strings.Join(sets, ", "))
	}
}

// refs returns how an upsert refers to the stored and the incoming value of col.
// MySQL applies assignments left to right, so setters that read another column
// must be listed before that column is assigned.
func (s *StoreImpl) refs(table, col string) (existing, incoming string) {
	if s.backend == schema.MySQLBackend {
		return col, "new." + col
	}
	return table + "." + col, "excluded." + col
}

// replaceValue is the upsert setter that overwrites with the incoming value.
func replaceValue(_, _, incoming string) string {
	return incoming
}

// insertIgnoreQuery builds an insert that silently skips existing keys.
// RowsAffected is 1 when the row was inserted and 0 when it already existed.
func (s *StoreImpl) insertIgnoreQuery(table string, cols []string, firstKey string) string {
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), marks)
	switch s.backend {
	case schema.MySQLBackend:
		return insert + fmt.Sprintf(" ON DUPLICATE KEY UPDATE %s = %s", firstKey, firstKey)
	default:
		return s.bind(insert + " ON CONFLICT DO NOTHING")
	}
}

// quoteTableName quotes a table name for the backend.
func quoteTableName(tableName string, backend schema.DatabaseBackend) string {
	switch backend {
	case schema.MySQLBackend:
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

// --- error classification ---

// isConflict reports whether err is a retryable writer collision.
func isConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlErrLockDeadlock || myErr.Number == mysqlErrLockWait
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code() & 0xff
		return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
	}
	return false
}

// isUniqueViolation reports whether err is a unique key clash.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.UniqueViolation
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlErrDupEntry
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

// inTx runs fn in a transaction, retrying writer collisions up to the configured
// number of times. Exhausted retries surface as ErrMergeConflict.
func (s *StoreImpl) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	attempt := 0
	op := func() error {
		attempt++
		err := s.runTx(ctx, fn)
		if err == nil {
			return nil
		}
		if isConflict(err) {
			s.log.WithError(err).WithField("attempt", attempt).Debug("retrying conflicting transaction")
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 10 * time.Millisecond
	policy.MaxInterval = 500 * time.Millisecond
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(max(s.retries, 0))), ctx)

	if err := backoff.Retry(op, b); err != nil {
		if isConflict(err) {
			return fmt.Errorf("%w after %d attempts: %v", contract.ErrMergeConflict, attempt, err)
		}
		return err
	}
	return nil
}

// runTx runs fn inside one transaction and commits it.
func (s *StoreImpl) runTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// --- value conversions ---

func unixOrNull(t *time.Time) sql.NullInt64 {
	if t == nil || t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func timeOrNil(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}

func stringOrNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func stringPtrOrNull(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringOrNil(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
