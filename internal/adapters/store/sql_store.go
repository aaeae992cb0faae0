package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/ghalamif/perfmon/internal/domain"
	"github.com/ghalamif/perfmon/internal/ports"
)

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"

	DefaultTable = "performance_data"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config selects the backing database. Path is used by sqlite, DSN by
// postgres.
type Config struct {
	Driver Dialect `yaml:"driver"`
	Path   string  `yaml:"path"`
	DSN    string  `yaml:"dsn"`
	Table  string  `yaml:"table"`
}

// DefaultPath is performance.db under the per-user config directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "perfmon", "performance.db")
}

func (c *Config) ApplyDefaults() {
	if c.Driver == "" {
		c.Driver = DialectSQLite
	}
	if c.Table == "" {
		c.Table = DefaultTable
	}
	if c.Driver == DialectSQLite && c.Path == "" {
		c.Path = DefaultPath()
	}
}

func (c Config) Validate() error {
	switch c.Driver {
	case DialectSQLite:
		if c.Path == "" {
			return errors.New("store.path is required for sqlite")
		}
	case DialectPostgres:
		if c.DSN == "" {
			return errors.New("store.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Driver)
	}
	if !tableName.MatchString(c.Table) {
		return fmt.Errorf("invalid store table name %q", c.Table)
	}
	return nil
}

// SQLStore persists abnormal samples in a single append-only table.
type SQLStore struct {
	db      *sql.DB
	table   string
	dialect Dialect
}

// New wraps an already opened database. The schema is not touched.
func New(db *sql.DB, dialect Dialect, table string) *SQLStore {
	if table == "" {
		table = DefaultTable
	}
	return &SQLStore{db: db, table: table, dialect: dialect}
}

// Open connects to the configured database and creates the table if needed.
// For sqlite the parent directory and file are created on first use.
func Open(ctx context.Context, cfg Config) (*SQLStore, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Join(domain.ErrConfiguration, err)
	}

	var (
		db  *sql.DB
		err error
	)
	switch cfg.Driver {
	case DialectSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, &domain.PersistenceError{Op: "open", Err: err}
		}
		db, err = sql.Open("sqlite", cfg.Path)
		if err == nil {
			db.SetMaxOpenConns(1)
		}
	case DialectPostgres:
		db, err = sql.Open("postgres", cfg.DSN)
	}
	if err != nil {
		return nil, &domain.PersistenceError{Op: "open", Err: err}
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &domain.PersistenceError{Op: "open", Err: err}
	}

	s := New(db, cfg.Driver, cfg.Table)
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Opener defers Open until a monitoring session starts.
func Opener(cfg Config) ports.StoreOpener {
	return func(ctx context.Context) (ports.Store, error) {
		return Open(ctx, cfg)
	}
}

func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.createTableSQL()); err != nil {
		return &domain.PersistenceError{Op: "create table", Err: err}
	}
	return nil
}

func (s *SQLStore) createTableSQL() string {
	if s.dialect == DialectPostgres {
		return "CREATE TABLE IF NOT EXISTS " + s.table + ` (
	id BIGSERIAL PRIMARY KEY,
	timestamp TEXT NOT NULL,
	cpu_usage DOUBLE PRECISION NOT NULL,
	memory_usage DOUBLE PRECISION NOT NULL,
	disk_usage DOUBLE PRECISION NOT NULL,
	temperature DOUBLE PRECISION NOT NULL
)`
	}
	return "CREATE TABLE IF NOT EXISTS " + s.table + ` (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT NOT NULL,
	cpu_usage REAL NOT NULL,
	memory_usage REAL NOT NULL,
	disk_usage REAL NOT NULL,
	temperature REAL NOT NULL
)`
}

func (s *SQLStore) insertSQL() string {
	placeholders := "(?, ?, ?, ?, ?)"
	if s.dialect == DialectPostgres {
		placeholders = "($1, $2, $3, $4, $5)"
	}
	return "INSERT INTO " + s.table +
		" (timestamp, cpu_usage, memory_usage, disk_usage, temperature) VALUES " + placeholders
}

func (s *SQLStore) Insert(ctx context.Context, sample domain.Sample) error {
	_, err := s.db.ExecContext(ctx, s.insertSQL(),
		FormatTimestamp(sample.Timestamp),
		sample.CPUUsage,
		sample.MemoryUsage,
		sample.DiskUsage,
		sample.Temperature,
	)
	if err != nil {
		return &domain.PersistenceError{Op: "insert", Err: err}
	}
	return nil
}

// QueryAbnormal returns matching rows in insertion order. A nil pred selects
// rows matching the default abnormality rule.
func (s *SQLStore) QueryAbnormal(ctx context.Context, pred ports.RecordPredicate) ([]domain.Record, error) {
	if pred == nil {
		pred = domain.Sample.IsAbnormal
	}
	all, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, r := range all {
		if pred(r.Sample) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *SQLStore) All(ctx context.Context) ([]domain.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, timestamp, cpu_usage, memory_usage, disk_usage, temperature FROM "+s.table+" ORDER BY id")
	if err != nil {
		return nil, &domain.PersistenceError{Op: "query", Err: err}
	}
	defer rows.Close()

	var out []domain.Record
	for rows.Next() {
		var (
			r  domain.Record
			ts string
		)
		if err := rows.Scan(&r.ID, &ts, &r.CPUUsage, &r.MemoryUsage, &r.DiskUsage, &r.Temperature); err != nil {
			return nil, &domain.PersistenceError{Op: "scan", Err: err}
		}
		if r.Timestamp, err = ParseTimestamp(ts); err != nil {
			return nil, &domain.PersistenceError{Op: "scan", Err: fmt.Errorf("row %d: %w", r.ID, err)}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.PersistenceError{Op: "query", Err: err}
	}
	return out, nil
}

func (s *SQLStore) Close() error {
	if err := s.db.Close(); err != nil {
		return &domain.PersistenceError{Op: "close", Err: err}
	}
	return nil
}

// FormatTimestamp is the on-disk timestamp form: RFC 3339 in UTC with
// nanoseconds.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// legacyLayouts are zone-less local forms written by older tools sharing the
// table. Seconds are omitted when they and the fraction are zero.
var legacyLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
}

// ParseTimestamp reads FormatTimestamp output and the legacy local forms.
func ParseTimestamp(v string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err == nil {
		return t, nil
	}
	for _, layout := range legacyLayouts {
		if lt, lerr := time.ParseInLocation(layout, v, time.Local); lerr == nil {
			return lt, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q: %w", v, err)
}

var _ ports.Store = (*SQLStore)(nil)
