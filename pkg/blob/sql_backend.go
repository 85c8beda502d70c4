package blob

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect selects the placeholder style and column types of SQLBackend.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// SQLBackend keeps blobs in a single table keyed by path.
type SQLBackend struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// OpenSQLBackend opens dsn with the driver matching dialect and ensures the
// schema exists.
func OpenSQLBackend(ctx context.Context, dialect Dialect, dsn string) (*SQLBackend, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%s dsn is required", dialect)
	}
	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", dialect, err)
	}
	b := NewSQLBackend(db, dialect)
	if err := b.Init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

// NewSQLBackend wraps an open database handle.
func NewSQLBackend(db *sql.DB, dialect Dialect) *SQLBackend {
	return &SQLBackend{db: db, dialect: dialect, now: time.Now}
}

// Init creates the blobs table when missing.
func (b *SQLBackend) Init(ctx context.Context) error {
	dataType := "BLOB"
	if b.dialect == DialectPostgres {
		dataType = "BYTEA"
	}
	query := `CREATE TABLE IF NOT EXISTS blobs (
		path TEXT PRIMARY KEY,
		data ` + dataType + ` NOT NULL,
		updated_at BIGINT NOT NULL
	)`
	if _, err := b.db.ExecContext(ctx, query); err != nil {
		return b.mapError("init", "blobs", err)
	}
	return nil
}

// bind rewrites ? placeholders for postgres.
func (b *SQLBackend) bind(query string) string {
	if b.dialect != DialectPostgres {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&sb, "$%d", n)
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func (b *SQLBackend) Download(ctx context.Context, p string) ([]byte, error) {
	c, err := cleanPath(p)
	if err != nil {
		return nil, err
	}
	var data []byte
	err = b.db.QueryRowContext(ctx, b.bind("SELECT data FROM blobs WHERE path = ?"), c).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", p, ErrNotFound)
	}
	if err != nil {
		return nil, b.mapError("download", p, err)
	}
	return data, nil
}

func (b *SQLBackend) Upload(ctx context.Context, p string, data []byte, overwrite bool) error {
	c, err := cleanPath(p)
	if err != nil {
		return err
	}
	query := `INSERT INTO blobs (path, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (path) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`
	if !overwrite {
		query = `INSERT INTO blobs (path, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (path) DO NOTHING`
	}
	res, err := b.db.ExecContext(ctx, b.bind(query), c, data, b.now().UnixMilli())
	if err != nil {
		return b.mapError("upload", p, err)
	}
	if !overwrite {
		n, err := res.RowsAffected()
		if err != nil {
			return b.mapError("upload", p, err)
		}
		if n == 0 {
			return fmt.Errorf("%s: %w", p, ErrExists)
		}
	}
	return nil
}

func (b *SQLBackend) Delete(ctx context.Context, p string) error {
	c, err := cleanPath(p)
	if err != nil {
		return err
	}
	if _, err := b.db.ExecContext(ctx, b.bind("DELETE FROM blobs WHERE path = ?"), c); err != nil {
		return b.mapError("delete", p, err)
	}
	return nil
}

// Close closes the database handle.
func (b *SQLBackend) Close() error {
	return b.db.Close()
}

func (b *SQLBackend) mapError(op, p string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Class() == "28" {
		return fmt.Errorf("%s %s %s: %w", b.dialect, op, p, ErrNotAuthorized)
	}
	return transient(string(b.dialect)+" "+op, p, err)
}
