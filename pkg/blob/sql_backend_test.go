package blob

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockSQL(t *testing.T, dialect Dialect) (*SQLBackend, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	b := NewSQLBackend(db, dialect)
	b.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return b, mock
}

func TestSQLBackend_PostgresPlaceholders(t *testing.T) {
	b, mock := newMockSQL(t, DialectPostgres)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT data FROM blobs WHERE path = $1")).
		WithArgs("Cloud/index.jsonl").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte("doc")))

	data, err := b.Download(ctx, "/Cloud/index.jsonl")
	require.NoError(t, err)
	assert.Equal(t, "doc", string(data))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLBackend_DownloadNotFound(t *testing.T) {
	b, mock := newMockSQL(t, DialectSQLite)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT data FROM blobs WHERE path = ?")).
		WithArgs("Cloud/index.jsonl").
		WillReturnError(sql.ErrNoRows)

	_, err := b.Download(context.Background(), "Cloud/index.jsonl")
	assert.True(t, IsNotFound(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLBackend_UploadOverwrite(t *testing.T) {
	b, mock := newMockSQL(t, DialectPostgres)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO blobs (path, data, updated_at) VALUES ($1, $2, $3)")).
		WithArgs("Cloud/A.data", []byte("{}"), int64(1700000000000)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, b.Upload(context.Background(), "Cloud/A.data", []byte("{}"), true))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLBackend_UploadNoOverwriteConflict(t *testing.T) {
	b, mock := newMockSQL(t, DialectSQLite)

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (path) DO NOTHING")).
		WithArgs("Cloud/A.data", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := b.Upload(context.Background(), "Cloud/A.data", []byte("{}"), false)
	assert.ErrorIs(t, err, ErrExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLBackend_Delete(t *testing.T) {
	b, mock := newMockSQL(t, DialectPostgres)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM blobs WHERE path = $1")).
		WithArgs("Cloud/A.notes").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, b.Delete(context.Background(), "Cloud/A.notes"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLBackend_ErrorMapping(t *testing.T) {
	b, mock := newMockSQL(t, DialectPostgres)

	mock.ExpectQuery("SELECT data FROM blobs").
		WillReturnError(&pq.Error{Code: "28P01", Message: "password authentication failed"})
	_, err := b.Download(context.Background(), "x")
	assert.True(t, IsNotAuthorized(err), "got %v", err)

	mock.ExpectExec("DELETE FROM blobs").
		WillReturnError(sql.ErrConnDone)
	err = b.Delete(context.Background(), "x")
	assert.True(t, IsTransient(err), "got %v", err)
}

func TestSQLBackend_SQLiteContract(t *testing.T) {
	b, err := OpenSQLBackend(context.Background(), DialectSQLite, "file:"+t.TempDir()+"/blobs.db")
	require.NoError(t, err)
	defer func() { _ = b.Close() }()
	contract(t, b)
}
