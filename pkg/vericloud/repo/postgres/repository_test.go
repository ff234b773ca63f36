package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vericloud/vericloud/pkg/vericloud"
	"github.com/vericloud/vericloud/pkg/vericloud/repo/postgres"
)

// fakeDB satisfies DBTX so statement shapes and error mapping can be checked
// without a live database.
type fakeDB struct {
	row     fakeRow
	execErr error
	execTag pgconn.CommandTag

	lastExec string
	lastArgs []interface{}
}

func (f *fakeDB) Exec(ctx context.Context, query string, args ...interface{}) (pgconn.CommandTag, error) {
	f.lastExec = query
	f.lastArgs = args
	return f.execTag, f.execErr
}

func (f *fakeDB) Query(ctx context.Context, query string, args ...interface{}) (pgx.Rows, error) {
	return nil, pgx.ErrNoRows
}

func (f *fakeDB) QueryRow(ctx context.Context, query string, args ...interface{}) pgx.Row {
	return f.row
}

type fakeRow struct {
	record *vericloud.FileMetadata
	err    error
}

func (r fakeRow) Scan(dest ...interface{}) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*string) = r.record.ID
	*dest[1].(*string) = r.record.OriginalName
	*dest[2].(*string) = r.record.StoredName
	*dest[3].(*int64) = r.record.Size
	*dest[4].(*string) = r.record.ContentType
	*dest[5].(*time.Time) = r.record.CreatedAt
	*dest[6].(**time.Time) = r.record.UpdatedAt
	*dest[7].(*string) = r.record.Location
	*dest[8].(*int) = r.record.SchemaVersion
	return nil
}

func sampleRecord() *vericloud.FileMetadata {
	return &vericloud.FileMetadata{
		ID:            "20240601_120000_000000001",
		OriginalName:  "notes.txt",
		StoredName:    "20240601_120000_000000001_notes.txt",
		Size:          11,
		ContentType:   "text/plain",
		CreatedAt:     time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		Location:      "s3://20240601_120000_000000001_notes.txt",
		SchemaVersion: vericloud.MetadataSchemaVersion,
	}
}

func TestCreateMapsUniqueViolation(t *testing.T) {
	db := &fakeDB{execErr: &pgconn.PgError{Code: "23505"}}
	repo := postgres.New(db)

	err := repo.Create(context.Background(), sampleRecord())
	assert.ErrorIs(t, err, vericloud.ErrExists)
}

func TestGetMapsNoRows(t *testing.T) {
	db := &fakeDB{row: fakeRow{err: pgx.ErrNoRows}}
	repo := postgres.New(db)

	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, vericloud.ErrFileNotFound)
}

func TestUpdatePersistsEveryMutatedField(t *testing.T) {
	db := &fakeDB{row: fakeRow{record: sampleRecord()}}
	repo := postgres.New(db)

	updatedAt := time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC)
	updated, err := repo.Update(context.Background(), "20240601_120000_000000001", func(m *vericloud.FileMetadata) error {
		m.Size = 42
		m.ContentType = "application/json"
		m.UpdatedAt = &updatedAt
		m.SchemaVersion = 2
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), updated.Size)

	// Every mutable column appears in the statement and the argument list
	// carries the full mutated record, not a fixed subset.
	for _, column := range []string{
		"original_name", "stored_name", "size", "content_type",
		"created_at", "updated_at", "location", "schema_version",
	} {
		assert.Contains(t, db.lastExec, column)
	}

	require.Len(t, db.lastArgs, 9)
	assert.Equal(t, "20240601_120000_000000001", db.lastArgs[0])
	assert.Equal(t, "notes.txt", db.lastArgs[1])
	assert.Equal(t, int64(42), db.lastArgs[3])
	assert.Equal(t, "application/json", db.lastArgs[4])
	assert.Equal(t, &updatedAt, db.lastArgs[6])
	assert.Equal(t, 2, db.lastArgs[8])
}

func TestUpdateMutatorError(t *testing.T) {
	db := &fakeDB{row: fakeRow{record: sampleRecord()}}
	repo := postgres.New(db)

	_, err := repo.Update(context.Background(), "20240601_120000_000000001", func(*vericloud.FileMetadata) error {
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)
	assert.Empty(t, db.lastExec, "no statement may run after a failed mutator")
}

func TestDeleteMapsZeroRows(t *testing.T) {
	db := &fakeDB{}
	repo := postgres.New(db)

	err := repo.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, vericloud.ErrFileNotFound)
}

func TestDeleteAffectedRow(t *testing.T) {
	db := &fakeDB{execTag: pgconn.NewCommandTag("DELETE 1")}
	repo := postgres.New(db)

	err := repo.Delete(context.Background(), "20240601_120000_000000001")
	assert.NoError(t, err)
}
