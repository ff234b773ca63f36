// Package postgres implements a vericloud.MetadataRepository backed by
// PostgreSQL.
//
// Expected schema:
//
//	CREATE TABLE file_metadata (
//	    id             TEXT PRIMARY KEY,
//	    original_name  TEXT NOT NULL,
//	    stored_name    TEXT NOT NULL,
//	    size           BIGINT NOT NULL,
//	    content_type   TEXT NOT NULL,
//	    created_at     TIMESTAMPTZ NOT NULL,
//	    updated_at     TIMESTAMPTZ,
//	    location       TEXT NOT NULL,
//	    schema_version INT NOT NULL
//	);
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vericloud/vericloud/pkg/vericloud"
)

// DBTX is an interface that allows us to use either a connection pool or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements vericloud.MetadataRepository using PostgreSQL
type Repository struct {
	db   DBTX
	pool *pgxpool.Pool
}

// New creates a new PostgreSQL repository
func New(db DBTX) vericloud.MetadataRepository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with a connection pool.
// Update runs inside a transaction when a pool is available.
func NewWithPool(pool *pgxpool.Pool) vericloud.MetadataRepository {
	return &Repository{db: pool, pool: pool}
}

func (r *Repository) Create(ctx context.Context, record *vericloud.FileMetadata) error {
	query := `
		INSERT INTO file_metadata (
			id, original_name, stored_name, size, content_type,
			created_at, updated_at, location, schema_version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.Exec(ctx, query,
		record.ID, record.OriginalName, record.StoredName, record.Size,
		record.ContentType, record.CreatedAt, record.UpdatedAt,
		record.Location, record.SchemaVersion)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return vericloud.ErrExists
		}
		return fmt.Errorf("failed to create metadata record: %w", err)
	}

	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (*vericloud.FileMetadata, error) {
	return scanRecord(r.db.QueryRow(ctx, selectQuery+` WHERE id = $1`, id))
}

func (r *Repository) List(ctx context.Context) ([]*vericloud.FileMetadata, error) {
	rows, err := r.db.Query(ctx, selectQuery+` ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list metadata records: %w", err)
	}
	defer rows.Close()

	result := []*vericloud.FileMetadata{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list metadata records: %w", err)
	}

	return result, nil
}

func (r *Repository) Update(ctx context.Context, id string, apply func(*vericloud.FileMetadata) error) (*vericloud.FileMetadata, error) {
	if r.pool == nil {
		return r.updateWith(ctx, r.db, id, apply, false)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	record, err := r.updateWith(ctx, tx, id, apply, true)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit update: %w", err)
	}
	return record, nil
}

func (r *Repository) updateWith(ctx context.Context, db DBTX, id string, apply func(*vericloud.FileMetadata) error, forUpdate bool) (*vericloud.FileMetadata, error) {
	query := selectQuery + ` WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	record, err := scanRecord(db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}

	if err := apply(record); err != nil {
		return nil, err
	}

	// Persist every column: the mutator may touch any field, and dropping
	// one silently would desync the record from what the caller saw.
	_, err = db.Exec(ctx, `
		UPDATE file_metadata SET
			original_name = $2, stored_name = $3, size = $4, content_type = $5,
			created_at = $6, updated_at = $7, location = $8, schema_version = $9
		WHERE id = $1`,
		record.ID, record.OriginalName, record.StoredName, record.Size,
		record.ContentType, record.CreatedAt, record.UpdatedAt,
		record.Location, record.SchemaVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to update metadata record: %w", err)
	}

	return record, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM file_metadata WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete metadata record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return vericloud.ErrFileNotFound
	}
	return nil
}

const selectQuery = `
	SELECT id, original_name, stored_name, size, content_type,
	       created_at, updated_at, location, schema_version
	FROM file_metadata`

func scanRecord(row pgx.Row) (*vericloud.FileMetadata, error) {
	var record vericloud.FileMetadata
	err := row.Scan(
		&record.ID, &record.OriginalName, &record.StoredName, &record.Size,
		&record.ContentType, &record.CreatedAt, &record.UpdatedAt,
		&record.Location, &record.SchemaVersion)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, vericloud.ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to scan metadata record: %w", err)
	}
	return &record, nil
}
