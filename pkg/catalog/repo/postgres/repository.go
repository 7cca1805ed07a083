package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendant/simple-catalog/pkg/catalog"
)

const backendName = "postgres"

// Schema creates the catalog table. seq preserves insertion order.
const Schema = `
CREATE TABLE IF NOT EXISTS catalog_file (
	seq BIGSERIAL PRIMARY KEY,
	id UUID NOT NULL UNIQUE,
	stored_name TEXT NOT NULL,
	original_name TEXT NOT NULL,
	extension TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	size_bytes BIGINT NOT NULL,
	upload_timestamp TIMESTAMPTZ NOT NULL,
	title TEXT NOT NULL,
	exam_type TEXT NOT NULL,
	exam_year INTEGER NOT NULL,
	publish_date TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT ''
)`

const selectColumns = `id, stored_name, original_name, extension, mime_type, size_bytes,
	upload_timestamp, title, exam_type, exam_year, publish_date, description`

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements catalog.MetadataStore using PostgreSQL
type Repository struct {
	db   DBTX
	pool *pgxpool.Pool
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a repository that owns pool and closes it on Close
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool, pool: pool}
}

// Connect opens a pool for databaseURL and ensures the schema exists
func Connect(ctx context.Context, databaseURL string) (*Repository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	repo := NewWithPool(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return repo, nil
}

// EnsureSchema creates the catalog table if it does not exist
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, Schema); err != nil {
		return r.handlePostgresError("ensure schema", err)
	}
	return nil
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s: %w", operation, catalog.ErrDuplicateRecord)
		case "42P01": // undefined_table
			err = fmt.Errorf("table does not exist - database migration required: %w", err)
		}
	}
	return &catalog.StorageError{Backend: backendName, Op: operation, Err: err}
}

func (r *Repository) List(ctx context.Context) ([]*catalog.FileRecord, error) {
	rows, err := r.db.Query(ctx, "SELECT "+selectColumns+" FROM catalog_file ORDER BY seq")
	if err != nil {
		return nil, r.handlePostgresError("list", err)
	}
	defer rows.Close()

	records := []*catalog.FileRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, r.handlePostgresError("list", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list", err)
	}
	return records, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*catalog.FileRecord, error) {
	rec, err := scanRecord(r.db.QueryRow(ctx, "SELECT "+selectColumns+" FROM catalog_file WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrRecordNotFound
		}
		return nil, r.handlePostgresError("get", err)
	}
	return rec, nil
}

func (r *Repository) Insert(ctx context.Context, record *catalog.FileRecord) error {
	query := `
		INSERT INTO catalog_file (` + selectColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.Exec(ctx, query,
		record.ID, record.StoredName, record.OriginalName, record.Extension,
		record.MimeType, record.SizeBytes, record.UploadTimestamp, record.Title,
		record.ExamType, record.ExamYear, record.PublishDate, record.Description)
	if err != nil {
		return r.handlePostgresError("insert", err)
	}
	return nil
}

func (r *Repository) DeleteByID(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, "DELETE FROM catalog_file WHERE id = $1", id)
	if err != nil {
		return false, r.handlePostgresError("delete", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Close closes the pool if the repository owns one
func (r *Repository) Close() error {
	if r.pool != nil {
		r.pool.Close()
	}
	return nil
}

func scanRecord(row pgx.Row) (*catalog.FileRecord, error) {
	var rec catalog.FileRecord
	err := row.Scan(
		&rec.ID, &rec.StoredName, &rec.OriginalName, &rec.Extension,
		&rec.MimeType, &rec.SizeBytes, &rec.UploadTimestamp, &rec.Title,
		&rec.ExamType, &rec.ExamYear, &rec.PublishDate, &rec.Description)
	if err != nil {
		return nil, err
	}
	rec.UploadTimestamp = rec.UploadTimestamp.UTC()
	return &rec, nil
}
