package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/tendant/simple-catalog/pkg/catalog"
)

const backendName = "sqlite"

const schema = `CREATE TABLE IF NOT EXISTS file_records (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	stored_name TEXT NOT NULL,
	original_name TEXT NOT NULL,
	extension TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	size_bytes INTEGER NOT NULL,
	upload_timestamp TEXT NOT NULL,
	title TEXT NOT NULL,
	exam_type TEXT NOT NULL,
	exam_year INTEGER NOT NULL,
	publish_date TEXT NOT NULL,
	description TEXT NOT NULL
);`

const selectColumns = `id, stored_name, original_name, extension, mime_type, size_bytes,
	upload_timestamp, title, exam_type, exam_year, publish_date, description`

// Repository implements catalog.MetadataStore using SQLite
type Repository struct {
	db     *sql.DB
	closer bool
}

// Open opens (or creates) the database file at path and prepares the schema.
// The returned repository owns the connection.
func Open(path string) (*Repository, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// one writer at a time; sqlite serializes writes anyway
	db.SetMaxOpenConns(1)

	repo, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	repo.closer = true
	return repo, nil
}

// dsn builds a file: URI for path. The path is percent-escaped so that
// characters such as '?' and '#' stay part of the file name.
func dsn(path string) string {
	return "file:" + (&url.URL{Path: path}).EscapedPath() + "?_busy_timeout=5000"
}

// New creates the schema on db if needed. The caller keeps ownership of db.
func New(db *sql.DB) (*Repository, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("failed to set up table: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) List(ctx context.Context) ([]*catalog.FileRecord, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+selectColumns+" FROM file_records ORDER BY seq")
	if err != nil {
		return nil, r.wrap("list", err)
	}
	defer rows.Close()

	records := []*catalog.FileRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, r.wrap("list", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, r.wrap("list", err)
	}
	return records, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*catalog.FileRecord, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+selectColumns+" FROM file_records WHERE id = ?", id.String())
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, catalog.ErrRecordNotFound
		}
		return nil, r.wrap("get", err)
	}
	return rec, nil
}

func (r *Repository) Insert(ctx context.Context, record *catalog.FileRecord) error {
	query := `INSERT INTO file_records (` + selectColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		record.ID.String(),
		record.StoredName,
		record.OriginalName,
		record.Extension,
		record.MimeType,
		record.SizeBytes,
		record.UploadTimestamp.UTC().Format(time.RFC3339Nano),
		record.Title,
		record.ExamType,
		record.ExamYear,
		record.PublishDate,
		record.Description,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return fmt.Errorf("%s: %w", record.ID, catalog.ErrDuplicateRecord)
		}
		return r.wrap("insert", err)
	}
	return nil
}

func (r *Repository) DeleteByID(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM file_records WHERE id = ?", id.String())
	if err != nil {
		return false, r.wrap("delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, r.wrap("delete", err)
	}
	return n > 0, nil
}

// Close closes the database if the repository opened it
func (r *Repository) Close() error {
	if !r.closer {
		return nil
	}
	return r.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*catalog.FileRecord, error) {
	var (
		rec      catalog.FileRecord
		id       string
		uploaded string
	)
	err := s.Scan(
		&id,
		&rec.StoredName,
		&rec.OriginalName,
		&rec.Extension,
		&rec.MimeType,
		&rec.SizeBytes,
		&uploaded,
		&rec.Title,
		&rec.ExamType,
		&rec.ExamYear,
		&rec.PublishDate,
		&rec.Description,
	)
	if err != nil {
		return nil, err
	}

	if rec.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid id %q: %w", id, err)
	}
	if rec.UploadTimestamp, err = time.Parse(time.RFC3339Nano, uploaded); err != nil {
		return nil, fmt.Errorf("invalid upload timestamp %q: %w", uploaded, err)
	}
	return &rec, nil
}

func (r *Repository) wrap(op string, err error) error {
	return &catalog.StorageError{Backend: backendName, Op: op, Err: err}
}
