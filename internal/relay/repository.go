package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Record is one relayed file in the upload ledger.
type Record struct {
	ID          string    `json:"id"`
	ObjectKey   string    `json:"objectKey"`
	Name        string    `json:"name"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	Client      string    `json:"client,omitempty"`
	URL         string    `json:"url"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ErrNotFound is returned when a file ID is not in the ledger.
var ErrNotFound = errors.New("upload not found")

// Repository persists the upload ledger in PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a Repository with the given connection pool.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create inserts rec and fills in its creation time.
func (r *Repository) Create(ctx context.Context, rec *Record) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO uploads (id, object_key, name, content_type, size_bytes, client)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		rec.ID, rec.ObjectKey, rec.Name, rec.ContentType, rec.Size, rec.Client,
	).Scan(&rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert upload: %w", err)
	}
	return nil
}

// GetByID fetches a record by file ID.
func (r *Repository) GetByID(ctx context.Context, id string) (*Record, error) {
	rec := &Record{}
	err := r.db.QueryRow(ctx,
		`SELECT id, object_key, name, content_type, size_bytes, client, created_at
		 FROM uploads WHERE id = $1`,
		id,
	).Scan(&rec.ID, &rec.ObjectKey, &rec.Name, &rec.ContentType, &rec.Size, &rec.Client, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get upload by id: %w", err)
	}
	return rec, nil
}

// Delete removes a record by file ID.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM uploads WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete upload: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
