package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Upload describes an image saved through the upload endpoint.
type Upload struct {
	ID           string    `json:"id"`
	OriginalName string    `json:"original_name"`
	StoredName   string    `json:"stored_name"`
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	CreatedAt    time.Time `json:"created_at"`
}

// UploadRepository provides access to upload records.
type UploadRepository struct {
	db *sql.DB
}

// Uploads returns the upload repository for this store.
func (s *Store) Uploads() *UploadRepository {
	return &UploadRepository{db: s.db}
}

// Create inserts a new upload record. An empty ID is filled with a new uuid.
func (r *UploadRepository) Create(u *Upload) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	u.CreatedAt = time.Now()

	_, err := r.db.Exec(
		`INSERT INTO uploads (id, original_name, stored_name, path, size, width, height, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.OriginalName, u.StoredName, u.Path, u.Size, u.Width, u.Height, u.CreatedAt,
	)
	return err
}

// GetByID retrieves an upload by its ID.
func (r *UploadRepository) GetByID(id string) (*Upload, error) {
	u := &Upload{}
	err := r.db.QueryRow(
		`SELECT id, original_name, stored_name, path, size, width, height, created_at
		 FROM uploads WHERE id = ?`,
		id,
	).Scan(&u.ID, &u.OriginalName, &u.StoredName, &u.Path, &u.Size, &u.Width, &u.Height, &u.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

// List retrieves all uploads, newest first.
func (r *UploadRepository) List() ([]*Upload, error) {
	rows, err := r.db.Query(
		`SELECT id, original_name, stored_name, path, size, width, height, created_at
		 FROM uploads ORDER BY created_at DESC, rowid DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var uploads []*Upload
	for rows.Next() {
		u := &Upload{}
		if err := rows.Scan(&u.ID, &u.OriginalName, &u.StoredName, &u.Path, &u.Size, &u.Width, &u.Height, &u.CreatedAt); err != nil {
			return nil, err
		}
		uploads = append(uploads, u)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return uploads, nil
}
