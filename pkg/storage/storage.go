// Package storage archives the original uploaded spreadsheets so an
// ingestion batch can be audited or replayed later.
package storage

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// FileInfo describes one archived upload.
type FileInfo struct {
	ID        uuid.UUID `json:"id"`
	BatchID   string    `json:"batch_id"`
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
}

// Archive stores uploaded files grouped by ingestion batch.
type Archive interface {
	// Save stores one uploaded file under its batch.
	Save(ctx context.Context, batchID, filename string, r io.Reader) (*FileInfo, error)

	// Open returns a reader over an archived file.
	Open(ctx context.Context, batchID string, fileID uuid.UUID) (io.ReadCloser, *FileInfo, error)

	// List returns the files archived under a batch.
	List(ctx context.Context, batchID string) ([]*FileInfo, error)
}
