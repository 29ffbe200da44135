package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LocalArchive implements Archive on the local filesystem. Each batch
// gets its own directory with a json metadata sidecar per file.
type LocalArchive struct {
	basePath string
}

var _ Archive = (*LocalArchive)(nil)

// NewLocalArchive creates a filesystem archive rooted at basePath.
func NewLocalArchive(basePath string) (*LocalArchive, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &LocalArchive{basePath: basePath}, nil
}

// Save stores one uploaded file under its batch directory.
func (a *LocalArchive) Save(_ context.Context, batchID, filename string, r io.Reader) (*FileInfo, error) {
	batchDir := filepath.Join(a.basePath, sanitize(batchID))
	if err := os.MkdirAll(batchDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create batch directory: %w", err)
	}

	fileID := uuid.New()
	stored := fileID.String()[:8] + "_" + sanitize(filename)
	path := filepath.Join(batchDir, stored)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive file: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, r)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to write archive file: %w", err)
	}

	info := &FileInfo{
		ID:        fileID,
		BatchID:   batchID,
		Name:      filename,
		Size:      size,
		Path:      stored,
		CreatedAt: time.Now(),
	}
	if err := a.writeMetadata(batchDir, info); err != nil {
		os.Remove(path)
		return nil, err
	}
	return info, nil
}

// Open returns a reader over an archived file.
func (a *LocalArchive) Open(ctx context.Context, batchID string, fileID uuid.UUID) (io.ReadCloser, *FileInfo, error) {
	infos, err := a.List(ctx, batchID)
	if err != nil {
		return nil, nil, err
	}
	for _, info := range infos {
		if info.ID == fileID {
			f, err := os.Open(filepath.Join(a.basePath, sanitize(batchID), info.Path))
			if err != nil {
				return nil, nil, fmt.Errorf("failed to open archived file: %w", err)
			}
			return f, info, nil
		}
	}
	return nil, nil, fmt.Errorf("file %s not found in batch %s", fileID, batchID)
}

// List returns the files archived under a batch, by metadata sidecars.
func (a *LocalArchive) List(_ context.Context, batchID string) ([]*FileInfo, error) {
	batchDir := filepath.Join(a.basePath, sanitize(batchID))
	entries, err := os.ReadDir(batchDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read batch directory: %w", err)
	}

	var infos []*FileInfo
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".meta.json") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(batchDir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read metadata: %w", err)
		}
		var info FileInfo
		if err := json.Unmarshal(raw, &info); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
		infos = append(infos, &info)
	}
	return infos, nil
}

func (a *LocalArchive) writeMetadata(batchDir string, info *FileInfo) error {
	raw, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	path := filepath.Join(batchDir, info.ID.String()+".meta.json")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

func sanitize(name string) string {
	name = filepath.Base(name)
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
}
