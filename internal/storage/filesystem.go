// Package storage persists generated artifacts and their metadata records,
// addressed by job identifier.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mediagen/internal/domain"
)

// ArtifactStore is the durable key→bytes and key→metadata contract the
// orchestrator and sweeper depend on. Writes are overwrite-by-key so a
// re-attempted persist after a crash is safe.
type ArtifactStore interface {
	Put(ctx context.Context, jobID string, data []byte, ext string) (path, url string, err error)
	PutMetadata(ctx context.Context, jobID string, meta map[string]any) (string, error)
	Get(ctx context.Context, jobID, ext string) ([]byte, error)
	GetMetadata(ctx context.Context, jobID string) (map[string]any, error)
	// Delete removes the artifact, reporting false when it was already
	// absent. Absence is not an error.
	Delete(ctx context.Context, jobID, ext string) (bool, error)
	DeleteMetadata(ctx context.Context, jobID string) (bool, error)
}

// FileStore persists artifacts onto the local filesystem, with metadata
// records in a sibling directory. It is intended for development and
// single-node deployments where an object storage service is not available.
type FileStore struct {
	basePath     string
	metadataPath string
	baseURL      string
}

// NewFileStore initializes a FileStore rooted at basePath. Public URLs for
// stored artifacts are formed from baseURL.
func NewFileStore(basePath, baseURL string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	metadataPath := filepath.Join(filepath.Dir(basePath), "metadata")
	for _, dir := range []string{basePath, metadataPath} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("storage: ensure directory: %w", err)
		}
	}
	return &FileStore{
		basePath:     basePath,
		metadataPath: metadataPath,
		baseURL:      strings.TrimRight(baseURL, "/"),
	}, nil
}

// BasePath returns the configured root directory.
func (s *FileStore) BasePath() string {
	if s == nil {
		return ""
	}
	return s.basePath
}

// Put writes artifact bytes for the job, overwriting any previous write.
func (s *FileStore) Put(ctx context.Context, jobID string, data []byte, ext string) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", domain.Transient("storage", err)
	}
	name, err := artifactName(jobID, ext)
	if err != nil {
		return "", "", err
	}
	fullPath := filepath.Join(s.basePath, name)
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", "", domain.Transient("storage", fmt.Errorf("write artifact: %w", err))
	}
	return fullPath, s.URL(jobID, ext), nil
}

// PutMetadata writes the generation metadata record for the job.
func (s *FileStore) PutMetadata(ctx context.Context, jobID string, meta map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", domain.Transient("storage", err)
	}
	name, err := artifactName(jobID, "json")
	if err != nil {
		return "", err
	}
	payload, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", domain.Fatal("storage", fmt.Errorf("encode metadata: %w", err))
	}
	fullPath := filepath.Join(s.metadataPath, name)
	if err := os.WriteFile(fullPath, payload, 0o644); err != nil {
		return "", domain.Transient("storage", fmt.Errorf("write metadata: %w", err))
	}
	return fullPath, nil
}

// Get reads artifact bytes back, returning domain.ErrNotFound when absent.
func (s *FileStore) Get(ctx context.Context, jobID, ext string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.Transient("storage", err)
	}
	name, err := artifactName(jobID, ext)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.basePath, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.Transient("storage", fmt.Errorf("read artifact: %w", err))
	}
	return data, nil
}

// GetMetadata reads the metadata record, returning domain.ErrNotFound when absent.
func (s *FileStore) GetMetadata(ctx context.Context, jobID string) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.Transient("storage", err)
	}
	name, err := artifactName(jobID, "json")
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.metadataPath, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.Transient("storage", fmt.Errorf("read metadata: %w", err))
	}
	var meta map[string]any
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, domain.Fatal("storage", fmt.Errorf("decode metadata: %w", err))
	}
	return meta, nil
}

// Delete removes the stored artifact; a missing file reports false, nil.
func (s *FileStore) Delete(ctx context.Context, jobID, ext string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, domain.Transient("storage", err)
	}
	name, err := artifactName(jobID, ext)
	if err != nil {
		return false, err
	}
	return removeFile(filepath.Join(s.basePath, name))
}

// DeleteMetadata removes the metadata record; a missing file reports false, nil.
func (s *FileStore) DeleteMetadata(ctx context.Context, jobID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, domain.Transient("storage", err)
	}
	name, err := artifactName(jobID, "json")
	if err != nil {
		return false, err
	}
	return removeFile(filepath.Join(s.metadataPath, name))
}

// URL returns the public URL an artifact is served from.
func (s *FileStore) URL(jobID, ext string) string {
	return fmt.Sprintf("%s/%s.%s", s.baseURL, jobID, ext)
}

func removeFile(path string) (bool, error) {
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, domain.Transient("storage", fmt.Errorf("delete: %w", err))
	}
	return true, nil
}

// artifactName builds the flat per-job file name, rejecting ids or
// extensions that could escape the storage root.
func artifactName(jobID, ext string) (string, error) {
	jobID = strings.TrimSpace(jobID)
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	if jobID == "" {
		return "", errors.New("storage: job id is required")
	}
	if ext == "" {
		ext = "png"
	}
	name := jobID + "." + ext
	if strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return "", errors.New("storage: invalid key")
	}
	return name, nil
}

var _ ArtifactStore = (*FileStore)(nil)
