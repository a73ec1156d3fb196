// Package archive mirrors verbal fluency segments to blob storage so that
// recordings can be re-scored or audited later.
package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var ErrNotFound = errors.New("archive: object not found")

// Backend names a storage backend.
type Backend string

const (
	BackendNone Backend = "none"
	BackendFS   Backend = "fs"
	BackendS3   Backend = "s3"
	BackendGCS  Backend = "gcs"
)

// Store keeps blobs under slash separated keys.
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Config selects and configures a backend.
type Config struct {
	Backend  Backend `mapstructure:"backend"`
	Dir      string  `mapstructure:"dir"`
	Bucket   string  `mapstructure:"bucket"`
	Region   string  `mapstructure:"region"`
	Endpoint string  `mapstructure:"endpoint"`
	Prefix   string  `mapstructure:"prefix"`
}

// Open builds the configured store. BackendNone (or an empty backend)
// returns a nil store and no error.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", BackendNone:
		return nil, nil
	case BackendFS:
		dir := cfg.Dir
		if dir == "" {
			dir = filepath.Join("data", "recordings")
		}
		return NewDirStore(dir)
	case BackendS3:
		if cfg.Bucket == "" {
			return nil, errors.New("archive: bucket is required for s3")
		}
		region := cfg.Region
		if region == "" {
			region = "us-east-1"
		}
		return NewS3Store(ctx, S3Config{Bucket: cfg.Bucket, Region: region, Endpoint: cfg.Endpoint, Prefix: cfg.Prefix})
	case BackendGCS:
		if cfg.Bucket == "" {
			return nil, errors.New("archive: bucket is required for gcs")
		}
		return NewGCSStore(ctx, GCSConfig{Bucket: cfg.Bucket, Prefix: cfg.Prefix})
	default:
		return nil, fmt.Errorf("archive: unsupported backend %q", cfg.Backend)
	}
}

// SegmentKey is the object key of a recording segment.
func SegmentKey(recordingID, filename string) string {
	return path.Join(recordingID, filename)
}

func validKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return fmt.Errorf("archive: invalid key %q", key)
	}
	return nil
}

// DirStore keeps blobs on the local filesystem.
type DirStore struct {
	baseDir string
}

func NewDirStore(baseDir string) (*DirStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to ensure archive dir: %w", err)
	}
	return &DirStore{baseDir: baseDir}, nil
}

func (s *DirStore) Put(ctx context.Context, key, contentType string, data []byte) error {
	if err := validKey(key); err != nil {
		return err
	}
	full := filepath.Join(s.baseDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, full)
}

func (s *DirStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.baseDir, filepath.FromSlash(key)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return data, err
}
