package results

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

const resultsBucket = "results"

// BoltStore keeps results in a local BoltDB file, one nested bucket per
// owner.
type BoltStore struct {
	db *bbolt.DB
}

// OpenBolt opens or creates the database at path.
func OpenBolt(path string) (*BoltStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("results path is required")
	}
	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o755); err != nil {
		return nil, fmt.Errorf("create results directory: %w", err)
	}
	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open results db: %w", err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(resultsBucket))
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create results bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Write(ctx context.Context, owner, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validate(owner, key); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.Bucket([]byte(resultsBucket)).CreateBucketIfNotExists([]byte(owner))
		if err != nil {
			return fmt.Errorf("create owner bucket: %w", err)
		}
		return bucket.Put([]byte(key), value)
	})
}

func (s *BoltStore) Read(ctx context.Context, owner, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validate(owner, key); err != nil {
		return nil, err
	}
	var out []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(resultsBucket)).Bucket([]byte(owner))
		if bucket == nil {
			return ErrNotFound
		}
		payload := bucket.Get([]byte(key))
		if payload == nil {
			return ErrNotFound
		}
		out = append([]byte(nil), payload...)
		return nil
	})
	return out, err
}

func (s *BoltStore) Clear(ctx context.Context, owner, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validate(owner, key); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(resultsBucket)).Bucket([]byte(owner))
		if bucket == nil {
			return nil
		}
		return bucket.Delete([]byte(key))
	})
}

// ClearAll removes the listed keys, or the whole owner bucket when no keys
// are given.
func (s *BoltStore) ClearAll(ctx context.Context, owner string, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if owner == "" {
		return fmt.Errorf("results: owner is required")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket([]byte(resultsBucket))
		bucket := root.Bucket([]byte(owner))
		if bucket == nil {
			return nil
		}
		if len(keys) == 0 {
			return root.DeleteBucket([]byte(owner))
		}
		for _, key := range keys {
			if err := bucket.Delete([]byte(key)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
