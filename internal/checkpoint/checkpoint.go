// Package checkpoint records which input files a batch job has already
// processed, so an interrupted run can resume without reprocessing. The
// records live in Redis under a TTL; an expired checkpoint just means the
// file is selected again, which is safe because selection is deterministic.
package checkpoint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	pkgerrors "github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/pkg/errors"
	"github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/pkg/redis"
)

const keyPrefix = "dilepton:checkpoint:"

// Store tracks per-file completion markers in Redis.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore creates a checkpoint store. ttl bounds how long completion
// markers are kept.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Store{client: client, ttl: ttl}
}

// key hashes the file path so arbitrary paths make safe Redis keys.
func key(path string) string {
	sum := sha256.Sum256([]byte(path))
	return keyPrefix + hex.EncodeToString(sum[:16])
}

// IsDone reports whether the file was already marked processed.
func (s *Store) IsDone(ctx context.Context, path string) (bool, error) {
	_, err := s.client.Get(ctx, key(path))
	if redis.IsNilError(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: reading checkpoint for %s: %v",
			pkgerrors.ErrCheckpointFailed, path, err)
	}
	return true, nil
}

// MarkDone records the file as fully processed.
func (s *Store) MarkDone(ctx context.Context, path string) error {
	if err := s.client.Set(ctx, key(path), time.Now().UTC().Format(time.RFC3339), s.ttl); err != nil {
		return fmt.Errorf("%w: writing checkpoint for %s: %v",
			pkgerrors.ErrCheckpointFailed, path, err)
	}
	return nil
}

// Clear removes all checkpoint markers, forcing the next run to reprocess
// every input file.
func (s *Store) Clear(ctx context.Context) error {
	keys, err := s.client.Keys(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("%w: listing checkpoints: %v", pkgerrors.ErrCheckpointFailed, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...); err != nil {
		return fmt.Errorf("%w: clearing checkpoints: %v", pkgerrors.ErrCheckpointFailed, err)
	}
	return nil
}
