// Package store persists frozen sessions in redis so a dialogue can resume
// after a process restart or on another instance.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/convograph/convograph/dialog"
)

// ErrNotFound is returned when no snapshot exists for the session.
var ErrNotFound = errors.New("store: snapshot not found")

// SnapshotStore keeps session snapshots in redis under a per-robot key
// space, expiring them with the same TTL the in-memory session cache uses.
type SnapshotStore struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger *zap.Logger
}

func NewSnapshotStore(client redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *SnapshotStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotStore{
		client: client,
		ttl:    ttl,
		logger: logger.With(zap.String("component", "snapshot_store")),
	}
}

func key(robotCode, sessionID string) string {
	return fmt.Sprintf("convograph:session:%s:%s", robotCode, sessionID)
}

// Save writes one snapshot, refreshing its TTL.
func (s *SnapshotStore) Save(ctx context.Context, snap *dialog.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.client.Set(ctx, key(snap.RobotCode, snap.SessionID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("store snapshot: %w", err)
	}
	s.logger.Debug("snapshot saved",
		zap.String("robot", snap.RobotCode), zap.String("session_id", snap.SessionID))
	return nil
}

// Load reads one snapshot, or ErrNotFound.
func (s *SnapshotStore) Load(ctx context.Context, robotCode, sessionID string) (*dialog.Snapshot, error) {
	payload, err := s.client.Get(ctx, key(robotCode, sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	var snap dialog.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

// Delete drops a stored snapshot. Deleting a missing key is not an error.
func (s *SnapshotStore) Delete(ctx context.Context, robotCode, sessionID string) error {
	if err := s.client.Del(ctx, key(robotCode, sessionID)).Err(); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}
