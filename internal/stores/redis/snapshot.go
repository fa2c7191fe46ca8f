package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"gitlab.com/nevasik7/alerting/logger"
)

// SnapshotStore keeps the current week's serialized rating state in Redis so
// a restarted instance can warm-start instead of losing the week so far.
// One key per instance prefix; a new snapshot overwrites the old.
type SnapshotStore struct {
	log logger.Logger
	rdb *Client
	key string
}

func NewSnapshotStore(log logger.Logger, rdb *Client, prefix string) *SnapshotStore {
	if prefix == "" {
		prefix = "traderboard"
	}
	return &SnapshotStore{
		log: log,
		rdb: rdb,
		key: prefix + ":week_snapshot",
	}
}

func (s *SnapshotStore) Save(ctx context.Context, data []byte) error {
	if len(data) == 0 {
		return errors.New("empty snapshot data")
	}

	// no TTL: a stale snapshot for a past week is rejected on restore anyway
	if err := s.rdb.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save week snapshot to redis: %w", err)
	}

	s.log.Infof("Saved week snapshot to redis, key=%s, %d bytes", s.key, len(data))
	return nil
}

// Load returns nil data without error when no snapshot exists.
func (s *SnapshotStore) Load(ctx context.Context) ([]byte, error) {
	b, err := s.rdb.Get(ctx, s.key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load week snapshot from redis: %w", err)
	}
	return b, nil
}

func (s *SnapshotStore) Health(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
