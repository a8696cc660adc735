package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/prontolabs/pronto/internal/domain"
)

// Compile-time check: SnapshotStore implements domain.SnapshotStore.
var _ domain.SnapshotStore = (*SnapshotStore)(nil)

// SnapshotConfig holds the key prefix and per-bucket TTLs for the state
// snapshot store.
type SnapshotConfig struct {
	KeyPrefix  string
	TTLs       map[string]time.Duration
	DefaultTTL time.Duration
}

// SnapshotConfigFromEnv builds SnapshotConfig from environment variables
// with the production defaults.
func SnapshotConfigFromEnv() SnapshotConfig {
	return SnapshotConfig{
		KeyPrefix: envOrDefault("REDIS_KEY_PREFIX", "pronto"),
		TTLs: map[string]time.Duration{
			"orders":        envSeconds("REDIS_ORDERS_TTL", 24*time.Hour),
			"sessions":      envSeconds("REDIS_SESSIONS_TTL", 4*time.Hour),
			"tables":        envSeconds("REDIS_TABLES_TTL", 4*time.Hour),
			"notifications": envSeconds("REDIS_NOTIFICATIONS_TTL", time.Hour),
		},
		DefaultTTL: time.Hour,
	}
}

// SnapshotStore holds last-known state per {bucket, id} in Redis under
// "<prefix>:<bucket>:<id>" keys. Writes overwrite unconditionally and
// refresh the bucket's TTL; a key that no event refreshes simply expires.
type SnapshotStore struct {
	rdb goredis.UniversalClient
	cfg SnapshotConfig
}

// NewSnapshotStore creates a snapshot store on an injected client. The
// client's lifecycle belongs to the caller.
func NewSnapshotStore(rdb goredis.UniversalClient, cfg SnapshotConfig) *SnapshotStore {
	return &SnapshotStore{rdb: rdb, cfg: cfg}
}

type storedSnapshot struct {
	Attributes map[string]any `json:"attributes"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

func (s *SnapshotStore) key(bucket, id string) string {
	return fmt.Sprintf("%s:%s:%s", s.cfg.KeyPrefix, bucket, id)
}

func (s *SnapshotStore) ttl(bucket string) time.Duration {
	if ttl, ok := s.cfg.TTLs[bucket]; ok {
		return ttl
	}
	return s.cfg.DefaultTTL
}

// Set overwrites the snapshot for {bucket, id}. Last write wins per key; no
// cross-key coordination is needed.
func (s *SnapshotStore) Set(ctx context.Context, bucket, id string, attrs map[string]any) error {
	data, err := json.Marshal(storedSnapshot{
		Attributes: attrs,
		UpdatedAt:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encoding snapshot %s/%s: %w", bucket, id, err)
	}

	if err := s.rdb.Set(ctx, s.key(bucket, id), data, s.ttl(bucket)).Err(); err != nil {
		return fmt.Errorf("%w: writing snapshot %s/%s: %v", domain.ErrTransportDegraded, bucket, id, err)
	}
	return nil
}

// Get returns the last known state, or domain.ErrSnapshotNotFound when the
// key expired or was never set.
func (s *SnapshotStore) Get(ctx context.Context, bucket, id string) (domain.Snapshot, error) {
	data, err := s.rdb.Get(ctx, s.key(bucket, id)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return domain.Snapshot{}, domain.ErrSnapshotNotFound
		}
		return domain.Snapshot{}, fmt.Errorf("%w: reading snapshot %s/%s: %v", domain.ErrTransportDegraded, bucket, id, err)
	}

	var stored storedSnapshot
	if err := json.Unmarshal(data, &stored); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decoding snapshot %s/%s: %w", bucket, id, err)
	}

	return domain.Snapshot{
		Bucket:     bucket,
		ID:         id,
		Attributes: stored.Attributes,
		UpdatedAt:  stored.UpdatedAt,
	}, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envSeconds(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
