package river

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/riverqueue/river"

	"github.com/prontolabs/pronto/internal/domain"
)

// StreamConfig names the bounded notification stream the worker feeds. The
// stream is separate from the domain event stream so catch-up readers never
// see notification entries interleaved with domain events.
type StreamConfig struct {
	Stream string
	MaxLen int64
}

// StreamConfigFromEnv builds StreamConfig from environment variables with
// the production defaults.
func StreamConfigFromEnv() StreamConfig {
	cfg := StreamConfig{
		Stream: "pronto:notifications:stream",
		MaxLen: 1000,
	}
	if v := os.Getenv("REDIS_NOTIFICATIONS_STREAM"); v != "" {
		cfg.Stream = v
	}
	if v := os.Getenv("REDIS_NOTIFICATIONS_STREAM_MAXLEN"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxLen = n
		}
	}
	return cfg
}

// NotificationWorker delivers queued notifications: one entry on the
// role-addressed notification stream plus a per-role snapshot so a consumer
// that missed the stream still sees the latest notification for its role.
type NotificationWorker struct {
	river.WorkerDefaults[NotificationJobArgs]

	rdb       goredis.UniversalClient
	snapshots domain.SnapshotStore
	cfg       StreamConfig
}

// NewNotificationWorker creates a worker writing to the given Redis client
// and snapshot store.
func NewNotificationWorker(rdb goredis.UniversalClient, snapshots domain.SnapshotStore, cfg StreamConfig) *NotificationWorker {
	return &NotificationWorker{rdb: rdb, snapshots: snapshots, cfg: cfg}
}

// Work processes a single notification job. A transport error is returned
// so River redelivers on its backoff schedule.
func (w *NotificationWorker) Work(ctx context.Context, job *river.Job[NotificationJobArgs]) error {
	payload, err := json.Marshal(job.Args)
	if err != nil {
		return fmt.Errorf("encoding notification: %w", err)
	}

	err = w.rdb.XAdd(ctx, &goredis.XAddArgs{
		Stream: w.cfg.Stream,
		MaxLen: w.cfg.MaxLen,
		Approx: true,
		Values: map[string]any{
			"type":      "notification:" + job.Args.RecipientRole,
			"payload":   string(payload),
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("appending notification for %q: %w", job.Args.RecipientRole, err)
	}

	if err := w.snapshots.Set(ctx, "notifications", job.Args.RecipientRole, map[string]any{
		"notification_type": job.Args.Type,
		"title":             job.Args.Title,
		"message":           job.Args.Message,
		"data":              job.Args.Data,
		"priority":          job.Args.Priority,
	}); err != nil {
		return err
	}

	slog.InfoContext(ctx, "notification delivered",
		"type", job.Args.Type,
		"role", job.Args.RecipientRole,
		"job_id", job.ID,
		"attempt", job.Attempt,
	)
	return nil
}
