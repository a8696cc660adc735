package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/prontolabs/pronto/internal/domain"
)

// Compile-time checks for the ports the bus implements.
var (
	_ domain.EventSink   = (*Bus)(nil)
	_ domain.EventReader = (*Bus)(nil)
)

// BusConfig holds the transport names and bounds for the event bus.
type BusConfig struct {
	Channel      string
	Stream       string
	StreamMaxLen int64
	FetchLimit   int
	OpTimeout    time.Duration
}

// maxFetchLimit is the hard cap on a single catch-up read.
const maxFetchLimit = 500

// BusConfigFromEnv builds BusConfig from environment variables with the
// production defaults.
func BusConfigFromEnv() BusConfig {
	return BusConfig{
		Channel:      envOrDefault("REDIS_EVENTS_CHANNEL", "pronto:events"),
		Stream:       envOrDefault("REDIS_EVENTS_STREAM", "pronto:events:stream"),
		StreamMaxLen: int64(envInt("REDIS_EVENTS_STREAM_MAXLEN", 1000)),
		FetchLimit:   envInt("REDIS_EVENTS_FETCH_LIMIT", 100),
		OpTimeout:    envSeconds("REDIS_OP_TIMEOUT", 2*time.Second),
	}
}

// Bus is the event distribution layer. Every committed domain change goes
// three ways: the durable relational mirror first (the outbox record), then
// best-effort fan-out on the pub/sub channel plus the bounded stream, then
// the snapshot buckets. The three effects are independent; a failure in one
// is logged and never blocks another, and nothing here ever errors back
// into the business operation that emitted.
type Bus struct {
	rdb       goredis.UniversalClient
	mirror    domain.EventMirror
	snapshots domain.SnapshotStore
	notifier  domain.Notifier
	cfg       BusConfig
	log       *slog.Logger
}

// NewBus creates a bus on an injected Redis client. The client's lifecycle
// (connect/close) belongs to the caller.
func NewBus(rdb goredis.UniversalClient, mirror domain.EventMirror, snapshots domain.SnapshotStore, notifier domain.Notifier, cfg BusConfig, log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{rdb: rdb, mirror: mirror, snapshots: snapshots, notifier: notifier, cfg: cfg, log: log}
}

// publish runs the mirror append and the live fan-out for one event.
func (b *Bus) publish(ctx context.Context, eventType string, payload map[string]any) {
	event := domain.Event{
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}

	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.cfg.OpTimeout)
	defer cancel()

	// Durable record first: once the mirror row exists, a lost live
	// fan-out is only a late dashboard, recoverable on the next poll.
	if _, err := b.mirror.Append(opCtx, event); err != nil {
		b.log.WarnContext(ctx, "event mirror append failed", "type", eventType, "error", err)
	}

	payloadJSON, err := json.Marshal(event.Payload)
	if err != nil {
		b.log.WarnContext(ctx, "event payload not serializable", "type", eventType, "error", err)
		return
	}
	message, err := json.Marshal(event)
	if err != nil {
		b.log.WarnContext(ctx, "event not serializable", "type", eventType, "error", err)
		return
	}

	pipe := b.rdb.Pipeline()
	pipe.XAdd(opCtx, &goredis.XAddArgs{
		Stream: b.cfg.Stream,
		MaxLen: b.cfg.StreamMaxLen,
		Approx: true,
		Values: map[string]any{
			"type":      event.Type,
			"payload":   string(payloadJSON),
			"timestamp": event.Timestamp.Format(time.RFC3339Nano),
		},
	})
	pipe.Publish(opCtx, b.cfg.Channel, message)
	if _, err := pipe.Exec(opCtx); err != nil {
		b.log.WarnContext(ctx, "live event fan-out failed",
			"type", eventType, "error", fmt.Errorf("%w: %v", domain.ErrTransportDegraded, err))
	}
}

func (b *Bus) snapshot(ctx context.Context, bucket, id string, attrs map[string]any) {
	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.cfg.OpTimeout)
	defer cancel()

	if err := b.snapshots.Set(opCtx, bucket, id, attrs); err != nil {
		b.log.WarnContext(ctx, "snapshot update failed", "bucket", bucket, "id", id, "error", err)
	}
}

func (b *Bus) notify(ctx context.Context, n domain.Notification) {
	if b.notifier == nil {
		return
	}
	if err := b.notifier.Notify(ctx, n); err != nil {
		b.log.WarnContext(ctx, "notification enqueue failed", "type", n.Type, "role", n.RecipientRole, "error", err)
	}
}

func (b *Bus) OrderCreated(ctx context.Context, order domain.Order) {
	ts := time.Now().UTC().Format(time.RFC3339Nano)
	data := map[string]any{
		"order_id":     order.ID,
		"session_id":   order.SessionID,
		"table_number": order.TableNumber,
		"status":       string(order.WorkflowStatus),
		"timestamp":    ts,
	}

	b.publish(ctx, domain.EventTypeOrderCreated, data)

	b.snapshot(ctx, "orders", formatID(order.ID), data)
	b.snapshot(ctx, "sessions", formatID(order.SessionID), map[string]any{
		"session_id":    order.SessionID,
		"last_order_id": order.ID,
		"updated_at":    ts,
	})
	if order.TableNumber != "" {
		b.snapshot(ctx, "tables", order.TableNumber, map[string]any{
			"table_number":      order.TableNumber,
			"active_session_id": order.SessionID,
			"last_order_id":     order.ID,
			"updated_at":        ts,
		})
	}

	b.notify(ctx, domain.Notification{
		Type:          "new_order",
		RecipientRole: domain.ScopeWaiter,
		Title:         "New order",
		Message:       fmt.Sprintf("Order #%d is waiting at table %s", order.ID, order.TableNumber),
		Data:          data,
		Priority:      "normal",
	})
}

func (b *Bus) OrderStatusChanged(ctx context.Context, order domain.Order, previous domain.OrderStatus) {
	ts := time.Now().UTC().Format(time.RFC3339Nano)
	data := map[string]any{
		"order_id":        order.ID,
		"status":          string(order.WorkflowStatus),
		"previous_status": string(previous),
		"session_id":      order.SessionID,
		"table_number":    order.TableNumber,
		"timestamp":       ts,
	}

	b.publish(ctx, domain.EventTypeOrderStatusChanged, data)

	b.snapshot(ctx, "orders", formatID(order.ID), data)
	b.snapshot(ctx, "sessions", formatID(order.SessionID), map[string]any{
		"session_id": order.SessionID,
		"last_order": data,
		"updated_at": ts,
	})
	if order.TableNumber != "" {
		b.snapshot(ctx, "tables", order.TableNumber, map[string]any{
			"table_number": order.TableNumber,
			"last_order":   data,
			"updated_at":   ts,
		})
	}

	switch order.WorkflowStatus {
	case domain.StatusReady:
		b.notify(ctx, domain.Notification{
			Type:          "order_ready",
			RecipientRole: domain.ScopeWaiter,
			Title:         "Order ready",
			Message:       fmt.Sprintf("Order #%d is ready for table %s", order.ID, order.TableNumber),
			Data:          data,
			Priority:      "high",
		})
	case domain.StatusAwaitingPayment:
		b.notify(ctx, domain.Notification{
			Type:          "awaiting_payment",
			RecipientRole: domain.ScopeCashier,
			Title:         "Check requested",
			Message:       fmt.Sprintf("Order #%d awaits payment at table %s", order.ID, order.TableNumber),
			Data:          data,
			Priority:      "normal",
		})
	case domain.StatusQueued:
		b.notify(ctx, domain.Notification{
			Type:          "order_queued",
			RecipientRole: domain.ScopeChef,
			Title:         "Order queued",
			Message:       fmt.Sprintf("Order #%d is queued for the kitchen", order.ID),
			Data:          data,
			Priority:      "normal",
		})
	}
}

func (b *Bus) SessionStatusChanged(ctx context.Context, session domain.DiningSession) {
	ts := time.Now().UTC().Format(time.RFC3339Nano)
	data := map[string]any{
		"session_id":   session.ID,
		"status":       string(session.Status),
		"table_number": session.TableNumber,
		"timestamp":    ts,
	}

	b.publish(ctx, domain.EventTypeSessionStatusChanged, data)

	b.snapshot(ctx, "sessions", formatID(session.ID), map[string]any{
		"session_id": session.ID,
		"status":     string(session.Status),
		"updated_at": ts,
	})
}

func (b *Bus) WaiterCalled(ctx context.Context, call domain.WaiterCall) {
	ts := time.Now().UTC().Format(time.RFC3339Nano)
	data := map[string]any{
		"call_id":       call.CallID,
		"session_id":    call.SessionID,
		"table_number":  call.TableNumber,
		"status":        call.Status,
		"call_type":     call.CallType,
		"order_numbers": call.OrderNumbers,
		"waiter_id":     call.WaiterID,
		"created_at":    call.CreatedAt.Format(time.RFC3339Nano),
		"timestamp":     ts,
	}

	b.publish(ctx, domain.EventTypeWaiterCall, data)

	b.snapshot(ctx, "tables", call.TableNumber, map[string]any{
		"table_number": call.TableNumber,
		"active_call":  data,
		"updated_at":   ts,
	})

	target := "broadcast"
	if call.WaiterID != nil {
		target = formatID(*call.WaiterID)
	}
	b.snapshot(ctx, "notifications", target, data)

	b.notify(ctx, domain.Notification{
		Type:          "waiter_call",
		RecipientRole: domain.ScopeWaiter,
		Title:         "Table calling",
		Message:       fmt.Sprintf("Table %s is calling a waiter", call.TableNumber),
		Data:          data,
		Priority:      "high",
	})
}

func (b *Bus) SupervisorCalled(ctx context.Context, call domain.SupervisorCall) {
	ts := time.Now().UTC().Format(time.RFC3339Nano)
	data := map[string]any{
		"waiter_id":    call.EmployeeID,
		"waiter_name":  call.EmployeeName,
		"table_number": call.TableNumber,
		"order_id":     call.OrderID,
		"timestamp":    ts,
	}

	b.publish(ctx, domain.EventTypeSupervisorCall, data)
	b.snapshot(ctx, "notifications", "admin", data)

	b.notify(ctx, domain.Notification{
		Type:          "supervisor_call",
		RecipientRole: domain.ScopeAdmin,
		Title:         "Assistance requested",
		Message:       fmt.Sprintf("%s requests supervisor assistance", call.EmployeeName),
		Data:          data,
		Priority:      "high",
	})
}

// ReadSince returns events strictly after the cursor, capped at limit. The
// bounded Redis stream is the primary backing; on any transport error the
// read degrades transparently to the durable mirror so polling clients keep
// catching up. A cursor older than the stream's retention window yields
// whatever is retained, not an error. Mirror-issued cursors ("m:<id>") are
// served from the mirror, which retains everything; a stream cursor held
// across an outage re-anchors at the start of the mirror's history so
// nothing written during the outage is skipped.
func (b *Bus) ReadSince(ctx context.Context, cursor string, limit int) (string, []domain.Event, error) {
	if limit <= 0 {
		limit = b.cfg.FetchLimit
	}
	if limit > maxFetchLimit {
		limit = maxFetchLimit
	}
	next := normalizeCursor(cursor)

	if isMirrorCursor(next) {
		return b.readFromMirror(ctx, next, limit)
	}

	start := "-"
	if next != zeroCursor {
		// "(" makes the range start exclusive.
		start = "(" + next
	}

	entries, err := b.rdb.XRangeN(ctx, b.cfg.Stream, start, "+", int64(limit)).Result()
	if err != nil {
		b.log.WarnContext(ctx, "stream read degraded to mirror",
			"error", fmt.Errorf("%w: %v", domain.ErrTransportDegraded, err))
		return b.readFromMirror(ctx, next, limit)
	}

	events := make([]domain.Event, 0, len(entries))
	for _, entry := range entries {
		events = append(events, decodeStreamEntry(entry))
		next = entry.ID
	}

	return next, events, nil
}

func (b *Bus) readFromMirror(ctx context.Context, cursor string, limit int) (string, []domain.Event, error) {
	events, err := b.mirror.ReadAfter(ctx, cursorSequence(cursor), limit)
	if err != nil {
		return cursor, nil, fmt.Errorf("reading event mirror: %w", err)
	}

	next := cursor
	if len(events) > 0 {
		next = events[len(events)-1].ID
	}
	return next, events, nil
}

func decodeStreamEntry(entry goredis.XMessage) domain.Event {
	event := domain.Event{ID: entry.ID}

	if v, ok := entry.Values["type"].(string); ok {
		event.Type = v
	}
	if v, ok := entry.Values["timestamp"].(string); ok {
		if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
			event.Timestamp = ts
		}
	}
	if v, ok := entry.Values["payload"].(string); ok && v != "" {
		if err := json.Unmarshal([]byte(v), &event.Payload); err != nil {
			event.Payload = map[string]any{"raw": v}
		}
	}

	return event
}

func formatID(id int64) string {
	return fmt.Sprintf("%d", id)
}
