package domain

import (
	"context"
	"time"
)

// OrderRepository defines the persistence contract for orders and their
// status history.
type OrderRepository interface {
	// Create persists a new order and its initial history entry, assigning
	// the order's ID.
	Create(ctx context.Context, order *Order) error
	GetByID(ctx context.Context, id int64) (Order, error)
	History(ctx context.Context, orderID int64) ([]StatusHistoryEntry, error)

	// ApplyTransition commits a validated transition atomically: the status
	// change plus side-effect fields, and the history append, in one unit of
	// work. The update is conditional on the stored status still being
	// `from`; if another transition won the race, ErrConflict is returned
	// and nothing is written.
	ApplyTransition(ctx context.Context, order Order, from OrderStatus) error
}

// SessionRepository defines the persistence contract for dining sessions.
type SessionRepository interface {
	Create(ctx context.Context, session *DiningSession) error
	GetByID(ctx context.Context, id int64) (DiningSession, error)
	UpdateStatus(ctx context.Context, id int64, status SessionStatus) (DiningSession, error)
}

// TransitionValidator checks that an event is a valid edge from the current
// status and returns the destination status.
type TransitionValidator interface {
	Apply(ctx context.Context, current OrderStatus, event OrderEvent) (OrderStatus, error)
}

// EventSink receives committed domain changes for distribution. Every method
// is fire-and-forget: delivery failures are absorbed by the implementation
// and must never propagate back into the business operation that emitted.
type EventSink interface {
	OrderCreated(ctx context.Context, order Order)
	OrderStatusChanged(ctx context.Context, order Order, previous OrderStatus)
	SessionStatusChanged(ctx context.Context, session DiningSession)
	WaiterCalled(ctx context.Context, call WaiterCall)
	SupervisorCalled(ctx context.Context, call SupervisorCall)
}

// EventReader serves cursor-based catch-up reads for polling consumers.
// Re-presenting the returned cursor yields only events strictly after it.
type EventReader interface {
	ReadSince(ctx context.Context, cursor string, limit int) (next string, events []Event, err error)
}

// EventMirror is the durable relational backing for the event stream. Append
// assigns the strictly increasing identifier used as the fallback cursor.
type EventMirror interface {
	Append(ctx context.Context, event Event) (int64, error)
	ReadAfter(ctx context.Context, afterID int64, limit int) ([]Event, error)
}

// Snapshot is the last-known state of one entity in a bucket.
type Snapshot struct {
	Bucket     string         `json:"bucket"`
	ID         string         `json:"id"`
	Attributes map[string]any `json:"attributes"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// SnapshotStore holds last-known state per {bucket, id} with a per-bucket
// TTL. Writes overwrite unconditionally; each key's last-write-wins
// semantics make cross-key locking unnecessary.
type SnapshotStore interface {
	Set(ctx context.Context, bucket, id string, attrs map[string]any) error
	Get(ctx context.Context, bucket, id string) (Snapshot, error)
}

// Notifier dispatches role-addressed notifications derived from events.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// PaymentResult is what a payment provider reports for a processed order.
type PaymentResult struct {
	Reference string
	Meta      map[string]any
}

// PaymentProvider is the opaque payment capability consumed by the PAY and
// PAY_DIRECT flows. The state machine treats its result as already-validated
// input to the transition.
type PaymentProvider interface {
	Process(ctx context.Context, order Order, method string) (PaymentResult, error)
}
