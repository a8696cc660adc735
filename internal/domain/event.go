package domain

import "time"

// OrderEvent represents an action that triggers an order state transition.
type OrderEvent string

const (
	EventAcceptOrQueue       OrderEvent = "accept_or_queue"
	EventKitchenStart        OrderEvent = "kitchen_start"
	EventKitchenComplete     OrderEvent = "kitchen_complete"
	EventSkipKitchen         OrderEvent = "skip_kitchen"
	EventDeliver             OrderEvent = "deliver"
	EventMarkAwaitingPayment OrderEvent = "mark_awaiting_payment"
	EventPay                 OrderEvent = "pay"
	EventPayDirect           OrderEvent = "pay_direct"
	EventCancel              OrderEvent = "cancel"
)

// TargetStatus returns the status an event transitions to. It is a total
// function over the defined events: every event has exactly one target, so
// the machine's outcome space stays enumerable independent of the policy
// table. The second return is false for unknown events.
func TargetStatus(event OrderEvent) (OrderStatus, bool) {
	switch event {
	case EventAcceptOrQueue:
		return StatusQueued, true
	case EventKitchenStart:
		return StatusPreparing, true
	case EventKitchenComplete, EventSkipKitchen:
		return StatusReady, true
	case EventDeliver:
		return StatusDelivered, true
	case EventMarkAwaitingPayment:
		return StatusAwaitingPayment, true
	case EventPay, EventPayDirect:
		return StatusPaid, true
	case EventCancel:
		return StatusCancelled, true
	}
	return "", false
}

// Event type names carried on the distribution bus.
const (
	EventTypeOrderCreated         = "orders.created"
	EventTypeOrderStatusChanged   = "orders.status_changed"
	EventTypeSessionStatusChanged = "sessions.status_changed"
	EventTypeWaiterCall           = "customers.waiter_call"
	EventTypeSupervisorCall       = "staff.supervisor_call"
)

// Event is a domain event as it travels over the pub/sub channel and the
// durable stream. Events are immutable once emitted. ID is the stream cursor
// assigned by whichever backing stored the event; it is empty on the live
// pub/sub path.
type Event struct {
	ID        string         `json:"id,omitempty"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
	Timestamp time.Time      `json:"timestamp"`
}

// WaiterCall is a customer's request for waiter attention at a table.
type WaiterCall struct {
	CallID       int64
	SessionID    int64
	TableNumber  string
	Status       string
	CallType     string
	OrderNumbers []int64
	WaiterID     *int64
	CreatedAt    time.Time
}

// SupervisorCall is a staff member's request for supervisor assistance.
type SupervisorCall struct {
	EmployeeID   int64
	EmployeeName string
	TableNumber  string
	OrderID      *int64
	CreatedAt    time.Time
}

// Notification is a role-addressed message derived from a domain event,
// delivered on the notification stream and snapshotted per recipient.
type Notification struct {
	Type          string         `json:"notification_type"`
	RecipientRole Scope          `json:"recipient_role"`
	Title         string         `json:"title"`
	Message       string         `json:"message"`
	Data          map[string]any `json:"data,omitempty"`
	Priority      string         `json:"priority"`
}
