package domain

import "time"

// OrderStatus represents the workflow state of an order.
type OrderStatus string

const (
	StatusNew             OrderStatus = "new"
	StatusQueued          OrderStatus = "queued"
	StatusPreparing       OrderStatus = "preparing"
	StatusReady           OrderStatus = "ready"
	StatusDelivered       OrderStatus = "delivered"
	StatusAwaitingPayment OrderStatus = "awaiting_payment"
	StatusPaid            OrderStatus = "paid"
	StatusCancelled       OrderStatus = "cancelled"
)

// NonCancelable reports whether an order in this status can never be
// cancelled, regardless of what the policy table says. Paid and cancelled
// orders are terminal for the CANCEL event.
func (s OrderStatus) NonCancelable() bool {
	return s == StatusPaid || s == StatusCancelled
}

// PaymentStatus tracks whether an order has been paid for. It changes only
// as a side effect of a PAY or PAY_DIRECT transition, or is reset on cancel.
type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

// Order is the central workflow entity. Only the state machine mutates
// WorkflowStatus; everything else is set by transition side effects.
type Order struct {
	ID          int64
	SessionID   int64
	TableNumber string

	WorkflowStatus OrderStatus
	PaymentStatus  PaymentStatus

	WaiterID         *int64
	ChefID           *int64
	DeliveryWaiterID *int64

	AcceptedAt       *time.Time
	ChefAcceptedAt   *time.Time
	ReadyAt          *time.Time
	DeliveredAt      *time.Time
	CheckRequestedAt *time.Time
	PaidAt           *time.Time

	PaymentMethod    string
	PaymentReference string
	PaymentMeta      string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewOrder creates an order in the initial "new" state, bound to a dining
// session and its table.
func NewOrder(sessionID int64, tableNumber string) Order {
	now := time.Now().UTC()
	return Order{
		SessionID:      sessionID,
		TableNumber:    tableNumber,
		WorkflowStatus: StatusNew,
		PaymentStatus:  PaymentUnpaid,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// StatusHistoryEntry is one append-only audit record of a status the order
// reached. Entries are never mutated or deleted.
type StatusHistoryEntry struct {
	ID        int64
	OrderID   int64
	Status    OrderStatus
	ChangedAt time.Time
}
