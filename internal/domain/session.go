package domain

import "time"

// SessionStatus represents the lifecycle state of a dining session.
type SessionStatus string

const (
	SessionOpen                 SessionStatus = "open"
	SessionAwaitingTip          SessionStatus = "awaiting_tip"
	SessionAwaitingPayment      SessionStatus = "awaiting_payment"
	SessionAwaitingConfirmation SessionStatus = "awaiting_payment_confirmation"
	SessionClosed               SessionStatus = "closed"
	SessionPaid                 SessionStatus = "paid"
)

// ValidSessionStatus reports whether s is one of the defined session states.
func ValidSessionStatus(s SessionStatus) bool {
	switch s {
	case SessionOpen, SessionAwaitingTip, SessionAwaitingPayment,
		SessionAwaitingConfirmation, SessionClosed, SessionPaid:
		return true
	}
	return false
}

// DiningSession is the owning aggregate for an order's table context and
// totals. The order engine only touches the fields listed here.
type DiningSession struct {
	ID          int64
	TableNumber string
	Status      SessionStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewDiningSession opens a session for a table.
func NewDiningSession(tableNumber string) DiningSession {
	now := time.Now().UTC()
	return DiningSession{
		TableNumber: tableNumber,
		Status:      SessionOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
