package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for simple conditions without extra context.
var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrSessionNotFound  = errors.New("dining session not found")
	ErrSnapshotNotFound = errors.New("state snapshot not found")

	// ErrConflict is returned when a transition loses a concurrent race on
	// the same order: the status it observed is no longer the stored one.
	ErrConflict = errors.New("conflicting transition on order")

	// ErrTransportDegraded marks event-transport failures on the primary
	// backing. It is logged and absorbed, never surfaced to the caller of a
	// transition.
	ErrTransportDegraded = errors.New("event transport degraded")
)

// InvalidTransitionError is returned when no edge exists from the current
// status for the requested event, or the terminal-state override applies.
type InvalidTransitionError struct {
	Current OrderStatus
	Event   OrderEvent
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("event %q is not valid from status %q", e.Event, e.Current)
}

// UnauthorizedError is returned when the acting scope is not permitted to
// trigger an otherwise valid transition. Allowed lists the scopes the edge
// accepts, so the caller can surface an actionable reason.
type UnauthorizedError struct {
	Scope   Scope
	Event   OrderEvent
	Allowed []Scope
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("scope %q is not authorized for event %q (requires %v)", e.Scope, e.Event, e.Allowed)
}

// JustificationRequiredError is returned when the policy demands a
// justification and none was supplied.
type JustificationRequiredError struct {
	Event OrderEvent
}

func (e *JustificationRequiredError) Error() string {
	return fmt.Sprintf("event %q requires a justification", e.Event)
}

// PayloadError is returned when a transition's side effects need a field the
// request did not carry. It fails before any state mutation.
type PayloadError struct {
	Event OrderEvent
	Field string
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("event %q requires %q", e.Event, e.Field)
}

// PaymentError wraps a payment provider failure for PAY/PAY_DIRECT.
type PaymentError struct {
	Method string
	Err    error
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("payment via %q failed: %v", e.Method, e.Err)
}

func (e *PaymentError) Unwrap() error { return e.Err }
