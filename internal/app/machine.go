package app

import (
	"time"

	"github.com/prontolabs/pronto/internal/domain"
)

// TransitionPayload carries the optional per-event data a transition may
// need. Only PAY/PAY_DIRECT read it today.
type TransitionPayload struct {
	PaymentMethod    string
	PaymentReference string
	PaymentMeta      string
}

// TransitionRequest is one inbound request to move an order through the
// workflow. Exactly one transition is applied per request.
type TransitionRequest struct {
	OrderID       int64
	Event         domain.OrderEvent
	ActorScope    domain.Scope
	ActorID       *int64
	Payload       TransitionPayload
	Justification string
}

// validateTransition runs the policy checks in their fixed order: edge
// existence, the terminal-cancel hard override, actor scope, justification.
func validateTransition(policy *domain.PolicyTable, current domain.OrderStatus, req TransitionRequest) error {
	p, ok := policy.Lookup(current, req.Event)
	if !ok {
		return &domain.InvalidTransitionError{Current: current, Event: req.Event}
	}

	// Terminal states are never cancelable, even if a policy entry exists.
	if current.NonCancelable() && req.Event == domain.EventCancel {
		return &domain.InvalidTransitionError{Current: current, Event: req.Event}
	}

	if !p.Allows(req.ActorScope) {
		return &domain.UnauthorizedError{Scope: req.ActorScope, Event: req.Event, Allowed: p.AllowedScopes}
	}

	if p.RequiresJustification && req.Justification == "" {
		return &domain.JustificationRequiredError{Event: req.Event}
	}

	return nil
}

// applySideEffects mutates the order copy for the given event. Effects are
// deterministic in (order, event, actor, payload); persistence happens later
// in the same unit of work, so a returned error leaves no trace.
func applySideEffects(order *domain.Order, req TransitionRequest, now time.Time) error {
	switch req.Event {
	case domain.EventAcceptOrQueue:
		if req.ActorID == nil {
			return &domain.PayloadError{Event: req.Event, Field: "actor_id"}
		}
		order.WaiterID = req.ActorID
		order.AcceptedAt = &now

	case domain.EventKitchenStart:
		if req.ActorID == nil {
			return &domain.PayloadError{Event: req.Event, Field: "actor_id"}
		}
		order.ChefID = req.ActorID
		order.ChefAcceptedAt = &now

	case domain.EventKitchenComplete, domain.EventSkipKitchen:
		order.ReadyAt = &now

	case domain.EventDeliver:
		if req.ActorID == nil {
			return &domain.PayloadError{Event: req.Event, Field: "actor_id"}
		}
		order.DeliveryWaiterID = req.ActorID
		order.DeliveredAt = &now

	case domain.EventMarkAwaitingPayment:
		order.CheckRequestedAt = &now

	case domain.EventPay, domain.EventPayDirect:
		if req.Payload.PaymentMethod == "" {
			return &domain.PayloadError{Event: req.Event, Field: "payment_method"}
		}
		order.PaymentMethod = req.Payload.PaymentMethod
		order.PaymentReference = req.Payload.PaymentReference
		if req.Payload.PaymentMeta != "" {
			order.PaymentMeta = req.Payload.PaymentMeta
		}
		order.PaidAt = &now
		order.PaymentStatus = domain.PaymentPaid

	case domain.EventCancel:
		order.PaymentStatus = domain.PaymentUnpaid
		// No work has started yet in new/queued, so assignments are cleared.
		// Later cancellations keep them: the work already happened and stays
		// attributed.
		if order.WorkflowStatus == domain.StatusNew || order.WorkflowStatus == domain.StatusQueued {
			order.WaiterID = nil
			order.AcceptedAt = nil
			order.ChefID = nil
		}

	default:
		return &domain.InvalidTransitionError{Current: order.WorkflowStatus, Event: req.Event}
	}

	return nil
}
