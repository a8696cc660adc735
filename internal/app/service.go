package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prontolabs/pronto/internal/domain"
)

// OrderService orchestrates the order lifecycle: it validates and applies
// transitions, owns order/session creation, and hands committed changes to
// the event sink.
type OrderService struct {
	orders    domain.OrderRepository
	sessions  domain.SessionRepository
	validator domain.TransitionValidator
	policy    *domain.PolicyTable
	events    domain.EventSink
	reader    domain.EventReader
	snapshots domain.SnapshotStore
	payments  domain.PaymentProvider
}

// NewOrderService creates a service with the given adapters. The policy
// table is fixed for the life of the service.
func NewOrderService(
	orders domain.OrderRepository,
	sessions domain.SessionRepository,
	validator domain.TransitionValidator,
	policy *domain.PolicyTable,
	events domain.EventSink,
	reader domain.EventReader,
	snapshots domain.SnapshotStore,
	payments domain.PaymentProvider,
) *OrderService {
	return &OrderService{
		orders:    orders,
		sessions:  sessions,
		validator: validator,
		policy:    policy,
		events:    events,
		reader:    reader,
		snapshots: snapshots,
		payments:  payments,
	}
}

// Apply validates and applies exactly one state transition. On success the
// order's new state has been committed together with its history entry, and
// the change has been handed to the event sink. All validation errors are
// surfaced synchronously; a lost concurrent race returns
// domain.ErrConflict.
func (s *OrderService) Apply(ctx context.Context, req TransitionRequest) (domain.Order, error) {
	if _, ok := domain.TargetStatus(req.Event); !ok {
		return domain.Order{}, &domain.InvalidTransitionError{Event: req.Event}
	}
	if !domain.ValidScope(req.ActorScope) {
		return domain.Order{}, &domain.UnauthorizedError{Scope: req.ActorScope, Event: req.Event}
	}

	order, err := s.orders.GetByID(ctx, req.OrderID)
	if err != nil {
		return domain.Order{}, err
	}

	if err := validateTransition(s.policy, order.WorkflowStatus, req); err != nil {
		return domain.Order{}, err
	}

	target, err := s.validator.Apply(ctx, order.WorkflowStatus, req.Event)
	if err != nil {
		return domain.Order{}, err
	}

	if req.Event == domain.EventPay || req.Event == domain.EventPayDirect {
		if err := s.processPayment(ctx, order, &req); err != nil {
			return domain.Order{}, err
		}
	}

	now := time.Now().UTC()
	previous := order.WorkflowStatus

	if err := applySideEffects(&order, req, now); err != nil {
		return domain.Order{}, err
	}

	order.WorkflowStatus = target
	order.UpdatedAt = now

	if err := s.orders.ApplyTransition(ctx, order, previous); err != nil {
		return domain.Order{}, err
	}

	s.events.OrderStatusChanged(ctx, order, previous)

	return order, nil
}

// processPayment charges through the payment provider when the caller has
// not already supplied a reference. The provider's result is recorded as
// already-validated payload for the transition.
func (s *OrderService) processPayment(ctx context.Context, order domain.Order, req *TransitionRequest) error {
	if req.Payload.PaymentMethod == "" {
		return &domain.PayloadError{Event: req.Event, Field: "payment_method"}
	}
	if req.Payload.PaymentReference != "" || s.payments == nil {
		return nil
	}

	result, err := s.payments.Process(ctx, order, req.Payload.PaymentMethod)
	if err != nil {
		return &domain.PaymentError{Method: req.Payload.PaymentMethod, Err: err}
	}

	req.Payload.PaymentReference = result.Reference
	if len(result.Meta) > 0 {
		meta, err := json.Marshal(result.Meta)
		if err != nil {
			return fmt.Errorf("encoding payment meta: %w", err)
		}
		req.Payload.PaymentMeta = string(meta)
	}
	return nil
}

// CreateOrder persists a new order in its session's table context and
// publishes the creation event.
func (s *OrderService) CreateOrder(ctx context.Context, sessionID int64) (domain.Order, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return domain.Order{}, err
	}

	order := domain.NewOrder(session.ID, session.TableNumber)
	if err := s.orders.Create(ctx, &order); err != nil {
		return domain.Order{}, fmt.Errorf("creating order: %w", err)
	}

	s.events.OrderCreated(ctx, order)

	return order, nil
}

// GetOrder returns an order with its status history.
func (s *OrderService) GetOrder(ctx context.Context, id int64) (domain.Order, []domain.StatusHistoryEntry, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return domain.Order{}, nil, err
	}
	history, err := s.orders.History(ctx, id)
	if err != nil {
		return domain.Order{}, nil, err
	}
	return order, history, nil
}

// OpenSession opens a dining session for a table.
func (s *OrderService) OpenSession(ctx context.Context, tableNumber string) (domain.DiningSession, error) {
	session := domain.NewDiningSession(tableNumber)
	if err := s.sessions.Create(ctx, &session); err != nil {
		return domain.DiningSession{}, fmt.Errorf("creating session: %w", err)
	}
	return session, nil
}

// sessionStatusScopes guards who may move a session between states.
var sessionStatusScopes = []domain.Scope{domain.ScopeCashier, domain.ScopeAdmin, domain.ScopeSystem}

// ChangeSessionStatus updates a session's status and publishes the change.
func (s *OrderService) ChangeSessionStatus(ctx context.Context, id int64, status domain.SessionStatus, actor domain.Scope) (domain.DiningSession, error) {
	if !domain.ValidSessionStatus(status) {
		return domain.DiningSession{}, fmt.Errorf("unknown session status %q", status)
	}

	allowed := false
	for _, scope := range sessionStatusScopes {
		if scope == actor {
			allowed = true
			break
		}
	}
	if !allowed {
		return domain.DiningSession{}, &domain.UnauthorizedError{Scope: actor, Allowed: sessionStatusScopes}
	}

	session, err := s.sessions.UpdateStatus(ctx, id, status)
	if err != nil {
		return domain.DiningSession{}, err
	}

	s.events.SessionStatusChanged(ctx, session)

	return session, nil
}

// CallWaiter records a customer's waiter call for a session and broadcasts
// it. Calls live only in the event stream and snapshot store; their ids are
// ephemeral within the retention window.
func (s *OrderService) CallWaiter(ctx context.Context, sessionID int64, callType string, orderNumbers []int64) (domain.WaiterCall, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return domain.WaiterCall{}, err
	}

	call := domain.WaiterCall{
		CallID:       time.Now().UnixMilli(),
		SessionID:    session.ID,
		TableNumber:  session.TableNumber,
		Status:       "pending",
		CallType:     callType,
		OrderNumbers: orderNumbers,
		CreatedAt:    time.Now().UTC(),
	}

	s.events.WaiterCalled(ctx, call)

	return call, nil
}

// CallSupervisor broadcasts a staff request for supervisor assistance.
func (s *OrderService) CallSupervisor(ctx context.Context, employeeID int64, employeeName, tableNumber string, orderID *int64) domain.SupervisorCall {
	call := domain.SupervisorCall{
		EmployeeID:   employeeID,
		EmployeeName: employeeName,
		TableNumber:  tableNumber,
		OrderID:      orderID,
		CreatedAt:    time.Now().UTC(),
	}

	s.events.SupervisorCalled(ctx, call)

	return call
}

// Events serves catch-up reads for polling consumers.
func (s *OrderService) Events(ctx context.Context, cursor string, limit int) (string, []domain.Event, error) {
	return s.reader.ReadSince(ctx, cursor, limit)
}

// State returns the last known snapshot for an entity.
func (s *OrderService) State(ctx context.Context, bucket, id string) (domain.Snapshot, error) {
	return s.snapshots.Get(ctx, bucket, id)
}
