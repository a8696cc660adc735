package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/prontolabs/pronto/internal/domain"
)

// TracingSink wraps a domain.EventSink with OpenTelemetry tracing. The sink
// contract is fire-and-forget, so spans here carry attributes but never an
// error status; transport degradation shows up in the wrapped sink's logs.
type TracingSink struct {
	next   domain.EventSink
	tracer trace.Tracer
}

// Compile-time check: TracingSink implements domain.EventSink.
var _ domain.EventSink = (*TracingSink)(nil)

// NewTracingSink creates a tracing decorator around the given sink.
func NewTracingSink(next domain.EventSink) *TracingSink {
	return &TracingSink{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (s *TracingSink) OrderCreated(ctx context.Context, order domain.Order) {
	ctx, span := s.tracer.Start(ctx, "EventSink.OrderCreated",
		trace.WithAttributes(
			attribute.Int64("order.id", order.ID),
			attribute.Int64("session.id", order.SessionID),
		),
	)
	defer span.End()

	s.next.OrderCreated(ctx, order)
}

func (s *TracingSink) OrderStatusChanged(ctx context.Context, order domain.Order, previous domain.OrderStatus) {
	ctx, span := s.tracer.Start(ctx, "EventSink.OrderStatusChanged",
		trace.WithAttributes(
			attribute.Int64("order.id", order.ID),
			attribute.String("order.status.from", string(previous)),
			attribute.String("order.status.to", string(order.WorkflowStatus)),
		),
	)
	defer span.End()

	s.next.OrderStatusChanged(ctx, order, previous)
}

func (s *TracingSink) SessionStatusChanged(ctx context.Context, session domain.DiningSession) {
	ctx, span := s.tracer.Start(ctx, "EventSink.SessionStatusChanged",
		trace.WithAttributes(
			attribute.Int64("session.id", session.ID),
			attribute.String("session.status", string(session.Status)),
		),
	)
	defer span.End()

	s.next.SessionStatusChanged(ctx, session)
}

func (s *TracingSink) WaiterCalled(ctx context.Context, call domain.WaiterCall) {
	ctx, span := s.tracer.Start(ctx, "EventSink.WaiterCalled",
		trace.WithAttributes(
			attribute.Int64("session.id", call.SessionID),
			attribute.String("call.type", call.CallType),
		),
	)
	defer span.End()

	s.next.WaiterCalled(ctx, call)
}

func (s *TracingSink) SupervisorCalled(ctx context.Context, call domain.SupervisorCall) {
	ctx, span := s.tracer.Start(ctx, "EventSink.SupervisorCalled",
		trace.WithAttributes(
			attribute.Int64("employee.id", call.EmployeeID),
		),
	)
	defer span.End()

	s.next.SupervisorCalled(ctx, call)
}
