package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/prontolabs/pronto/internal/domain"
)

const tracerName = "github.com/prontolabs/pronto/internal/adapter/otel"

// TracingRepository wraps a domain.OrderRepository with OpenTelemetry
// tracing. Each method creates a span with semantic attributes and records
// errors.
type TracingRepository struct {
	next   domain.OrderRepository
	tracer trace.Tracer
}

// Compile-time check: TracingRepository implements domain.OrderRepository.
var _ domain.OrderRepository = (*TracingRepository)(nil)

// NewTracingRepository creates a tracing decorator around the given repository.
func NewTracingRepository(next domain.OrderRepository) *TracingRepository {
	return &TracingRepository{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (r *TracingRepository) Create(ctx context.Context, order *domain.Order) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.Create",
		trace.WithAttributes(
			attribute.Int64("session.id", order.SessionID),
			attribute.String("order.table_number", order.TableNumber),
		),
	)
	defer span.End()

	err := r.next.Create(ctx, order)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Int64("order.id", order.ID))
	}
	return err
}

func (r *TracingRepository) GetByID(ctx context.Context, id int64) (domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.GetByID",
		trace.WithAttributes(attribute.Int64("order.id", id)),
	)
	defer span.End()

	order, err := r.next.GetByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return order, err
}

func (r *TracingRepository) History(ctx context.Context, orderID int64) ([]domain.StatusHistoryEntry, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.History",
		trace.WithAttributes(attribute.Int64("order.id", orderID)),
	)
	defer span.End()

	entries, err := r.next.History(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Int("result.count", len(entries)))
	}
	return entries, err
}

func (r *TracingRepository) ApplyTransition(ctx context.Context, order domain.Order, from domain.OrderStatus) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.ApplyTransition",
		trace.WithAttributes(
			attribute.Int64("order.id", order.ID),
			attribute.String("order.status.from", string(from)),
			attribute.String("order.status.to", string(order.WorkflowStatus)),
		),
	)
	defer span.End()

	err := r.next.ApplyTransition(ctx, order, from)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
