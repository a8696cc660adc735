package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/prontolabs/pronto/internal/domain"
)

// Compile-time check: OrderRepository implements domain.OrderRepository.
var _ domain.OrderRepository = (*OrderRepository)(nil)

// OrderRepository persists orders and their append-only status history.
type OrderRepository struct {
	db *sql.DB
}

const orderColumns = `id, session_id, table_number, workflow_status, payment_status,
	waiter_id, chef_id, delivery_waiter_id,
	accepted_at, chef_accepted_at, ready_at, delivered_at, check_requested_at, paid_at,
	payment_method, payment_reference, payment_meta, created_at, updated_at`

// Create persists a new order and its initial history entry in one tx.
func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO orders (session_id, table_number, workflow_status, payment_status,
			waiter_id, chef_id, delivery_waiter_id,
			accepted_at, chef_accepted_at, ready_at, delivered_at, check_requested_at, paid_at,
			payment_method, payment_reference, payment_meta, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.SessionID, o.TableNumber, string(o.WorkflowStatus), string(o.PaymentStatus),
		o.WaiterID, o.ChefID, o.DeliveryWaiterID,
		formatNullTime(o.AcceptedAt), formatNullTime(o.ChefAcceptedAt), formatNullTime(o.ReadyAt),
		formatNullTime(o.DeliveredAt), formatNullTime(o.CheckRequestedAt), formatNullTime(o.PaidAt),
		o.PaymentMethod, o.PaymentReference, o.PaymentMeta,
		formatTime(o.CreatedAt), formatTime(o.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting order: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading order id: %w", err)
	}
	o.ID = id

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO order_status_history (order_id, status, changed_at) VALUES (?, ?, ?)`,
		o.ID, string(o.WorkflowStatus), formatTime(o.CreatedAt),
	); err != nil {
		return fmt.Errorf("inserting initial history: %w", err)
	}

	return tx.Commit()
}

func (r *OrderRepository) GetByID(ctx context.Context, id int64) (domain.Order, error) {
	return scanOrder(r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = ?`, id,
	))
}

// ApplyTransition commits a transition atomically. The UPDATE is guarded on
// the pre-transition status, so a concurrent writer that got there first
// leaves zero rows affected and the loser gets ErrConflict with nothing
// written.
func (r *OrderRepository) ApplyTransition(ctx context.Context, o domain.Order, from domain.OrderStatus) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE orders SET workflow_status = ?, payment_status = ?,
			waiter_id = ?, chef_id = ?, delivery_waiter_id = ?,
			accepted_at = ?, chef_accepted_at = ?, ready_at = ?, delivered_at = ?,
			check_requested_at = ?, paid_at = ?,
			payment_method = ?, payment_reference = ?, payment_meta = ?, updated_at = ?
		 WHERE id = ? AND workflow_status = ?`,
		string(o.WorkflowStatus), string(o.PaymentStatus),
		o.WaiterID, o.ChefID, o.DeliveryWaiterID,
		formatNullTime(o.AcceptedAt), formatNullTime(o.ChefAcceptedAt), formatNullTime(o.ReadyAt),
		formatNullTime(o.DeliveredAt), formatNullTime(o.CheckRequestedAt), formatNullTime(o.PaidAt),
		o.PaymentMethod, o.PaymentReference, o.PaymentMeta, formatTime(o.UpdatedAt),
		o.ID, string(from),
	)
	if err != nil {
		return fmt.Errorf("updating order: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrConflict
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO order_status_history (order_id, status, changed_at) VALUES (?, ?, ?)`,
		o.ID, string(o.WorkflowStatus), formatTime(o.UpdatedAt),
	); err != nil {
		return fmt.Errorf("appending history: %w", err)
	}

	return tx.Commit()
}

// History returns the append-only status trail for an order, oldest first.
func (r *OrderRepository) History(ctx context.Context, orderID int64) ([]domain.StatusHistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, order_id, status, changed_at FROM order_status_history
		 WHERE order_id = ? ORDER BY id`, orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	defer rows.Close()

	var entries []domain.StatusHistoryEntry
	for rows.Next() {
		var e domain.StatusHistoryEntry
		var status, changedAt string
		if err := rows.Scan(&e.ID, &e.OrderID, &status, &changedAt); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		e.Status = domain.OrderStatus(status)
		e.ChangedAt = parseTime(changedAt)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func scanOrder(row *sql.Row) (domain.Order, error) {
	var o domain.Order
	var workflowStatus, paymentStatus, createdAt, updatedAt string
	var acceptedAt, chefAcceptedAt, readyAt, deliveredAt, checkRequestedAt, paidAt sql.NullString
	var waiterID, chefID, deliveryWaiterID sql.NullInt64

	err := row.Scan(&o.ID, &o.SessionID, &o.TableNumber, &workflowStatus, &paymentStatus,
		&waiterID, &chefID, &deliveryWaiterID,
		&acceptedAt, &chefAcceptedAt, &readyAt, &deliveredAt, &checkRequestedAt, &paidAt,
		&o.PaymentMethod, &o.PaymentReference, &o.PaymentMeta, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("scanning order: %w", err)
	}

	o.WorkflowStatus = domain.OrderStatus(workflowStatus)
	o.PaymentStatus = domain.PaymentStatus(paymentStatus)
	o.WaiterID = nullID(waiterID)
	o.ChefID = nullID(chefID)
	o.DeliveryWaiterID = nullID(deliveryWaiterID)
	o.AcceptedAt = parseNullTime(acceptedAt)
	o.ChefAcceptedAt = parseNullTime(chefAcceptedAt)
	o.ReadyAt = parseNullTime(readyAt)
	o.DeliveredAt = parseNullTime(deliveredAt)
	o.CheckRequestedAt = parseNullTime(checkRequestedAt)
	o.PaidAt = parseNullTime(paidAt)
	o.CreatedAt = parseTime(createdAt)
	o.UpdatedAt = parseTime(updatedAt)

	return o, nil
}
