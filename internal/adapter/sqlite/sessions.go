package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/prontolabs/pronto/internal/domain"
)

// Compile-time check: SessionRepository implements domain.SessionRepository.
var _ domain.SessionRepository = (*SessionRepository)(nil)

// SessionRepository persists dining sessions.
type SessionRepository struct {
	db *sql.DB
}

// Create persists a new dining session, assigning its ID.
func (r *SessionRepository) Create(ctx context.Context, session *domain.DiningSession) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO dining_sessions (table_number, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?)`,
		session.TableNumber, string(session.Status),
		formatTime(session.CreatedAt), formatTime(session.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading session id: %w", err)
	}
	session.ID = id

	return nil
}

func (r *SessionRepository) GetByID(ctx context.Context, id int64) (domain.DiningSession, error) {
	var session domain.DiningSession
	var status, createdAt, updatedAt string

	err := r.db.QueryRowContext(ctx,
		`SELECT id, table_number, status, created_at, updated_at
		 FROM dining_sessions WHERE id = ?`, id,
	).Scan(&session.ID, &session.TableNumber, &status, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.DiningSession{}, domain.ErrSessionNotFound
		}
		return domain.DiningSession{}, fmt.Errorf("scanning session: %w", err)
	}

	session.Status = domain.SessionStatus(status)
	session.CreatedAt = parseTime(createdAt)
	session.UpdatedAt = parseTime(updatedAt)

	return session, nil
}

// UpdateStatus sets a session's status and returns the updated row.
func (r *SessionRepository) UpdateStatus(ctx context.Context, id int64, status domain.SessionStatus) (domain.DiningSession, error) {
	now := time.Now().UTC()

	result, err := r.db.ExecContext(ctx,
		`UPDATE dining_sessions SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), formatTime(now), id,
	)
	if err != nil {
		return domain.DiningSession{}, fmt.Errorf("updating session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return domain.DiningSession{}, fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return domain.DiningSession{}, domain.ErrSessionNotFound
	}

	return r.GetByID(ctx, id)
}
