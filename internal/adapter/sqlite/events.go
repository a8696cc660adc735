package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/prontolabs/pronto/internal/domain"
)

// Compile-time check: EventLog implements domain.EventMirror.
var _ domain.EventMirror = (*EventLog)(nil)

// EventLog is the durable relational mirror of the event stream. Rows are
// append-only; the autoincrement id is the fallback cursor, so reads are
// repeatable (nothing is deleted on consumption).
type EventLog struct {
	db *sql.DB
}

// mirrorTimeFormat keeps sub-second precision so event ordering survives
// bursts within the same second.
const mirrorTimeFormat = time.RFC3339Nano

// Append stores one event and returns its assigned id.
func (l *EventLog) Append(ctx context.Context, event domain.Event) (int64, error) {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return 0, fmt.Errorf("encoding event payload: %w", err)
	}

	result, err := l.db.ExecContext(ctx,
		`INSERT INTO realtime_events (event_type, payload, created_at) VALUES (?, ?, ?)`,
		event.Type, string(payload), event.Timestamp.UTC().Format(mirrorTimeFormat),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading event id: %w", err)
	}

	return id, nil
}

// ReadAfter returns up to limit events with id strictly greater than
// afterID, oldest first. Event IDs carry the mirror cursor marker
// ("m:<id>") so a resumed read is never confused with a stream cursor.
func (l *EventLog) ReadAfter(ctx context.Context, afterID int64, limit int) ([]domain.Event, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, event_type, payload, created_at FROM realtime_events
		 WHERE id > ? ORDER BY id LIMIT ?`, afterID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("reading events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var id int64
		var eventType, createdAt string
		var payload sql.NullString
		if err := rows.Scan(&id, &eventType, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning event row: %w", err)
		}

		event := domain.Event{
			ID:   "m:" + strconv.FormatInt(id, 10),
			Type: eventType,
		}
		if ts, err := time.Parse(mirrorTimeFormat, createdAt); err == nil {
			event.Timestamp = ts
		}
		if payload.Valid && payload.String != "" {
			if err := json.Unmarshal([]byte(payload.String), &event.Payload); err != nil {
				event.Payload = map[string]any{"raw": payload.String}
			}
		}

		events = append(events, event)
	}

	return events, rows.Err()
}
