package river

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/riverqueue/river"

	"github.com/prontolabs/pronto/internal/domain"
)

// Compile-time check: Publisher implements domain.Notifier.
var _ domain.Notifier = (*Publisher)(nil)

// NotificationJobArgs carries one role-addressed notification through the
// job queue. River serializes this as JSON into its job table, which is
// what buys the redelivery: if the notification stream is unreachable when
// the worker runs, the job errors and River retries it instead of the
// notification being lost.
type NotificationJobArgs struct {
	Type          string         `json:"notification_type"`
	RecipientRole string         `json:"recipient_role"`
	Title         string         `json:"title"`
	Message       string         `json:"message"`
	Data          map[string]any `json:"data,omitempty"`
	Priority      string         `json:"priority"`
}

// Kind returns the unique job type identifier used by River's job routing.
func (NotificationJobArgs) Kind() string { return "notification.dispatch" }

// Client is the River client type parameterized for SQLite (*sql.Tx).
type Client = river.Client[*sql.Tx]

// Publisher implements domain.Notifier by enqueuing River jobs.
type Publisher struct {
	client *Client
}

// NewPublisher creates a publisher backed by the given River client.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

// Notify enqueues a notification for async dispatch.
func (p *Publisher) Notify(ctx context.Context, n domain.Notification) error {
	priority := n.Priority
	if priority == "" {
		priority = "normal"
	}

	_, err := p.client.Insert(ctx, NotificationJobArgs{
		Type:          n.Type,
		RecipientRole: string(n.RecipientRole),
		Title:         n.Title,
		Message:       n.Message,
		Data:          n.Data,
		Priority:      priority,
	}, nil)
	if err != nil {
		return fmt.Errorf("enqueuing notification job: %w", err)
	}
	return nil
}
