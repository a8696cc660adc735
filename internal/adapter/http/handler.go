package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/prontolabs/pronto/internal/app"
	"github.com/prontolabs/pronto/internal/domain"
)

const timestampFormat = time.RFC3339Nano

// OrderResponse is the API representation of an order.
type OrderResponse struct {
	ID             int64  `json:"id" doc:"Unique identifier"`
	SessionID      int64  `json:"session_id" doc:"Owning dining session"`
	TableNumber    string `json:"table_number" doc:"Table the order belongs to"`
	WorkflowStatus string `json:"workflow_status" doc:"Current workflow state"`
	PaymentStatus  string `json:"payment_status" doc:"Payment state"`

	WaiterID         *int64 `json:"waiter_id,omitempty" doc:"Accepting waiter"`
	ChefID           *int64 `json:"chef_id,omitempty" doc:"Preparing chef"`
	DeliveryWaiterID *int64 `json:"delivery_waiter_id,omitempty" doc:"Delivering waiter"`

	AcceptedAt       *string `json:"accepted_at,omitempty" doc:"Acceptance timestamp"`
	ChefAcceptedAt   *string `json:"chef_accepted_at,omitempty" doc:"Kitchen start timestamp"`
	ReadyAt          *string `json:"ready_at,omitempty" doc:"Kitchen completion timestamp"`
	DeliveredAt      *string `json:"delivered_at,omitempty" doc:"Delivery timestamp"`
	CheckRequestedAt *string `json:"check_requested_at,omitempty" doc:"Check request timestamp"`
	PaidAt           *string `json:"paid_at,omitempty" doc:"Payment timestamp"`

	PaymentMethod    string `json:"payment_method,omitempty" doc:"How the order was paid"`
	PaymentReference string `json:"payment_reference,omitempty" doc:"Provider payment reference"`

	CreatedAt string `json:"created_at" doc:"Creation timestamp"`
	UpdatedAt string `json:"updated_at" doc:"Last update timestamp"`
}

func toOrderResponse(o domain.Order) OrderResponse {
	return OrderResponse{
		ID:               o.ID,
		SessionID:        o.SessionID,
		TableNumber:      o.TableNumber,
		WorkflowStatus:   string(o.WorkflowStatus),
		PaymentStatus:    string(o.PaymentStatus),
		WaiterID:         o.WaiterID,
		ChefID:           o.ChefID,
		DeliveryWaiterID: o.DeliveryWaiterID,
		AcceptedAt:       formatTimePtr(o.AcceptedAt),
		ChefAcceptedAt:   formatTimePtr(o.ChefAcceptedAt),
		ReadyAt:          formatTimePtr(o.ReadyAt),
		DeliveredAt:      formatTimePtr(o.DeliveredAt),
		CheckRequestedAt: formatTimePtr(o.CheckRequestedAt),
		PaidAt:           formatTimePtr(o.PaidAt),
		PaymentMethod:    o.PaymentMethod,
		PaymentReference: o.PaymentReference,
		CreatedAt:        o.CreatedAt.Format(timestampFormat),
		UpdatedAt:        o.UpdatedAt.Format(timestampFormat),
	}
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(timestampFormat)
	return &s
}

// SessionResponse is the API representation of a dining session.
type SessionResponse struct {
	ID          int64  `json:"id" doc:"Unique identifier"`
	TableNumber string `json:"table_number" doc:"Table the session occupies"`
	Status      string `json:"status" doc:"Session lifecycle state"`
	CreatedAt   string `json:"created_at" doc:"Creation timestamp"`
	UpdatedAt   string `json:"updated_at" doc:"Last update timestamp"`
}

func toSessionResponse(s domain.DiningSession) SessionResponse {
	return SessionResponse{
		ID:          s.ID,
		TableNumber: s.TableNumber,
		Status:      string(s.Status),
		CreatedAt:   s.CreatedAt.Format(timestampFormat),
		UpdatedAt:   s.UpdatedAt.Format(timestampFormat),
	}
}

// HistoryEntryResponse is one audit record of a status the order reached.
type HistoryEntryResponse struct {
	Status    string `json:"status" doc:"Workflow state reached"`
	ChangedAt string `json:"changed_at" doc:"When the order entered it"`
}

// EventResponse is one event served on the catch-up read path.
type EventResponse struct {
	ID        string         `json:"id" doc:"Stream cursor of this event"`
	Type      string         `json:"type" doc:"Event type"`
	Payload   map[string]any `json:"payload" doc:"Event payload"`
	Timestamp string         `json:"timestamp" doc:"Emission timestamp"`
}

// --- Create Order ---

type CreateOrderInput struct {
	Scope string `path:"scope" doc:"Perimeter scope"`
	Body  struct {
		SessionID int64 `json:"session_id" minimum:"1" doc:"Dining session the order belongs to"`
	}
}

type CreateOrderOutput struct {
	Body OrderResponse
}

// --- Get Order ---

type GetOrderInput struct {
	Scope string `path:"scope" doc:"Perimeter scope"`
	ID    int64  `path:"id" doc:"Order ID"`
}

type GetOrderOutput struct {
	Body struct {
		OrderResponse
		StatusHistory []HistoryEntryResponse `json:"status_history" doc:"Audit trail of reached states"`
	}
}

// --- Transition Order ---

type TransitionOrderInput struct {
	Scope string `path:"scope" doc:"Perimeter scope"`
	ID    int64  `path:"id" doc:"Order ID"`
	Body  struct {
		Event            string `json:"event" doc:"Workflow event to trigger" enum:"accept_or_queue,kitchen_start,kitchen_complete,skip_kitchen,deliver,mark_awaiting_payment,pay,pay_direct,cancel"`
		Justification    string `json:"justification,omitempty" doc:"Reason, where the transition requires one"`
		PaymentMethod    string `json:"payment_method,omitempty" doc:"Payment method for pay events"`
		PaymentReference string `json:"payment_reference,omitempty" doc:"Pre-validated payment reference"`
	}
}

type TransitionOrderOutput struct {
	Body OrderResponse
}

// --- Read Events ---

type ReadEventsInput struct {
	Scope string `path:"scope" doc:"Perimeter scope"`
	After string `query:"after" required:"false" doc:"Exclusive cursor to resume from"`
	Limit int    `query:"limit" required:"false" default:"100" doc:"Max events to return"`
}

type ReadEventsOutput struct {
	Body struct {
		Cursor string          `json:"cursor" doc:"Cursor to pass as 'after' on the next read"`
		Events []EventResponse `json:"events" doc:"Events after the cursor, in order"`
	}
}

// --- Read State Snapshot ---

type GetStateInput struct {
	Scope  string `path:"scope" doc:"Perimeter scope"`
	Bucket string `path:"bucket" doc:"Snapshot bucket" enum:"orders,sessions,tables,notifications"`
	ID     string `path:"id" doc:"Entity ID within the bucket"`
}

type GetStateOutput struct {
	Body struct {
		Bucket     string         `json:"bucket" doc:"Snapshot bucket"`
		ID         string         `json:"id" doc:"Entity ID"`
		Attributes map[string]any `json:"attributes" doc:"Last known state"`
		UpdatedAt  string         `json:"updated_at" doc:"Snapshot write timestamp"`
	}
}

// --- Open Session ---

type OpenSessionInput struct {
	Scope string `path:"scope" doc:"Perimeter scope"`
	Body  struct {
		TableNumber string `json:"table_number" minLength:"1" maxLength:"20" doc:"Table to open the session for"`
	}
}

type OpenSessionOutput struct {
	Body SessionResponse
}

// --- Change Session Status ---

type SessionStatusInput struct {
	Scope string `path:"scope" doc:"Perimeter scope"`
	ID    int64  `path:"id" doc:"Session ID"`
	Body  struct {
		Status string `json:"status" doc:"Target session state" enum:"open,awaiting_tip,awaiting_payment,awaiting_payment_confirmation,closed,paid"`
	}
}

type SessionStatusOutput struct {
	Body SessionResponse
}

// --- Waiter Call ---

type WaiterCallInput struct {
	Body struct {
		SessionID    int64   `json:"session_id" minimum:"1" doc:"Calling session"`
		CallType     string  `json:"call_type,omitempty" default:"assistance" doc:"Kind of attention requested"`
		OrderNumbers []int64 `json:"order_numbers,omitempty" doc:"Orders the call refers to"`
	}
}

type WaiterCallOutput struct {
	Body struct {
		CallID      int64  `json:"call_id" doc:"Ephemeral call identifier"`
		TableNumber string `json:"table_number" doc:"Calling table"`
		Status      string `json:"status" doc:"Call status"`
	}
}

// --- Supervisor Call ---

type SupervisorCallInput struct {
	Scope string `path:"scope" doc:"Perimeter scope"`
	Body  struct {
		EmployeeName string `json:"employee_name" minLength:"1" doc:"Requesting staff member"`
		TableNumber  string `json:"table_number,omitempty" doc:"Table needing attention"`
		OrderID      *int64 `json:"order_id,omitempty" doc:"Order the request refers to"`
	}
}

type SupervisorCallOutput struct {
	Body struct {
		Acknowledged bool `json:"acknowledged" doc:"Whether the call was broadcast"`
	}
}

// Register adds all order lifecycle routes to the Huma API. Every route
// lives under the /{scope}/api/ perimeter; the scope guard middleware has
// already matched the path scope against the caller's token by the time a
// handler runs.
func Register(api huma.API, svc *app.OrderService) {
	huma.Register(api, huma.Operation{
		OperationID: "create-order",
		Method:      http.MethodPost,
		Path:        "/{scope}/api/v1/orders",
		Summary:     "Create a new order",
		Tags:        []string{"Orders"},
	}, func(ctx context.Context, input *CreateOrderInput) (*CreateOrderOutput, error) {
		order, err := svc.CreateOrder(ctx, input.Body.SessionID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &CreateOrderOutput{Body: toOrderResponse(order)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-order",
		Method:      http.MethodGet,
		Path:        "/{scope}/api/v1/orders/{id}",
		Summary:     "Get an order with its status history",
		Tags:        []string{"Orders"},
	}, func(ctx context.Context, input *GetOrderInput) (*GetOrderOutput, error) {
		order, history, err := svc.GetOrder(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		out := &GetOrderOutput{}
		out.Body.OrderResponse = toOrderResponse(order)
		out.Body.StatusHistory = make([]HistoryEntryResponse, len(history))
		for i, h := range history {
			out.Body.StatusHistory[i] = HistoryEntryResponse{
				Status:    string(h.Status),
				ChangedAt: h.ChangedAt.Format(timestampFormat),
			}
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "transition-order",
		Method:      http.MethodPost,
		Path:        "/{scope}/api/v1/orders/{id}/events",
		Summary:     "Trigger a workflow event on an order",
		Tags:        []string{"Orders"},
	}, func(ctx context.Context, input *TransitionOrderInput) (*TransitionOrderOutput, error) {
		identity, ok := IdentityFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("authentication required")
		}

		req := app.TransitionRequest{
			OrderID:       input.ID,
			Event:         domain.OrderEvent(input.Body.Event),
			ActorScope:    identity.Scope,
			ActorID:       &identity.ActorID,
			Justification: input.Body.Justification,
			Payload: app.TransitionPayload{
				PaymentMethod:    input.Body.PaymentMethod,
				PaymentReference: input.Body.PaymentReference,
			},
		}

		order, err := svc.Apply(ctx, req)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &TransitionOrderOutput{Body: toOrderResponse(order)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "read-events",
		Method:      http.MethodGet,
		Path:        "/{scope}/api/v1/events",
		Summary:     "Read events after a cursor",
		Tags:        []string{"Events"},
	}, func(ctx context.Context, input *ReadEventsInput) (*ReadEventsOutput, error) {
		cursor, events, err := svc.Events(ctx, input.After, input.Limit)
		if err != nil {
			return nil, toHumaError(err)
		}
		out := &ReadEventsOutput{}
		out.Body.Cursor = cursor
		out.Body.Events = make([]EventResponse, len(events))
		for i, e := range events {
			out.Body.Events[i] = EventResponse{
				ID:        e.ID,
				Type:      e.Type,
				Payload:   e.Payload,
				Timestamp: e.Timestamp.Format(timestampFormat),
			}
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-state",
		Method:      http.MethodGet,
		Path:        "/{scope}/api/v1/state/{bucket}/{id}",
		Summary:     "Get the last known state snapshot for an entity",
		Tags:        []string{"Events"},
	}, func(ctx context.Context, input *GetStateInput) (*GetStateOutput, error) {
		snap, err := svc.State(ctx, input.Bucket, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		out := &GetStateOutput{}
		out.Body.Bucket = snap.Bucket
		out.Body.ID = snap.ID
		out.Body.Attributes = snap.Attributes
		out.Body.UpdatedAt = snap.UpdatedAt.Format(timestampFormat)
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "open-session",
		Method:      http.MethodPost,
		Path:        "/{scope}/api/v1/sessions",
		Summary:     "Open a dining session",
		Tags:        []string{"Sessions"},
	}, func(ctx context.Context, input *OpenSessionInput) (*OpenSessionOutput, error) {
		session, err := svc.OpenSession(ctx, input.Body.TableNumber)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &OpenSessionOutput{Body: toSessionResponse(session)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "change-session-status",
		Method:      http.MethodPost,
		Path:        "/{scope}/api/v1/sessions/{id}/status",
		Summary:     "Move a session to a new lifecycle state",
		Tags:        []string{"Sessions"},
	}, func(ctx context.Context, input *SessionStatusInput) (*SessionStatusOutput, error) {
		identity, ok := IdentityFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("authentication required")
		}

		session, err := svc.ChangeSessionStatus(ctx, input.ID, domain.SessionStatus(input.Body.Status), identity.Scope)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &SessionStatusOutput{Body: toSessionResponse(session)}, nil
	})

	// Waiter calls originate from customers, so the route is pinned to the
	// client perimeter rather than a scope wildcard.
	huma.Register(api, huma.Operation{
		OperationID: "call-waiter",
		Method:      http.MethodPost,
		Path:        "/client/api/v1/calls/waiter",
		Summary:     "Request waiter attention at a table",
		Tags:        []string{"Calls"},
	}, func(ctx context.Context, input *WaiterCallInput) (*WaiterCallOutput, error) {
		call, err := svc.CallWaiter(ctx, input.Body.SessionID, input.Body.CallType, input.Body.OrderNumbers)
		if err != nil {
			return nil, toHumaError(err)
		}
		out := &WaiterCallOutput{}
		out.Body.CallID = call.CallID
		out.Body.TableNumber = call.TableNumber
		out.Body.Status = call.Status
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "call-supervisor",
		Method:      http.MethodPost,
		Path:        "/{scope}/api/v1/calls/supervisor",
		Summary:     "Request supervisor assistance",
		Tags:        []string{"Calls"},
	}, func(ctx context.Context, input *SupervisorCallInput) (*SupervisorCallOutput, error) {
		identity, ok := IdentityFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("authentication required")
		}

		svc.CallSupervisor(ctx, identity.ActorID, input.Body.EmployeeName, input.Body.TableNumber, input.Body.OrderID)
		out := &SupervisorCallOutput{}
		out.Body.Acknowledged = true
		return out, nil
	})
}

// toHumaError translates domain errors to Huma HTTP errors.
func toHumaError(err error) error {
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		return huma.Error404NotFound("order not found")
	case errors.Is(err, domain.ErrSessionNotFound):
		return huma.Error404NotFound("dining session not found")
	case errors.Is(err, domain.ErrSnapshotNotFound):
		return huma.Error404NotFound("state snapshot not found")
	case errors.Is(err, domain.ErrConflict):
		return huma.Error409Conflict("order changed concurrently, re-read and retry")
	}

	var invalidErr *domain.InvalidTransitionError
	if errors.As(err, &invalidErr) {
		return huma.Error422UnprocessableEntity(invalidErr.Error())
	}

	var unauthorizedErr *domain.UnauthorizedError
	if errors.As(err, &unauthorizedErr) {
		return huma.Error403Forbidden(unauthorizedErr.Error())
	}

	var justErr *domain.JustificationRequiredError
	if errors.As(err, &justErr) {
		return huma.Error422UnprocessableEntity(justErr.Error())
	}

	var payloadErr *domain.PayloadError
	if errors.As(err, &payloadErr) {
		return huma.Error422UnprocessableEntity(payloadErr.Error())
	}

	var paymentErr *domain.PaymentError
	if errors.As(err, &paymentErr) {
		return huma.Error422UnprocessableEntity(paymentErr.Error())
	}

	return huma.Error500InternalServerError("internal server error")
}
