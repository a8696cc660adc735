package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	adapter "github.com/prontolabs/pronto/internal/adapter/http"
	"github.com/prontolabs/pronto/internal/adapter/fsm"
	"github.com/prontolabs/pronto/internal/adapter/sqlite"
	"github.com/prontolabs/pronto/internal/app"
	"github.com/prontolabs/pronto/internal/domain"
)

var testSecret = []byte("test-secret")

// noopSink is a no-op EventSink for tests.
type noopSink struct{}

func (noopSink) OrderCreated(context.Context, domain.Order)                      {}
func (noopSink) OrderStatusChanged(context.Context, domain.Order, domain.OrderStatus) {}
func (noopSink) SessionStatusChanged(context.Context, domain.DiningSession)      {}
func (noopSink) WaiterCalled(context.Context, domain.WaiterCall)                 {}
func (noopSink) SupervisorCalled(context.Context, domain.SupervisorCall)         {}

type noopReader struct{}

func (noopReader) ReadSince(_ context.Context, cursor string, _ int) (string, []domain.Event, error) {
	return cursor, nil, nil
}

type noopSnapshots struct{}

func (noopSnapshots) Set(context.Context, string, string, map[string]any) error { return nil }
func (noopSnapshots) Get(context.Context, string, string) (domain.Snapshot, error) {
	return domain.Snapshot{}, domain.ErrSnapshotNotFound
}

// newTestServer creates a full-stack httptest.Server with SQLite in-memory
// behind the scope guard.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	policy := domain.DefaultPolicy()
	svc := app.NewOrderService(
		store.Orders, store.Sessions, fsm.New(policy), policy,
		noopSink{}, noopReader{}, noopSnapshots{}, nil,
	)

	guard := adapter.NewScopeGuard(testSecret)

	router := chi.NewMux()
	router.Use(guard.Middleware)
	api := humachi.New(router, huma.DefaultConfig("pronto", "0.1.0"))
	adapter.Register(api, svc)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return srv
}

// signToken mints a test token for the given actor and scope.
func signToken(t *testing.T, actorID int64, scope string) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"actor_id":     actorID,
		"active_scope": scope,
		"exp":          time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(testSecret)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}

// doRequest performs an HTTP request, optionally with a bearer token.
func doRequest(t *testing.T, method, url, token, body string) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, url, reader)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

// mustOpenSession opens a session via the API and returns its response.
func mustOpenSession(t *testing.T, srv *httptest.Server, token, table string) adapter.SessionResponse {
	t.Helper()

	resp := doRequest(t, http.MethodPost, srv.URL+"/waiter/api/v1/sessions", token,
		fmt.Sprintf(`{"table_number":%q}`, table))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("open session: status %d", resp.StatusCode)
	}

	var session adapter.SessionResponse
	decodeBody(t, resp, &session)
	return session
}

// mustCreateOrder creates an order for the session and returns its response.
func mustCreateOrder(t *testing.T, srv *httptest.Server, token string, sessionID int64) adapter.OrderResponse {
	t.Helper()

	resp := doRequest(t, http.MethodPost, srv.URL+"/waiter/api/v1/orders", token,
		fmt.Sprintf(`{"session_id":%d}`, sessionID))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create order: status %d", resp.StatusCode)
	}

	var order adapter.OrderResponse
	decodeBody(t, resp, &order)
	return order
}

// --- Scope guard ---

func TestGuard_MissingToken(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, http.MethodPost, srv.URL+"/waiter/api/v1/sessions", "", `{"table_number":"T1"}`)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}

	var body map[string]string
	decodeBody(t, resp, &body)
	if body["code"] != "SCOPE_MISSING" {
		t.Errorf("code = %q, want SCOPE_MISSING", body["code"])
	}
}

func TestGuard_GarbageToken(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, http.MethodPost, srv.URL+"/waiter/api/v1/sessions", "not-a-token", `{"table_number":"T1"}`)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestGuard_ScopeMismatch(t *testing.T) {
	srv := newTestServer(t)
	chefToken := signToken(t, 9, "chef")

	resp := doRequest(t, http.MethodPost, srv.URL+"/waiter/api/v1/sessions", chefToken, `{"table_number":"T1"}`)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}

	var body map[string]string
	decodeBody(t, resp, &body)
	if body["code"] != "SCOPE_MISMATCH" {
		t.Errorf("code = %q, want SCOPE_MISMATCH", body["code"])
	}
	// The denial names only the section the caller attempted.
	if !strings.Contains(body["error"], "waiter") {
		t.Errorf("error = %q, want mention of the attempted scope", body["error"])
	}
	if strings.Contains(body["error"], "chef") {
		t.Errorf("error = %q, should not enumerate the caller's scope", body["error"])
	}
}

func TestGuard_UnknownScopeSegment(t *testing.T) {
	srv := newTestServer(t)

	// An unrecognized scope segment must not slip past the guard into the
	// wildcard-routed handlers, with or without credentials.
	resp := doRequest(t, http.MethodPost, srv.URL+"/intruder/api/v1/sessions", "", `{"table_number":"T1"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("anonymous: status = %d, want 404", resp.StatusCode)
	}
	var body map[string]string
	decodeBody(t, resp, &body)
	if body["code"] != "SCOPE_UNKNOWN" {
		t.Errorf("code = %q, want SCOPE_UNKNOWN", body["code"])
	}

	waiterToken := signToken(t, 42, "waiter")
	resp = doRequest(t, http.MethodPost, srv.URL+"/intruder/api/v1/sessions", waiterToken, `{"table_number":"T1"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("authenticated: status = %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestGuard_SystemPassesAnyPerimeter(t *testing.T) {
	srv := newTestServer(t)
	systemToken := signToken(t, 1, "system")

	for _, scope := range []string{"waiter", "chef", "cashier", "admin", "client"} {
		resp := doRequest(t, http.MethodPost, srv.URL+"/"+scope+"/api/v1/sessions", systemToken, `{"table_number":"T9"}`)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("system under /%s: status = %d, want 200", scope, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

func TestGuard_PublicPathsPassThrough(t *testing.T) {
	srv := newTestServer(t)

	// Paths outside the /{scope}/api/ perimeter need no token.
	resp := doRequest(t, http.MethodGet, srv.URL+"/openapi.json", "", "")
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		t.Errorf("public path should pass the guard, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

// --- Order flow ---

func TestOrderFlow(t *testing.T) {
	srv := newTestServer(t)
	waiterToken := signToken(t, 42, "waiter")

	session := mustOpenSession(t, srv, waiterToken, "T4")
	order := mustCreateOrder(t, srv, waiterToken, session.ID)

	if order.WorkflowStatus != "new" {
		t.Fatalf("status = %q, want new", order.WorkflowStatus)
	}

	// Accept the order.
	resp := doRequest(t, http.MethodPost,
		fmt.Sprintf("%s/waiter/api/v1/orders/%d/events", srv.URL, order.ID),
		waiterToken, `{"event":"accept_or_queue"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("transition: status = %d, want 200", resp.StatusCode)
	}

	var accepted adapter.OrderResponse
	decodeBody(t, resp, &accepted)
	if accepted.WorkflowStatus != "queued" {
		t.Errorf("status = %q, want queued", accepted.WorkflowStatus)
	}
	if accepted.WaiterID == nil || *accepted.WaiterID != 42 {
		t.Errorf("WaiterID = %v, want the token's actor 42", accepted.WaiterID)
	}

	// Fetch it back with history.
	resp = doRequest(t, http.MethodGet,
		fmt.Sprintf("%s/waiter/api/v1/orders/%d", srv.URL, order.ID), waiterToken, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get order: status = %d, want 200", resp.StatusCode)
	}

	var got struct {
		adapter.OrderResponse
		StatusHistory []adapter.HistoryEntryResponse `json:"status_history"`
	}
	decodeBody(t, resp, &got)
	if len(got.StatusHistory) != 2 {
		t.Fatalf("history entries = %d, want 2", len(got.StatusHistory))
	}
	if got.StatusHistory[1].Status != "queued" {
		t.Errorf("history[1] = %q, want queued", got.StatusHistory[1].Status)
	}
}

func TestTransition_InvalidEdgeIs422(t *testing.T) {
	srv := newTestServer(t)
	waiterToken := signToken(t, 42, "waiter")

	session := mustOpenSession(t, srv, waiterToken, "T4")
	order := mustCreateOrder(t, srv, waiterToken, session.ID)

	resp := doRequest(t, http.MethodPost,
		fmt.Sprintf("%s/waiter/api/v1/orders/%d/events", srv.URL, order.ID),
		waiterToken, `{"event":"deliver"}`)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestTransition_WrongActorScopeIs403(t *testing.T) {
	srv := newTestServer(t)
	waiterToken := signToken(t, 42, "waiter")
	chefToken := signToken(t, 9, "chef")

	session := mustOpenSession(t, srv, waiterToken, "T4")
	order := mustCreateOrder(t, srv, waiterToken, session.ID)

	// A chef inside their own perimeter still cannot trigger a waiter-only
	// transition: the policy check is separate from the URL guard.
	resp := doRequest(t, http.MethodPost,
		fmt.Sprintf("%s/chef/api/v1/orders/%d/events", srv.URL, order.ID),
		chefToken, `{"event":"accept_or_queue"}`)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestTransition_UnknownOrderIs404(t *testing.T) {
	srv := newTestServer(t)
	waiterToken := signToken(t, 42, "waiter")

	resp := doRequest(t, http.MethodPost, srv.URL+"/waiter/api/v1/orders/999/events",
		waiterToken, `{"event":"accept_or_queue"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestCallWaiter_ClientPerimeterOnly(t *testing.T) {
	srv := newTestServer(t)
	waiterToken := signToken(t, 42, "waiter")
	clientToken := signToken(t, 7, "client")

	session := mustOpenSession(t, srv, waiterToken, "T4")
	body := fmt.Sprintf(`{"session_id":%d}`, session.ID)

	// Customers raise the call on their own perimeter.
	resp := doRequest(t, http.MethodPost, srv.URL+"/client/api/v1/calls/waiter", clientToken, body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("client call: status = %d, want 200", resp.StatusCode)
	}
	var call adapter.WaiterCallOutput
	decodeBody(t, resp, &call.Body)
	if call.Body.TableNumber != "T4" {
		t.Errorf("table = %q, want T4", call.Body.TableNumber)
	}

	// Staff tokens cannot enter the client perimeter.
	resp = doRequest(t, http.MethodPost, srv.URL+"/client/api/v1/calls/waiter", waiterToken, body)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("waiter on client perimeter: status = %d, want 403", resp.StatusCode)
	}
	resp.Body.Close()

	// The route does not exist under staff perimeters.
	resp = doRequest(t, http.MethodPost, srv.URL+"/waiter/api/v1/calls/waiter", waiterToken, body)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("staff perimeter route: status = %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestState_MissingSnapshotIs404(t *testing.T) {
	srv := newTestServer(t)
	waiterToken := signToken(t, 42, "waiter")

	resp := doRequest(t, http.MethodGet, srv.URL+"/waiter/api/v1/state/orders/7", waiterToken, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestEvents_EmptyRead(t *testing.T) {
	srv := newTestServer(t)
	waiterToken := signToken(t, 42, "waiter")

	resp := doRequest(t, http.MethodGet, srv.URL+"/waiter/api/v1/events?after=0-0", waiterToken, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Cursor string            `json:"cursor"`
		Events []json.RawMessage `json:"events"`
	}
	decodeBody(t, resp, &body)
	if len(body.Events) != 0 {
		t.Errorf("events = %d, want 0", len(body.Events))
	}
}
