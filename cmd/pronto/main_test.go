package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"

	"github.com/prontolabs/pronto/internal/adapter/fsm"
	"github.com/prontolabs/pronto/internal/adapter/sqlite"
	"github.com/prontolabs/pronto/internal/app"
	"github.com/prontolabs/pronto/internal/domain"

	handler "github.com/prontolabs/pronto/internal/adapter/http"
)

func TestEnvOrDefault_Fallback(t *testing.T) {
	v := envOrDefault("PRONTO_TEST_NONEXISTENT_KEY", "fallback")
	if v != "fallback" {
		t.Errorf("got %q, want %q", v, "fallback")
	}
}

func TestEnvOrDefault_EnvSet(t *testing.T) {
	t.Setenv("PRONTO_TEST_KEY", "custom")

	v := envOrDefault("PRONTO_TEST_KEY", "fallback")
	if v != "custom" {
		t.Errorf("got %q, want %q", v, "custom")
	}
}

// testSink is a local EventSink for the smoke test.
// The smoke test verifies HTTP wiring, not the event bus.
type testSink struct{}

func (testSink) OrderCreated(context.Context, domain.Order)                           {}
func (testSink) OrderStatusChanged(context.Context, domain.Order, domain.OrderStatus) {}
func (testSink) SessionStatusChanged(context.Context, domain.DiningSession)           {}
func (testSink) WaiterCalled(context.Context, domain.WaiterCall)                      {}
func (testSink) SupervisorCalled(context.Context, domain.SupervisorCall)              {}

type testReader struct{}

func (testReader) ReadSince(_ context.Context, cursor string, _ int) (string, []domain.Event, error) {
	return cursor, nil, nil
}

type testSnapshots struct{}

func (testSnapshots) Set(context.Context, string, string, map[string]any) error { return nil }
func (testSnapshots) Get(context.Context, string, string) (domain.Snapshot, error) {
	return domain.Snapshot{}, domain.ErrSnapshotNotFound
}

// TestSmoke wires the stack like main() does and verifies a guarded request
// round-trips through the scope guard, the API, and SQLite.
func TestSmoke(t *testing.T) {
	dbPath := t.TempDir() + "/test.db"

	store, err := sqlite.New(dbPath)
	if err != nil {
		t.Fatalf("database: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	policy := domain.DefaultPolicy()
	svc := app.NewOrderService(
		store.Orders, store.Sessions, fsm.New(policy), policy,
		testSink{}, testReader{}, testSnapshots{}, nil,
	)

	secret := []byte("smoke-secret")
	guard := handler.NewScopeGuard(secret)

	router := chi.NewMux()
	router.Use(middleware.Recoverer)
	router.Use(guard.Middleware)
	api := humachi.New(router, huma.DefaultConfig("pronto", "0.1.0"))
	handler.Register(api, svc)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"actor_id":     int64(7),
		"active_scope": "waiter",
		"exp":          time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost,
		srv.URL+"/waiter/api/v1/sessions", strings.NewReader(`{"table_number":"T1"}`))
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+signed)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST /waiter/api/v1/sessions failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var session map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if session["status"] != "open" {
		t.Errorf("status = %v, want open", session["status"])
	}
}
