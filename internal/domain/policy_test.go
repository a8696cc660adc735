package domain_test

import (
	"testing"

	"github.com/prontolabs/pronto/internal/domain"
)

func TestDefaultPolicy_KnownEdges(t *testing.T) {
	table := domain.DefaultPolicy()

	edges := []struct {
		status domain.OrderStatus
		event  domain.OrderEvent
	}{
		{domain.StatusNew, domain.EventAcceptOrQueue},
		{domain.StatusNew, domain.EventCancel},
		{domain.StatusQueued, domain.EventKitchenStart},
		{domain.StatusQueued, domain.EventSkipKitchen},
		{domain.StatusQueued, domain.EventCancel},
		{domain.StatusPreparing, domain.EventKitchenComplete},
		{domain.StatusPreparing, domain.EventCancel},
		{domain.StatusReady, domain.EventDeliver},
		{domain.StatusReady, domain.EventCancel},
		{domain.StatusDelivered, domain.EventMarkAwaitingPayment},
		{domain.StatusDelivered, domain.EventPayDirect},
		{domain.StatusDelivered, domain.EventCancel},
		{domain.StatusAwaitingPayment, domain.EventPay},
		{domain.StatusAwaitingPayment, domain.EventCancel},
	}

	for _, e := range edges {
		if _, ok := table.Lookup(e.status, e.event); !ok {
			t.Errorf("Lookup(%q, %q) missing, want an edge", e.status, e.event)
		}
	}
}

func TestDefaultPolicy_AbsentPairs(t *testing.T) {
	table := domain.DefaultPolicy()

	absent := []struct {
		status domain.OrderStatus
		event  domain.OrderEvent
	}{
		{domain.StatusNew, domain.EventDeliver},
		{domain.StatusNew, domain.EventPay},
		{domain.StatusQueued, domain.EventKitchenComplete},
		{domain.StatusReady, domain.EventKitchenStart},
		{domain.StatusDelivered, domain.EventPay},
		{domain.StatusPaid, domain.EventCancel},
		{domain.StatusCancelled, domain.EventAcceptOrQueue},
	}

	for _, e := range absent {
		if _, ok := table.Lookup(e.status, e.event); ok {
			t.Errorf("Lookup(%q, %q) found an edge, want none", e.status, e.event)
		}
	}
}

func TestDefaultPolicy_SkipKitchenIsSystemOnly(t *testing.T) {
	table := domain.DefaultPolicy()

	p, ok := table.Lookup(domain.StatusQueued, domain.EventSkipKitchen)
	if !ok {
		t.Fatal("expected an edge for queued+skip_kitchen")
	}

	if !p.Allows(domain.ScopeSystem) {
		t.Error("system should be allowed to skip the kitchen")
	}
	for _, scope := range []domain.Scope{domain.ScopeWaiter, domain.ScopeChef, domain.ScopeCashier, domain.ScopeAdmin, domain.ScopeClient} {
		if p.Allows(scope) {
			t.Errorf("scope %q should not be allowed to skip the kitchen", scope)
		}
	}
}

func TestDefaultPolicy_JustificationFlags(t *testing.T) {
	table := domain.DefaultPolicy()

	cases := []struct {
		status domain.OrderStatus
		event  domain.OrderEvent
		want   bool
	}{
		{domain.StatusNew, domain.EventCancel, false},
		{domain.StatusQueued, domain.EventCancel, false},
		{domain.StatusPreparing, domain.EventCancel, true},
		{domain.StatusReady, domain.EventCancel, true},
		{domain.StatusDelivered, domain.EventCancel, true},
		{domain.StatusDelivered, domain.EventPayDirect, true},
		{domain.StatusAwaitingPayment, domain.EventCancel, true},
		{domain.StatusAwaitingPayment, domain.EventPay, false},
	}

	for _, c := range cases {
		p, ok := table.Lookup(c.status, c.event)
		if !ok {
			t.Errorf("Lookup(%q, %q) missing", c.status, c.event)
			continue
		}
		if p.RequiresJustification != c.want {
			t.Errorf("(%q, %q) RequiresJustification = %v, want %v", c.status, c.event, p.RequiresJustification, c.want)
		}
	}
}

func TestPolicyTable_TransitionsMatchTargets(t *testing.T) {
	table := domain.DefaultPolicy()

	for _, tr := range table.Transitions() {
		want, ok := domain.TargetStatus(tr.Event)
		if !ok {
			t.Errorf("edge for unknown event %q", tr.Event)
			continue
		}
		if tr.Dst != want {
			t.Errorf("Transition(%q from %q).Dst = %q, want %q", tr.Event, tr.Src, tr.Dst, want)
		}
	}
}

func TestTargetStatus_UnknownEvent(t *testing.T) {
	if _, ok := domain.TargetStatus("reheat"); ok {
		t.Error("expected TargetStatus to reject an unknown event")
	}
}

func TestNonCancelable(t *testing.T) {
	cases := []struct {
		status domain.OrderStatus
		want   bool
	}{
		{domain.StatusPaid, true},
		{domain.StatusCancelled, true},
		{domain.StatusNew, false},
		{domain.StatusQueued, false},
		{domain.StatusPreparing, false},
		{domain.StatusReady, false},
		{domain.StatusDelivered, false},
		{domain.StatusAwaitingPayment, false},
	}

	for _, c := range cases {
		if got := c.status.NonCancelable(); got != c.want {
			t.Errorf("%q.NonCancelable() = %v, want %v", c.status, got, c.want)
		}
	}
}

func TestNewPolicyTable_CopiesScopes(t *testing.T) {
	scopes := []domain.Scope{domain.ScopeWaiter}
	table := domain.NewPolicyTable([]domain.PolicyEntry{
		{Status: domain.StatusNew, Event: domain.EventAcceptOrQueue, Policy: domain.Policy{AllowedScopes: scopes}},
	})

	scopes[0] = domain.ScopeClient

	p, _ := table.Lookup(domain.StatusNew, domain.EventAcceptOrQueue)
	if !p.Allows(domain.ScopeWaiter) {
		t.Error("mutating the input slice should not change the table")
	}
}
