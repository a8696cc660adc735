package domain

// Policy is the rule attached to one (status, event) edge: who may trigger
// it and whether a justification is mandatory.
type Policy struct {
	AllowedScopes         []Scope
	RequiresJustification bool
}

// Allows reports whether the given scope may trigger the edge.
func (p Policy) Allows(scope Scope) bool {
	for _, s := range p.AllowedScopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Transition defines a valid state change: an event moves an order from Src
// to Dst. Dst is always TargetStatus(Event).
type Transition struct {
	Event OrderEvent
	Src   OrderStatus
	Dst   OrderStatus
}

type policyKey struct {
	status OrderStatus
	event  OrderEvent
}

// PolicyTable is the immutable transition policy: a mapping of
// (current status, event) to the rule governing that edge. A pair absent
// from the table is universally forbidden. Construct one with
// DefaultPolicy (or NewPolicyTable for a custom deployment) and pass it to
// the state machine at startup.
type PolicyTable struct {
	entries map[policyKey]Policy
}

// PolicyEntry is one row used to construct a PolicyTable.
type PolicyEntry struct {
	Status OrderStatus
	Event  OrderEvent
	Policy Policy
}

// NewPolicyTable builds an immutable policy table from explicit entries.
func NewPolicyTable(entries []PolicyEntry) *PolicyTable {
	m := make(map[policyKey]Policy, len(entries))
	for _, e := range entries {
		m[policyKey{status: e.Status, event: e.Event}] = Policy{
			AllowedScopes:         append([]Scope(nil), e.Policy.AllowedScopes...),
			RequiresJustification: e.Policy.RequiresJustification,
		}
	}
	return &PolicyTable{entries: m}
}

// Lookup returns the policy for the given edge, if one exists.
func (t *PolicyTable) Lookup(status OrderStatus, event OrderEvent) (Policy, bool) {
	p, ok := t.entries[policyKey{status: status, event: event}]
	return p, ok
}

// Transitions returns every edge the table permits, in no particular order.
// This is the domain knowledge consumed by the FSM adapter.
func (t *PolicyTable) Transitions() []Transition {
	out := make([]Transition, 0, len(t.entries))
	for k := range t.entries {
		dst, ok := TargetStatus(k.event)
		if !ok {
			continue
		}
		out = append(out, Transition{Event: k.event, Src: k.status, Dst: dst})
	}
	return out
}

// DefaultPolicy returns the production transition policy.
func DefaultPolicy() *PolicyTable {
	staff := []Scope{ScopeWaiter, ScopeAdmin, ScopeSystem}
	kitchen := []Scope{ScopeChef, ScopeAdmin, ScopeSystem}
	cash := []Scope{ScopeCashier, ScopeAdmin, ScopeSystem}
	supervised := []Scope{ScopeAdmin, ScopeSystem}
	earlyCancel := []Scope{ScopeClient, ScopeWaiter, ScopeAdmin, ScopeSystem}

	return NewPolicyTable([]PolicyEntry{
		{StatusNew, EventAcceptOrQueue, Policy{AllowedScopes: staff}},
		{StatusNew, EventCancel, Policy{AllowedScopes: earlyCancel}},

		{StatusQueued, EventKitchenStart, Policy{AllowedScopes: kitchen}},
		{StatusQueued, EventSkipKitchen, Policy{AllowedScopes: []Scope{ScopeSystem}}},
		{StatusQueued, EventCancel, Policy{AllowedScopes: earlyCancel}},

		{StatusPreparing, EventKitchenComplete, Policy{AllowedScopes: kitchen}},
		{StatusPreparing, EventCancel, Policy{AllowedScopes: staff, RequiresJustification: true}},

		{StatusReady, EventDeliver, Policy{AllowedScopes: staff}},
		{StatusReady, EventCancel, Policy{AllowedScopes: supervised, RequiresJustification: true}},

		{StatusDelivered, EventMarkAwaitingPayment, Policy{AllowedScopes: cash}},
		{StatusDelivered, EventPayDirect, Policy{AllowedScopes: supervised, RequiresJustification: true}},
		{StatusDelivered, EventCancel, Policy{AllowedScopes: supervised, RequiresJustification: true}},

		{StatusAwaitingPayment, EventPay, Policy{AllowedScopes: cash}},
		{StatusAwaitingPayment, EventCancel, Policy{AllowedScopes: supervised, RequiresJustification: true}},
	})
}
