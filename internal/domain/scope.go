package domain

// Scope is the operational role context of an authenticated actor.
type Scope string

const (
	ScopeWaiter  Scope = "waiter"
	ScopeChef    Scope = "chef"
	ScopeCashier Scope = "cashier"
	ScopeAdmin   Scope = "admin"
	ScopeClient  Scope = "client"
	ScopeSystem  Scope = "system"
)

// ValidScope reports whether s is one of the defined operational scopes.
func ValidScope(s Scope) bool {
	switch s {
	case ScopeWaiter, ScopeChef, ScopeCashier, ScopeAdmin, ScopeClient, ScopeSystem:
		return true
	}
	return false
}
