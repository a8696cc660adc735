package fsm

import (
	"context"
	"errors"

	loopfsm "github.com/looplab/fsm"

	"github.com/prontolabs/pronto/internal/domain"
)

// Compile-time check: Validator implements domain.TransitionValidator.
var _ domain.TransitionValidator = (*Validator)(nil)

// Validator implements domain.TransitionValidator using looplab/fsm over
// the edges of a policy table. It creates a short-lived FSM instance per
// Apply call, initialized with the order's current status. This is
// necessary because looplab/fsm is stateful (it tracks the current state
// internally).
type Validator struct {
	events []loopfsm.EventDesc
}

// New builds a validator from the table's permitted edges. Transitions with
// the same event+destination are consolidated into a single EventDesc with
// multiple source states (e.g., EventCancel is a valid edge out of six
// statuses, all landing on "cancelled").
func New(policy *domain.PolicyTable) *Validator {
	type key struct {
		event string
		dst   string
	}
	grouped := make(map[key][]string)
	order := make([]key, 0)

	for _, t := range policy.Transitions() {
		k := key{event: string(t.Event), dst: string(t.Dst)}
		if _, exists := grouped[k]; !exists {
			order = append(order, k)
		}
		grouped[k] = append(grouped[k], string(t.Src))
	}

	events := make([]loopfsm.EventDesc, 0, len(order))
	for _, k := range order {
		events = append(events, loopfsm.EventDesc{
			Name: k.event,
			Src:  grouped[k],
			Dst:  k.dst,
		})
	}

	return &Validator{events: events}
}

// Apply checks if the given event is valid from the current status and
// returns the destination status. Returns a domain.InvalidTransitionError
// if the transition is not allowed.
func (v *Validator) Apply(ctx context.Context, current domain.OrderStatus, event domain.OrderEvent) (domain.OrderStatus, error) {
	machine := loopfsm.NewFSM(string(current), v.events, nil)

	if err := machine.Event(ctx, string(event)); err != nil {
		var invalidEvent loopfsm.InvalidEventError
		var noTransition loopfsm.NoTransitionError
		if errors.As(err, &invalidEvent) || errors.As(err, &noTransition) {
			return "", &domain.InvalidTransitionError{
				Current: current,
				Event:   event,
			}
		}
		return "", err
	}

	return domain.OrderStatus(machine.Current()), nil
}
