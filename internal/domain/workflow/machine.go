package workflow

import (
	"context"
	"fmt"
)

// StateMachine tracks the status of one expense and validates transitions
type StateMachine interface {
	// State returns the current state
	State() State

	// Fire executes trigger and returns the state it moved to
	Fire(ctx context.Context, trigger Trigger) (State, error)
}

type stateMachine struct {
	currentState   State
	configurations map[State]*stateConfig
}

func (m *stateMachine) State() State {
	return m.currentState
}

func (m *stateMachine) Fire(ctx context.Context, trigger Trigger) (State, error) {
	if m.currentState.IsTerminal() {
		return m.currentState, fmt.Errorf("%w: cannot fire %s from %s", ErrAlreadyFinalized, trigger, m.currentState)
	}

	config, exists := m.configurations[m.currentState]
	if !exists || len(config.transitions[trigger]) == 0 {
		return m.currentState, fmt.Errorf("%w: cannot fire trigger %s from state %s", ErrInvalidTransition, trigger, m.currentState)
	}

	to, ok := m.resolve(ctx, trigger)
	if !ok {
		return m.currentState, fmt.Errorf("%w: trigger %s from state %s", ErrGuardFailed, trigger, m.currentState)
	}
	m.currentState = to
	return to, nil
}

// resolve picks the first transition for trigger whose guard passes
func (m *stateMachine) resolve(ctx context.Context, trigger Trigger) (State, bool) {
	config, exists := m.configurations[m.currentState]
	if !exists {
		return "", false
	}
	for _, t := range config.transitions[trigger] {
		if t.guard == nil || t.guard(ctx) {
			return t.toState, true
		}
	}
	return "", false
}
