package workflow

import (
	"context"
	"errors"
	"testing"
)

func TestState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    State
		expected bool
	}{
		{StateDraft, false},
		{StatePending, false},
		{StateApproved, true},
		{StateRejected, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.expected {
				t.Errorf("State.IsTerminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		expected bool
	}{
		{"draft", StateDraft, true},
		{"rejected", StateRejected, true},
		{"unknown", State("SUPERSEDED"), false},
		{"empty", State(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.expected {
				t.Errorf("State.IsValid() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func newTestMachine(initial State) StateMachine {
	b := NewBuilder()
	b.Configure(StateDraft).Permit(TriggerSubmit, StatePending)
	b.Configure(StatePending).
		Permit(TriggerApprove, StateApproved).
		Permit(TriggerReject, StateRejected).
		Permit(TriggerOverrideApprove, StateApproved).
		Permit(TriggerOverrideReject, StateRejected)
	return b.Build(initial)
}

func TestMachine_Fire(t *testing.T) {
	ctx := context.Background()
	m := newTestMachine(StateDraft)

	to, err := m.Fire(ctx, TriggerSubmit)
	if err != nil {
		t.Fatalf("Fire(SUBMIT) error = %v", err)
	}
	if to != StatePending || m.State() != StatePending {
		t.Errorf("State() = %v, want %v", m.State(), StatePending)
	}

	if _, err := m.Fire(ctx, TriggerApprove); err != nil {
		t.Fatalf("Fire(APPROVE) error = %v", err)
	}
	if m.State() != StateApproved {
		t.Errorf("State() = %v, want %v", m.State(), StateApproved)
	}
}

func TestMachine_FireInvalidTransition(t *testing.T) {
	m := newTestMachine(StateDraft)

	_, err := m.Fire(context.Background(), TriggerApprove)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Fire() error = %v, want ErrInvalidTransition", err)
	}
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("ErrInvalidTransition should match ErrInvalidState")
	}
	if m.State() != StateDraft {
		t.Errorf("State changed to %v on failed transition", m.State())
	}
}

func TestMachine_FireFromTerminal(t *testing.T) {
	m := newTestMachine(StateRejected)

	_, err := m.Fire(context.Background(), TriggerOverrideApprove)
	if !errors.Is(err, ErrAlreadyFinalized) {
		t.Fatalf("Fire() error = %v, want ErrAlreadyFinalized", err)
	}
}

func TestMachine_Guards(t *testing.T) {
	allow := false
	b := NewBuilder()
	b.Configure(StatePending).
		PermitIf(TriggerApprove, StateApproved, func(ctx context.Context) bool { return allow })
	m := b.Build(StatePending)
	ctx := context.Background()

	_, err := m.Fire(ctx, TriggerApprove)
	if !errors.Is(err, ErrGuardFailed) {
		t.Fatalf("Fire() error = %v, want ErrGuardFailed", err)
	}
	if m.State() != StatePending {
		t.Errorf("State changed to %v on failed guard", m.State())
	}

	allow = true
	if _, err := m.Fire(ctx, TriggerApprove); err != nil {
		t.Fatalf("Fire() error = %v", err)
	}
}

func TestMachine_GuardFallsThrough(t *testing.T) {
	b := NewBuilder()
	b.Configure(StatePending).
		PermitIf(TriggerApprove, StateRejected, func(context.Context) bool { return false }).
		Permit(TriggerApprove, StateApproved)

	to, err := b.Build(StatePending).Fire(context.Background(), TriggerApprove)
	if err != nil {
		t.Fatalf("Fire() error = %v", err)
	}
	if to != StateApproved {
		t.Errorf("Fire() = %v, want %v", to, StateApproved)
	}
}

func TestBuilder_BuildIsolation(t *testing.T) {
	b := NewBuilder()
	b.Configure(StateDraft).Permit(TriggerSubmit, StatePending)
	m := b.Build(StateDraft)

	b.Configure(StateDraft).Permit(TriggerReject, StateRejected)

	_, err := m.Fire(context.Background(), TriggerReject)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("machine observed configuration added after Build: %v", err)
	}
}
