package workflow

import "github.com/garyjia/expense-approval/internal/domain/entity"

// State represents an expense status in the approval lifecycle
type State string

const (
	StateDraft    State = entity.ExpenseStatusDraft
	StatePending  State = entity.ExpenseStatusPending
	StateApproved State = entity.ExpenseStatusApproved
	StateRejected State = entity.ExpenseStatusRejected
)

var validStates = map[State]bool{
	StateDraft:    true,
	StatePending:  true,
	StateApproved: true,
	StateRejected: true,
}

var terminalStates = map[State]bool{
	StateApproved: true,
	StateRejected: true,
}

// IsTerminal returns true if the state is a terminal state (no further transitions allowed)
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known expense status
func (s State) IsValid() bool {
	return validStates[s]
}
