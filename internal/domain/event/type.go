package event

// Type identifies the type of domain event
type Type string

const (
	TypeExpenseSubmitted  Type = "expense.submitted"
	TypeDecisionRecorded  Type = "expense.decision_recorded"
	TypeExpenseFinalized  Type = "expense.finalized"
	TypeExpenseOverridden Type = "expense.overridden"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeExpenseSubmitted,
		TypeDecisionRecorded,
		TypeExpenseFinalized,
		TypeExpenseOverridden:
		return true
	default:
		return false
	}
}
