package workflow

import "github.com/garyjia/expense-approval/internal/domain/entity"

// Trigger represents an event that can cause an expense status transition
type Trigger string

const (
	TriggerSubmit          Trigger = "SUBMIT"
	TriggerApprove         Trigger = "APPROVE"
	TriggerReject          Trigger = "REJECT"
	TriggerOverrideApprove Trigger = "OVERRIDE_APPROVE"
	TriggerOverrideReject  Trigger = "OVERRIDE_REJECT"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}

// OutcomeTrigger returns the trigger that moves a pending expense to the given decision's outcome
func OutcomeTrigger(d entity.Decision, override bool) Trigger {
	switch {
	case override && d == entity.DecisionApprove:
		return TriggerOverrideApprove
	case override:
		return TriggerOverrideReject
	case d == entity.DecisionApprove:
		return TriggerApprove
	default:
		return TriggerReject
	}
}
