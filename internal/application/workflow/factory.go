package workflow

import (
	"context"
	"fmt"

	"github.com/garyjia/expense-approval/internal/domain/entity"
	domainwf "github.com/garyjia/expense-approval/internal/domain/workflow"
)

// BuildExpenseStateMachine creates a state machine for the expense status lifecycle.
// DRAFT only leaves through submission, and only once expense carries a frozen
// conversion and a resolved chain; PENDING ends through the chain or an admin override.
func BuildExpenseStateMachine(initialState domainwf.State, expense *entity.Expense) domainwf.StateMachine {
	builder := domainwf.NewBuilder()

	builder.Configure(domainwf.StateDraft).
		PermitIf(domainwf.TriggerSubmit, domainwf.StatePending, readyToSubmit(expense))

	builder.Configure(domainwf.StatePending).
		Permit(domainwf.TriggerApprove, domainwf.StateApproved).
		Permit(domainwf.TriggerReject, domainwf.StateRejected).
		Permit(domainwf.TriggerOverrideApprove, domainwf.StateApproved).
		Permit(domainwf.TriggerOverrideReject, domainwf.StateRejected)

	return builder.Build(initialState)
}

func readyToSubmit(expense *entity.Expense) domainwf.GuardFunc {
	return func(context.Context) bool {
		return expense != nil &&
			expense.ConvertedAt != nil &&
			expense.CompanyCurrency != "" &&
			expense.ChainSnapshot != ""
	}
}

// machineFor builds a machine for expense positioned at status
func machineFor(status string, expense *entity.Expense) (domainwf.StateMachine, error) {
	state := domainwf.State(status)
	if !state.IsValid() {
		return nil, domainwf.Persistence("load expense", fmt.Errorf("unknown stored status %q", status))
	}
	return BuildExpenseStateMachine(state, expense), nil
}
