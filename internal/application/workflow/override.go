package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	domainwf "github.com/garyjia/expense-approval/internal/domain/workflow"
)

// OverrideResult describes an admin override
type OverrideResult struct {
	Expense        *entity.Expense
	PreviousStatus string
	Superseded     []int64
}

// Overrider forces a terminal status on a pending expense, bypassing its chain
type Overrider struct {
	expenses port.ExpenseRepository
	requests port.ApprovalRequestRepository
	recorder *Recorder
	now      func() time.Time
}

// NewOverrider creates a new admin override processor
func NewOverrider(expenses port.ExpenseRepository, requests port.ApprovalRequestRepository, recorder *Recorder, now func() time.Time) *Overrider {
	if now == nil {
		now = time.Now
	}
	return &Overrider{expenses: expenses, requests: requests, recorder: recorder, now: now}
}

// Override sets the expense to decision's terminal status. Pending requests become
// SUPERSEDED and exactly one override entry is written.
func (o *Overrider) Override(ctx context.Context, expenseID int64, admin entity.Actor, decision entity.Decision, comments string) (*OverrideResult, error) {
	if !decision.IsValid() {
		return nil, fmt.Errorf("%w: unknown decision %q", domainwf.ErrValidation, decision)
	}

	expense, err := loadExpense(ctx, o.expenses, expenseID)
	if err != nil {
		return nil, err
	}
	if !admin.CanAdminister(expense.CompanyID) {
		return nil, fmt.Errorf("%w: %s is not an admin of company %d", domainwf.ErrUnauthorizedDecision, admin.ID, expense.CompanyID)
	}
	if expense.IsTerminal() {
		return nil, fmt.Errorf("%w: expense %d is %s", domainwf.ErrAlreadyFinalized, expense.ID, expense.Status)
	}
	if expense.Status != entity.ExpenseStatusPending {
		return nil, fmt.Errorf("%w: expense %d is %s", domainwf.ErrInvalidState, expense.ID, expense.Status)
	}

	prior, err := o.requests.ListByExpense(ctx, expense.ID)
	if err != nil {
		return nil, domainwf.Persistence("list requests", err)
	}
	priorChain := make([]map[string]interface{}, 0, len(prior))
	for _, r := range prior {
		priorChain = append(priorChain, map[string]interface{}{
			"request_id":  r.ID,
			"sequence":    r.Sequence,
			"approver_id": r.ApproverID,
			"status":      r.Status,
		})
	}

	now := o.now().UTC()
	superseded, err := o.requests.SupersedePending(ctx, expense.ID, now)
	if err != nil {
		return nil, domainwf.Persistence("supersede requests", err)
	}

	previous := expense.Status
	if err := finalize(ctx, o.expenses, expense, domainwf.State(decision.ExpenseStatus()), true, now); err != nil {
		return nil, err
	}

	if superseded == nil {
		superseded = []int64{}
	}
	metadata := map[string]interface{}{
		"previous_status":        previous,
		"new_status":             expense.Status,
		"superseded_request_ids": superseded,
		"prior_chain":            priorChain,
	}
	if _, err := o.recorder.Record(ctx, expense.ID, admin.ID, entity.ActionOverride, comments, metadata); err != nil {
		return nil, err
	}

	return &OverrideResult{Expense: expense, PreviousStatus: previous, Superseded: superseded}, nil
}
