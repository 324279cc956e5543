package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	domainwf "github.com/garyjia/expense-approval/internal/domain/workflow"
)

// DecisionResult describes what one decision changed
type DecisionResult struct {
	Expense *entity.Expense
	Request *entity.ApprovalRequest
	Advance *Advance
}

// DecisionProcessor validates and applies a single approver decision.
// Callers provide the transaction and the per-expense lock.
type DecisionProcessor struct {
	expenses  port.ExpenseRepository
	requests  port.ApprovalRequestRepository
	sequencer *Sequencer
	recorder  *Recorder
	now       func() time.Time
}

// NewDecisionProcessor creates a new decision processor
func NewDecisionProcessor(expenses port.ExpenseRepository, requests port.ApprovalRequestRepository, sequencer *Sequencer, recorder *Recorder, now func() time.Time) *DecisionProcessor {
	if now == nil {
		now = time.Now
	}
	return &DecisionProcessor{
		expenses:  expenses,
		requests:  requests,
		sequencer: sequencer,
		recorder:  recorder,
		now:       now,
	}
}

// Decide applies actor's decision on requestID. The actor must be the assigned approver
// or the admin of the expense's company acting on the approver's behalf.
func (p *DecisionProcessor) Decide(ctx context.Context, expenseID, requestID int64, actor entity.Actor, decision entity.Decision, comments string) (*DecisionResult, error) {
	if !decision.IsValid() {
		return nil, fmt.Errorf("%w: unknown decision %q", domainwf.ErrValidation, decision)
	}

	expense, err := loadExpense(ctx, p.expenses, expenseID)
	if err != nil {
		return nil, err
	}
	req, err := p.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, domainwf.Persistence("load request", err)
	}
	if req == nil || req.ExpenseID != expense.ID {
		return nil, fmt.Errorf("%w: request %d on expense %d", domainwf.ErrNotFound, requestID, expenseID)
	}

	onBehalf, err := authorizeDecision(expense, req, actor)
	if err != nil {
		return nil, err
	}
	if expense.Status != entity.ExpenseStatusPending {
		return nil, fmt.Errorf("%w: expense %d is %s", domainwf.ErrInvalidState, expense.ID, expense.Status)
	}
	if !req.IsPending() {
		return nil, fmt.Errorf("%w: request %d is already %s", domainwf.ErrInvalidState, req.ID, req.Status)
	}

	chain, err := domainwf.DecodeChain(expense.ChainSnapshot)
	if err != nil {
		return nil, err
	}

	now := p.now().UTC()
	applied, err := p.requests.Respond(ctx, req.ID, decision.RequestStatus(), actor.ID, comments, now)
	if err != nil {
		return nil, domainwf.Persistence("respond to request", err)
	}
	if !applied {
		return nil, fmt.Errorf("%w: request %d was decided concurrently", domainwf.ErrInvalidState, req.ID)
	}
	req.Status = decision.RequestStatus()
	req.ActedBy = actor.ID
	req.Comments = comments
	req.RespondedAt = &now

	metadata := map[string]interface{}{
		"request_id": req.ID,
		"sequence":   req.Sequence,
		"approver":   req.ApproverID,
	}
	if onBehalf {
		metadata["on_behalf_of"] = req.ApproverID
	}
	action := entity.ActionApproved
	if decision == entity.DecisionReject {
		action = entity.ActionRejected
	}
	if _, err := p.recorder.Record(ctx, expense.ID, actor.ID, action, comments, metadata); err != nil {
		return nil, err
	}

	adv, err := p.sequencer.Advance(ctx, expense, chain, req)
	if err != nil {
		return nil, err
	}

	if adv.Finalized() {
		if err := finalize(ctx, p.expenses, expense, adv.Outcome, false, now); err != nil {
			return nil, err
		}
		meta := map[string]interface{}{
			"outcome":         adv.Outcome.String(),
			"policy":          string(chain.Policy.Kind),
			"decided_request": req.ID,
		}
		if len(adv.Superseded) > 0 {
			meta["superseded_request_ids"] = adv.Superseded
		}
		if _, err := p.recorder.Record(ctx, expense.ID, "", entity.ActionFinalized, "", meta); err != nil {
			return nil, err
		}
	}

	return &DecisionResult{Expense: expense, Request: req, Advance: adv}, nil
}

// authorizeDecision reports whether actor acts on the approver's behalf as admin
func authorizeDecision(expense *entity.Expense, req *entity.ApprovalRequest, actor entity.Actor) (bool, error) {
	if actor.ID == "" {
		return false, fmt.Errorf("%w: anonymous actor", domainwf.ErrUnauthorizedDecision)
	}
	if actor.CompanyID != expense.CompanyID {
		return false, fmt.Errorf("%w: actor %s is not in company %d", domainwf.ErrUnauthorizedDecision, actor.ID, expense.CompanyID)
	}
	if actor.ID == req.ApproverID {
		return false, nil
	}
	if actor.CanAdminister(expense.CompanyID) {
		return true, nil
	}
	return false, fmt.Errorf("%w: request %d is assigned to %s, not %s", domainwf.ErrUnauthorizedDecision, req.ID, req.ApproverID, actor.ID)
}

// finalize fires the outcome trigger and persists the terminal status on expense
func finalize(ctx context.Context, expenses port.ExpenseRepository, expense *entity.Expense, outcome domainwf.State, override bool, at time.Time) error {
	machine, err := machineFor(expense.Status, expense)
	if err != nil {
		return err
	}
	decision := entity.DecisionApprove
	if outcome == domainwf.StateRejected {
		decision = entity.DecisionReject
	}
	to, err := machine.Fire(ctx, domainwf.OutcomeTrigger(decision, override))
	if err != nil {
		return err
	}

	applied, err := expenses.Finalize(ctx, expense.ID, to.String(), at)
	if err != nil {
		return domainwf.Persistence("finalize expense", err)
	}
	if !applied {
		return fmt.Errorf("%w: expense %d left PENDING concurrently", domainwf.ErrInvalidState, expense.ID)
	}
	expense.Status = to.String()
	expense.FinalizedAt = &at
	expense.UpdatedAt = at
	return nil
}

func loadExpense(ctx context.Context, expenses port.ExpenseRepository, id int64) (*entity.Expense, error) {
	expense, err := expenses.GetByID(ctx, id)
	if err != nil {
		return nil, domainwf.Persistence("load expense", err)
	}
	if expense == nil {
		return nil, fmt.Errorf("%w: expense %d", domainwf.ErrNotFound, id)
	}
	return expense, nil
}

// ParseDecision accepts approve/reject in any case
func ParseDecision(s string) (entity.Decision, error) {
	d := entity.Decision(strings.ToUpper(strings.TrimSpace(s)))
	if !d.IsValid() {
		return "", fmt.Errorf("%w: decision must be APPROVE or REJECT, got %q", domainwf.ErrValidation, s)
	}
	return d, nil
}
