package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	domainwf "github.com/garyjia/expense-approval/internal/domain/workflow"
)

// Advance is the result of re-evaluating a chain after one decision
type Advance struct {
	// Next is the request created for the following approver, if any
	Next *entity.ApprovalRequest

	// Outcome is the terminal state reached, or "" while the expense stays pending
	Outcome domainwf.State

	// Superseded lists requests closed because the outcome was reached without them
	Superseded []int64
}

// Finalized reports whether the decision ended the workflow
func (a *Advance) Finalized() bool {
	return a.Outcome.IsTerminal()
}

// Sequencer materializes approval requests from a resolved chain and walks it forward
type Sequencer struct {
	requests port.ApprovalRequestRepository
	now      func() time.Time
}

// NewSequencer creates a new approval sequencer
func NewSequencer(requests port.ApprovalRequestRepository, now func() time.Time) *Sequencer {
	if now == nil {
		now = time.Now
	}
	return &Sequencer{requests: requests, now: now}
}

// Begin creates the first pending request(s): position 1 for sequential policies,
// every position at once for parallel ones.
func (s *Sequencer) Begin(ctx context.Context, expense *entity.Expense, chain *domainwf.ResolvedChain) ([]*entity.ApprovalRequest, error) {
	if expense.IsTerminal() {
		return nil, fmt.Errorf("%w: expense %d is %s", domainwf.ErrAlreadyFinalized, expense.ID, expense.Status)
	}
	if chain.Len() == 0 {
		return nil, fmt.Errorf("%w: empty approver chain", domainwf.ErrConfiguration)
	}

	existing, err := s.requests.ListByExpense(ctx, expense.ID)
	if err != nil {
		return nil, domainwf.Persistence("list requests", err)
	}
	if len(existing) > 0 {
		return nil, fmt.Errorf("%w: expense %d already has approval requests", domainwf.ErrInvalidState, expense.ID)
	}

	positions := 1
	if chain.Policy.Kind.IsParallel() {
		positions = chain.Len()
	}

	created := make([]*entity.ApprovalRequest, 0, positions)
	for pos := 1; pos <= positions; pos++ {
		entry, _ := chain.At(pos)
		req, err := s.create(ctx, expense.ID, entry)
		if err != nil {
			return nil, err
		}
		created = append(created, req)
	}
	return created, nil
}

// Advance re-evaluates the chain after decided was answered.
// On an already terminal expense it is a no-op returning the stored outcome.
func (s *Sequencer) Advance(ctx context.Context, expense *entity.Expense, chain *domainwf.ResolvedChain, decided *entity.ApprovalRequest) (*Advance, error) {
	if expense.IsTerminal() {
		return &Advance{Outcome: domainwf.State(expense.Status)}, nil
	}
	if decided.IsPending() || decided.Status == entity.RequestStatusSuperseded {
		return nil, fmt.Errorf("%w: request %d has no decision", domainwf.ErrInvalidState, decided.ID)
	}

	switch chain.Policy.Kind {
	case entity.RuleKindSequential:
		return s.advanceSequential(ctx, expense, chain, decided)
	case entity.RuleKindSpecificApprover:
		return &Advance{Outcome: outcomeOf(decided)}, nil
	case entity.RuleKindPercentage, entity.RuleKindHybrid:
		return s.advanceParallel(ctx, expense, chain)
	default:
		return nil, fmt.Errorf("%w: chain has unknown policy %q", domainwf.ErrConfiguration, chain.Policy.Kind)
	}
}

func (s *Sequencer) advanceSequential(ctx context.Context, expense *entity.Expense, chain *domainwf.ResolvedChain, decided *entity.ApprovalRequest) (*Advance, error) {
	if decided.Status == entity.RequestStatusRejected {
		return &Advance{Outcome: domainwf.StateRejected}, nil
	}

	entry, ok := chain.At(decided.Sequence)
	if !ok {
		return nil, fmt.Errorf("%w: request %d sequence %d outside chain of %d", domainwf.ErrInvalidState, decided.ID, decided.Sequence, chain.Len())
	}
	if entry.Finalizes || decided.Sequence == chain.Len() {
		return &Advance{Outcome: domainwf.StateApproved}, nil
	}

	next, err := s.Next(ctx, expense, chain, decided.Sequence+1)
	if err != nil {
		return nil, err
	}
	return &Advance{Next: next}, nil
}

func (s *Sequencer) advanceParallel(ctx context.Context, expense *entity.Expense, chain *domainwf.ResolvedChain) (*Advance, error) {
	reqs, err := s.requests.ListByExpense(ctx, expense.ID)
	if err != nil {
		return nil, domainwf.Persistence("list requests", err)
	}

	outcome := chain.Policy.Outcome(domainwf.Count(chain.Policy, reqs))
	if outcome == "" {
		return &Advance{}, nil
	}

	superseded, err := s.requests.SupersedePending(ctx, expense.ID, s.now().UTC())
	if err != nil {
		return nil, domainwf.Persistence("supersede requests", err)
	}
	return &Advance{Outcome: outcome, Superseded: superseded}, nil
}

// Next creates the request for a sequential chain position. It refuses to open a second
// pending request or to skip a position.
func (s *Sequencer) Next(ctx context.Context, expense *entity.Expense, chain *domainwf.ResolvedChain, position int) (*entity.ApprovalRequest, error) {
	if expense.IsTerminal() {
		return nil, fmt.Errorf("%w: expense %d is %s", domainwf.ErrAlreadyFinalized, expense.ID, expense.Status)
	}
	entry, ok := chain.At(position)
	if !ok {
		return nil, fmt.Errorf("%w: position %d outside chain of %d", domainwf.ErrInvalidState, position, chain.Len())
	}

	reqs, err := s.requests.ListByExpense(ctx, expense.ID)
	if err != nil {
		return nil, domainwf.Persistence("list requests", err)
	}
	for _, r := range reqs {
		if r.IsPending() {
			return nil, fmt.Errorf("%w: request %d is still pending", domainwf.ErrInvalidState, r.ID)
		}
	}
	if len(reqs)+1 != position {
		return nil, fmt.Errorf("%w: next position is %d, not %d", domainwf.ErrInvalidState, len(reqs)+1, position)
	}

	return s.create(ctx, expense.ID, entry)
}

func (s *Sequencer) create(ctx context.Context, expenseID int64, entry domainwf.ChainEntry) (*entity.ApprovalRequest, error) {
	req := &entity.ApprovalRequest{
		ExpenseID:  expenseID,
		ApproverID: entry.ApproverID,
		Sequence:   entry.Position,
		Status:     entity.RequestStatusPending,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, domainwf.Persistence("create request", err)
	}
	return req, nil
}

func outcomeOf(decided *entity.ApprovalRequest) domainwf.State {
	if decided.Status == entity.RequestStatusApproved {
		return domainwf.StateApproved
	}
	return domainwf.StateRejected
}
