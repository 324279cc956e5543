package workflow

import (
	"context"

	"github.com/garyjia/expense-approval/internal/domain/entity"
)

// ExpenseView is an expense together with its approval requests
type ExpenseView struct {
	Expense  *entity.Expense           `json:"expense"`
	Requests []*entity.ApprovalRequest `json:"requests"`
}

// WorkflowEngine is the entry point of the approval workflow for the transport layer
type WorkflowEngine interface {
	// Submit creates a PENDING expense, freezes its conversion and opens its approval chain
	Submit(ctx context.Context, draft *entity.ExpenseDraft) (*entity.Expense, error)

	// SaveDraft stores a DRAFT expense without starting the workflow
	SaveDraft(ctx context.Context, draft *entity.ExpenseDraft) (*entity.Expense, error)

	// UpdateDraft edits a DRAFT expense owned by actor
	UpdateDraft(ctx context.Context, expenseID int64, actor entity.Actor, draft *entity.ExpenseDraft) (*entity.Expense, error)

	// DeleteDraft removes a DRAFT expense owned by actor
	DeleteDraft(ctx context.Context, expenseID int64, actor entity.Actor) error

	// SubmitDraft moves a DRAFT expense owned by actor into the workflow
	SubmitDraft(ctx context.Context, expenseID int64, actor entity.Actor) (*entity.Expense, error)

	// Decide applies an approver's decision to one pending request
	Decide(ctx context.Context, expenseID, requestID int64, actor entity.Actor, decision entity.Decision, comments string) (*entity.Expense, error)

	// Override forces a terminal status as company admin
	Override(ctx context.Context, expenseID int64, admin entity.Actor, decision entity.Decision, comments string) (*entity.Expense, error)

	// GetExpense returns the expense and its requests
	GetExpense(ctx context.Context, expenseID int64) (*ExpenseView, error)

	// ListSubmitted pages through a submitter's expenses, newest first
	ListSubmitted(ctx context.Context, submitterID string, limit, offset int) ([]*entity.Expense, error)

	// GetHistory returns the audit trail oldest first
	GetHistory(ctx context.Context, expenseID int64) ([]*entity.ApprovalHistory, error)

	// GetPendingFor returns requests awaiting userID
	GetPendingFor(ctx context.Context, userID string) ([]*entity.ApprovalRequest, error)
}
