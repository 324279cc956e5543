package port

import (
	"context"
	"time"

	"github.com/garyjia/expense-approval/internal/domain/entity"
)

// Repositories return (nil, nil) when a row does not exist. Conditional updates report
// whether a row was changed so callers can tell a lost race from a storage failure.

// ExpenseRepository defines persistence operations for Expense
type ExpenseRepository interface {
	Create(ctx context.Context, expense *entity.Expense) error
	GetByID(ctx context.Context, id int64) (*entity.Expense, error)
	ListBySubmitter(ctx context.Context, submitterID string, limit, offset int) ([]*entity.Expense, error)

	// UpdateDraft rewrites submitter-editable fields while the expense is DRAFT
	UpdateDraft(ctx context.Context, expense *entity.Expense) (bool, error)

	// DeleteDraft removes the expense only while it is DRAFT
	DeleteDraft(ctx context.Context, id int64) (bool, error)

	// MarkSubmitted moves a DRAFT to PENDING, freezing conversion and chain snapshot
	MarkSubmitted(ctx context.Context, expense *entity.Expense) (bool, error)

	// Finalize moves a PENDING expense to a terminal status
	Finalize(ctx context.Context, id int64, status string, at time.Time) (bool, error)
}

// ApprovalRequestRepository defines persistence operations for ApprovalRequest
type ApprovalRequestRepository interface {
	Create(ctx context.Context, req *entity.ApprovalRequest) error
	GetByID(ctx context.Context, id int64) (*entity.ApprovalRequest, error)

	// ListByExpense returns requests ordered by sequence
	ListByExpense(ctx context.Context, expenseID int64) ([]*entity.ApprovalRequest, error)

	// Respond records a decision on a PENDING request
	Respond(ctx context.Context, id int64, status, actedBy, comments string, at time.Time) (bool, error)

	// SupersedePending marks every PENDING request of the expense SUPERSEDED and returns their IDs
	SupersedePending(ctx context.Context, expenseID int64, at time.Time) ([]int64, error)

	// ListPendingForApprover returns PENDING requests of PENDING expenses assigned to approverID
	ListPendingForApprover(ctx context.Context, approverID string) ([]*entity.ApprovalRequest, error)
}

// HistoryRepository defines persistence operations for ApprovalHistory.
// There is intentionally no update or delete.
type HistoryRepository interface {
	Create(ctx context.Context, history *entity.ApprovalHistory) error

	// ListByExpense returns entries ordered by (created_at, id)
	ListByExpense(ctx context.Context, expenseID int64) ([]*entity.ApprovalHistory, error)
}

// RuleRepository defines persistence operations for ApprovalRule
type RuleRepository interface {
	RuleProvider
	Create(ctx context.Context, rule *entity.ApprovalRule) error
	GetByID(ctx context.Context, id int64) (*entity.ApprovalRule, error)
}

// RuleProvider supplies the active rules of a company, read fresh on every submission
type RuleProvider interface {
	ListActiveRules(ctx context.Context, companyID int64) ([]*entity.ApprovalRule, error)
}

// CompanyRepository defines persistence operations for Company
type CompanyRepository interface {
	Create(ctx context.Context, company *entity.Company) error
	GetByID(ctx context.Context, id int64) (*entity.Company, error)
}

// UserRepository defines persistence operations for User
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	ListByCompany(ctx context.Context, companyID int64) ([]*entity.User, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
