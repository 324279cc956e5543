package port

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	domainwf "github.com/garyjia/expense-approval/internal/domain/workflow"
)

// Conversion is the result of converting an amount into the company currency
type Conversion struct {
	Amount    decimal.Decimal
	Rate      decimal.Decimal
	Timestamp time.Time
}

// CurrencyConverter converts submitted amounts. Called once per submission.
type CurrencyConverter interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to string) (*Conversion, error)
}

// OrgChart answers reporting-line lookups for chain resolution
type OrgChart = domainwf.OrgChart

// ExpenseLocker serializes mutations of one expense. Lock fails with
// workflow.ErrContention when the lock cannot be taken before the deadline.
type ExpenseLocker interface {
	Lock(ctx context.Context, expenseID int64) (unlock func(), err error)
}
