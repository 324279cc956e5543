package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/garyjia/expense-approval/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/expense-approval/migrations"
	"github.com/garyjia/expense-approval/pkg/database"
)

type testEnv struct {
	db        *sql.DB
	tx        *sqlite.DB
	companyID int64

	expenses  *ExpenseRepository
	requests  *ApprovalRequestRepository
	history   *HistoryRepository
	rules     *RuleRepository
	companies *CompanyRepository
	users     *UserRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "repo.db")}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = database.NewMigrator(db, logger).Run(context.Background(), migrations.FS)
	require.NoError(t, err)

	env := &testEnv{
		db:        db.DB,
		tx:        sqlite.NewDB(db.DB, logger),
		expenses:  NewExpenseRepository(db.DB, logger).(*ExpenseRepository),
		requests:  NewApprovalRequestRepository(db.DB, logger).(*ApprovalRequestRepository),
		history:   NewHistoryRepository(db.DB, logger).(*HistoryRepository),
		rules:     NewRuleRepository(db.DB, logger).(*RuleRepository),
		companies: NewCompanyRepository(db.DB, logger).(*CompanyRepository),
		users:     NewUserRepository(db.DB, logger),
	}

	company := &entity.Company{Name: "Acme", Country: "US", Currency: "USD"}
	require.NoError(t, env.companies.Create(context.Background(), company))
	env.companyID = company.ID
	return env
}

func (env *testEnv) pendingExpense(t *testing.T, submitter string) *entity.Expense {
	t.Helper()
	now := time.Now()
	e := &entity.Expense{
		CompanyID:       env.companyID,
		SubmitterID:     submitter,
		Amount:          decimal.RequireFromString("120.50"),
		Currency:        "EUR",
		ConvertedAmount: decimal.RequireFromString("130.14"),
		CompanyCurrency: "USD",
		ConversionRate:  decimal.RequireFromString("1.08"),
		ConvertedAt:     &now,
		Category:        entity.CategoryTravel,
		Description:     "train",
		ExpenseDate:     now.Add(-24 * time.Hour),
		Status:          entity.ExpenseStatusPending,
		SubmittedAt:     &now,
	}
	require.NoError(t, env.expenses.Create(context.Background(), e))
	return e
}
