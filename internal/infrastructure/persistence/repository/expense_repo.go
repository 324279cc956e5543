package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/garyjia/expense-approval/internal/infrastructure/persistence/sqlite"
)

const expenseColumns = `
	id, company_id, submitter_id, department_id, amount, currency,
	converted_amount, company_currency, conversion_rate, converted_at,
	category, description, expense_date, receipt_ref, status,
	rule_id, chain_snapshot, submitted_at, finalized_at, created_at, updated_at`

// ExpenseRepository implements port.ExpenseRepository
type ExpenseRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewExpenseRepository creates a new expense repository
func NewExpenseRepository(db *sql.DB, logger *zap.Logger) port.ExpenseRepository {
	return &ExpenseRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new expense
func (r *ExpenseRepository) Create(ctx context.Context, e *entity.Expense) error {
	query := `
		INSERT INTO expenses (
			company_id, submitter_id, department_id, amount, currency,
			converted_amount, company_currency, conversion_rate, converted_at,
			category, description, expense_date, receipt_ref, status,
			rule_id, chain_snapshot, submitted_at, finalized_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = e.CreatedAt
	}

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		e.CompanyID,
		e.SubmitterID,
		e.DepartmentID,
		e.Amount.String(),
		e.Currency,
		e.ConvertedAmount.String(),
		e.CompanyCurrency,
		e.ConversionRate.String(),
		nullTime(e.ConvertedAt),
		e.Category,
		e.Description,
		e.ExpenseDate,
		e.ReceiptRef,
		e.Status,
		nullID(e.RuleID),
		e.ChainSnapshot,
		nullTime(e.SubmittedAt),
		nullTime(e.FinalizedAt),
		e.CreatedAt,
		e.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create expense",
			zap.String("submitter_id", e.SubmitterID),
			zap.Error(err))
		return sqlite.Classify("create expense", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return sqlite.Classify("get last insert id", err)
	}

	e.ID = id
	return nil
}

// GetByID retrieves an expense by ID
func (r *ExpenseRepository) GetByID(ctx context.Context, id int64) (*entity.Expense, error) {
	query := `SELECT` + expenseColumns + ` FROM expenses WHERE id = ?`

	e, err := scanExpense(sqlite.Conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get expense by ID", zap.Int64("id", id), zap.Error(err))
		return nil, sqlite.Classify("get expense", err)
	}
	return e, nil
}

// ListBySubmitter returns a submitter's expenses, newest first
func (r *ExpenseRepository) ListBySubmitter(ctx context.Context, submitterID string, limit, offset int) ([]*entity.Expense, error) {
	query := `SELECT` + expenseColumns + `
		FROM expenses
		WHERE submitter_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`

	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, submitterID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list expenses", zap.String("submitter_id", submitterID), zap.Error(err))
		return nil, sqlite.Classify("list expenses", err)
	}
	defer rows.Close()

	var expenses []*entity.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, sqlite.Classify("scan expense", err)
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, sqlite.Classify("iterate expenses", err)
	}
	return expenses, nil
}

// UpdateDraft rewrites the editable fields of a DRAFT expense
func (r *ExpenseRepository) UpdateDraft(ctx context.Context, e *entity.Expense) (bool, error) {
	query := `
		UPDATE expenses SET
			department_id = ?, amount = ?, currency = ?, category = ?,
			description = ?, expense_date = ?, receipt_ref = ?, updated_at = ?
		WHERE id = ? AND status = 'DRAFT'
	`

	e.UpdatedAt = time.Now()
	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		e.DepartmentID,
		e.Amount.String(),
		e.Currency,
		e.Category,
		e.Description,
		e.ExpenseDate,
		e.ReceiptRef,
		e.UpdatedAt,
		e.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update draft", zap.Int64("id", e.ID), zap.Error(err))
		return false, sqlite.Classify("update draft", err)
	}
	return affected(result)
}

// DeleteDraft removes an expense that never left DRAFT
func (r *ExpenseRepository) DeleteDraft(ctx context.Context, id int64) (bool, error) {
	query := `DELETE FROM expenses WHERE id = ? AND status = 'DRAFT'`

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query, id)
	if err != nil {
		r.logger.Error("Failed to delete draft", zap.Int64("id", id), zap.Error(err))
		return false, sqlite.Classify("delete draft", err)
	}
	return affected(result)
}

// MarkSubmitted moves a DRAFT to PENDING with its conversion and chain snapshot
func (r *ExpenseRepository) MarkSubmitted(ctx context.Context, e *entity.Expense) (bool, error) {
	query := `
		UPDATE expenses SET
			status = ?, converted_amount = ?, company_currency = ?, conversion_rate = ?,
			converted_at = ?, rule_id = ?, chain_snapshot = ?, submitted_at = ?, updated_at = ?
		WHERE id = ? AND status = 'DRAFT'
	`

	e.UpdatedAt = time.Now()
	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		e.Status,
		e.ConvertedAmount.String(),
		e.CompanyCurrency,
		e.ConversionRate.String(),
		nullTime(e.ConvertedAt),
		nullID(e.RuleID),
		e.ChainSnapshot,
		nullTime(e.SubmittedAt),
		e.UpdatedAt,
		e.ID,
	)
	if err != nil {
		r.logger.Error("Failed to mark expense submitted", zap.Int64("id", e.ID), zap.Error(err))
		return false, sqlite.Classify("mark submitted", err)
	}
	return affected(result)
}

// Finalize moves a PENDING expense to a terminal status
func (r *ExpenseRepository) Finalize(ctx context.Context, id int64, status string, at time.Time) (bool, error) {
	query := `
		UPDATE expenses SET status = ?, finalized_at = ?, updated_at = ?
		WHERE id = ? AND status = 'PENDING'
	`

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query, status, at, at, id)
	if err != nil {
		r.logger.Error("Failed to finalize expense",
			zap.Int64("id", id),
			zap.String("status", status),
			zap.Error(err))
		return false, sqlite.Classify("finalize expense", err)
	}
	return affected(result)
}

func scanExpense(s scanner) (*entity.Expense, error) {
	var (
		e           entity.Expense
		convertedAt sql.NullTime
		ruleID      sql.NullInt64
		submittedAt sql.NullTime
		finalizedAt sql.NullTime
		amount      decimal.Decimal
		converted   decimal.Decimal
		rate        decimal.Decimal
	)

	err := s.Scan(
		&e.ID,
		&e.CompanyID,
		&e.SubmitterID,
		&e.DepartmentID,
		&amount,
		&e.Currency,
		&converted,
		&e.CompanyCurrency,
		&rate,
		&convertedAt,
		&e.Category,
		&e.Description,
		&e.ExpenseDate,
		&e.ReceiptRef,
		&e.Status,
		&ruleID,
		&e.ChainSnapshot,
		&submittedAt,
		&finalizedAt,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Amount = amount
	e.ConvertedAmount = converted
	e.ConversionRate = rate
	e.ConvertedAt = timePtr(convertedAt)
	e.RuleID = ruleID.Int64
	e.SubmittedAt = timePtr(submittedAt)
	e.FinalizedAt = timePtr(finalizedAt)
	return &e, nil
}

var _ port.ExpenseRepository = (*ExpenseRepository)(nil)
