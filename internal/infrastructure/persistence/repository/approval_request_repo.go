package repository

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/garyjia/expense-approval/internal/infrastructure/persistence/sqlite"
)

// ApprovalRequestRepository implements port.ApprovalRequestRepository
type ApprovalRequestRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewApprovalRequestRepository creates a new approval request repository
func NewApprovalRequestRepository(db *sql.DB, logger *zap.Logger) port.ApprovalRequestRepository {
	return &ApprovalRequestRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new approval request
func (r *ApprovalRequestRepository) Create(ctx context.Context, req *entity.ApprovalRequest) error {
	query := `
		INSERT INTO approval_requests (
			expense_id, approver_id, sequence, status, comments, acted_by, responded_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		req.ExpenseID,
		req.ApproverID,
		req.Sequence,
		req.Status,
		req.Comments,
		req.ActedBy,
		nullTime(req.RespondedAt),
		req.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create approval request",
			zap.Int64("expense_id", req.ExpenseID),
			zap.Int("sequence", req.Sequence),
			zap.Error(err))
		return sqlite.Classify("create approval request", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return sqlite.Classify("get last insert id", err)
	}

	req.ID = id
	return nil
}

// GetByID retrieves an approval request by ID
func (r *ApprovalRequestRepository) GetByID(ctx context.Context, id int64) (*entity.ApprovalRequest, error) {
	query := `
		SELECT id, expense_id, approver_id, sequence, status, comments, acted_by, responded_at, created_at
		FROM approval_requests
		WHERE id = ?
	`

	req, err := scanRequest(sqlite.Conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get approval request", zap.Int64("id", id), zap.Error(err))
		return nil, sqlite.Classify("get approval request", err)
	}
	return req, nil
}

// ListByExpense returns an expense's requests ordered by sequence
func (r *ApprovalRequestRepository) ListByExpense(ctx context.Context, expenseID int64) ([]*entity.ApprovalRequest, error) {
	query := `
		SELECT id, expense_id, approver_id, sequence, status, comments, acted_by, responded_at, created_at
		FROM approval_requests
		WHERE expense_id = ?
		ORDER BY sequence ASC
	`
	return r.list(ctx, "list approval requests", query, expenseID)
}

// Respond records a decision on a request that is still PENDING
func (r *ApprovalRequestRepository) Respond(ctx context.Context, id int64, status, actedBy, comments string, at time.Time) (bool, error) {
	query := `
		UPDATE approval_requests
		SET status = ?, acted_by = ?, comments = ?, responded_at = ?
		WHERE id = ? AND status = 'PENDING'
	`

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query, status, actedBy, comments, at, id)
	if err != nil {
		r.logger.Error("Failed to respond to approval request",
			zap.Int64("id", id),
			zap.String("status", status),
			zap.Error(err))
		return false, sqlite.Classify("respond to approval request", err)
	}
	return affected(result)
}

// SupersedePending closes every open request of an expense
func (r *ApprovalRequestRepository) SupersedePending(ctx context.Context, expenseID int64, at time.Time) ([]int64, error) {
	conn := sqlite.Conn(ctx, r.db)

	rows, err := conn.QueryContext(ctx,
		`SELECT id FROM approval_requests WHERE expense_id = ? AND status = 'PENDING' ORDER BY sequence ASC`,
		expenseID)
	if err != nil {
		r.logger.Error("Failed to find pending requests", zap.Int64("expense_id", expenseID), zap.Error(err))
		return nil, sqlite.Classify("find pending requests", err)
	}

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, sqlite.Classify("scan pending request", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, sqlite.Classify("iterate pending requests", err)
	}
	rows.Close()

	if len(ids) == 0 {
		return nil, nil
	}

	_, err = conn.ExecContext(ctx,
		`UPDATE approval_requests SET status = 'SUPERSEDED', responded_at = ? WHERE expense_id = ? AND status = 'PENDING'`,
		at, expenseID)
	if err != nil {
		r.logger.Error("Failed to supersede pending requests", zap.Int64("expense_id", expenseID), zap.Error(err))
		return nil, sqlite.Classify("supersede pending requests", err)
	}

	r.logger.Debug("Superseded pending requests",
		zap.Int64("expense_id", expenseID),
		zap.Int64s("request_ids", ids))
	return ids, nil
}

// ListPendingForApprover returns the open requests an approver can act on now
func (r *ApprovalRequestRepository) ListPendingForApprover(ctx context.Context, approverID string) ([]*entity.ApprovalRequest, error) {
	query := `
		SELECT r.id, r.expense_id, r.approver_id, r.sequence, r.status, r.comments, r.acted_by, r.responded_at, r.created_at
		FROM approval_requests r
		JOIN expenses e ON e.id = r.expense_id
		WHERE r.approver_id = ? AND r.status = 'PENDING' AND e.status = 'PENDING'
		ORDER BY r.created_at ASC, r.id ASC
	`
	return r.list(ctx, "list pending requests", query, approverID)
}

func (r *ApprovalRequestRepository) list(ctx context.Context, op, query string, arg interface{}) ([]*entity.ApprovalRequest, error) {
	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, arg)
	if err != nil {
		r.logger.Error("Failed to query approval requests", zap.String("op", op), zap.Error(err))
		return nil, sqlite.Classify(op, err)
	}
	defer rows.Close()

	var requests []*entity.ApprovalRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, sqlite.Classify(op, err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, sqlite.Classify(op, err)
	}
	return requests, nil
}

func scanRequest(s scanner) (*entity.ApprovalRequest, error) {
	var (
		req         entity.ApprovalRequest
		respondedAt sql.NullTime
	)
	err := s.Scan(
		&req.ID,
		&req.ExpenseID,
		&req.ApproverID,
		&req.Sequence,
		&req.Status,
		&req.Comments,
		&req.ActedBy,
		&respondedAt,
		&req.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	req.RespondedAt = timePtr(respondedAt)
	return &req, nil
}

var _ port.ApprovalRequestRepository = (*ApprovalRequestRepository)(nil)
