package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/garyjia/expense-approval/internal/infrastructure/persistence/sqlite"
)

// HistoryRepository implements port.HistoryRepository
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends a history record
func (r *HistoryRepository) Create(ctx context.Context, history *entity.ApprovalHistory) error {
	query := `
		INSERT INTO approval_history (
			expense_id, actor_id, action, comments, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	metadata := "{}"
	if len(history.Metadata) > 0 {
		data, err := json.Marshal(history.Metadata)
		if err != nil {
			return sqlite.Classify("marshal history metadata", err)
		}
		metadata = string(data)
	}
	if history.CreatedAt.IsZero() {
		history.CreatedAt = time.Now()
	}

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		history.ExpenseID,
		history.ActorID,
		history.Action,
		history.Comments,
		metadata,
		history.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create history record",
			zap.Int64("expense_id", history.ExpenseID),
			zap.String("action", history.Action),
			zap.Error(err))
		return sqlite.Classify("create history", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return sqlite.Classify("get last insert id", err)
	}

	history.ID = id
	return nil
}

// ListByExpense retrieves the audit trail of an expense in chronological order
func (r *HistoryRepository) ListByExpense(ctx context.Context, expenseID int64) ([]*entity.ApprovalHistory, error) {
	query := `
		SELECT id, expense_id, actor_id, action, comments, metadata, created_at
		FROM approval_history
		WHERE expense_id = ?
		ORDER BY created_at ASC, id ASC
	`

	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, expenseID)
	if err != nil {
		r.logger.Error("Failed to get history by expense ID", zap.Int64("expense_id", expenseID), zap.Error(err))
		return nil, sqlite.Classify("get history", err)
	}
	defer rows.Close()

	var records []*entity.ApprovalHistory
	for rows.Next() {
		var (
			record   entity.ApprovalHistory
			metadata string
		)
		err := rows.Scan(
			&record.ID,
			&record.ExpenseID,
			&record.ActorID,
			&record.Action,
			&record.Comments,
			&metadata,
			&record.CreatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to scan history record", zap.Error(err))
			return nil, sqlite.Classify("scan history", err)
		}
		if metadata != "" && metadata != "{}" {
			if err := json.Unmarshal([]byte(metadata), &record.Metadata); err != nil {
				r.logger.Error("Failed to decode history metadata",
					zap.Int64("id", record.ID),
					zap.Error(err))
				return nil, sqlite.Classify("decode history metadata", err)
			}
		}
		records = append(records, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, sqlite.Classify("iterate history", err)
	}
	return records, nil
}

var _ port.HistoryRepository = (*HistoryRepository)(nil)
