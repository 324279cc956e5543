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

// UserRepository implements port.UserRepository and serves as the
// database-backed org chart.
type UserRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB, logger *zap.Logger) *UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a user
func (r *UserRepository) Create(ctx context.Context, u *entity.User) error {
	query := `
		INSERT INTO users (
			id, company_id, name, role, department_id, manager_id, is_manager_approver, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}

	_, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		u.ID,
		u.CompanyID,
		u.Name,
		u.Role,
		u.DepartmentID,
		nullString(u.ManagerID),
		u.IsManagerApprover,
		u.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create user", zap.String("user_id", u.ID), zap.Error(err))
		return sqlite.Classify("create user", err)
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	query := `
		SELECT id, company_id, name, role, department_id, manager_id, is_manager_approver, created_at
		FROM users
		WHERE id = ?
	`

	u, err := scanUser(sqlite.Conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get user", zap.String("user_id", id), zap.Error(err))
		return nil, sqlite.Classify("get user", err)
	}
	return u, nil
}

// ListByCompany returns the users of a company ordered by ID
func (r *UserRepository) ListByCompany(ctx context.Context, companyID int64) ([]*entity.User, error) {
	query := `
		SELECT id, company_id, name, role, department_id, manager_id, is_manager_approver, created_at
		FROM users
		WHERE company_id = ?
		ORDER BY id ASC
	`

	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, companyID)
	if err != nil {
		r.logger.Error("Failed to list users", zap.Int64("company_id", companyID), zap.Error(err))
		return nil, sqlite.Classify("list users", err)
	}
	defer rows.Close()

	var users []*entity.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, sqlite.Classify("scan user", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, sqlite.Classify("iterate users", err)
	}
	return users, nil
}

// GetManager returns the direct manager of userID.
// An unknown user has no manager.
func (r *UserRepository) GetManager(ctx context.Context, userID string) (string, bool, error) {
	var managerID sql.NullString
	err := sqlite.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT manager_id FROM users WHERE id = ?`, userID,
	).Scan(&managerID)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		r.logger.Error("Failed to get manager", zap.String("user_id", userID), zap.Error(err))
		return "", false, sqlite.Classify("get manager", err)
	}
	if !managerID.Valid || managerID.String == "" {
		return "", false, nil
	}
	return managerID.String, true, nil
}

// IsTerminalApprover reports whether the manager walk stops at userID.
// Company admins and users flagged is_manager_approver end the walk.
func (r *UserRepository) IsTerminalApprover(ctx context.Context, userID string) (bool, error) {
	var (
		role     string
		approver bool
	)
	err := sqlite.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT role, is_manager_approver FROM users WHERE id = ?`, userID,
	).Scan(&role, &approver)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		r.logger.Error("Failed to check terminal approver", zap.String("user_id", userID), zap.Error(err))
		return false, sqlite.Classify("check terminal approver", err)
	}
	return approver || role == entity.RoleAdmin, nil
}

func scanUser(s scanner) (*entity.User, error) {
	var (
		u         entity.User
		managerID sql.NullString
	)
	err := s.Scan(
		&u.ID,
		&u.CompanyID,
		&u.Name,
		&u.Role,
		&u.DepartmentID,
		&managerID,
		&u.IsManagerApprover,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.ManagerID = managerID.String
	return &u, nil
}

var (
	_ port.UserRepository = (*UserRepository)(nil)
	_ port.OrgChart       = (*UserRepository)(nil)
)
