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

// CompanyRepository implements port.CompanyRepository
type CompanyRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCompanyRepository creates a new company repository
func NewCompanyRepository(db *sql.DB, logger *zap.Logger) port.CompanyRepository {
	return &CompanyRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a company
func (r *CompanyRepository) Create(ctx context.Context, c *entity.Company) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO companies (name, country, currency, created_at) VALUES (?, ?, ?, ?)`,
		c.Name, c.Country, c.Currency, c.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to create company", zap.String("name", c.Name), zap.Error(err))
		return sqlite.Classify("create company", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return sqlite.Classify("get last insert id", err)
	}
	c.ID = id
	return nil
}

// GetByID retrieves a company by ID
func (r *CompanyRepository) GetByID(ctx context.Context, id int64) (*entity.Company, error) {
	var c entity.Company
	err := sqlite.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT id, name, country, currency, created_at FROM companies WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.Country, &c.Currency, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get company", zap.Int64("id", id), zap.Error(err))
		return nil, sqlite.Classify("get company", err)
	}
	return &c, nil
}

var _ port.CompanyRepository = (*CompanyRepository)(nil)
