package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/garyjia/expense-approval/internal/infrastructure/persistence/sqlite"
)

// ruleConfig is the JSON shape of approval_rules.config; only the member matching kind is set
type ruleConfig struct {
	Sequential *entity.SequentialConfig `json:"sequential,omitempty"`
	Specific   *entity.SpecificConfig   `json:"specific,omitempty"`
	Percentage *entity.PercentageConfig `json:"percentage,omitempty"`
	Hybrid     *entity.HybridConfig     `json:"hybrid,omitempty"`
}

// RuleRepository implements port.RuleRepository
type RuleRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRuleRepository creates a new approval rule repository
func NewRuleRepository(db *sql.DB, logger *zap.Logger) port.RuleRepository {
	return &RuleRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new approval rule
func (r *RuleRepository) Create(ctx context.Context, rule *entity.ApprovalRule) error {
	if !rule.Kind.IsValid() {
		return fmt.Errorf("unknown rule kind %q", rule.Kind)
	}

	query := `
		INSERT INTO approval_rules (
			company_id, name, kind, department_id, min_amount, max_amount,
			priority, active, config, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	config, err := json.Marshal(ruleConfig{
		Sequential: rule.Sequential,
		Specific:   rule.Specific,
		Percentage: rule.Percentage,
		Hybrid:     rule.Hybrid,
	})
	if err != nil {
		return sqlite.Classify("marshal rule config", err)
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now()
	}

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		rule.CompanyID,
		rule.Name,
		string(rule.Kind),
		rule.DepartmentID,
		nullDecimal(rule.MinAmount),
		nullDecimal(rule.MaxAmount),
		rule.Priority,
		rule.Active,
		string(config),
		rule.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create approval rule",
			zap.Int64("company_id", rule.CompanyID),
			zap.String("kind", string(rule.Kind)),
			zap.Error(err))
		return sqlite.Classify("create approval rule", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return sqlite.Classify("get last insert id", err)
	}

	rule.ID = id
	return nil
}

// GetByID retrieves an approval rule by ID
func (r *RuleRepository) GetByID(ctx context.Context, id int64) (*entity.ApprovalRule, error) {
	query := `
		SELECT id, company_id, name, kind, department_id, min_amount, max_amount,
			priority, active, config, created_at
		FROM approval_rules
		WHERE id = ?
	`

	rule, err := scanRule(sqlite.Conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get approval rule", zap.Int64("id", id), zap.Error(err))
		return nil, sqlite.Classify("get approval rule", err)
	}
	return rule, nil
}

// ListActiveRules returns the active rules of a company in selection order
func (r *RuleRepository) ListActiveRules(ctx context.Context, companyID int64) ([]*entity.ApprovalRule, error) {
	query := `
		SELECT id, company_id, name, kind, department_id, min_amount, max_amount,
			priority, active, config, created_at
		FROM approval_rules
		WHERE company_id = ? AND active = 1
		ORDER BY priority ASC, id ASC
	`

	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, companyID)
	if err != nil {
		r.logger.Error("Failed to list active rules", zap.Int64("company_id", companyID), zap.Error(err))
		return nil, sqlite.Classify("list active rules", err)
	}
	defer rows.Close()

	var rules []*entity.ApprovalRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			r.logger.Error("Failed to scan approval rule", zap.Error(err))
			return nil, sqlite.Classify("scan approval rule", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, sqlite.Classify("iterate approval rules", err)
	}
	return rules, nil
}

func scanRule(s scanner) (*entity.ApprovalRule, error) {
	var (
		rule   entity.ApprovalRule
		kind   string
		minAmt decimal.NullDecimal
		maxAmt decimal.NullDecimal
		config string
	)
	err := s.Scan(
		&rule.ID,
		&rule.CompanyID,
		&rule.Name,
		&kind,
		&rule.DepartmentID,
		&minAmt,
		&maxAmt,
		&rule.Priority,
		&rule.Active,
		&config,
		&rule.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	rule.Kind = entity.RuleKind(kind)
	if minAmt.Valid {
		v := minAmt.Decimal
		rule.MinAmount = &v
	}
	if maxAmt.Valid {
		v := maxAmt.Decimal
		rule.MaxAmount = &v
	}

	var cfg ruleConfig
	if err := json.Unmarshal([]byte(config), &cfg); err != nil {
		return nil, fmt.Errorf("decode config of rule %d: %w", rule.ID, err)
	}
	rule.Sequential = cfg.Sequential
	rule.Specific = cfg.Specific
	rule.Percentage = cfg.Percentage
	rule.Hybrid = cfg.Hybrid
	return &rule, nil
}

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

var _ port.RuleRepository = (*RuleRepository)(nil)
