// Package fixture seeds companies, users and approval rules from a YAML file.
package fixture

import (
	"context"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/entity"
)

// File is the root of a seed document
type File struct {
	Companies []Company `yaml:"companies" validate:"required,min=1,dive"`
}

// Company is one organisation with its people and rules
type Company struct {
	Name     string `yaml:"name" validate:"required"`
	Country  string `yaml:"country"`
	Currency string `yaml:"currency" validate:"required,len=3"`
	Users    []User `yaml:"users" validate:"dive"`
	Rules    []Rule `yaml:"rules" validate:"dive"`
}

// User is one member of a company. Manager refers to another user's ID.
type User struct {
	ID              string `yaml:"id" validate:"required"`
	Name            string `yaml:"name" validate:"required"`
	Role            string `yaml:"role" validate:"omitempty,oneof=ADMIN MANAGER EMPLOYEE"`
	Department      string `yaml:"department"`
	Manager         string `yaml:"manager"`
	ManagerApprover bool   `yaml:"manager_approver"`
}

// Rule is an approval rule; only the block matching Kind is read
type Rule struct {
	Name       string `yaml:"name" validate:"required"`
	Kind       string `yaml:"kind" validate:"required,oneof=SEQUENTIAL SPECIFIC_APPROVER PERCENTAGE HYBRID"`
	Department string `yaml:"department"`
	MinAmount  string `yaml:"min_amount" validate:"omitempty,numeric"`
	MaxAmount  string `yaml:"max_amount" validate:"omitempty,numeric"`
	Priority   int    `yaml:"priority"`
	Inactive   bool   `yaml:"inactive"`

	Steps    []Step `yaml:"steps"`
	MaxDepth int    `yaml:"max_depth" validate:"gte=0"`

	Approver         string   `yaml:"approver"`
	Approvers        []string `yaml:"approvers"`
	ThresholdPercent int      `yaml:"threshold_percent" validate:"gte=0,lte=100"`
}

// Step is one explicit sequential step
type Step struct {
	Approver  string `yaml:"approver"`
	Manager   bool   `yaml:"manager"`
	Finalizes bool   `yaml:"finalizes"`
}

// Load reads and validates a seed file
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a seed document
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal fixture: %w", err)
	}
	if err := validator.New().Struct(&f); err != nil {
		return nil, fmt.Errorf("invalid fixture: %w", err)
	}
	return &f, nil
}

// Seeder writes a fixture through the repositories in a single transaction
type Seeder struct {
	tx        port.TransactionManager
	companies port.CompanyRepository
	users     port.UserRepository
	rules     port.RuleRepository
	logger    *zap.Logger
}

// Result counts what a seed run created
type Result struct {
	Companies []int64
	Users     int
	Rules     int
}

// NewSeeder creates a Seeder
func NewSeeder(tx port.TransactionManager, companies port.CompanyRepository, users port.UserRepository, rules port.RuleRepository, logger *zap.Logger) *Seeder {
	return &Seeder{tx: tx, companies: companies, users: users, rules: rules, logger: logger}
}

// Apply creates every company, user and rule of f. Nothing is written when any record fails.
func (s *Seeder) Apply(ctx context.Context, f *File) (*Result, error) {
	res := &Result{}
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		for _, c := range f.Companies {
			company := &entity.Company{Name: c.Name, Country: c.Country, Currency: c.Currency}
			if err := s.companies.Create(ctx, company); err != nil {
				return fmt.Errorf("create company %q: %w", c.Name, err)
			}
			res.Companies = append(res.Companies, company.ID)

			users, err := managersFirst(c.Users)
			if err != nil {
				return fmt.Errorf("company %q: %w", c.Name, err)
			}
			for _, u := range users {
				if err := s.users.Create(ctx, u.toEntity(company.ID)); err != nil {
					return fmt.Errorf("create user %q: %w", u.ID, err)
				}
				res.Users++
			}

			for _, r := range c.Rules {
				rule, err := r.toEntity(company.ID)
				if err != nil {
					return fmt.Errorf("rule %q: %w", r.Name, err)
				}
				if err := s.rules.Create(ctx, rule); err != nil {
					return fmt.Errorf("create rule %q: %w", r.Name, err)
				}
				res.Rules++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Fixture applied",
		zap.Int("companies", len(res.Companies)),
		zap.Int("users", res.Users),
		zap.Int("rules", res.Rules))
	return res, nil
}

// managersFirst orders users so that every manager is created before its reports
func managersFirst(users []User) ([]User, error) {
	known := make(map[string]bool, len(users))
	for _, u := range users {
		if known[u.ID] {
			return nil, fmt.Errorf("duplicate user %q", u.ID)
		}
		known[u.ID] = true
	}

	placed := make(map[string]bool, len(users))
	ordered := make([]User, 0, len(users))
	for len(ordered) < len(users) {
		progress := false
		for _, u := range users {
			if placed[u.ID] {
				continue
			}
			if u.Manager != "" && !known[u.Manager] {
				return nil, fmt.Errorf("user %q has unknown manager %q", u.ID, u.Manager)
			}
			if u.Manager == "" || placed[u.Manager] {
				ordered = append(ordered, u)
				placed[u.ID] = true
				progress = true
			}
		}
		if !progress {
			return nil, fmt.Errorf("manager cycle among users")
		}
	}
	return ordered, nil
}

func (u User) toEntity(companyID int64) *entity.User {
	role := u.Role
	if role == "" {
		role = entity.RoleEmployee
	}
	return &entity.User{
		ID:                u.ID,
		CompanyID:         companyID,
		Name:              u.Name,
		Role:              role,
		DepartmentID:      u.Department,
		ManagerID:         u.Manager,
		IsManagerApprover: u.ManagerApprover,
	}
}

func (r Rule) toEntity(companyID int64) (*entity.ApprovalRule, error) {
	rule := &entity.ApprovalRule{
		CompanyID:    companyID,
		Name:         r.Name,
		Kind:         entity.RuleKind(r.Kind),
		DepartmentID: r.Department,
		Priority:     r.Priority,
		Active:       !r.Inactive,
	}

	var err error
	if rule.MinAmount, err = optionalDecimal(r.MinAmount); err != nil {
		return nil, err
	}
	if rule.MaxAmount, err = optionalDecimal(r.MaxAmount); err != nil {
		return nil, err
	}

	switch rule.Kind {
	case entity.RuleKindSequential:
		cfg := &entity.SequentialConfig{MaxDepth: r.MaxDepth}
		for _, s := range r.Steps {
			cfg.Steps = append(cfg.Steps, entity.RuleStep{ApproverID: s.Approver, ManagerStep: s.Manager, Finalizes: s.Finalizes})
		}
		rule.Sequential = cfg
	case entity.RuleKindSpecificApprover:
		rule.Specific = &entity.SpecificConfig{ApproverID: r.Approver}
	case entity.RuleKindPercentage:
		rule.Percentage = &entity.PercentageConfig{ApproverIDs: r.Approvers, ThresholdPercent: r.ThresholdPercent}
	case entity.RuleKindHybrid:
		rule.Hybrid = &entity.HybridConfig{
			ApproverIDs:        r.Approvers,
			ThresholdPercent:   r.ThresholdPercent,
			SpecificApproverID: r.Approver,
		}
	}
	return rule, nil
}

func optionalDecimal(raw string) (*decimal.Decimal, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	return &d, nil
}
