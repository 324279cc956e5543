package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// RuleKind identifies which approval policy a rule carries
type RuleKind string

const (
	RuleKindSequential       RuleKind = "SEQUENTIAL"
	RuleKindSpecificApprover RuleKind = "SPECIFIC_APPROVER"
	RuleKindPercentage       RuleKind = "PERCENTAGE"
	RuleKindHybrid           RuleKind = "HYBRID"
)

// IsValid checks if the kind is a known rule kind
func (k RuleKind) IsValid() bool {
	switch k {
	case RuleKindSequential, RuleKindSpecificApprover, RuleKindPercentage, RuleKindHybrid:
		return true
	}
	return false
}

// IsParallel reports whether all approvers are asked at once
func (k RuleKind) IsParallel() bool {
	return k == RuleKindPercentage || k == RuleKindHybrid
}

// ApprovalRule is an immutable policy value describing how an expense is approved.
// Exactly one of the config pointers matching Kind is set.
type ApprovalRule struct {
	ID           int64            `json:"id"`
	CompanyID    int64            `json:"company_id"`
	Name         string           `json:"name"`
	Kind         RuleKind         `json:"kind"`
	DepartmentID string           `json:"department_id,omitempty"`
	MinAmount    *decimal.Decimal `json:"min_amount,omitempty"`
	MaxAmount    *decimal.Decimal `json:"max_amount,omitempty"`
	Priority     int              `json:"priority"`
	Active       bool             `json:"active"`

	Sequential *SequentialConfig `json:"sequential,omitempty"`
	Specific   *SpecificConfig   `json:"specific,omitempty"`
	Percentage *PercentageConfig `json:"percentage,omitempty"`
	Hybrid     *HybridConfig     `json:"hybrid,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// SequentialConfig walks the submitter's manager chain unless Steps are given
type SequentialConfig struct {
	Steps    []RuleStep `json:"steps,omitempty"`
	MaxDepth int        `json:"max_depth,omitempty"`
}

// RuleStep is one explicit position of a sequential chain.
// ManagerStep resolves to the submitter's direct manager instead of ApproverID.
type RuleStep struct {
	ApproverID  string `json:"approver_id,omitempty"`
	ManagerStep bool   `json:"manager_step,omitempty"`
	Finalizes   bool   `json:"finalizes,omitempty"`
}

// SpecificConfig names the single approver whose decision is final
type SpecificConfig struct {
	ApproverID string `json:"approver_id"`
}

// PercentageConfig asks every approver in parallel
type PercentageConfig struct {
	ApproverIDs      []string `json:"approver_ids"`
	ThresholdPercent int      `json:"threshold_percent"`
}

// HybridConfig is a percentage slate plus one approver whose decision is final
type HybridConfig struct {
	ApproverIDs        []string `json:"approver_ids"`
	ThresholdPercent   int      `json:"threshold_percent"`
	SpecificApproverID string   `json:"specific_approver_id"`
}

// Matches reports whether the rule applies to an expense of the given department and company-currency amount
func (r *ApprovalRule) Matches(departmentID string, amount decimal.Decimal) bool {
	if !r.Active {
		return false
	}
	if r.DepartmentID != "" && r.DepartmentID != departmentID {
		return false
	}
	if r.MinAmount != nil && amount.LessThan(*r.MinAmount) {
		return false
	}
	if r.MaxAmount != nil && amount.GreaterThan(*r.MaxAmount) {
		return false
	}
	return true
}
