package workflow

import (
	"context"
	"fmt"
	"sort"

	"github.com/garyjia/expense-approval/internal/domain/entity"
)

// DefaultMaxChainDepth bounds manager walks when neither the rule nor the caller sets one
const DefaultMaxChainDepth = 10

// OrgChart answers reporting-line questions for the resolver
type OrgChart interface {
	// GetManager returns the direct manager of userID; ok is false when there is none
	GetManager(ctx context.Context, userID string) (managerID string, ok bool, err error)

	// IsTerminalApprover reports whether a manager walk stops at userID
	IsTerminalApprover(ctx context.Context, userID string) (bool, error)
}

// ResolveOptions tunes chain resolution
type ResolveOptions struct {
	MaxDepth int
}

// SelectRule picks the active rule with the lowest priority matching the expense's
// department and company-currency amount. Ties go to the lowest rule ID.
func SelectRule(rules []*entity.ApprovalRule, expense *entity.Expense) (*entity.ApprovalRule, error) {
	candidates := make([]*entity.ApprovalRule, 0, len(rules))
	for _, r := range rules {
		if r == nil || r.CompanyID != expense.CompanyID {
			continue
		}
		if r.Matches(expense.DepartmentID, expense.ConvertedAmount) {
			candidates = append(candidates, r)
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no active approval rule matches expense (department=%q, amount=%s %s)",
			ErrConfiguration, expense.DepartmentID, expense.ConvertedAmount.String(), expense.CompanyCurrency)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority < candidates[j].Priority
		}
		return candidates[i].ID < candidates[j].ID
	})
	return candidates[0], nil
}

// ResolveChain computes the ordered approver chain for an expense under rule.
// It performs no writes; the same inputs always produce the same chain.
func ResolveChain(ctx context.Context, expense *entity.Expense, rule *entity.ApprovalRule, org OrgChart, opts ResolveOptions) (*ResolvedChain, error) {
	if rule == nil {
		return nil, fmt.Errorf("%w: no approval rule", ErrConfiguration)
	}

	var (
		chain *ResolvedChain
		err   error
	)
	switch rule.Kind {
	case entity.RuleKindSequential:
		chain, err = resolveSequential(ctx, expense, rule, org, opts)
	case entity.RuleKindSpecificApprover:
		chain, err = resolveSpecific(expense, rule)
	case entity.RuleKindPercentage:
		chain, err = resolvePercentage(expense, rule)
	case entity.RuleKindHybrid:
		chain, err = resolveHybrid(expense, rule)
	default:
		return nil, fmt.Errorf("%w: rule %d has unknown kind %q", ErrConfiguration, rule.ID, rule.Kind)
	}
	if err != nil {
		return nil, err
	}

	if chain.Len() == 0 {
		return nil, fmt.Errorf("%w: rule %d resolved to an empty approver chain", ErrConfiguration, rule.ID)
	}
	return chain, nil
}

func resolveSequential(ctx context.Context, expense *entity.Expense, rule *entity.ApprovalRule, org OrgChart, opts ResolveOptions) (*ResolvedChain, error) {
	cfg := rule.Sequential
	if cfg == nil {
		cfg = &entity.SequentialConfig{}
	}
	chain := newChain(rule, Policy{Kind: entity.RuleKindSequential})

	if len(cfg.Steps) > 0 {
		return chain, resolveSteps(ctx, chain, expense, cfg.Steps, org)
	}

	maxDepth := cfg.MaxDepth
	if maxDepth <= 0 {
		maxDepth = opts.MaxDepth
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxChainDepth
	}
	return chain, walkManagers(ctx, chain, expense.SubmitterID, org, maxDepth)
}

// walkManagers appends managers above submitter until a terminal approver, the top of the org
// or maxDepth is reached. Any repeated user is a cycle.
func walkManagers(ctx context.Context, chain *ResolvedChain, submitterID string, org OrgChart, maxDepth int) error {
	if org == nil {
		return fmt.Errorf("%w: manager chain requested but no org chart configured", ErrConfiguration)
	}

	seen := map[string]bool{submitterID: true}
	current := submitterID
	for depth := 0; depth < maxDepth; depth++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		managerID, ok, err := org.GetManager(ctx, current)
		if err != nil {
			return fmt.Errorf("failed to look up manager of %s: %w", current, err)
		}
		if !ok || managerID == "" {
			if depth == 0 {
				return fmt.Errorf("%w: submitter %s has no manager", ErrConfiguration, submitterID)
			}
			return nil
		}
		if seen[managerID] {
			return fmt.Errorf("%w: reporting cycle detected at %s", ErrConfiguration, managerID)
		}
		seen[managerID] = true
		chain.add(managerID, false)

		terminal, err := org.IsTerminalApprover(ctx, managerID)
		if err != nil {
			return fmt.Errorf("failed to check approver flag of %s: %w", managerID, err)
		}
		if terminal {
			return nil
		}
		current = managerID
	}
	return nil
}

func resolveSteps(ctx context.Context, chain *ResolvedChain, expense *entity.Expense, steps []entity.RuleStep, org OrgChart) error {
	seen := map[string]bool{expense.SubmitterID: true}
	for i, step := range steps {
		approverID := step.ApproverID
		if step.ManagerStep {
			if org == nil {
				return fmt.Errorf("%w: manager step requested but no org chart configured", ErrConfiguration)
			}
			managerID, ok, err := org.GetManager(ctx, expense.SubmitterID)
			if err != nil {
				return fmt.Errorf("failed to look up manager of %s: %w", expense.SubmitterID, err)
			}
			if !ok || managerID == "" {
				return fmt.Errorf("%w: submitter %s has no manager for step %d", ErrConfiguration, expense.SubmitterID, i+1)
			}
			approverID = managerID
		}
		if approverID == "" {
			return fmt.Errorf("%w: step %d has no approver", ErrConfiguration, i+1)
		}
		if seen[approverID] {
			continue
		}
		seen[approverID] = true
		chain.add(approverID, step.Finalizes)
	}
	return nil
}

func resolveSpecific(expense *entity.Expense, rule *entity.ApprovalRule) (*ResolvedChain, error) {
	if rule.Specific == nil || rule.Specific.ApproverID == "" {
		return nil, fmt.Errorf("%w: rule %d has no designated approver", ErrConfiguration, rule.ID)
	}
	approverID := rule.Specific.ApproverID
	if approverID == expense.SubmitterID {
		return nil, fmt.Errorf("%w: designated approver %s is the submitter", ErrConfiguration, approverID)
	}

	chain := newChain(rule, Policy{
		Kind:               entity.RuleKindSpecificApprover,
		SpecificApproverID: approverID,
	})
	chain.add(approverID, true)
	return chain, nil
}

func resolvePercentage(expense *entity.Expense, rule *entity.ApprovalRule) (*ResolvedChain, error) {
	cfg := rule.Percentage
	if cfg == nil {
		return nil, fmt.Errorf("%w: rule %d has no percentage configuration", ErrConfiguration, rule.ID)
	}
	if err := checkThreshold(rule.ID, cfg.ThresholdPercent); err != nil {
		return nil, err
	}

	chain := newChain(rule, Policy{
		Kind:             entity.RuleKindPercentage,
		ThresholdPercent: cfg.ThresholdPercent,
	})
	addSlate(chain, expense.SubmitterID, cfg.ApproverIDs)
	return chain, nil
}

func resolveHybrid(expense *entity.Expense, rule *entity.ApprovalRule) (*ResolvedChain, error) {
	cfg := rule.Hybrid
	if cfg == nil {
		return nil, fmt.Errorf("%w: rule %d has no hybrid configuration", ErrConfiguration, rule.ID)
	}
	if err := checkThreshold(rule.ID, cfg.ThresholdPercent); err != nil {
		return nil, err
	}
	if cfg.SpecificApproverID == "" || cfg.SpecificApproverID == expense.SubmitterID {
		return nil, fmt.Errorf("%w: rule %d needs a specific approver other than the submitter", ErrConfiguration, rule.ID)
	}

	chain := newChain(rule, Policy{
		Kind:               entity.RuleKindHybrid,
		ThresholdPercent:   cfg.ThresholdPercent,
		SpecificApproverID: cfg.SpecificApproverID,
	})
	addSlate(chain, expense.SubmitterID, append(append([]string(nil), cfg.ApproverIDs...), cfg.SpecificApproverID))
	for i := range chain.Entries {
		if chain.Entries[i].ApproverID == cfg.SpecificApproverID {
			chain.Entries[i].Finalizes = true
		}
	}
	return chain, nil
}

func checkThreshold(ruleID int64, threshold int) error {
	if threshold < 1 || threshold > 100 {
		return fmt.Errorf("%w: rule %d threshold %d%% outside 1..100", ErrConfiguration, ruleID, threshold)
	}
	return nil
}

// addSlate appends approvers in configured order, skipping blanks, repeats and the submitter
func addSlate(chain *ResolvedChain, submitterID string, approverIDs []string) {
	seen := map[string]bool{submitterID: true}
	for _, id := range approverIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		chain.add(id, false)
	}
}
