package workflow

import (
	"encoding/json"
	"fmt"

	"github.com/garyjia/expense-approval/internal/domain/entity"
)

// ChainEntry is one approver position of a resolved chain
type ChainEntry struct {
	Position   int    `json:"position"`
	ApproverID string `json:"approver_id"`
	Finalizes  bool   `json:"finalizes,omitempty"`
}

// Policy says how the decisions on a chain resolve into an outcome
type Policy struct {
	Kind               entity.RuleKind `json:"kind"`
	ThresholdPercent   int             `json:"threshold_percent,omitempty"`
	SpecificApproverID string          `json:"specific_approver_id,omitempty"`
}

// ResolvedChain is the ordered approver list computed for one expense at submission.
// It is snapshotted on the expense and never recomputed.
type ResolvedChain struct {
	RuleID  int64        `json:"rule_id"`
	Entries []ChainEntry `json:"entries"`
	Policy  Policy       `json:"policy"`
}

// Len returns the number of positions in the chain
func (c *ResolvedChain) Len() int {
	return len(c.Entries)
}

// At returns the entry at a 1-based position
func (c *ResolvedChain) At(position int) (ChainEntry, bool) {
	if position < 1 || position > len(c.Entries) {
		return ChainEntry{}, false
	}
	return c.Entries[position-1], true
}

// Approvers returns approver IDs in chain order
func (c *ResolvedChain) Approvers() []string {
	ids := make([]string, len(c.Entries))
	for i, e := range c.Entries {
		ids[i] = e.ApproverID
	}
	return ids
}

// Encode renders the chain for the expense snapshot column
func (c *ResolvedChain) Encode() (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to encode chain: %w", err)
	}
	return string(data), nil
}

// DecodeChain parses a chain snapshot written by Encode
func DecodeChain(snapshot string) (*ResolvedChain, error) {
	if snapshot == "" {
		return nil, fmt.Errorf("%w: expense has no chain snapshot", ErrInvalidState)
	}
	var chain ResolvedChain
	if err := json.Unmarshal([]byte(snapshot), &chain); err != nil {
		return nil, fmt.Errorf("%w: corrupt chain snapshot: %v", ErrPersistence, err)
	}
	return &chain, nil
}

func newChain(rule *entity.ApprovalRule, policy Policy) *ResolvedChain {
	return &ResolvedChain{RuleID: rule.ID, Policy: policy}
}

func (c *ResolvedChain) add(approverID string, finalizes bool) {
	c.Entries = append(c.Entries, ChainEntry{
		Position:   len(c.Entries) + 1,
		ApproverID: approverID,
		Finalizes:  finalizes,
	})
}
