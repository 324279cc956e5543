package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/garyjia/expense-approval/internal/domain/entity"
)

func requests(approver string, statuses ...string) []*entity.ApprovalRequest {
	out := make([]*entity.ApprovalRequest, len(statuses))
	for i, s := range statuses {
		id := approver
		if i > 0 {
			id = string(rune('a' + i))
		}
		out[i] = &entity.ApprovalRequest{ID: int64(i + 1), ApproverID: id, Sequence: i + 1, Status: s}
	}
	return out
}

const (
	pend = entity.RequestStatusPending
	appr = entity.RequestStatusApproved
	rej  = entity.RequestStatusRejected
	sup  = entity.RequestStatusSuperseded
)

func TestPolicy_PercentageOutcome(t *testing.T) {
	policy := Policy{Kind: entity.RuleKindPercentage, ThresholdPercent: 60}

	tests := []struct {
		name     string
		statuses []string
		want     State
	}{
		{"nothing decided", []string{pend, pend, pend, pend, pend}, ""},
		{"two of five", []string{appr, appr, pend, pend, pend}, ""},
		{"three of five reaches 60%", []string{appr, appr, appr, pend, pend}, StateApproved},
		{"still reachable", []string{rej, rej, pend, pend, pend}, ""},
		{"three rejections make 60% unreachable", []string{rej, rej, rej, pend, pend}, StateRejected},
		{"superseded ignored", []string{appr, appr, appr, sup, sup}, StateApproved},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reqs := requests("x", tt.statuses...)
			assert.Equal(t, tt.want, policy.Outcome(Count(policy, reqs)))
		})
	}
}

func TestPolicy_PercentageFullThreshold(t *testing.T) {
	policy := Policy{Kind: entity.RuleKindPercentage, ThresholdPercent: 100}

	assert.Equal(t, State(""), policy.Outcome(Count(policy, requests("x", appr, appr, pend))))
	assert.Equal(t, StateRejected, policy.Outcome(Count(policy, requests("x", appr, rej, pend))))
	assert.Equal(t, StateApproved, policy.Outcome(Count(policy, requests("x", appr, appr, appr))))
}

func TestPolicy_HybridOutcome(t *testing.T) {
	policy := Policy{Kind: entity.RuleKindHybrid, ThresholdPercent: 50, SpecificApproverID: "cfo"}

	tests := []struct {
		name     string
		statuses []string
		want     State
	}{
		{"specific approves alone", []string{appr, pend, pend, pend}, StateApproved},
		{"specific rejects despite majority", []string{rej, appr, appr, appr}, StateRejected},
		{"slate reaches threshold", []string{pend, appr, appr, pend}, StateApproved},
		{"unreachable threshold waits for specific", []string{pend, rej, rej, rej}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reqs := requests("cfo", tt.statuses...)
			assert.Equal(t, tt.want, policy.Outcome(Count(policy, reqs)))
		})
	}
}

func TestPolicy_SequentialHasNoTally(t *testing.T) {
	policy := Policy{Kind: entity.RuleKindSequential}
	assert.Equal(t, State(""), policy.Outcome(Count(policy, requests("x", appr, appr))))
}

func TestTally_Total(t *testing.T) {
	policy := Policy{Kind: entity.RuleKindPercentage, ThresholdPercent: 50}
	tally := Count(policy, requests("x", appr, rej, pend, sup))

	assert.Equal(t, 1, tally.Approved)
	assert.Equal(t, 1, tally.Rejected)
	assert.Equal(t, 1, tally.Pending)
	assert.Equal(t, 3, tally.Total())
}
