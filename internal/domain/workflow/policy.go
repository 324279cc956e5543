package workflow

import "github.com/garyjia/expense-approval/internal/domain/entity"

// Tally counts the live decisions on a parallel chain. Superseded requests are ignored.
type Tally struct {
	Approved int
	Rejected int
	Pending  int

	// SpecificDecision is the status of the hybrid specific approver's request, if any
	SpecificDecision string
}

// Total is the size of the slate
func (t Tally) Total() int {
	return t.Approved + t.Rejected + t.Pending
}

// Count builds a tally over the requests of one expense
func Count(policy Policy, requests []*entity.ApprovalRequest) Tally {
	var t Tally
	for _, r := range requests {
		switch r.Status {
		case entity.RequestStatusApproved:
			t.Approved++
		case entity.RequestStatusRejected:
			t.Rejected++
		case entity.RequestStatusPending:
			t.Pending++
		default:
			continue
		}
		if policy.SpecificApproverID != "" && r.ApproverID == policy.SpecificApproverID {
			t.SpecificDecision = r.Status
		}
	}
	return t
}

// Outcome evaluates a parallel policy against a tally.
// It returns the terminal state, or "" while the expense stays pending.
func (p Policy) Outcome(t Tally) State {
	switch p.Kind {
	case entity.RuleKindPercentage:
		return p.percentageOutcome(t, true)
	case entity.RuleKindHybrid:
		switch t.SpecificDecision {
		case entity.RequestStatusApproved:
			return StateApproved
		case entity.RequestStatusRejected:
			return StateRejected
		}
		// The specific approver can still approve, so an unreachable threshold does not reject
		return p.percentageOutcome(t, false)
	default:
		return ""
	}
}

func (p Policy) percentageOutcome(t Tally, canReject bool) State {
	total := t.Total()
	if total == 0 {
		return ""
	}
	if t.Approved*100 >= p.ThresholdPercent*total {
		return StateApproved
	}
	if canReject && (t.Approved+t.Pending)*100 < p.ThresholdPercent*total {
		return StateRejected
	}
	return ""
}
