package entity

import "time"

// ApprovalRequest is one approver's turn on an expense.
// Sequence numbers are contiguous per expense starting at 1.
type ApprovalRequest struct {
	ID          int64      `json:"id"`
	ExpenseID   int64      `json:"expense_id"`
	ApproverID  string     `json:"approver_id"`
	Sequence    int        `json:"sequence"`
	Status      string     `json:"status"`
	Comments    string     `json:"comments,omitempty"`
	ActedBy     string     `json:"acted_by,omitempty"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// IsPending reports whether the request is still awaiting a response
func (r *ApprovalRequest) IsPending() bool {
	return r.Status == RequestStatusPending
}
