package entity

import "time"

// ApprovalHistory represents one immutable audit trail entry of an expense
type ApprovalHistory struct {
	ID        int64                  `json:"id"`
	ExpenseID int64                  `json:"expense_id"`
	ActorID   string                 `json:"actor_id,omitempty"` // empty for system actions
	Action    string                 `json:"action"`
	Comments  string                 `json:"comments,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}
