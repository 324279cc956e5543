package entity

import "time"

// User is a member of a company as seen by the workflow.
// ManagerID points at another user of the same company (nullable).
type User struct {
	ID                string    `json:"id"`
	CompanyID         int64     `json:"company_id"`
	Name              string    `json:"name"`
	Role              string    `json:"role"`
	DepartmentID      string    `json:"department_id,omitempty"`
	ManagerID         string    `json:"manager_id,omitempty"`
	IsManagerApprover bool      `json:"is_manager_approver"`
	CreatedAt         time.Time `json:"created_at"`
}

// Actor is the identity acting on the workflow, supplied by the transport layer.
// The engine trusts it but re-validates every authorization decision.
type Actor struct {
	ID                string `json:"id"`
	CompanyID         int64  `json:"company_id"`
	Role              string `json:"role"`
	IsAdmin           bool   `json:"is_admin"`
	IsManagerApprover bool   `json:"is_manager_approver"`
}

// CanAdminister reports whether the actor holds admin override authority for the company
func (a Actor) CanAdminister(companyID int64) bool {
	return a.IsAdmin && a.CompanyID == companyID
}
