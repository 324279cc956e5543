package entity

// Status constants for Expense
const (
	ExpenseStatusDraft    = "DRAFT"
	ExpenseStatusPending  = "PENDING"
	ExpenseStatusApproved = "APPROVED"
	ExpenseStatusRejected = "REJECTED"
)

// Status constants for ApprovalRequest
const (
	RequestStatusPending    = "PENDING"
	RequestStatusApproved   = "APPROVED"
	RequestStatusRejected   = "REJECTED"
	RequestStatusSuperseded = "SUPERSEDED"
)

// Decision is an approver's (or admin's) answer to a pending expense
type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionReject  Decision = "REJECT"
)

// IsValid reports whether d is one of the known decisions
func (d Decision) IsValid() bool {
	return d == DecisionApprove || d == DecisionReject
}

// RequestStatus maps the decision onto the resulting request status
func (d Decision) RequestStatus() string {
	if d == DecisionApprove {
		return RequestStatusApproved
	}
	return RequestStatusRejected
}

// ExpenseStatus maps the decision onto the terminal expense status it implies
func (d Decision) ExpenseStatus() string {
	if d == DecisionApprove {
		return ExpenseStatusApproved
	}
	return ExpenseStatusRejected
}

// History action constants
const (
	ActionSubmitted = "submitted"
	ActionApproved  = "approved"
	ActionRejected  = "rejected"
	ActionFinalized = "finalized"
	ActionOverride  = "override"
)

// User role constants
const (
	RoleAdmin    = "ADMIN"
	RoleManager  = "MANAGER"
	RoleEmployee = "EMPLOYEE"
)

// Expense category constants
const (
	CategoryTravel         = "TRAVEL"
	CategoryMeal           = "MEAL"
	CategoryAccommodation  = "ACCOMMODATION"
	CategoryEquipment      = "EQUIPMENT"
	CategoryTransportation = "TRANSPORTATION"
	CategoryEntertainment  = "ENTERTAINMENT"
	CategoryCommunication  = "COMMUNICATION"
	CategoryOther          = "OTHER"
)
