package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Expense represents a submitted (or draft) company expense
type Expense struct {
	ID           int64  `json:"id"`
	CompanyID    int64  `json:"company_id"`
	SubmitterID  string `json:"submitter_id"`
	DepartmentID string `json:"department_id,omitempty"`

	// Original values as entered by the submitter
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`

	// Company currency values, frozen at submission
	ConvertedAmount decimal.Decimal `json:"converted_amount"`
	CompanyCurrency string          `json:"company_currency"`
	ConversionRate  decimal.Decimal `json:"conversion_rate"`
	ConvertedAt     *time.Time      `json:"converted_at,omitempty"`

	Category    string    `json:"category"`
	Description string    `json:"description"`
	ExpenseDate time.Time `json:"expense_date"`
	ReceiptRef  string    `json:"receipt_ref,omitempty"`
	Status      string    `json:"status"`

	// Rule and chain snapshot taken when the workflow started
	RuleID        int64  `json:"rule_id,omitempty"`
	ChainSnapshot string `json:"chain_snapshot,omitempty"`

	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	FinalizedAt *time.Time `json:"finalized_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// IsTerminal reports whether the expense reached APPROVED or REJECTED
func (e *Expense) IsTerminal() bool {
	return e.Status == ExpenseStatusApproved || e.Status == ExpenseStatusRejected
}

// ExpenseDraft carries submitter input before the workflow takes ownership
type ExpenseDraft struct {
	CompanyID    int64           `json:"company_id"`
	SubmitterID  string          `json:"submitter_id"`
	DepartmentID string          `json:"department_id,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	Category     string          `json:"category"`
	Description  string          `json:"description"`
	ExpenseDate  time.Time       `json:"expense_date"`
	ReceiptRef   string          `json:"receipt_ref,omitempty"`
}

// ApplyTo copies the submitter-editable fields onto an expense
func (d *ExpenseDraft) ApplyTo(e *Expense) {
	e.CompanyID = d.CompanyID
	e.SubmitterID = d.SubmitterID
	e.DepartmentID = d.DepartmentID
	e.Amount = d.Amount
	e.Currency = d.Currency
	e.Category = d.Category
	e.Description = d.Description
	e.ExpenseDate = d.ExpenseDate
	e.ReceiptRef = d.ReceiptRef
}

// Company is the owning organisation of expenses and rules
type Company struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Country   string    `json:"country,omitempty"`
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"created_at"`
}
