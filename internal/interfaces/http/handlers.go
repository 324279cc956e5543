package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/garyjia/expense-approval/internal/application/workflow"
	"github.com/garyjia/expense-approval/internal/domain/entity"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	engine workflow.WorkflowEngine
	db     Pinger
	logger Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(engine workflow.WorkflowEngine, db Pinger, logger Logger) *Handlers {
	return &Handlers{
		engine: engine,
		db:     db,
		logger: logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Database  string `json:"database"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// ExpenseRequest is the body of draft and submission calls
type ExpenseRequest struct {
	Amount       string `json:"amount" binding:"required"`
	Currency     string `json:"currency" binding:"required,len=3"`
	Category     string `json:"category"`
	Description  string `json:"description" binding:"max=2000"`
	ExpenseDate  string `json:"expense_date" binding:"required"`
	DepartmentID string `json:"department_id"`
	ReceiptRef   string `json:"receipt_ref"`
}

// DecisionRequest is the body of decision and override calls
type DecisionRequest struct {
	Decision string `json:"decision" binding:"required,oneof=APPROVE REJECT approve reject"`
	Comments string `json:"comments" binding:"max=2000"`
}

// ListRequest represents paging query parameters
type ListRequest struct {
	Limit  int `form:"limit"`
	Offset int `form:"offset"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Database:  "unknown",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	}
	status := http.StatusOK

	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			h.logger.Error("Database health check failed", "error", err)
			response.Status = "degraded"
			response.Database = "unavailable"
			status = http.StatusServiceUnavailable
		} else {
			response.Database = "ok"
		}
	}

	c.JSON(status, Response{
		Success: status == http.StatusOK,
		Data:    response,
	})
}

// SubmitExpense handles POST /api/expenses
func (h *Handlers) SubmitExpense(c *gin.Context) {
	draft, ok := h.bindDraft(c)
	if !ok {
		return
	}

	expense, err := h.engine.Submit(c.Request.Context(), draft)
	if err != nil {
		h.fail(c, "Failed to submit expense", err)
		return
	}

	h.logger.Info("Expense submitted", "expense_id", expense.ID, "submitter", expense.SubmitterID)
	c.JSON(http.StatusCreated, Response{Success: true, Data: expense})
}

// SaveDraft handles POST /api/expenses/drafts
func (h *Handlers) SaveDraft(c *gin.Context) {
	draft, ok := h.bindDraft(c)
	if !ok {
		return
	}

	expense, err := h.engine.SaveDraft(c.Request.Context(), draft)
	if err != nil {
		h.fail(c, "Failed to save draft", err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: expense})
}

// UpdateDraft handles PUT /api/expenses/drafts/:id
func (h *Handlers) UpdateDraft(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	draft, ok := h.bindDraft(c)
	if !ok {
		return
	}

	expense, err := h.engine.UpdateDraft(c.Request.Context(), id, actorFrom(c), draft)
	if err != nil {
		h.fail(c, "Failed to update draft", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: expense})
}

// DeleteDraft handles DELETE /api/expenses/drafts/:id
func (h *Handlers) DeleteDraft(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.engine.DeleteDraft(c.Request.Context(), id, actorFrom(c)); err != nil {
		h.fail(c, "Failed to delete draft", err)
		return
	}

	c.Status(http.StatusNoContent)
}

// SubmitDraft handles POST /api/expenses/:id/submit
func (h *Handlers) SubmitDraft(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	expense, err := h.engine.SubmitDraft(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		h.fail(c, "Failed to submit draft", err)
		return
	}

	h.logger.Info("Draft submitted", "expense_id", expense.ID)
	c.JSON(http.StatusOK, Response{Success: true, Data: expense})
}

// Decide handles POST /api/expenses/:id/requests/:requestId/decision
func (h *Handlers) Decide(c *gin.Context) {
	expenseID, ok := pathID(c, "id")
	if !ok {
		return
	}
	requestID, ok := pathID(c, "requestId")
	if !ok {
		return
	}
	decision, comments, ok := bindDecision(c)
	if !ok {
		return
	}

	actor := actorFrom(c)
	expense, err := h.engine.Decide(c.Request.Context(), expenseID, requestID, actor, decision, comments)
	if err != nil {
		h.fail(c, "Failed to record decision", err)
		return
	}

	h.logger.Info("Decision recorded",
		"expense_id", expenseID,
		"request_id", requestID,
		"actor", actor.ID,
		"decision", string(decision),
		"status", expense.Status)
	c.JSON(http.StatusOK, Response{Success: true, Data: expense})
}

// Override handles POST /api/expenses/:id/override
func (h *Handlers) Override(c *gin.Context) {
	expenseID, ok := pathID(c, "id")
	if !ok {
		return
	}
	decision, comments, ok := bindDecision(c)
	if !ok {
		return
	}

	actor := actorFrom(c)
	expense, err := h.engine.Override(c.Request.Context(), expenseID, actor, decision, comments)
	if err != nil {
		h.fail(c, "Failed to override expense", err)
		return
	}

	h.logger.Info("Expense overridden", "expense_id", expenseID, "admin", actor.ID, "status", expense.Status)
	c.JSON(http.StatusOK, Response{Success: true, Data: expense})
}

// GetExpense handles GET /api/expenses/:id
func (h *Handlers) GetExpense(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	view, err := h.engine.GetExpense(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "Failed to get expense", err)
		return
	}
	if view.Expense.CompanyID != actorFrom(c).CompanyID {
		notFound(c, "expense not found")
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: view})
}

// GetHistory handles GET /api/expenses/:id/history
func (h *Handlers) GetHistory(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	view, err := h.engine.GetExpense(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "Failed to get expense", err)
		return
	}
	if view.Expense.CompanyID != actorFrom(c).CompanyID {
		notFound(c, "expense not found")
		return
	}

	entries, err := h.engine.GetHistory(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "Failed to get history", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: entries})
}

// ListExpenses handles GET /api/expenses, the acting user's own expenses
func (h *Handlers) ListExpenses(c *gin.Context) {
	var req ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, "invalid query parameters")
		return
	}

	expenses, err := h.engine.ListSubmitted(c.Request.Context(), actorFrom(c).ID, req.Limit, req.Offset)
	if err != nil {
		h.fail(c, "Failed to list expenses", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: expenses})
}

// ListPending handles GET /api/approvals/pending, requests awaiting the acting user
func (h *Handlers) ListPending(c *gin.Context) {
	requests, err := h.engine.GetPendingFor(c.Request.Context(), actorFrom(c).ID)
	if err != nil {
		h.fail(c, "Failed to list pending approvals", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: requests})
}

// bindDraft parses the body into a draft owned by the acting user
func (h *Handlers) bindDraft(c *gin.Context) (*entity.ExpenseDraft, bool) {
	var req ExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return nil, false
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		badRequest(c, "invalid amount")
		return nil, false
	}
	date, err := parseDate(req.ExpenseDate)
	if err != nil {
		badRequest(c, "invalid expense_date, expected YYYY-MM-DD or RFC3339")
		return nil, false
	}

	actor := actorFrom(c)
	return &entity.ExpenseDraft{
		CompanyID:    actor.CompanyID,
		SubmitterID:  actor.ID,
		DepartmentID: req.DepartmentID,
		Amount:       amount,
		Currency:     req.Currency,
		Category:     strings.ToUpper(req.Category),
		Description:  req.Description,
		ExpenseDate:  date,
		ReceiptRef:   req.ReceiptRef,
	}, true
}

func bindDecision(c *gin.Context) (entity.Decision, string, bool) {
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return "", "", false
	}
	decision, err := workflow.ParseDecision(req.Decision)
	if err != nil {
		badRequest(c, err.Error())
		return "", "", false
	}
	return decision, req.Comments, true
}

func pathID(c *gin.Context, name string) (int64, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func notFound(c *gin.Context, msg string) {
	c.JSON(http.StatusNotFound, Response{
		Success: false,
		Error:   msg,
	})
}
