package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/expense-approval/internal/application/workflow"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	domainwf "github.com/garyjia/expense-approval/internal/domain/workflow"
)

type mockEngine struct {
	mock.Mock
}

func (m *mockEngine) expense(args mock.Arguments) (*entity.Expense, error) {
	e, _ := args.Get(0).(*entity.Expense)
	return e, args.Error(1)
}

func (m *mockEngine) Submit(ctx context.Context, draft *entity.ExpenseDraft) (*entity.Expense, error) {
	return m.expense(m.Called(ctx, draft))
}

func (m *mockEngine) SaveDraft(ctx context.Context, draft *entity.ExpenseDraft) (*entity.Expense, error) {
	return m.expense(m.Called(ctx, draft))
}

func (m *mockEngine) UpdateDraft(ctx context.Context, id int64, actor entity.Actor, draft *entity.ExpenseDraft) (*entity.Expense, error) {
	return m.expense(m.Called(ctx, id, actor, draft))
}

func (m *mockEngine) DeleteDraft(ctx context.Context, id int64, actor entity.Actor) error {
	return m.Called(ctx, id, actor).Error(0)
}

func (m *mockEngine) SubmitDraft(ctx context.Context, id int64, actor entity.Actor) (*entity.Expense, error) {
	return m.expense(m.Called(ctx, id, actor))
}

func (m *mockEngine) Decide(ctx context.Context, expenseID, requestID int64, actor entity.Actor, d entity.Decision, comments string) (*entity.Expense, error) {
	return m.expense(m.Called(ctx, expenseID, requestID, actor, d, comments))
}

func (m *mockEngine) Override(ctx context.Context, expenseID int64, admin entity.Actor, d entity.Decision, comments string) (*entity.Expense, error) {
	return m.expense(m.Called(ctx, expenseID, admin, d, comments))
}

func (m *mockEngine) GetExpense(ctx context.Context, id int64) (*workflow.ExpenseView, error) {
	args := m.Called(ctx, id)
	v, _ := args.Get(0).(*workflow.ExpenseView)
	return v, args.Error(1)
}

func (m *mockEngine) ListSubmitted(ctx context.Context, submitterID string, limit, offset int) ([]*entity.Expense, error) {
	args := m.Called(ctx, submitterID, limit, offset)
	v, _ := args.Get(0).([]*entity.Expense)
	return v, args.Error(1)
}

func (m *mockEngine) GetHistory(ctx context.Context, id int64) ([]*entity.ApprovalHistory, error) {
	args := m.Called(ctx, id)
	v, _ := args.Get(0).([]*entity.ApprovalHistory)
	return v, args.Error(1)
}

func (m *mockEngine) GetPendingFor(ctx context.Context, userID string) ([]*entity.ApprovalRequest, error) {
	args := m.Called(ctx, userID)
	v, _ := args.Get(0).([]*entity.ApprovalRequest)
	return v, args.Error(1)
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

type stubPinger struct{ err error }

func (p stubPinger) PingContext(context.Context) error { return p.err }

var mgr = entity.Actor{ID: "mgr", CompanyID: 1, Role: entity.RoleManager}

func newTestServer(engine workflow.WorkflowEngine, db Pinger) *gin.Engine {
	return NewServer(ServerConfig{Mode: gin.TestMode}, engine, db, nopLogger{}).Router()
}

func do(t *testing.T, router *gin.Engine, method, path string, body interface{}, actor *entity.Actor) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		req.Header.Set(HeaderUserID, actor.ID)
		req.Header.Set(HeaderCompanyID, "1")
		req.Header.Set(HeaderUserRole, actor.Role)
		if actor.IsAdmin {
			req.Header.Set(HeaderAdmin, "true")
		}
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp Response
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func TestHealthCheck(t *testing.T) {
	w, resp := do(t, newTestServer(&mockEngine{}, stubPinger{}), http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)

	w, resp = do(t, newTestServer(&mockEngine{}, stubPinger{err: errors.New("closed")}), http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.False(t, resp.Success)
}

func TestActorHeadersRequired(t *testing.T) {
	w, _ := do(t, newTestServer(&mockEngine{}, nil), http.MethodGet, "/api/approvals/pending", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSubmitExpense(t *testing.T) {
	engine := &mockEngine{}
	employee := entity.Actor{ID: "emp", CompanyID: 1, Role: entity.RoleEmployee}

	engine.On("Submit", mock.Anything, mock.MatchedBy(func(d *entity.ExpenseDraft) bool {
		return d.SubmitterID == "emp" && d.CompanyID == 1 &&
			d.Amount.Equal(decimal.RequireFromString("99.90")) &&
			d.Currency == "EUR" && d.Category == entity.CategoryTravel &&
			d.ExpenseDate.Format("2006-01-02") == "2026-02-14"
	})).Return(&entity.Expense{ID: 7, Status: entity.ExpenseStatusPending}, nil)

	w, resp := do(t, newTestServer(engine, nil), http.MethodPost, "/api/expenses", ExpenseRequest{
		Amount:      "99.90",
		Currency:    "EUR",
		Category:    "travel",
		ExpenseDate: "2026-02-14",
	}, &employee)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, resp.Success)
	engine.AssertExpectations(t)
}

func TestSubmitExpense_BadBody(t *testing.T) {
	engine := &mockEngine{}
	employee := entity.Actor{ID: "emp", CompanyID: 1}
	router := newTestServer(engine, nil)

	tests := []struct {
		name string
		body ExpenseRequest
	}{
		{"missing amount", ExpenseRequest{Currency: "EUR", ExpenseDate: "2026-02-14"}},
		{"bad currency", ExpenseRequest{Amount: "1", Currency: "EURO", ExpenseDate: "2026-02-14"}},
		{"bad amount", ExpenseRequest{Amount: "ten", Currency: "EUR", ExpenseDate: "2026-02-14"}},
		{"bad date", ExpenseRequest{Amount: "1", Currency: "EUR", ExpenseDate: "14/02/2026"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := do(t, router, http.MethodPost, "/api/expenses", tt.body, &employee)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.False(t, resp.Success)
		})
	}
	engine.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
}

func TestDecide(t *testing.T) {
	engine := &mockEngine{}
	engine.On("Decide", mock.Anything, int64(3), int64(11), mgr, entity.DecisionApprove, "looks fine").
		Return(&entity.Expense{ID: 3, Status: entity.ExpenseStatusApproved}, nil)

	w, resp := do(t, newTestServer(engine, nil), http.MethodPost, "/api/expenses/3/requests/11/decision",
		DecisionRequest{Decision: "approve", Comments: "looks fine"}, &mgr)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
	engine.AssertExpectations(t)
}

func TestDecide_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"unauthorized", domainwf.ErrUnauthorizedDecision, http.StatusForbidden},
		{"not found", domainwf.ErrNotFound, http.StatusNotFound},
		{"invalid state", domainwf.ErrInvalidState, http.StatusConflict},
		{"finalized", domainwf.ErrAlreadyFinalized, http.StatusConflict},
		{"configuration", domainwf.ErrConfiguration, http.StatusUnprocessableEntity},
		{"contention", domainwf.ErrContention, http.StatusServiceUnavailable},
		{"persistence", domainwf.Persistence("respond", errors.New("disk full")), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &mockEngine{}
			engine.On("Decide", mock.Anything, int64(3), int64(11), mgr, entity.DecisionReject, "").Return(nil, tt.err)

			w, resp := do(t, newTestServer(engine, nil), http.MethodPost, "/api/expenses/3/requests/11/decision",
				DecisionRequest{Decision: "REJECT"}, &mgr)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.False(t, resp.Success)
			if tt.wantStatus == http.StatusServiceUnavailable {
				assert.NotEmpty(t, w.Header().Get("Retry-After"))
			}
			if tt.wantStatus == http.StatusInternalServerError {
				assert.Equal(t, "internal error", resp.Error)
			}
		})
	}
}

func TestDecide_InvalidInput(t *testing.T) {
	engine := &mockEngine{}
	router := newTestServer(engine, nil)

	w, _ := do(t, router, http.MethodPost, "/api/expenses/abc/requests/1/decision", DecisionRequest{Decision: "APPROVE"}, &mgr)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, router, http.MethodPost, "/api/expenses/1/requests/1/decision", DecisionRequest{Decision: "MAYBE"}, &mgr)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	engine.AssertNotCalled(t, "Decide", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestOverride(t *testing.T) {
	admin := entity.Actor{ID: "boss", CompanyID: 1, Role: entity.RoleAdmin, IsAdmin: true}
	engine := &mockEngine{}
	engine.On("Override", mock.Anything, int64(5), admin, entity.DecisionReject, "duplicate").
		Return(&entity.Expense{ID: 5, Status: entity.ExpenseStatusRejected}, nil)

	w, _ := do(t, newTestServer(engine, nil), http.MethodPost, "/api/expenses/5/override",
		DecisionRequest{Decision: "REJECT", Comments: "duplicate"}, &admin)

	assert.Equal(t, http.StatusOK, w.Code)
	engine.AssertExpectations(t)
}

func TestGetExpense_HidesOtherCompanies(t *testing.T) {
	engine := &mockEngine{}
	engine.On("GetExpense", mock.Anything, int64(1)).
		Return(&workflow.ExpenseView{Expense: &entity.Expense{ID: 1, CompanyID: 1}}, nil)
	engine.On("GetExpense", mock.Anything, int64(2)).
		Return(&workflow.ExpenseView{Expense: &entity.Expense{ID: 2, CompanyID: 9}}, nil)
	router := newTestServer(engine, nil)

	w, _ := do(t, router, http.MethodGet, "/api/expenses/1", nil, &mgr)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = do(t, router, http.MethodGet, "/api/expenses/2", nil, &mgr)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetHistory(t *testing.T) {
	engine := &mockEngine{}
	engine.On("GetExpense", mock.Anything, int64(1)).
		Return(&workflow.ExpenseView{Expense: &entity.Expense{ID: 1, CompanyID: 1}}, nil)
	engine.On("GetHistory", mock.Anything, int64(1)).Return([]*entity.ApprovalHistory{
		{ID: 1, ExpenseID: 1, Action: entity.ActionSubmitted},
		{ID: 2, ExpenseID: 1, Action: entity.ActionApproved},
	}, nil)

	w, resp := do(t, newTestServer(engine, nil), http.MethodGet, "/api/expenses/1/history", nil, &mgr)
	require.Equal(t, http.StatusOK, w.Code)
	entries, ok := resp.Data.([]interface{})
	require.True(t, ok)
	assert.Len(t, entries, 2)
}

func TestDrafts(t *testing.T) {
	employee := entity.Actor{ID: "emp", CompanyID: 1, Role: entity.RoleEmployee}
	body := ExpenseRequest{Amount: "5", Currency: "USD", ExpenseDate: "2026-01-01T10:00:00Z"}
	engine := &mockEngine{}
	engine.On("SaveDraft", mock.Anything, mock.Anything).Return(&entity.Expense{ID: 4, Status: entity.ExpenseStatusDraft}, nil)
	engine.On("UpdateDraft", mock.Anything, int64(4), employee, mock.Anything).Return(&entity.Expense{ID: 4}, nil)
	engine.On("SubmitDraft", mock.Anything, int64(4), employee).Return(&entity.Expense{ID: 4, Status: entity.ExpenseStatusPending}, nil)
	engine.On("DeleteDraft", mock.Anything, int64(8), employee).Return(domainwf.ErrInvalidState)
	router := newTestServer(engine, nil)

	w, _ := do(t, router, http.MethodPost, "/api/expenses/drafts", body, &employee)
	assert.Equal(t, http.StatusCreated, w.Code)

	w, _ = do(t, router, http.MethodPut, "/api/expenses/drafts/4", body, &employee)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = do(t, router, http.MethodPost, "/api/expenses/4/submit", nil, &employee)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = do(t, router, http.MethodDelete, "/api/expenses/drafts/8", nil, &employee)
	assert.Equal(t, http.StatusConflict, w.Code)

	engine.AssertExpectations(t)
}

func TestListEndpoints(t *testing.T) {
	engine := &mockEngine{}
	engine.On("ListSubmitted", mock.Anything, "mgr", 5, 10).Return([]*entity.Expense{{ID: 1}}, nil)
	engine.On("GetPendingFor", mock.Anything, "mgr").Return([]*entity.ApprovalRequest{{ID: 3}}, nil)
	router := newTestServer(engine, nil)

	w, _ := do(t, router, http.MethodGet, "/api/expenses?limit=5&offset=10", nil, &mgr)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = do(t, router, http.MethodGet, "/api/approvals/pending", nil, &mgr)
	assert.Equal(t, http.StatusOK, w.Code)

	engine.AssertExpectations(t)
}
