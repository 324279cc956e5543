package workflow

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/expense-approval/internal/application/dispatcher"
	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/garyjia/expense-approval/internal/domain/event"
	domainwf "github.com/garyjia/expense-approval/internal/domain/workflow"
)

var errDiskFull = errors.New("disk full")

// memStore is an in-memory store whose WithTransaction rolls back on error
type memStore struct {
	mu        sync.Mutex
	nextID    int64
	expenses  map[int64]entity.Expense
	requests  map[int64]entity.ApprovalRequest
	history   []entity.ApprovalHistory
	rules     []*entity.ApprovalRule
	companies map[int64]*entity.Company

	failHistoryAction string
	failRespond       bool
}

func newMemStore() *memStore {
	return &memStore{
		expenses:  make(map[int64]entity.Expense),
		requests:  make(map[int64]entity.ApprovalRequest),
		companies: make(map[int64]*entity.Company),
	}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	expenses := make(map[int64]entity.Expense, len(s.expenses))
	for k, v := range s.expenses {
		expenses[k] = v
	}
	requests := make(map[int64]entity.ApprovalRequest, len(s.requests))
	for k, v := range s.requests {
		requests[k] = v
	}
	history := append([]entity.ApprovalHistory(nil), s.history...)
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.expenses, s.requests, s.history = expenses, requests, history
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *memStore) historyFor(expenseID int64) []entity.ApprovalHistory {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.ApprovalHistory
	for _, h := range s.history {
		if h.ExpenseID == expenseID {
			out = append(out, h)
		}
	}
	return out
}

func (s *memStore) requestsFor(expenseID int64) []entity.ApprovalRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.ApprovalRequest
	for _, r := range s.requests {
		if r.ExpenseID == expenseID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}

func (s *memStore) pendingCount(expenseID int64) int {
	n := 0
	for _, r := range s.requestsFor(expenseID) {
		if r.Status == entity.RequestStatusPending {
			n++
		}
	}
	return n
}

// expense repository

type memExpenses struct{ s *memStore }

func (r memExpenses) Create(ctx context.Context, e *entity.Expense) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e.ID = r.s.id()
	r.s.expenses[e.ID] = *e
	return nil
}

func (r memExpenses) GetByID(ctx context.Context, id int64) (*entity.Expense, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.expenses[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (r memExpenses) ListBySubmitter(ctx context.Context, submitterID string, limit, offset int) ([]*entity.Expense, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Expense
	for _, e := range r.s.expenses {
		if e.SubmitterID == submitterID {
			cp := e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r memExpenses) UpdateDraft(ctx context.Context, e *entity.Expense) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.expenses[e.ID]
	if !ok || cur.Status != entity.ExpenseStatusDraft {
		return false, nil
	}
	r.s.expenses[e.ID] = *e
	return true, nil
}

func (r memExpenses) DeleteDraft(ctx context.Context, id int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.expenses[id]
	if !ok || cur.Status != entity.ExpenseStatusDraft {
		return false, nil
	}
	delete(r.s.expenses, id)
	return true, nil
}

func (r memExpenses) MarkSubmitted(ctx context.Context, e *entity.Expense) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.expenses[e.ID]
	if !ok || cur.Status != entity.ExpenseStatusDraft {
		return false, nil
	}
	r.s.expenses[e.ID] = *e
	return true, nil
}

func (r memExpenses) Finalize(ctx context.Context, id int64, status string, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.expenses[id]
	if !ok || cur.Status != entity.ExpenseStatusPending {
		return false, nil
	}
	cur.Status = status
	cur.FinalizedAt = &at
	r.s.expenses[id] = cur
	return true, nil
}

// approval request repository

type memRequests struct{ s *memStore }

func (r memRequests) Create(ctx context.Context, req *entity.ApprovalRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	req.ID = r.s.id()
	r.s.requests[req.ID] = *req
	return nil
}

func (r memRequests) GetByID(ctx context.Context, id int64) (*entity.ApprovalRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	req, ok := r.s.requests[id]
	if !ok {
		return nil, nil
	}
	return &req, nil
}

func (r memRequests) ListByExpense(ctx context.Context, expenseID int64) ([]*entity.ApprovalRequest, error) {
	var out []*entity.ApprovalRequest
	for _, req := range r.s.requestsFor(expenseID) {
		cp := req
		out = append(out, &cp)
	}
	return out, nil
}

func (r memRequests) Respond(ctx context.Context, id int64, status, actedBy, comments string, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failRespond {
		return false, errDiskFull
	}
	req, ok := r.s.requests[id]
	if !ok || req.Status != entity.RequestStatusPending {
		return false, nil
	}
	req.Status, req.ActedBy, req.Comments, req.RespondedAt = status, actedBy, comments, &at
	r.s.requests[id] = req
	return true, nil
}

func (r memRequests) SupersedePending(ctx context.Context, expenseID int64, at time.Time) ([]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var ids []int64
	for id, req := range r.s.requests {
		if req.ExpenseID == expenseID && req.Status == entity.RequestStatusPending {
			req.Status = entity.RequestStatusSuperseded
			req.RespondedAt = &at
			r.s.requests[id] = req
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r memRequests) ListPendingForApprover(ctx context.Context, approverID string) ([]*entity.ApprovalRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.ApprovalRequest
	for _, req := range r.s.requests {
		if req.ApproverID == approverID && req.Status == entity.RequestStatusPending &&
			r.s.expenses[req.ExpenseID].Status == entity.ExpenseStatusPending {
			cp := req
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// history repository

type memHistory struct{ s *memStore }

func (r memHistory) Create(ctx context.Context, h *entity.ApprovalHistory) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failHistoryAction != "" && r.s.failHistoryAction == h.Action {
		return errDiskFull
	}
	h.ID = r.s.id()
	r.s.history = append(r.s.history, *h)
	return nil
}

func (r memHistory) ListByExpense(ctx context.Context, expenseID int64) ([]*entity.ApprovalHistory, error) {
	var out []*entity.ApprovalHistory
	for _, h := range r.s.historyFor(expenseID) {
		cp := h
		out = append(out, &cp)
	}
	return out, nil
}

// rules and companies

type memRules struct{ s *memStore }

func (r memRules) ListActiveRules(ctx context.Context, companyID int64) ([]*entity.ApprovalRule, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.ApprovalRule
	for _, rule := range r.s.rules {
		if rule.CompanyID == companyID && rule.Active {
			out = append(out, rule)
		}
	}
	return out, nil
}

type memCompanies struct{ s *memStore }

func (r memCompanies) Create(ctx context.Context, c *entity.Company) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.companies[c.ID] = c
	return nil
}

func (r memCompanies) GetByID(ctx context.Context, id int64) (*entity.Company, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.companies[id], nil
}

// collaborators

type fixedConverter struct {
	mu    sync.Mutex
	rates map[string]decimal.Decimal
	err   error
	at    time.Time
}

func (c *fixedConverter) setRate(pair string, rate string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rates[pair] = decimal.RequireFromString(rate)
}

func (c *fixedConverter) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (*port.Conversion, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	rate := decimal.NewFromInt(1)
	if from != to {
		r, ok := c.rates[from+to]
		if !ok {
			return nil, errors.New("no rate")
		}
		rate = r
	}
	return &port.Conversion{Amount: amount.Mul(rate).Round(2), Rate: rate, Timestamp: c.at}, nil
}

type mapOrgChart struct {
	managers map[string]string
	terminal map[string]bool
}

func (o *mapOrgChart) GetManager(ctx context.Context, userID string) (string, bool, error) {
	m, ok := o.managers[userID]
	return m, ok, nil
}

func (o *mapOrgChart) IsTerminalApprover(ctx context.Context, userID string) (bool, error) {
	return o.terminal[userID], nil
}

type stubLocker struct {
	err   error
	locks int
}

func (l *stubLocker) Lock(ctx context.Context, expenseID int64) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	l.locks++
	return func() { l.locks-- }, nil
}

// captureDispatcher records dispatched events synchronously
type captureDispatcher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (d *captureDispatcher) types() []event.Type {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]event.Type, len(d.events))
	for i, e := range d.events {
		out[i] = e.Type
	}
	return out
}

func (d *captureDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, evt)
}

func (d *captureDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	d.DispatchAsync(ctx, evt)
	return nil
}

func (d *captureDispatcher) Subscribe(event.Type, dispatcher.Handler)              {}
func (d *captureDispatcher) SubscribeNamed(event.Type, string, dispatcher.Handler) {}
func (d *captureDispatcher) ListHandlers(event.Type) []dispatcher.HandlerInfo      { return nil }
func (d *captureDispatcher) Close() error                                         { return nil }

var (
	_ domainwf.OrgChart              = (*mapOrgChart)(nil)
	_ dispatcher.Dispatcher          = (*captureDispatcher)(nil)
	_ port.TransactionManager        = (*memStore)(nil)
	_ port.ExpenseRepository         = memExpenses{}
	_ port.ApprovalRequestRepository = memRequests{}
)
