package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/expense-approval/internal/application/dispatcher"
	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/garyjia/expense-approval/internal/domain/event"
	domainwf "github.com/garyjia/expense-approval/internal/domain/workflow"
	"github.com/garyjia/expense-approval/pkg/utils"
)

// Page bounds for ListSubmitted
const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Logger interface for minimal logging dependency
type Logger = dispatcher.Logger

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

// Dependencies are the collaborators of the engine
type Dependencies struct {
	Expenses  port.ExpenseRepository
	Requests  port.ApprovalRequestRepository
	History   port.HistoryRepository
	Rules     port.RuleProvider
	Companies port.CompanyRepository
	Converter port.CurrencyConverter
	OrgChart  port.OrgChart
	Locker    port.ExpenseLocker
	TxManager port.TransactionManager
}

func (d Dependencies) validate() error {
	switch {
	case d.Expenses == nil, d.Requests == nil, d.History == nil:
		return errors.New("workflow engine requires expense, request and history repositories")
	case d.Rules == nil || d.Companies == nil:
		return errors.New("workflow engine requires rule provider and company directory")
	case d.Converter == nil:
		return errors.New("workflow engine requires a currency converter")
	case d.Locker == nil || d.TxManager == nil:
		return errors.New("workflow engine requires a locker and a transaction manager")
	}
	return nil
}

// engineImpl is the concrete implementation of WorkflowEngine
type engineImpl struct {
	deps       Dependencies
	dispatcher dispatcher.Dispatcher
	logger     Logger
	now        func() time.Time
	maxDepth   int

	sequencer *Sequencer
	recorder  *Recorder
	decisions *DecisionProcessor
	overrides *Overrider
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the dispatcher that receives post-commit events
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithLogger sets a logger for the engine
func WithLogger(logger Logger) EngineOption {
	return func(e *engineImpl) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMaxChainDepth bounds manager walks for rules that do not set their own depth
func WithMaxChainDepth(depth int) EngineOption {
	return func(e *engineImpl) {
		e.maxDepth = depth
	}
}

// WithClock overrides time.Now, mainly for tests
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates a new workflow engine
func NewEngine(deps Dependencies, opts ...EngineOption) (WorkflowEngine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	e := &engineImpl{
		deps:     deps,
		logger:   nopLogger{},
		now:      time.Now,
		maxDepth: domainwf.DefaultMaxChainDepth,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.sequencer = NewSequencer(deps.Requests, e.now)
	e.recorder = NewRecorder(deps.History, e.now)
	e.decisions = NewDecisionProcessor(deps.Expenses, deps.Requests, e.sequencer, e.recorder, e.now)
	e.overrides = NewOverrider(deps.Expenses, deps.Requests, e.recorder, e.now)
	return e, nil
}

// Submit creates a PENDING expense, freezes its conversion and opens its approval chain
func (e *engineImpl) Submit(ctx context.Context, draft *entity.ExpenseDraft) (*entity.Expense, error) {
	expense, err := e.newExpense(draft)
	if err != nil {
		return nil, err
	}

	chain, err := e.prepare(ctx, expense)
	if err != nil {
		return nil, err
	}

	err = e.deps.TxManager.WithTransaction(ctx, func(txCtx context.Context) error {
		expense.Status = entity.ExpenseStatusPending
		submittedAt := e.now().UTC()
		expense.SubmittedAt = &submittedAt
		if err := e.deps.Expenses.Create(txCtx, expense); err != nil {
			return domainwf.Persistence("create expense", err)
		}
		return e.begin(txCtx, expense, chain)
	})
	if err != nil {
		return nil, err
	}

	e.afterSubmit(ctx, expense, chain)
	return expense, nil
}

// SubmitDraft moves a DRAFT expense owned by actor into the workflow
func (e *engineImpl) SubmitDraft(ctx context.Context, expenseID int64, actor entity.Actor) (*entity.Expense, error) {
	unlock, err := e.deps.Locker.Lock(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	expense, err := e.ownedDraft(ctx, expenseID, actor)
	if err != nil {
		return nil, err
	}
	if err := validateExpense(expense); err != nil {
		return nil, err
	}

	chain, err := e.prepare(ctx, expense)
	if err != nil {
		return nil, err
	}

	err = e.deps.TxManager.WithTransaction(ctx, func(txCtx context.Context) error {
		expense.Status = entity.ExpenseStatusPending
		submittedAt := e.now().UTC()
		expense.SubmittedAt = &submittedAt
		applied, err := e.deps.Expenses.MarkSubmitted(txCtx, expense)
		if err != nil {
			return domainwf.Persistence("submit draft", err)
		}
		if !applied {
			return fmt.Errorf("%w: expense %d is no longer a draft", domainwf.ErrInvalidState, expense.ID)
		}
		return e.begin(txCtx, expense, chain)
	})
	if err != nil {
		return nil, err
	}

	e.afterSubmit(ctx, expense, chain)
	return expense, nil
}

// prepare converts the amount and resolves the chain. Both happen before the transaction
// so that a failing collaborator never leaves a half-submitted expense behind.
func (e *engineImpl) prepare(ctx context.Context, expense *entity.Expense) (*domainwf.ResolvedChain, error) {
	company, err := e.deps.Companies.GetByID(ctx, expense.CompanyID)
	if err != nil {
		return nil, domainwf.Persistence("load company", err)
	}
	if company == nil {
		return nil, fmt.Errorf("%w: company %d", domainwf.ErrNotFound, expense.CompanyID)
	}

	conv, err := e.deps.Converter.Convert(ctx, expense.Amount, expense.Currency, company.Currency)
	if err != nil {
		if !errors.Is(err, domainwf.ErrConversionUnavailable) {
			err = fmt.Errorf("%w: %w", domainwf.ErrConversionUnavailable, err)
		}
		return nil, err
	}
	convertedAt := conv.Timestamp.UTC()
	expense.ConvertedAmount = conv.Amount
	expense.ConversionRate = conv.Rate
	expense.CompanyCurrency = company.Currency
	expense.ConvertedAt = &convertedAt

	rules, err := e.deps.Rules.ListActiveRules(ctx, expense.CompanyID)
	if err != nil {
		return nil, domainwf.Persistence("load approval rules", err)
	}
	rule, err := domainwf.SelectRule(rules, expense)
	if err != nil {
		return nil, err
	}
	chain, err := domainwf.ResolveChain(ctx, expense, rule, e.deps.OrgChart, domainwf.ResolveOptions{MaxDepth: e.maxDepth})
	if err != nil {
		return nil, err
	}

	snapshot, err := chain.Encode()
	if err != nil {
		return nil, err
	}
	expense.RuleID = rule.ID
	expense.ChainSnapshot = snapshot
	return chain, nil
}

// begin runs inside the submission transaction
func (e *engineImpl) begin(ctx context.Context, expense *entity.Expense, chain *domainwf.ResolvedChain) error {
	machine, err := machineFor(entity.ExpenseStatusDraft, expense)
	if err != nil {
		return err
	}
	if _, err := machine.Fire(ctx, domainwf.TriggerSubmit); err != nil {
		return err
	}

	reqs, err := e.sequencer.Begin(ctx, expense, chain)
	if err != nil {
		return err
	}
	requestIDs := make([]int64, len(reqs))
	for i, r := range reqs {
		requestIDs[i] = r.ID
	}

	_, err = e.recorder.Record(ctx, expense.ID, expense.SubmitterID, entity.ActionSubmitted, "", map[string]interface{}{
		"rule_id":          chain.RuleID,
		"policy":           string(chain.Policy.Kind),
		"approvers":        chain.Approvers(),
		"request_ids":      requestIDs,
		"amount":           expense.Amount.String(),
		"currency":         expense.Currency,
		"converted_amount": expense.ConvertedAmount.String(),
		"company_currency": expense.CompanyCurrency,
		"conversion_rate":  expense.ConversionRate.String(),
	})
	return err
}

func (e *engineImpl) afterSubmit(ctx context.Context, expense *entity.Expense, chain *domainwf.ResolvedChain) {
	e.logger.Info("Expense submitted",
		"expense_id", expense.ID,
		"rule_id", chain.RuleID,
		"policy", chain.Policy.Kind,
		"approvers", chain.Len(),
	)
	e.publish(ctx, event.NewEvent(event.TypeExpenseSubmitted, expense.ID, expense.CompanyID, map[string]interface{}{
		"submitter_id": expense.SubmitterID,
		"approvers":    chain.Approvers(),
		"policy":       string(chain.Policy.Kind),
	}))
}

// SaveDraft stores a DRAFT expense without starting the workflow
func (e *engineImpl) SaveDraft(ctx context.Context, draft *entity.ExpenseDraft) (*entity.Expense, error) {
	expense, err := e.newExpense(draft)
	if err != nil {
		return nil, err
	}
	if err := e.deps.Expenses.Create(ctx, expense); err != nil {
		return nil, domainwf.Persistence("create draft", err)
	}
	return expense, nil
}

// UpdateDraft edits a DRAFT expense owned by actor
func (e *engineImpl) UpdateDraft(ctx context.Context, expenseID int64, actor entity.Actor, draft *entity.ExpenseDraft) (*entity.Expense, error) {
	unlock, err := e.deps.Locker.Lock(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	expense, err := e.ownedDraft(ctx, expenseID, actor)
	if err != nil {
		return nil, err
	}

	// Ownership fields are not editable
	draft.CompanyID = expense.CompanyID
	draft.SubmitterID = expense.SubmitterID
	draft.ApplyTo(expense)
	normalize(expense)
	if err := validateExpense(expense); err != nil {
		return nil, err
	}
	expense.UpdatedAt = e.now().UTC()

	applied, err := e.deps.Expenses.UpdateDraft(ctx, expense)
	if err != nil {
		return nil, domainwf.Persistence("update draft", err)
	}
	if !applied {
		return nil, fmt.Errorf("%w: expense %d is no longer a draft", domainwf.ErrInvalidState, expenseID)
	}
	return expense, nil
}

// DeleteDraft removes a DRAFT expense owned by actor
func (e *engineImpl) DeleteDraft(ctx context.Context, expenseID int64, actor entity.Actor) error {
	unlock, err := e.deps.Locker.Lock(ctx, expenseID)
	if err != nil {
		return err
	}
	defer unlock()

	if _, err := e.ownedDraft(ctx, expenseID, actor); err != nil {
		return err
	}
	applied, err := e.deps.Expenses.DeleteDraft(ctx, expenseID)
	if err != nil {
		return domainwf.Persistence("delete draft", err)
	}
	if !applied {
		return fmt.Errorf("%w: expense %d is no longer a draft", domainwf.ErrInvalidState, expenseID)
	}
	return nil
}

func (e *engineImpl) ownedDraft(ctx context.Context, expenseID int64, actor entity.Actor) (*entity.Expense, error) {
	expense, err := loadExpense(ctx, e.deps.Expenses, expenseID)
	if err != nil {
		return nil, err
	}
	if actor.ID != expense.SubmitterID || actor.CompanyID != expense.CompanyID {
		return nil, fmt.Errorf("%w: expense %d belongs to %s", domainwf.ErrUnauthorizedDecision, expenseID, expense.SubmitterID)
	}
	if expense.Status != entity.ExpenseStatusDraft {
		return nil, fmt.Errorf("%w: expense %d is %s", domainwf.ErrInvalidState, expenseID, expense.Status)
	}
	return expense, nil
}

// Decide applies an approver's decision to one pending request
func (e *engineImpl) Decide(ctx context.Context, expenseID, requestID int64, actor entity.Actor, decision entity.Decision, comments string) (*entity.Expense, error) {
	unlock, err := e.deps.Locker.Lock(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var result *DecisionResult
	err = e.deps.TxManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		result, err = e.decisions.Decide(txCtx, expenseID, requestID, actor, decision, utils.SanitizeString(comments))
		return err
	})
	if err != nil {
		return nil, err
	}

	expense := result.Expense
	e.logger.Info("Decision recorded",
		"expense_id", expense.ID,
		"request_id", requestID,
		"actor_id", actor.ID,
		"decision", decision,
		"status", expense.Status,
	)

	payload := map[string]interface{}{
		"request_id":  requestID,
		"approver_id": result.Request.ApproverID,
		"actor_id":    actor.ID,
		"decision":    string(decision),
	}
	if result.Advance.Next != nil {
		payload["next_request_id"] = result.Advance.Next.ID
		payload["next_approver_id"] = result.Advance.Next.ApproverID
	}
	decided := event.NewEvent(event.TypeDecisionRecorded, expense.ID, expense.CompanyID, payload)
	e.publish(ctx, decided)

	if result.Advance.Finalized() {
		e.publish(ctx, event.NewEventWithCorrelation(event.TypeExpenseFinalized, expense.ID, expense.CompanyID, map[string]interface{}{
			"status":       expense.Status,
			"submitter_id": expense.SubmitterID,
			"superseded":   result.Advance.Superseded,
		}, decided.CorrelationID))
	}
	return expense, nil
}

// Override forces a terminal status as company admin
func (e *engineImpl) Override(ctx context.Context, expenseID int64, admin entity.Actor, decision entity.Decision, comments string) (*entity.Expense, error) {
	unlock, err := e.deps.Locker.Lock(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var result *OverrideResult
	err = e.deps.TxManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		result, err = e.overrides.Override(txCtx, expenseID, admin, decision, utils.SanitizeString(comments))
		return err
	})
	if err != nil {
		return nil, err
	}

	expense := result.Expense
	e.logger.Info("Expense overridden",
		"expense_id", expense.ID,
		"admin_id", admin.ID,
		"previous_status", result.PreviousStatus,
		"status", expense.Status,
		"superseded", len(result.Superseded),
	)
	e.publish(ctx, event.NewEvent(event.TypeExpenseOverridden, expense.ID, expense.CompanyID, map[string]interface{}{
		"admin_id":     admin.ID,
		"status":       expense.Status,
		"submitter_id": expense.SubmitterID,
		"superseded":   result.Superseded,
	}))
	return expense, nil
}

// GetExpense returns the expense and its requests
func (e *engineImpl) GetExpense(ctx context.Context, expenseID int64) (*ExpenseView, error) {
	expense, err := loadExpense(ctx, e.deps.Expenses, expenseID)
	if err != nil {
		return nil, err
	}
	reqs, err := e.deps.Requests.ListByExpense(ctx, expenseID)
	if err != nil {
		return nil, domainwf.Persistence("list requests", err)
	}
	return &ExpenseView{Expense: expense, Requests: reqs}, nil
}

// ListSubmitted pages through a submitter's expenses, newest first
func (e *engineImpl) ListSubmitted(ctx context.Context, submitterID string, limit, offset int) ([]*entity.Expense, error) {
	if submitterID == "" {
		return nil, fmt.Errorf("%w: submitter id is required", domainwf.ErrValidation)
	}
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	expenses, err := e.deps.Expenses.ListBySubmitter(ctx, submitterID, limit, offset)
	if err != nil {
		return nil, domainwf.Persistence("list expenses", err)
	}
	return expenses, nil
}

// GetHistory returns the audit trail oldest first
func (e *engineImpl) GetHistory(ctx context.Context, expenseID int64) ([]*entity.ApprovalHistory, error) {
	if _, err := loadExpense(ctx, e.deps.Expenses, expenseID); err != nil {
		return nil, err
	}
	entries, err := e.deps.History.ListByExpense(ctx, expenseID)
	if err != nil {
		return nil, domainwf.Persistence("list history", err)
	}
	return entries, nil
}

// GetPendingFor returns requests awaiting userID
func (e *engineImpl) GetPendingFor(ctx context.Context, userID string) ([]*entity.ApprovalRequest, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", domainwf.ErrValidation)
	}
	reqs, err := e.deps.Requests.ListPendingForApprover(ctx, userID)
	if err != nil {
		return nil, domainwf.Persistence("list pending requests", err)
	}
	return reqs, nil
}

func (e *engineImpl) publish(ctx context.Context, evt *event.Event) {
	if e.dispatcher == nil {
		return
	}
	e.dispatcher.DispatchAsync(ctx, evt)
}

func (e *engineImpl) newExpense(draft *entity.ExpenseDraft) (*entity.Expense, error) {
	if draft == nil {
		return nil, fmt.Errorf("%w: expense draft is required", domainwf.ErrValidation)
	}
	now := e.now().UTC()
	expense := &entity.Expense{
		Status:    entity.ExpenseStatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	draft.ApplyTo(expense)
	normalize(expense)
	if err := validateExpense(expense); err != nil {
		return nil, err
	}
	return expense, nil
}

func normalize(expense *entity.Expense) {
	expense.Currency = utils.NormalizeCurrencyCode(expense.Currency)
	expense.Description = utils.SanitizeString(expense.Description)
	if expense.Category == "" {
		expense.Category = entity.CategoryOther
	}
}

func validateExpense(expense *entity.Expense) error {
	if expense.CompanyID <= 0 {
		return fmt.Errorf("%w: company id is required", domainwf.ErrValidation)
	}
	if expense.SubmitterID == "" {
		return fmt.Errorf("%w: submitter id is required", domainwf.ErrValidation)
	}
	if err := utils.ValidateAmount(expense.Amount); err != nil {
		return fmt.Errorf("%w: %v", domainwf.ErrValidation, err)
	}
	if err := utils.ValidateCurrencyCode(expense.Currency); err != nil {
		return fmt.Errorf("%w: %v", domainwf.ErrValidation, err)
	}
	if err := utils.ValidateDescription(expense.Description); err != nil {
		return fmt.Errorf("%w: %v", domainwf.ErrValidation, err)
	}
	if expense.ExpenseDate.IsZero() {
		return fmt.Errorf("%w: expense date is required", domainwf.ErrValidation)
	}
	return nil
}
