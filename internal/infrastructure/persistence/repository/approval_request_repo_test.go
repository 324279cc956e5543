package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/expense-approval/internal/domain/entity"
)

func (env *testEnv) request(t *testing.T, expenseID int64, approver string, seq int) *entity.ApprovalRequest {
	t.Helper()
	req := &entity.ApprovalRequest{
		ExpenseID:  expenseID,
		ApproverID: approver,
		Sequence:   seq,
		Status:     entity.RequestStatusPending,
	}
	require.NoError(t, env.requests.Create(context.Background(), req))
	return req
}

func TestApprovalRequestRepository_RespondOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	e := env.pendingExpense(t, "u-emp")
	req := env.request(t, e.ID, "u-mgr", 1)

	ok, err := env.requests.Respond(ctx, req.ID, entity.RequestStatusApproved, "u-mgr", "fine", time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = env.requests.Respond(ctx, req.ID, entity.RequestStatusRejected, "u-mgr", "changed my mind", time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := env.requests.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.RequestStatusApproved, got.Status)
	assert.Equal(t, "fine", got.Comments)
	assert.Equal(t, "u-mgr", got.ActedBy)
	assert.NotNil(t, got.RespondedAt)
}

func TestApprovalRequestRepository_SequenceIsUnique(t *testing.T) {
	env := newTestEnv(t)
	e := env.pendingExpense(t, "u-emp")
	env.request(t, e.ID, "u-mgr", 1)

	err := env.requests.Create(context.Background(), &entity.ApprovalRequest{
		ExpenseID:  e.ID,
		ApproverID: "u-dir",
		Sequence:   1,
		Status:     entity.RequestStatusPending,
	})
	assert.Error(t, err)
}

func TestApprovalRequestRepository_ListByExpenseOrdered(t *testing.T) {
	env := newTestEnv(t)
	e := env.pendingExpense(t, "u-emp")
	env.request(t, e.ID, "u-c", 3)
	env.request(t, e.ID, "u-a", 1)
	env.request(t, e.ID, "u-b", 2)

	list, err := env.requests.ListByExpense(context.Background(), e.ID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i, req := range list {
		assert.Equal(t, i+1, req.Sequence)
	}
}

func TestApprovalRequestRepository_SupersedePending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	e := env.pendingExpense(t, "u-emp")
	decided := env.request(t, e.ID, "u-a", 1)
	open1 := env.request(t, e.ID, "u-b", 2)
	open2 := env.request(t, e.ID, "u-c", 3)

	_, err := env.requests.Respond(ctx, decided.ID, entity.RequestStatusApproved, "u-a", "", time.Now())
	require.NoError(t, err)

	ids, err := env.requests.SupersedePending(ctx, e.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, []int64{open1.ID, open2.ID}, ids)

	list, err := env.requests.ListByExpense(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.RequestStatusApproved, list[0].Status)
	assert.Equal(t, entity.RequestStatusSuperseded, list[1].Status)
	assert.Equal(t, entity.RequestStatusSuperseded, list[2].Status)

	ids, err = env.requests.SupersedePending(ctx, e.ID, time.Now())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestApprovalRequestRepository_ListPendingForApprover(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	open := env.pendingExpense(t, "u-emp")
	closed := env.pendingExpense(t, "u-emp")
	want := env.request(t, open.ID, "u-mgr", 1)
	env.request(t, closed.ID, "u-mgr", 1)
	env.request(t, open.ID, "u-other", 2)

	_, err := env.expenses.Finalize(ctx, closed.ID, entity.ExpenseStatusRejected, time.Now())
	require.NoError(t, err)

	list, err := env.requests.ListPendingForApprover(ctx, "u-mgr")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, want.ID, list[0].ID)
}
