package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/expense-approval/internal/domain/entity"
	domainwf "github.com/garyjia/expense-approval/internal/domain/workflow"
)

func seedOrg(t *testing.T, env *testEnv) {
	t.Helper()
	users := []*entity.User{
		{ID: "u-ceo", CompanyID: env.companyID, Name: "Ceo", Role: entity.RoleAdmin},
		{ID: "u-dir", CompanyID: env.companyID, Name: "Dir", Role: entity.RoleManager, ManagerID: "u-ceo", IsManagerApprover: true},
		{ID: "u-mgr", CompanyID: env.companyID, Name: "Mgr", Role: entity.RoleManager, ManagerID: "u-dir"},
		{ID: "u-emp", CompanyID: env.companyID, Name: "Emp", Role: entity.RoleEmployee, ManagerID: "u-mgr", DepartmentID: "eng"},
	}
	for _, u := range users {
		require.NoError(t, env.users.Create(context.Background(), u))
	}
}

func TestUserRepository_GetAndList(t *testing.T) {
	env := newTestEnv(t)
	seedOrg(t, env)
	ctx := context.Background()

	u, err := env.users.GetByID(ctx, "u-emp")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "u-mgr", u.ManagerID)
	assert.Equal(t, "eng", u.DepartmentID)

	ceo, err := env.users.GetByID(ctx, "u-ceo")
	require.NoError(t, err)
	assert.Empty(t, ceo.ManagerID)

	missing, err := env.users.GetByID(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)

	all, err := env.users.ListByCompany(ctx, env.companyID)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestUserRepository_OneAdminPerCompany(t *testing.T) {
	env := newTestEnv(t)
	seedOrg(t, env)

	err := env.users.Create(context.Background(), &entity.User{ID: "u-admin2", CompanyID: env.companyID, Role: entity.RoleAdmin})
	assert.Error(t, err)
}

func TestUserRepository_OrgChart(t *testing.T) {
	env := newTestEnv(t)
	seedOrg(t, env)
	ctx := context.Background()

	manager, ok, err := env.users.GetManager(ctx, "u-emp")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "u-mgr", manager)

	_, ok, err = env.users.GetManager(ctx, "u-ceo")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = env.users.GetManager(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, ok)

	terminal, err := env.users.IsTerminalApprover(ctx, "u-dir")
	require.NoError(t, err)
	assert.True(t, terminal)

	terminal, err = env.users.IsTerminalApprover(ctx, "u-mgr")
	require.NoError(t, err)
	assert.False(t, terminal)

	terminal, err = env.users.IsTerminalApprover(ctx, "u-ceo")
	require.NoError(t, err)
	assert.True(t, terminal)
}

func TestUserRepository_DrivesManagerWalk(t *testing.T) {
	env := newTestEnv(t)
	seedOrg(t, env)

	expense := &entity.Expense{CompanyID: env.companyID, SubmitterID: "u-emp"}
	rule := &entity.ApprovalRule{ID: 1, CompanyID: env.companyID, Kind: entity.RuleKindSequential, Active: true}

	chain, err := domainwf.ResolveChain(context.Background(), expense, rule, env.users, domainwf.ResolveOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"u-mgr", "u-dir"}, chain.Approvers())
}
