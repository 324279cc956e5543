package lark

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/expense-approval/internal/application/port"
)

// OrgChart resolves reporting lines from each user's Lark leader
type OrgChart struct {
	contacts ContactAPI
	terminal map[string]bool
	logger   *zap.Logger
}

// NewOrgChart creates a Lark-backed org chart. terminalApprovers end every manager walk.
func NewOrgChart(contacts ContactAPI, terminalApprovers []string, logger *zap.Logger) *OrgChart {
	terminal := make(map[string]bool, len(terminalApprovers))
	for _, id := range terminalApprovers {
		if id != "" {
			terminal[id] = true
		}
	}
	return &OrgChart{
		contacts: contacts,
		terminal: terminal,
		logger:   logger,
	}
}

// GetManager returns the user's leader_user_id
func (o *OrgChart) GetManager(ctx context.Context, userID string) (string, bool, error) {
	user, err := o.contacts.GetUser(ctx, userID)
	if err != nil {
		return "", false, fmt.Errorf("lark lookup of %s: %w", userID, err)
	}
	if user == nil || user.LeaderUserId == nil || *user.LeaderUserId == "" {
		o.logger.Debug("Lark user has no leader", zap.String("user_id", userID))
		return "", false, nil
	}
	return *user.LeaderUserId, true, nil
}

// IsTerminalApprover reports whether userID is a configured terminal approver
func (o *OrgChart) IsTerminalApprover(_ context.Context, userID string) (bool, error) {
	return o.terminal[userID], nil
}

var _ port.OrgChart = (*OrgChart)(nil)
