package lark

import (
	"context"
	"fmt"

	larkcontact "github.com/larksuite/oapi-sdk-go/v3/service/contact/v3"
	"go.uber.org/zap"
)

// ContactAPI reads user records from the Lark contact directory
type ContactAPI interface {
	GetUser(ctx context.Context, userID string) (*larkcontact.User, error)
}

// SDKContactAPI implements ContactAPI with the contact v3 endpoints
type SDKContactAPI struct {
	client *SDKClient
	logger *zap.Logger
}

// NewContactAPI creates a new contact API handler
func NewContactAPI(client *SDKClient, logger *zap.Logger) *SDKContactAPI {
	return &SDKContactAPI{
		client: client,
		logger: logger,
	}
}

// GetUser retrieves a user by user_id
func (a *SDKContactAPI) GetUser(ctx context.Context, userID string) (*larkcontact.User, error) {
	req := larkcontact.NewGetUserReqBuilder().
		UserId(userID).
		UserIdType("user_id").
		Build()

	resp, err := a.client.client.Contact.User.Get(ctx, req)
	if err != nil {
		a.logger.Error("Failed to get contact user",
			zap.String("user_id", userID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !resp.Success() {
		a.logger.Error("API returned failure",
			zap.String("user_id", userID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return nil, fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	if resp.Data == nil || resp.Data.User == nil {
		return nil, nil
	}
	return resp.Data.User, nil
}
