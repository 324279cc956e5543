package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/expense-approval/internal/domain/entity"
)

// Identity headers set by the upstream gateway
const (
	HeaderUserID          = "X-User-ID"
	HeaderCompanyID       = "X-Company-ID"
	HeaderUserRole        = "X-User-Role"
	HeaderAdmin           = "X-User-Admin"
	HeaderManagerApprover = "X-Manager-Approver"
)

const actorKey = "actor"

// ActorMiddleware builds the acting identity from request headers.
// Requests without a user or company are rejected.
func ActorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(HeaderUserID))
		companyID, err := strconv.ParseInt(c.GetHeader(HeaderCompanyID), 10, 64)
		if userID == "" || err != nil || companyID <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "missing or invalid identity headers",
			})
			return
		}

		role := strings.ToUpper(strings.TrimSpace(c.GetHeader(HeaderUserRole)))
		if role == "" {
			role = entity.RoleEmployee
		}
		isAdmin, _ := strconv.ParseBool(c.GetHeader(HeaderAdmin))
		approver, _ := strconv.ParseBool(c.GetHeader(HeaderManagerApprover))

		c.Set(actorKey, entity.Actor{
			ID:                userID,
			CompanyID:         companyID,
			Role:              role,
			IsAdmin:           isAdmin || role == entity.RoleAdmin,
			IsManagerApprover: approver,
		})
		c.Next()
	}
}

func actorFrom(c *gin.Context) entity.Actor {
	if v, ok := c.Get(actorKey); ok {
		if actor, ok := v.(entity.Actor); ok {
			return actor
		}
	}
	return entity.Actor{}
}
