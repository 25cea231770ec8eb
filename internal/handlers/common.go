// internal/handlers/common.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/s4li/talamala-v4-sub000/internal/services"
	"github.com/s4li/talamala-v4-sub000/internal/utils"
)

// currentUserID pulls the authenticated user out of the request context.
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	userIDStr, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid user ID", nil)
		return uuid.Nil, false
	}
	return userID, true
}

// parseUUIDParam reads a path parameter as a UUID.
func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid "+name, nil)
		return uuid.Nil, false
	}
	return id, true
}

// domainStatus maps settlement error codes onto HTTP statuses. Retryable
// kinds keep their flag in the payload so clients can back off and retry.
func domainStatus(code string) int {
	switch code {
	case services.CodeNotFound:
		return http.StatusNotFound
	case services.CodeInvalidClaim, services.CodeInvalidOwnership:
		return http.StatusForbidden
	case services.CodeInvalidState, services.CodeConcurrencyConflict:
		return http.StatusConflict
	case services.CodeInsufficientFunds, services.CodeInsufficientInventory:
		return http.StatusUnprocessableEntity
	case services.CodeStalePrice:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

// respondError translates a service error into the API envelope. Unknown
// errors are logged and surfaced as a bare 500: internal detail never
// reaches the client.
func respondError(c *gin.Context, err error) {
	if derr, ok := services.AsDomainError(err); ok {
		status := domainStatus(derr.Code)
		if derr.Retryable {
			utils.RetryableErrorResponse(c, status, derr.Code, derr.Message, derr.Details)
		} else {
			utils.ErrorResponse(c, status, derr.Code, derr.Message, derr.Details)
		}
		return
	}

	logrus.WithError(err).WithField("path", c.Request.URL.Path).Error("Unhandled service error")
	utils.InternalErrorResponse(c, "")
}
