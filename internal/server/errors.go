package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/heliovolt/solshare/internal/accesscontrol"
	dividenddomain "github.com/heliovolt/solshare/internal/dividend/domain"
	paneldomain "github.com/heliovolt/solshare/internal/panel/domain"
	"github.com/heliovolt/solshare/internal/pause"
	"github.com/heliovolt/solshare/internal/provisioning"
	saledomain "github.com/heliovolt/solshare/internal/sale/domain"
	sharesdomain "github.com/heliovolt/solshare/internal/shares/domain"
	treasurydomain "github.com/heliovolt/solshare/internal/treasury/domain"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var ErrInvalidRequest = errors.New("invalid_request")

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case errors.Is(err, accesscontrol.ErrInvalidActor):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthenticated",
			Message: "missing or invalid actor",
		}
	case errors.Is(err, accesscontrol.ErrUnauthorized),
		errors.Is(err, paneldomain.ErrNotPanelOwner),
		errors.Is(err, saledomain.ErrNotSeller):
		return http.StatusForbidden, errorPayload{
			Type:    "unauthorized",
			Message: err.Error(),
		}
	case errors.Is(err, pause.ErrPaused):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "paused",
			Message: "system is paused",
		}
	case errors.Is(err, paneldomain.ErrNotFound),
		errors.Is(err, sharesdomain.ErrNotFound),
		errors.Is(err, saledomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: err.Error(),
		}
	case errors.Is(err, paneldomain.ErrSerialExists),
		errors.Is(err, paneldomain.ErrShareLedgerLinked),
		errors.Is(err, sharesdomain.ErrLedgerExists),
		errors.Is(err, sharesdomain.ErrAlreadyMinted),
		errors.Is(err, dividenddomain.ErrClaimConflict):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case errors.Is(err, pause.ErrAlreadyPaused),
		errors.Is(err, pause.ErrNotPaused),
		errors.Is(err, sharesdomain.ErrPanelInactive),
		errors.Is(err, sharesdomain.ErrNotMinted),
		errors.Is(err, dividenddomain.ErrNotMinted),
		errors.Is(err, dividenddomain.ErrNoShares),
		errors.Is(err, dividenddomain.ErrNothingToClaim),
		errors.Is(err, saledomain.ErrSaleEnded),
		errors.Is(err, saledomain.ErrSaleClosed),
		errors.Is(err, saledomain.ErrSelfPurchase):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "invalid_state",
			Message: err.Error(),
		}
	case errors.Is(err, sharesdomain.ErrInsufficientBalance),
		errors.Is(err, sharesdomain.ErrInsufficientAllowance),
		errors.Is(err, treasurydomain.ErrInsufficientFunds),
		errors.Is(err, saledomain.ErrInsufficientShares):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "insufficient_funds",
			Message: err.Error(),
		}
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, provisioning.ErrArrayLengthMismatch),
		errors.Is(err, provisioning.ErrEmptyBatch),
		errors.Is(err, accesscontrol.ErrInvalidRole),
		errors.Is(err, accesscontrol.ErrInvalidAccount),
		errors.Is(err, paneldomain.ErrInvalidSerialNumber),
		errors.Is(err, paneldomain.ErrInvalidCapacity),
		errors.Is(err, paneldomain.ErrInvalidOwner),
		errors.Is(err, sharesdomain.ErrInvalidAmount),
		errors.Is(err, sharesdomain.ErrInvalidAddress),
		errors.Is(err, sharesdomain.ErrSelfTransfer),
		errors.Is(err, treasurydomain.ErrInvalidAmount),
		errors.Is(err, treasurydomain.ErrInvalidAddress),
		errors.Is(err, saledomain.ErrInvalidPrice),
		errors.Is(err, saledomain.ErrInvalidQuantity),
		errors.Is(err, saledomain.ErrInvalidDeadline):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
		}
	}

	return http.StatusInternalServerError, errorPayload{
		Type:    "internal_error",
		Message: "internal server error",
	}
}
