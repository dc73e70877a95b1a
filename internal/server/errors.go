package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	accountdomain "github.com/vocaldesk/vocaldesk/internal/account/domain"
	subscriptiondomain "github.com/vocaldesk/vocaldesk/internal/subscription/domain"
	webhookdomain "github.com/vocaldesk/vocaldesk/internal/webhook/domain"
)

type errorPayload struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrInvalidRequest = errors.New("invalid_request")
	ErrInternal       = errors.New("internal_error")
)

// ErrorHandlingMiddleware converts errors attached to the gin context into
// the JSON error envelope. The status code steers provider retry behavior:
// 4xx stops redelivery of bad payloads, 404 invites a retry for accounts
// that may appear moments later, 5xx signals a transient server fault.
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
	case errors.Is(err, webhookdomain.ErrInvalidSignature),
		errors.Is(err, webhookdomain.ErrInvalidTimestamp),
		errors.Is(err, webhookdomain.ErrStaleTimestamp):
		return http.StatusBadRequest, errorPayload{
			Type:    "authentication_error",
			Code:    errorCode(err),
			Message: "webhook authentication failed",
		}
	case errors.Is(err, webhookdomain.ErrInvalidPayload),
		errors.Is(err, webhookdomain.ErrUnsupportedEvent),
		errors.Is(err, webhookdomain.ErrMissingField),
		errors.Is(err, subscriptiondomain.ErrInvalidSubscriptionID),
		errors.Is(err, subscriptiondomain.ErrInvalidAccount),
		errors.Is(err, subscriptiondomain.ErrInvalidStatus),
		errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Code:    errorCode(err),
			Message: "invalid webhook payload",
		}
	case errors.Is(err, accountdomain.ErrNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Code:    "account_not_found",
			Message: "no account matches this event",
		}
	case errors.Is(err, webhookdomain.ErrSecretNotConfigured):
		return http.StatusInternalServerError, errorPayload{
			Type:    "configuration_error",
			Code:    "webhook_secret_not_configured",
			Message: "webhook processing unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, webhookdomain.ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, webhookdomain.ErrInvalidTimestamp):
		return "invalid_timestamp"
	case errors.Is(err, webhookdomain.ErrStaleTimestamp):
		return "stale_timestamp"
	case errors.Is(err, webhookdomain.ErrInvalidPayload):
		return "invalid_payload"
	case errors.Is(err, webhookdomain.ErrUnsupportedEvent):
		return "unsupported_event_type"
	case errors.Is(err, webhookdomain.ErrMissingField):
		return "missing_required_field"
	case errors.Is(err, subscriptiondomain.ErrInvalidSubscriptionID):
		return "invalid_subscription_id"
	case errors.Is(err, subscriptiondomain.ErrInvalidAccount):
		return "invalid_account"
	case errors.Is(err, subscriptiondomain.ErrInvalidStatus):
		return "invalid_status"
	default:
		return "invalid_request"
	}
}

// classifyErrorForLog feeds the request logger's error_type / error_code
// fields without re-running the full response mapping.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	switch {
	case status >= 500:
		return "server_error", payload.Code
	case status == http.StatusNotFound:
		return "not_found", payload.Code
	default:
		return payload.Type, payload.Code
	}
}
