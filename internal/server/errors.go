package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/perkhub/internal/audit/domain"
	"github.com/smallbiznis/perkhub/internal/auth"
	"github.com/smallbiznis/perkhub/internal/authorization"
	benefitdomain "github.com/smallbiznis/perkhub/internal/benefit/domain"
	companydomain "github.com/smallbiznis/perkhub/internal/company/domain"
	redeemdomain "github.com/smallbiznis/perkhub/internal/redeem/domain"
	userdomain "github.com/smallbiznis/perkhub/internal/user/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
	ErrRateLimited        = errors.New("rate_limited")
)

const invalidTokenMessage = "This code is invalid, expired or has already been used."

// userMessager is implemented by domain errors that carry a message safe to show end users.
type userMessager interface {
	Message() string
}

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

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := err.Error()
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenExpired):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, redeemdomain.ErrTokenInvalid):
		return http.StatusNotFound, errorPayload{
			Type:    "token_invalid",
			Message: invalidTokenMessage,
		}
	case errors.Is(err, redeemdomain.ErrTokenNotAssociatedWithClaim):
		return http.StatusInternalServerError, errorPayload{
			Type:    "data_integrity_error",
			Message: "internal server error",
		}
	case errors.Is(err, benefitdomain.ErrInsufficientPoints):
		return http.StatusUnprocessableEntity, domainPayload(err, "insufficient_points", "You do not have enough points for this benefit.")
	case errors.Is(err, benefitdomain.ErrUsageLimitReached):
		return http.StatusUnprocessableEntity, domainPayload(err, "usage_limit_reached", "You have reached the usage limit for this benefit.")
	case errors.Is(err, benefitdomain.ErrAlreadyClaimed):
		return http.StatusConflict, domainPayload(err, "already_claimed", "You already have this benefit available.")
	case errors.Is(err, benefitdomain.ErrBenefitUnavailable):
		return http.StatusConflict, domainPayload(err, "benefit_unavailable", "This benefit is no longer available.")
	case errors.Is(err, benefitdomain.ErrBenefitInUse):
		return http.StatusConflict, domainPayload(err, "benefit_in_use", "This benefit has claims and cannot be deleted.")
	case errors.Is(err, ErrConflict),
		errors.Is(err, benefitdomain.ErrCategoryExists),
		errors.Is(err, companydomain.ErrSlugTaken),
		errors.Is(err, userdomain.ErrEmailTaken):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func domainPayload(err error, typ, fallback string) errorPayload {
	message := fallback
	var m userMessager
	if errors.As(err, &m) {
		message = m.Message()
	}
	return errorPayload{Type: typ, Message: message}
}

// classifyErrorForLog returns the error type and code recorded on the request log line.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	switch {
	case payload.Type == "data_integrity_error":
		return "data_integrity", payload.Type
	case status >= http.StatusInternalServerError:
		return "internal", payload.Type
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return "auth", payload.Type
	case status == http.StatusBadRequest:
		if len(payload.Errors) > 0 {
			return "validation", payload.Errors[0].Code
		}
		return "validation", payload.Type
	default:
		return "domain", payload.Type
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return true
	case isBenefitValidationError(err),
		isCompanyValidationError(err),
		isUserValidationError(err),
		errors.Is(err, auditdomain.ErrInvalidActor),
		errors.Is(err, auditdomain.ErrInvalidPageToken):
		return true
	default:
		return false
	}
}

func isBenefitValidationError(err error) bool {
	switch {
	case errors.Is(err, benefitdomain.ErrInvalidID),
		errors.Is(err, benefitdomain.ErrInvalidCity),
		errors.Is(err, benefitdomain.ErrInvalidTitle),
		errors.Is(err, benefitdomain.ErrInvalidUsageLimit),
		errors.Is(err, benefitdomain.ErrInvalidLimitPeriod),
		errors.Is(err, benefitdomain.ErrInvalidPointCost),
		errors.Is(err, benefitdomain.ErrInvalidStatus),
		errors.Is(err, benefitdomain.ErrInvalidCategory):
		return true
	default:
		return false
	}
}

func isCompanyValidationError(err error) bool {
	switch {
	case errors.Is(err, companydomain.ErrInvalidID),
		errors.Is(err, companydomain.ErrInvalidName),
		errors.Is(err, companydomain.ErrInvalidCity):
		return true
	default:
		return false
	}
}

func isUserValidationError(err error) bool {
	switch {
	case errors.Is(err, userdomain.ErrInvalidID),
		errors.Is(err, userdomain.ErrInvalidName),
		errors.Is(err, userdomain.ErrInvalidEmail),
		errors.Is(err, userdomain.ErrInvalidRole):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, benefitdomain.ErrNotFound),
		errors.Is(err, benefitdomain.ErrNotClaimable),
		errors.Is(err, companydomain.ErrNotFound),
		errors.Is(err, userdomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	default:
		return "invalid value"
	}
}
