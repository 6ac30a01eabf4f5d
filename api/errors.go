package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xraph/billing"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func abort(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": errorBody{Code: code, Message: msg}})
}

// AbortWithError writes the HTTP form of an engine error.
func AbortWithError(c *gin.Context, err error) {
	status, code := classify(err)

	body := errorBody{Code: code, Message: err.Error()}
	var ve billing.ValidationError
	if errors.As(err, &ve) {
		body.Field = ve.Field
		body.Message = ve.Message
	}
	if status == http.StatusInternalServerError {
		body.Message = "internal error"
		_ = c.Error(err) //nolint:errcheck // attaches err for the access log
	}

	c.AbortWithStatusJSON(status, gin.H{"error": body})
}

func classify(err error) (int, string) {
	switch {
	case billing.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, billing.ErrUnauthorized):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, billing.ErrInvalidSignature):
		return http.StatusUnauthorized, "invalid_signature"
	case errors.Is(err, billing.ErrAlreadyExists), errors.Is(err, billing.ErrScheduleNotPending),
		errors.Is(err, billing.ErrInvoiceBusy):
		return http.StatusConflict, "conflict"
	case errors.Is(err, billing.ErrGatewayNotConfigured):
		return http.StatusServiceUnavailable, "gateway_unavailable"
	case billing.IsValidation(err):
		return http.StatusUnprocessableEntity, "invalid_request"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func invalidRequest(c *gin.Context, msg string) {
	abort(c, http.StatusBadRequest, "bad_request", msg)
}
