package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"clinsight/internal/domain"
	"clinsight/internal/middleware"
)

// APIResponse is the standard envelope for all API responses.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *ListMeta   `json:"meta,omitempty"`
}

// APIError holds error details in the response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ListMeta describes a list response.
type ListMeta struct {
	Count int    `json:"count"`
	Limit int    `json:"limit"`
	Query string `json:"query,omitempty"`
}

// RespondOK sends a 200 success response.
func RespondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

// RespondCreated sends a 201 success response.
func RespondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, APIResponse{Success: true, Data: data})
}

// RespondList sends a 200 success response with list metadata.
func RespondList(c *gin.Context, data interface{}, meta ListMeta) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data, Meta: &meta})
}

// RespondError sends an error response with the given status code.
func RespondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: msg},
	})
}

// MapDomainError translates domain errors to HTTP status codes and error codes.
// Messages are short categories; adapter detail never leaves the server.
func MapDomainError(err error) (status int, code, msg string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "INVALID_INPUT", invalidInputMessage(err)
	case errors.Is(err, domain.ErrInsufficientCredits):
		return http.StatusPaymentRequired, "INSUFFICIENT_CREDITS", "no analysis credits remaining"
	case errors.Is(err, domain.ErrTooManyInFlight):
		return http.StatusTooManyRequests, "TOO_MANY_IN_FLIGHT", "too many analyses in progress; try again shortly"
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrRecordingNotFound):
		return http.StatusNotFound, "NOT_FOUND", "resource not found"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN", "forbidden"
	case errors.Is(err, domain.ErrContractViolation):
		return http.StatusBadGateway, "ANALYSIS_INVALID", "the analysis service returned an invalid result"
	case errors.Is(err, domain.ErrAdapter):
		return http.StatusBadGateway, "UPSTREAM_FAILED", upstreamMessage(err)
	case errors.Is(err, domain.ErrStorage):
		return http.StatusInternalServerError, "STORAGE_FAILED", "the analysis could not be saved"
	case errors.Is(err, domain.ErrReservationState), errors.Is(err, domain.ErrRecordingState):
		return http.StatusConflict, "CONFLICT", "operation not allowed in the current state"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred"
	}
}

func invalidInputMessage(err error) string {
	var nerr *domain.NormalizationError
	if errors.As(err, &nerr) {
		if nerr.Reason == domain.ReasonNoUsableInput {
			return "the recording could not be transcribed; please type the case"
		}
		return "a case description or recording is required"
	}
	return "invalid input"
}

func upstreamMessage(err error) string {
	var aerr *domain.AdapterError
	if errors.As(err, &aerr) {
		return string(aerr.Stage) + " service failed"
	}
	return "an external service failed"
}

// extractUserID extracts the caller from the request context.
// Returns false if auth context is missing (error response already written).
func extractUserID(c *gin.Context) (string, bool) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		RespondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing user context")
		return "", false
	}
	return userID, true
}

// HandleError maps a domain error and sends the appropriate error response.
func HandleError(c *gin.Context, err error) {
	status, code, msg := MapDomainError(err)
	if status >= 500 {
		requestID, _ := c.Get("request_id")
		log.Error().Err(err).Interface("request_id", requestID).Str("code", code).Msg("handler: request failed")
	}
	RespondError(c, status, code, msg)
}
