package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	xerrors "github.com/amitsaini144/solagram/internal/errors"
)

// ErrorCode represents application-specific error codes.
type ErrorCode string

const (
	ErrorCodeInvalidRequest    ErrorCode = "INVALID_REQUEST"
	ErrorCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrorCodeWriteRejected     ErrorCode = "WRITE_REJECTED"
	ErrorCodeLedgerUnavailable ErrorCode = "LEDGER_UNAVAILABLE"
	ErrorCodeInternalError     ErrorCode = "INTERNAL_ERROR"
	ErrorCodeRateLimited       ErrorCode = "RATE_LIMITED"
)

// ErrorResponse represents the standard error response format.
type ErrorResponse struct {
	Status    string    `json:"status"`
	ErrorCode ErrorCode `json:"error_code"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id,omitempty"`
}

// ErrorHandler maps sync-layer errors onto HTTP responses.
type ErrorHandler struct {
	logger *zap.Logger
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger *zap.Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// HandleError classifies err and writes the matching HTTP response.
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := r.Header.Get("X-Request-ID")

	if code, ok := xerrors.RejectedCode(err); ok {
		h.WriteErrorResponse(w, rejectStatus(code), ErrorCodeWriteRejected, xerrors.RejectMessage(code), requestID)
		return
	}

	switch {
	case xerrors.IsInput(err):
		h.WriteErrorResponse(w, http.StatusBadRequest, ErrorCodeInvalidRequest, err.Error(), requestID)
	case xerrors.IsNotFound(err):
		h.WriteErrorResponse(w, http.StatusNotFound, ErrorCodeNotFound, err.Error(), requestID)
	case xerrors.IsRemote(err):
		h.WriteErrorResponse(w, http.StatusBadGateway, ErrorCodeLedgerUnavailable, err.Error(), requestID)
	default:
		h.WriteErrorResponse(w, http.StatusInternalServerError, ErrorCodeInternalError, err.Error(), requestID)
	}
}

// rejectStatus maps a program rejection code to an HTTP status. State
// conflicts map to 409, everything else the program refuses is 422.
func rejectStatus(code xerrors.RejectCode) int {
	switch code {
	case xerrors.RejectDuplicate, xerrors.RejectAlreadyFollows, xerrors.RejectNotFollowing:
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}

// WriteErrorResponse writes a formatted error response to the HTTP response writer.
func (h *ErrorHandler) WriteErrorResponse(w http.ResponseWriter, statusCode int, errorCode ErrorCode, message string, requestID string) {
	h.logger.Warn("HTTP error response",
		zap.Int("status_code", statusCode),
		zap.String("error_code", string(errorCode)),
		zap.String("message", message),
		zap.String("request_id", requestID),
	)

	resp := ErrorResponse{
		Status:    "error",
		ErrorCode: errorCode,
		Message:   message,
		RequestID: requestID,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)
}

// WriteValidationError writes a validation error response.
func (h *ErrorHandler) WriteValidationError(w http.ResponseWriter, message string, requestID string) {
	h.WriteErrorResponse(w, http.StatusBadRequest, ErrorCodeInvalidRequest, message, requestID)
}
