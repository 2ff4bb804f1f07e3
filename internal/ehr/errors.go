package ehr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ErrorCode identifies a business-level failure category.
type ErrorCode string

const (
	CodePatientNotFound ErrorCode = "PATIENT_NOT_FOUND"
	CodePccUnauthorized ErrorCode = "PCC_UNAUTHORIZED"
	CodePccUnavailable  ErrorCode = "PCC_UNAVAILABLE"
)

// RecoveryAction tells the caller what to do with a failed operation.
type RecoveryAction string

const (
	ActionStop      RecoveryAction = "stop"
	ActionRetry     RecoveryAction = "retry"
	ActionUserInput RecoveryAction = "user-input"
)

// DomainError is the typed error surfaced by the EHR integration. Callers
// branch on Action, not on the underlying transport failure.
type DomainError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Action  RecoveryAction         `json:"action"`
	Context map[string]interface{} `json:"context,omitempty"`
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Retryable reports whether the caller may safely re-issue the operation.
func (e *DomainError) Retryable() bool {
	return e.Action == ActionRetry
}

// statusError carries an HTTP status through to classification.
type statusError struct {
	status    int
	operation string
	body      string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s returned HTTP %d", e.operation, e.status)
}

// transient HTTP statuses the EHR is known to emit under load, including the
// CDN-level 522/524 timeouts.
var transientStatuses = map[int]bool{
	http.StatusRequestTimeout:     true,
	http.StatusTooManyRequests:    true,
	http.StatusBadGateway:         true,
	http.StatusServiceUnavailable: true,
	http.StatusGatewayTimeout:     true,
	522:                           true,
	524:                           true,
}

var networkFailurePatterns = []string{
	"connection refused",
	"connection reset",
	"no such host",
	"timeout",
	"timed out",
	"tls handshake",
	"eof",
	"broken pipe",
}

// Classify maps a raw failure from the EHR transport to a DomainError.
//
// Decision order: 404 is a definitive PatientNotFound (stop), 401/403 need
// credential rotation (stop), known-transient and unknown statuses are
// PccUnavailable (retry), and network-layer failures are PccUnavailable.
// Anything unclassifiable defaults to retry so callers never see an
// unrecoverable unknown.
func Classify(err error, operation string, errCtx map[string]interface{}) *DomainError {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}

	if errCtx == nil {
		errCtx = map[string]interface{}{}
	}
	errCtx["operation"] = operation

	var stErr *statusError
	if errors.As(err, &stErr) {
		return classifyStatus(stErr.status, operation, errCtx)
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) || matchesNetworkPattern(err) {
		return &DomainError{
			Code:    CodePccUnavailable,
			Message: fmt.Sprintf("EHR unreachable during %s: %v", operation, err),
			Action:  ActionRetry,
			Context: errCtx,
		}
	}

	return &DomainError{
		Code:    CodePccUnavailable,
		Message: fmt.Sprintf("unclassified failure during %s: %v", operation, err),
		Action:  ActionRetry,
		Context: errCtx,
	}
}

func classifyStatus(status int, operation string, errCtx map[string]interface{}) *DomainError {
	errCtx["http_status"] = status

	switch {
	case status == http.StatusNotFound:
		return &DomainError{
			Code:    CodePatientNotFound,
			Message: fmt.Sprintf("patient not found during %s", operation),
			Action:  ActionStop,
			Context: errCtx,
		}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &DomainError{
			Code:    CodePccUnauthorized,
			Message: fmt.Sprintf("EHR rejected credentials during %s; credential rotation required", operation),
			Action:  ActionStop,
			Context: errCtx,
		}
	case transientStatuses[status]:
		return &DomainError{
			Code:    CodePccUnavailable,
			Message: fmt.Sprintf("EHR temporarily unavailable during %s (HTTP %d)", operation, status),
			Action:  ActionRetry,
			Context: errCtx,
		}
	default:
		// Conservative default: treat unknown statuses as transient.
		return &DomainError{
			Code:    CodePccUnavailable,
			Message: fmt.Sprintf("unexpected HTTP %d during %s", status, operation),
			Action:  ActionRetry,
			Context: errCtx,
		}
	}
}

func matchesNetworkPattern(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, pattern := range networkFailurePatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
