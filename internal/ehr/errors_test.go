package ehr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestClassifyStatusDecisionOrder(t *testing.T) {
	tests := []struct {
		status     int
		wantCode   ErrorCode
		wantAction RecoveryAction
	}{
		{http.StatusNotFound, CodePatientNotFound, ActionStop},
		{http.StatusUnauthorized, CodePccUnauthorized, ActionStop},
		{http.StatusForbidden, CodePccUnauthorized, ActionStop},
		{http.StatusRequestTimeout, CodePccUnavailable, ActionRetry},
		{http.StatusTooManyRequests, CodePccUnavailable, ActionRetry},
		{http.StatusBadGateway, CodePccUnavailable, ActionRetry},
		{http.StatusServiceUnavailable, CodePccUnavailable, ActionRetry},
		{http.StatusGatewayTimeout, CodePccUnavailable, ActionRetry},
		{522, CodePccUnavailable, ActionRetry},
		{524, CodePccUnavailable, ActionRetry},
		// Unknown statuses default to transient.
		{http.StatusTeapot, CodePccUnavailable, ActionRetry},
		{http.StatusInternalServerError, CodePccUnavailable, ActionRetry},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			got := Classify(&statusError{status: tt.status, operation: "GET /patients/x"}, "GET /patients/x", nil)
			if got.Code != tt.wantCode {
				t.Errorf("Code = %s, want %s", got.Code, tt.wantCode)
			}
			if got.Action != tt.wantAction {
				t.Errorf("Action = %s, want %s", got.Action, tt.wantAction)
			}
			if got.Context["http_status"] != tt.status {
				t.Errorf("Context http_status = %v, want %d", got.Context["http_status"], tt.status)
			}
		})
	}
}

func TestClassifyNetworkPatterns(t *testing.T) {
	for _, msg := range []string{
		"dial tcp 10.0.0.1:443: connection refused",
		"read tcp: connection reset by peer",
		"dial tcp: lookup ehr.example.com: no such host",
		"net/http: TLS handshake timeout",
		"unexpected EOF",
		"write: broken pipe",
	} {
		got := Classify(errors.New(msg), "GET /patients/x", nil)
		if got.Code != CodePccUnavailable || !got.Retryable() {
			t.Errorf("Classify(%q) = %+v, want retryable PCC_UNAVAILABLE", msg, got)
		}
	}
}

func TestClassifyDeadlineExceeded(t *testing.T) {
	got := Classify(context.DeadlineExceeded, "GET /patients/x", nil)
	if got.Code != CodePccUnavailable || !got.Retryable() {
		t.Errorf("deadline exceeded should be retryable PCC_UNAVAILABLE, got %+v", got)
	}
}

func TestClassifyConservativeDefault(t *testing.T) {
	got := Classify(errors.New("something completely novel"), "GET /patients/x", nil)
	if got.Code != CodePccUnavailable || got.Action != ActionRetry {
		t.Errorf("unclassifiable errors must default to retry, got %+v", got)
	}
}

func TestClassifyPassesThroughDomainError(t *testing.T) {
	original := &DomainError{Code: CodePatientNotFound, Message: "gone", Action: ActionStop}

	got := Classify(original, "GET /patients/x", nil)
	if got != original {
		t.Error("an already-classified error must pass through unchanged")
	}

	wrapped := fmt.Errorf("fetch patient: %w", original)
	if got := Classify(wrapped, "GET /patients/x", nil); got != original {
		t.Error("a wrapped DomainError must be unwrapped, not re-classified")
	}
}

func TestDomainErrorRetryable(t *testing.T) {
	if (&DomainError{Action: ActionStop}).Retryable() {
		t.Error("stop must not be retryable")
	}
	if (&DomainError{Action: ActionUserInput}).Retryable() {
		t.Error("user-input must not be retryable")
	}
	if !(&DomainError{Action: ActionRetry}).Retryable() {
		t.Error("retry must be retryable")
	}
}
