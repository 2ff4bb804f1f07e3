package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mesikahq/niv-onboarding/internal/audit"
)

type fakeAuditService struct {
	events []*audit.Event
}

func (s *fakeAuditService) LogEvent(ctx context.Context, event *audit.Event) error {
	s.events = append(s.events, event)
	return nil
}

func (s *fakeAuditService) QueryEvents(ctx context.Context, filters map[string]interface{}, from, size int) ([]audit.Event, error) {
	return nil, nil
}

func newTestAuthService(t *testing.T, expiry time.Duration) (Service, *fakeAuditService) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("operator-secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	auditSvc := &fakeAuditService{}
	return NewService(auditSvc, ServiceConfig{
		JWTSecret:          "test-signing-secret",
		TokenExpiry:        expiry,
		OperatorEmail:      "ops@example.com",
		OperatorSecretHash: string(hash),
	}), auditSvc
}

func TestLoginAndValidate(t *testing.T) {
	svc, auditSvc := newTestAuthService(t, time.Hour)

	token, err := svc.Login(context.Background(), "ops@example.com", "operator-secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	claims, err := svc.ValidateToken(context.Background(), token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.Username != "ops@example.com" {
		t.Errorf("Username = %q", claims.Username)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != "operator" {
		t.Errorf("Roles = %v", claims.Roles)
	}

	last := auditSvc.events[len(auditSvc.events)-1]
	if last.EventType != audit.EventLogin || last.Status != "success" {
		t.Errorf("expected a successful LOGIN audit event, got %+v", last)
	}
}

func TestLoginRejectsBadSecret(t *testing.T) {
	svc, auditSvc := newTestAuthService(t, time.Hour)

	_, err := svc.Login(context.Background(), "ops@example.com", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	last := auditSvc.events[len(auditSvc.events)-1]
	if last.Status != "failure" {
		t.Errorf("failed login must be audited, got %+v", last)
	}
}

func TestLoginRejectsUnknownEmail(t *testing.T) {
	svc, _ := newTestAuthService(t, time.Hour)

	_, err := svc.Login(context.Background(), "someone@else.com", "operator-secret")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc, _ := newTestAuthService(t, time.Hour)

	_, err := svc.ValidateToken(context.Background(), "not-a-jwt")
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	svc, _ := newTestAuthService(t, -time.Minute)

	token, err := svc.Login(context.Background(), "ops@example.com", "operator-secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	_, err = svc.ValidateToken(context.Background(), token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestValidateTokenRejectsForeignSignature(t *testing.T) {
	svc, _ := newTestAuthService(t, time.Hour)

	otherAudit := &fakeAuditService{}
	hash, _ := bcrypt.GenerateFromPassword([]byte("operator-secret"), bcrypt.MinCost)
	other := NewService(otherAudit, ServiceConfig{
		JWTSecret:          "a-different-secret",
		TokenExpiry:        time.Hour,
		OperatorEmail:      "ops@example.com",
		OperatorSecretHash: string(hash),
	})

	token, err := other.Login(context.Background(), "ops@example.com", "operator-secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if _, err := svc.ValidateToken(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for a foreign signature, got %v", err)
	}
}
