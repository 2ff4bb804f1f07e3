package ehr

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTokenServer(t *testing.T, exchanges *int, expiresIn int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("token endpoint got %s, want POST", r.Method)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client-id" || pass != "client-secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "client_credentials" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		*exchanges++
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "token-1",
			"token_type":   "Bearer",
			"expires_in":   expiresIn,
		})
	}))
}

func TestTokenCachedWithinBuffer(t *testing.T) {
	exchanges := 0
	server := newTokenServer(t, &exchanges, 3600)
	defer server.Close()

	source := NewTokenSource(server.Client(), server.URL, "client-id", "client-secret", zap.NewNop())

	for i := 0; i < 5; i++ {
		token, err := source.Token(context.Background())
		if err != nil {
			t.Fatalf("Token: %v", err)
		}
		if token != "token-1" {
			t.Fatalf("token = %q", token)
		}
	}
	if exchanges != 1 {
		t.Errorf("performed %d exchanges for 5 calls, want 1", exchanges)
	}
}

func TestTokenRefreshesInsideExpiryBuffer(t *testing.T) {
	exchanges := 0
	server := newTokenServer(t, &exchanges, 3600)
	defer server.Close()

	source := NewTokenSource(server.Client(), server.URL, "client-id", "client-secret", zap.NewNop())

	base := time.Now()
	source.now = func() time.Time { return base }
	if _, err := source.Token(context.Background()); err != nil {
		t.Fatal(err)
	}

	// 4 minutes before nominal expiry is inside the 5-minute buffer, so the
	// token must be treated as stale.
	source.now = func() time.Time { return base.Add(3600*time.Second - 4*time.Minute) }
	if _, err := source.Token(context.Background()); err != nil {
		t.Fatal(err)
	}

	if exchanges != 2 {
		t.Errorf("performed %d exchanges, want 2 (stale token must be refreshed)", exchanges)
	}
}

func TestTokenNotRefreshedOutsideBuffer(t *testing.T) {
	exchanges := 0
	server := newTokenServer(t, &exchanges, 3600)
	defer server.Close()

	source := NewTokenSource(server.Client(), server.URL, "client-id", "client-secret", zap.NewNop())

	base := time.Now()
	source.now = func() time.Time { return base }
	if _, err := source.Token(context.Background()); err != nil {
		t.Fatal(err)
	}

	source.now = func() time.Time { return base.Add(3600*time.Second - 6*time.Minute) }
	if _, err := source.Token(context.Background()); err != nil {
		t.Fatal(err)
	}

	if exchanges != 1 {
		t.Errorf("performed %d exchanges, want 1 (token still outside the buffer)", exchanges)
	}
}

func TestInvalidateForcesReauthentication(t *testing.T) {
	exchanges := 0
	server := newTokenServer(t, &exchanges, 3600)
	defer server.Close()

	source := NewTokenSource(server.Client(), server.URL, "client-id", "client-secret", zap.NewNop())

	if _, err := source.Token(context.Background()); err != nil {
		t.Fatal(err)
	}
	source.Invalidate()
	if _, err := source.Token(context.Background()); err != nil {
		t.Fatal(err)
	}

	if exchanges != 2 {
		t.Errorf("performed %d exchanges, want 2 after Invalidate", exchanges)
	}
}

func TestTokenExchangeRejectionClassified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	source := NewTokenSource(server.Client(), server.URL, "bad-id", "bad-secret", zap.NewNop())

	_, err := source.Token(context.Background())
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected *DomainError, got %v", err)
	}
	if domainErr.Code != CodePccUnauthorized || domainErr.Action != ActionStop {
		t.Errorf("rejected exchange should be fatal PCC_UNAUTHORIZED, got %+v", domainErr)
	}

	// A failed exchange must not populate the cache.
	if source.token != "" {
		t.Error("failed exchange left a token in the cache")
	}
}
