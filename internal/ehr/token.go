package ehr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// expiryBuffer absorbs clock skew and in-flight request latency: a token is
// treated as expired this long before the EHR says it is.
const expiryBuffer = 5 * time.Minute

// TokenSource caches the bearer token used against the EHR and performs the
// client-credentials exchange when the cached token is missing or stale.
//
// The check-and-refresh sequence is guarded by a mutex so a burst of
// concurrent requests performs a single exchange instead of one per request.
type TokenSource struct {
	httpClient   *http.Client
	tokenURL     string
	clientID     string
	clientSecret string
	log          *zap.Logger

	mu        sync.Mutex
	token     string
	expiresAt time.Time

	// now is swapped in tests.
	now func() time.Time
}

func NewTokenSource(httpClient *http.Client, tokenURL, clientID, clientSecret string, logger *zap.Logger) *TokenSource {
	return &TokenSource{
		httpClient:   httpClient,
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		log:          logger,
		now:          time.Now,
	}
}

// Token returns the cached bearer token, exchanging credentials first if the
// cache is empty or inside the expiry buffer. An exchange failure is returned
// to the caller and leaves the cache untouched.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.now().Before(s.expiresAt.Add(-expiryBuffer)) {
		return s.token, nil
	}

	token, expiresIn, err := s.exchange(ctx)
	if err != nil {
		return "", err
	}

	s.token = token
	s.expiresAt = s.now().Add(time.Duration(expiresIn) * time.Second)

	s.log.Info("EHR credential exchange succeeded",
		zap.Time("expires_at", s.expiresAt),
	)
	return s.token, nil
}

// Invalidate clears the cache so the next Token call re-authenticates. The
// client calls this exactly once after a downstream 401 to bound retries.
func (s *TokenSource) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.expiresAt = time.Time{}
}

func (s *TokenSource) exchange(ctx context.Context) (string, int, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("failed to build token request: %w", err)
	}
	req.SetBasicAuth(s.clientID, s.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.log.Error("EHR credential exchange failed", zap.Error(err))
		return "", 0, Classify(err, "token_exchange", nil)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.log.Error("EHR credential exchange rejected",
			zap.Int("status", resp.StatusCode),
		)
		return "", 0, Classify(&statusError{status: resp.StatusCode, operation: "token_exchange"}, "token_exchange", nil)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", 0, fmt.Errorf("failed to decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", 0, fmt.Errorf("token response missing access_token")
	}

	return tr.AccessToken, tr.ExpiresIn, nil
}
