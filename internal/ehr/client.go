package ehr

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// Config holds everything needed to reach the EHR. Client id/secret and the
// certificate pair are required; startup fails without them.
type Config struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	CertFile     string
	KeyFile      string
	Timeout      time.Duration
}

// Client is the authenticated EHR REST adapter. Every call obtains a bearer
// token from the TokenSource, issues the request over the mTLS channel and,
// on a 401, invalidates the token and retries the same call exactly once.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     *TokenSource
	log        *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("EHR client credentials are required")
	}

	httpClient, err := newMTLSClient(cfg.CertFile, cfg.KeyFile, cfg.Timeout)
	if err != nil {
		return nil, err
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: httpClient,
		tokens:     NewTokenSource(httpClient, cfg.TokenURL, cfg.ClientID, cfg.ClientSecret, logger),
		log:        logger,
	}, nil
}

// newMTLSClient builds an HTTP client presenting the configured client
// certificate. When no certificate is configured the plain TLS stack is used,
// which keeps local development against a stub EHR possible.
func newMTLSClient(certFile, keyFile string, timeout time.Duration) (*http.Client, error) {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	client := &http.Client{Timeout: timeout}

	if certFile == "" && keyFile == "" {
		return client, nil
	}

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load EHR client certificate: %w", err)
	}

	client.Transport = &http.Transport{
		TLSClientConfig: &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		},
	}
	return client, nil
}

// Get issues an authenticated GET and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, path string, params url.Values, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, params, nil, out)
}

// Post issues an authenticated POST with a JSON body and decodes the
// response into out.
func (c *Client) Post(ctx context.Context, path string, body interface{}, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body, out interface{}) error {
	operation := fmt.Sprintf("%s %s", method, path)

	status, err := c.attempt(ctx, method, path, params, body, out)
	if err == nil && status != http.StatusUnauthorized {
		return nil
	}
	if status != http.StatusUnauthorized {
		return err
	}

	// Single auth-refresh retry. A second 401 is surfaced as fatal.
	c.log.Warn("EHR returned 401, re-authenticating once",
		zap.String("operation", operation),
	)
	c.tokens.Invalidate()

	status, err = c.attempt(ctx, method, path, params, body, out)
	if err == nil && status != http.StatusUnauthorized {
		return nil
	}
	if status == http.StatusUnauthorized {
		return Classify(&statusError{status: status, operation: operation}, operation, nil)
	}
	return err
}

// attempt performs one authenticated request. It returns the HTTP status so
// do can detect a 401 without unwrapping the classified error.
func (c *Client) attempt(ctx context.Context, method, path string, params url.Values, body, out interface{}) (int, error) {
	operation := fmt.Sprintf("%s %s", method, path)

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return 0, Classify(err, operation, nil)
	}

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return 0, fmt.Errorf("failed to build EHR request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error("EHR request failed",
			zap.String("operation", operation),
			zap.Error(err),
		)
		return 0, Classify(err, operation, nil)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return resp.StatusCode, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, Classify(&statusError{status: resp.StatusCode, operation: operation}, operation, nil)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode EHR response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// GetPatient fetches a patient record and its diagnosis list in one call.
func (c *Client) GetPatient(ctx context.Context, patientID string) (*Patient, error) {
	var record patientRecord
	if err := c.Get(ctx, "/patients/"+patientID, nil, &record); err != nil {
		return nil, err
	}

	codes, err := c.GetPatientConditions(ctx, patientID)
	if err != nil {
		return nil, err
	}

	dob, _ := time.Parse("2006-01-02", record.BirthDate)
	return &Patient{
		ID: record.PatientID,
		Demographics: Demographics{
			FirstName:           record.FirstName,
			LastName:            record.LastName,
			DateOfBirth:         dob,
			MedicalRecordNumber: record.MedicalRecordNumber,
			FacilityID:          record.FacilityID,
		},
		DiagnosisCodes: codes,
	}, nil
}

// GetPatientConditions returns the patient's active diagnosis codes. A 404
// here means the patient has no recorded diagnoses, which is a valid empty
// result, not an error; "patient absent" is only signalled by GetPatient.
func (c *Client) GetPatientConditions(ctx context.Context, patientID string) ([]DiagnosisCode, error) {
	var page conditionPage
	err := c.Get(ctx, "/patients/"+patientID+"/conditions", nil, &page)
	if err != nil {
		var domainErr *DomainError
		if errors.As(err, &domainErr) && domainErr.Code == CodePatientNotFound {
			return []DiagnosisCode{}, nil
		}
		return nil, err
	}

	codes := make([]DiagnosisCode, 0, len(page.Data))
	for _, cond := range page.Data {
		if cond.ICD10 == "" {
			continue
		}
		system := CodeSystemICD10CM
		if cond.CodeSystem == string(CodeSystemICD10CA) {
			system = CodeSystemICD10CA
		}
		codes = append(codes, DiagnosisCode{
			Code:        cond.ICD10,
			CodeSystem:  system,
			Description: cond.ICD10Description,
		})
	}
	return codes, nil
}
