// Package remote implements the licensing and package-fetch contract: a
// session handshake, a license check, and a raw package download.
//
// The transport must be secure: a non-https base URL is a configuration
// error at construction time, not a retryable condition (loopback hosts
// are exempt so tests can run against httptest servers). The client never
// retries; retry policy belongs to the caller.
package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/AnsgarHolmDietrichson/veneer/internal/config"
	"github.com/AnsgarHolmDietrichson/veneer/internal/verify"
)

const (
	// DefaultTimeout is the HTTP request timeout.
	DefaultTimeout = 5 * time.Minute
	// DefaultUserAgent is the User-Agent header sent with requests.
	DefaultUserAgent = "veneer/1.0"

	// MessageVersionMismatch is the authorize message signalling that an
	// update is available for the supplied current version.
	MessageVersionMismatch = "version mismatch"

	// SignatureHeader carries the base64 detached signature over the
	// response body when the distribution signs responses.
	SignatureHeader = "X-Signature"
)

// AuthorizeResponse is the session handshake result.
type AuthorizeResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// UpdateAvailable reports whether the handshake signalled a newer package
// version than the current-version hint.
func (r *AuthorizeResponse) UpdateAvailable() bool {
	return !r.Success && r.Message == MessageVersionMismatch
}

// LicenseResponse is the license validation result.
type LicenseResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Client talks to the licensing API for one configured distribution.
type Client struct {
	httpClient *http.Client
	baseURL    string
	cfg        *config.Config
	verifier   *verify.SignatureVerifier
	userAgent  string
}

// NewClient creates a client for the configured API. verifier may be nil
// when the distribution does not sign responses.
func NewClient(cfg *config.Config, verifier *verify.SignatureVerifier) (*Client, error) {
	u, err := url.Parse(cfg.API)
	if err != nil {
		return nil, fmt.Errorf("parse api URL: %w", err)
	}

	if u.Scheme != "https" && u.Hostname() != "localhost" && u.Hostname() != "127.0.0.1" && u.Hostname() != "::1" {
		return nil, fmt.Errorf("api URL must use https:// (got: %s)", u.Scheme)
	}

	return &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		baseURL:    u.String(),
		cfg:        cfg,
		verifier:   verifier,
		userAgent:  DefaultUserAgent,
	}, nil
}

// Authorize opens a session. currentVersion may be empty for a fresh
// install; when set, a MessageVersionMismatch reply means an update is
// available.
func (c *Client) Authorize(ctx context.Context, currentVersion string) (*AuthorizeResponse, error) {
	payload := map[string]string{
		"owner": c.cfg.Owner,
		"app":   c.cfg.App,
	}
	if currentVersion != "" {
		payload["current_version"] = currentVersion
	}
	if c.cfg.EncryptionKey != "" {
		payload["encryption_key"] = c.cfg.EncryptionKey
	}

	body, err := c.post(ctx, "/v1/authorize", payload)
	if err != nil {
		return nil, fmt.Errorf("authorize: %w", err)
	}

	var resp AuthorizeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal authorize response: %w", err)
	}

	return &resp, nil
}

// License validates the license key against an open session.
func (c *Client) License(ctx context.Context, sessionID, hwid string) (*LicenseResponse, error) {
	payload := map[string]string{
		"session_id":  sessionID,
		"license_key": c.cfg.LicenseKey,
	}
	if hwid != "" {
		payload["hwid"] = hwid
	}

	body, err := c.post(ctx, "/v1/license", payload)
	if err != nil {
		return nil, fmt.Errorf("license: %w", err)
	}

	var resp LicenseResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal license response: %w", err)
	}

	return &resp, nil
}

// FetchPackage downloads the package archive for an authorized session.
// The returned bytes are the raw tar.gz blob; a non-200 status is an
// error.
func (c *Client) FetchPackage(ctx context.Context, sessionID, hwid string) ([]byte, error) {
	payload := map[string]string{
		"session_id":  sessionID,
		"license_key": c.cfg.LicenseKey,
		"owner":       c.cfg.Owner,
		"app":         c.cfg.App,
	}
	if c.cfg.Token != "" {
		payload["token"] = c.cfg.Token
	}
	if hwid != "" {
		payload["hwid"] = hwid
	}

	body, err := c.post(ctx, "/v1/package", payload)
	if err != nil {
		return nil, fmt.Errorf("fetch package: %w", err)
	}

	return body, nil
}

// post sends a JSON request and returns the verified response body.
func (c *Client) post(ctx context.Context, path string, payload map[string]string) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	// The body is untrusted until its signature checks out.
	if c.verifier != nil {
		encoded := resp.Header.Get(SignatureHeader)
		if encoded == "" {
			return nil, fmt.Errorf("response missing %s header", SignatureHeader)
		}
		signature, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("decode response signature: %w", err)
		}
		if err := c.verifier.Verify(body, signature); err != nil {
			return nil, fmt.Errorf("response signature invalid: %w", err)
		}
	}

	return body, nil
}
