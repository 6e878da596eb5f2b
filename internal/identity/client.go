// Package identity is a thin client for the cloud platform's identity
// API: login, access key listing, creation, status changes and deletion.
// One Client is bound to one tenant base URL; sessions are passed in
// explicitly rather than cached on the client.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	kerrors "github.com/systmms/keyrotor/internal/errors"
	"github.com/systmms/keyrotor/internal/logging"
)

const (
	// DefaultTimeout bounds every individual API call. A timeout is
	// treated as a failure of the step that issued the call.
	DefaultTimeout = 10 * time.Second

	// DefaultRetries is the number of attempts for transient transport
	// failures. Only individual calls retry; rotation steps never do.
	DefaultRetries = 3

	authHeader = "x-redlock-auth"
)

// Client talks to one identity service tenant.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
	retries    int
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithHTTPClient sets a custom HTTP client (used in tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRetries overrides the transient-failure retry count.
func WithRetries(n int) Option {
	return func(c *Client) {
		c.retries = n
	}
}

// NewClient creates a client for the given tenant base URL.
func NewClient(baseURL string, logger *logging.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     logger,
		retries:    DefaultRetries,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the tenant base URL this client is bound to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Login exchanges a credential for a short-lived session token. Failure
// means the credential is invalid or the service is unreachable; it is
// the same signal used to verify a newly created key.
func (c *Client) Login(ctx context.Context, accessKeyID, secretKey string) (Session, error) {
	payload := map[string]string{
		"username": accessKeyID,
		"password": secretKey,
	}

	resp, err := c.do(ctx, http.MethodPost, "/login", Session{}, payload)
	if err != nil {
		return Session{}, kerrors.AuthError{KeyID: accessKeyID, Message: "login request failed", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Session{}, kerrors.AuthError{
			KeyID:   accessKeyID,
			Message: fmt.Sprintf("login returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	var loginResp struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		return Session{}, kerrors.AuthError{KeyID: accessKeyID, Message: "failed to decode login response", Err: err}
	}
	if loginResp.Token == "" {
		return Session{}, kerrors.AuthError{KeyID: accessKeyID, Message: "login response contained no token"}
	}

	c.logger.Debug("authenticated access key %s against %s", accessKeyID, c.baseURL)
	return Session{Token: loginResp.Token, ExpiresAt: time.Now().Add(SessionTTL)}, nil
}

// ListKeys returns all access keys for the account reachable via the session.
func (c *Client) ListKeys(ctx context.Context, session Session) ([]AccessKey, error) {
	resp, err := c.do(ctx, http.MethodGet, "/access-keys", session, nil)
	if err != nil {
		return nil, kerrors.APIError{Operation: "listKeys", Message: err.Error(), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkStatus(resp, "listKeys"); err != nil {
		return nil, err
	}

	var keys []AccessKey
	if err := json.NewDecoder(resp.Body).Decode(&keys); err != nil {
		return nil, kerrors.APIError{Operation: "listKeys", Message: "failed to decode response", Err: err}
	}
	return keys, nil
}

// CreateKey provisions a new access key, returned ACTIVE with its secret.
// There is no retry beyond the transport level: without a new key the
// rotation cannot proceed, and creating two would widen the blast radius.
func (c *Client) CreateKey(ctx context.Context, session Session, name string) (AccessKey, error) {
	resp, err := c.do(ctx, http.MethodPost, "/access-keys", session, map[string]string{"name": name})
	if err != nil {
		return AccessKey{}, kerrors.APIError{Operation: "createKey", Message: err.Error(), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkStatus(resp, "createKey"); err != nil {
		return AccessKey{}, err
	}

	var key AccessKey
	if err := json.NewDecoder(resp.Body).Decode(&key); err != nil {
		return AccessKey{}, kerrors.APIError{Operation: "createKey", Message: "failed to decode response", Err: err}
	}
	if key.ID == "" || key.SecretKey == "" {
		return AccessKey{}, kerrors.APIError{Operation: "createKey", Message: "response missing id or secretKey"}
	}
	key.Status = StatusActive
	key.Name = name

	c.logger.Debug("created access key %s (secret %s)", key.ID, logging.Secret(key.SecretKey))
	return key, nil
}

// SetKeyStatus transitions a key's status.
func (c *Client) SetKeyStatus(ctx context.Context, session Session, keyID string, status Status) error {
	path := "/access-keys/" + keyID
	resp, err := c.do(ctx, http.MethodPatch, path, session, map[string]string{"status": string(status)})
	if err != nil {
		return kerrors.APIError{Operation: "setKeyStatus", Message: err.Error(), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	return checkStatus(resp, "setKeyStatus")
}

// DeleteKey permanently removes one key. Used for rollback of a
// just-created key that failed verification.
func (c *Client) DeleteKey(ctx context.Context, session Session, keyID string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/access-keys/"+keyID, session, nil)
	if err != nil {
		return kerrors.APIError{Operation: "deleteKey", Message: err.Error(), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	return checkStatus(resp, "deleteKey")
}

// DeleteKeys removes keys in bulk. Used to clean up already inactive keys
// left behind by earlier rotations.
func (c *Client) DeleteKeys(ctx context.Context, session Session, keyIDs []string) error {
	if len(keyIDs) == 0 {
		return nil
	}

	resp, err := c.do(ctx, http.MethodDelete, "/access-keys", session, map[string][]string{"ids": keyIDs})
	if err != nil {
		return kerrors.APIError{Operation: "deleteKeys", Message: err.Error(), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	return checkStatus(resp, "deleteKeys")
}

// do builds and executes one request, retrying transient transport
// failures and 5xx/429 responses with linear backoff.
func (c *Client) do(ctx context.Context, method, path string, session Session, payload interface{}) (*http.Response, error) {
	var body io.Reader
	var raw []byte
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if session.Token != "" {
		req.Header.Set(authHeader, session.Token)
	}

	var lastErr error
	for attempt := 0; attempt < c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}

		reqClone := req.Clone(ctx)
		if raw != nil {
			reqClone.Body = io.NopCloser(bytes.NewReader(raw))
		}

		resp, err := c.httpClient.Do(reqClone)
		if err != nil {
			lastErr = err
			if !kerrors.IsRetryable(err) && ctx.Err() == nil {
				return nil, err
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Debug("retrying %s %s after transport error: %v", method, path, err)
			continue
		}

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
			c.logger.Debug("retrying %s %s after %v", method, path, lastErr)
			continue
		}

		return resp, nil
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", c.retries, lastErr)
}

// checkStatus converts a non-2xx response into an APIError with a body
// excerpt for the operator.
func checkStatus(resp *http.Response, operation string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return kerrors.APIError{
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Message:    strings.TrimSpace(string(body)),
	}
}
