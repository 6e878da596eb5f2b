package vault

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	kerrors "github.com/systmms/keyrotor/internal/errors"
	"github.com/systmms/keyrotor/internal/logging"
)

// httpClient implements Client against the Vault HTTP API.
type httpClient struct {
	config Config
	token  string
	logger *logging.Logger
}

// Authenticate resolves a usable token for the configured auth method.
func (c *httpClient) Authenticate(ctx context.Context) error {
	if c.token != "" {
		if err := c.validateToken(ctx); err == nil {
			return nil
		}
		c.token = ""
	}

	switch c.config.AuthMethod {
	case "token", "":
		return c.authenticateToken()
	case "userpass":
		return c.authenticateUserpass(ctx)
	default:
		return fmt.Errorf("unsupported auth method: %s", c.config.AuthMethod)
	}
}

// Read fetches a KV v2 secret and unwraps the data.data envelope.
// A missing secret returns nil data and no error.
func (c *httpClient) Read(ctx context.Context, path string) (map[string]string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("vault returned status %d: %s", resp.StatusCode, string(body))
	}

	var response struct {
		Data struct {
			Data map[string]interface{} `json:"data"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if response.Data.Data == nil {
		return nil, nil
	}

	data := make(map[string]string, len(response.Data.Data))
	for k, v := range response.Data.Data {
		data[k] = fmt.Sprintf("%v", v)
	}
	return data, nil
}

// Write replaces the KV v2 secret at path with the given mapping.
func (c *httpClient) Write(ctx context.Context, path string, data map[string]string) error {
	payload, err := json.Marshal(map[string]interface{}{"data": data})
	if err != nil {
		return fmt.Errorf("failed to marshal secret data: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(payload))
	if err != nil {
		return err
	}

	resp, err := c.do(req)
	if err != nil {
		return kerrors.StoreError{Path: path, Message: "vault write request failed", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return kerrors.StoreError{
			Path:       path,
			Message:    fmt.Sprintf("vault returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
			Suggestion: "The identity service now holds two active keys; re-run the rotation once the store is healthy",
		}
	}
	return nil
}

func (c *httpClient) authenticateToken() error {
	if c.config.Token != "" {
		c.token = c.config.Token
		return nil
	}
	if token := os.Getenv("VAULT_TOKEN"); token != "" {
		c.token = token
		return nil
	}
	return fmt.Errorf("no vault token found in config or VAULT_TOKEN environment variable")
}

func (c *httpClient) authenticateUserpass(ctx context.Context) error {
	password := c.config.UserpassPassword
	if password == "" {
		password = os.Getenv("VAULT_USERPASS_PASSWORD")
	}
	if password == "" {
		return fmt.Errorf("no password found for userpass auth")
	}

	authData := map[string]interface{}{"password": password}
	payload, err := json.Marshal(authData)
	if err != nil {
		return fmt.Errorf("failed to marshal auth data: %w", err)
	}

	authPath := fmt.Sprintf("auth/userpass/login/%s", c.config.UserpassUsername)
	req, err := c.newRequest(ctx, http.MethodPost, authPath, bytes.NewReader(payload))
	if err != nil {
		return err
	}

	resp, err := c.do(req)
	if err != nil {
		return fmt.Errorf("failed to make auth request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("authentication failed with status %d: %s", resp.StatusCode, string(body))
	}

	var authResp struct {
		Auth struct {
			ClientToken string `json:"client_token"`
		} `json:"auth"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		return fmt.Errorf("failed to decode auth response: %w", err)
	}
	if authResp.Auth.ClientToken == "" {
		return fmt.Errorf("no token received from vault")
	}

	c.token = authResp.Auth.ClientToken
	return nil
}

// Validate probes the server with the current token.
func (c *httpClient) Validate(ctx context.Context) error {
	return c.validateToken(ctx)
}

// validateToken checks if the current token is still usable.
func (c *httpClient) validateToken(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "auth/token/lookup-self", nil)
	if err != nil {
		return err
	}

	resp, err := c.do(req)
	if err != nil {
		return fmt.Errorf("failed to validate token: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("token validation failed with status %d", resp.StatusCode)
	}
	return nil
}

func (c *httpClient) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	url := strings.TrimSuffix(c.config.Address, "/") + "/v1/" + strings.TrimPrefix(path, "/")
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.token != "" && !strings.HasPrefix(path, "auth/userpass/") {
		req.Header.Set("X-Vault-Token", c.token)
	}
	if c.config.Namespace != "" {
		req.Header.Set("X-Vault-Namespace", c.config.Namespace)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *httpClient) do(req *http.Request) (*http.Response, error) {
	return c.getHTTPClient().Do(req)
}

// getHTTPClient creates an HTTP client with appropriate TLS settings.
func (c *httpClient) getHTTPClient() *http.Client {
	client := &http.Client{Timeout: c.config.Timeout}
	if client.Timeout == 0 {
		client.Timeout = DefaultTimeout
	}

	if c.config.TLSSkip || c.config.CACert != "" {
		tlsConfig := &tls.Config{
			InsecureSkipVerify: c.config.TLSSkip,
		}
		if c.config.CACert != "" {
			if pem, err := os.ReadFile(c.config.CACert); err == nil {
				pool := x509.NewCertPool()
				if pool.AppendCertsFromPEM(pem) {
					tlsConfig.RootCAs = pool
				}
			} else {
				c.logger.Warn("could not read CA certificate %s: %v", c.config.CACert, err)
			}
		}
		client.Transport = &http.Transport{TLSClientConfig: tlsConfig}
	}

	return client
}
