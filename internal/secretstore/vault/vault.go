// Package vault implements the secret store contract against HashiCorp
// Vault's KV v2 engine over its HTTP API.
package vault

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	kerrors "github.com/systmms/keyrotor/internal/errors"
	"github.com/systmms/keyrotor/internal/logging"
)

const (
	DefaultTimeout = 10 * time.Second
)

// Config holds Vault-specific configuration
type Config struct {
	Address    string `yaml:"address"`     // Vault server address
	Token      string `yaml:"token"`       // Vault token (discouraged, use VAULT_TOKEN)
	AuthMethod string `yaml:"auth_method"` // Authentication method: token, userpass
	Namespace  string `yaml:"namespace"`   // Vault namespace (Vault Enterprise)

	UserpassUsername string `yaml:"userpass_username"`
	UserpassPassword string `yaml:"userpass_password"` // discouraged, use VAULT_USERPASS_PASSWORD

	CACert  string `yaml:"ca_cert"`
	TLSSkip bool   `yaml:"tls_skip"` // Skip TLS verification (not recommended)

	Timeout time.Duration `yaml:"-"`
}

// Client is the subset of the Vault API the store needs, split out for
// testability.
type Client interface {
	Authenticate(ctx context.Context) error
	Read(ctx context.Context, path string) (map[string]string, error)
	Write(ctx context.Context, path string, data map[string]string) error
	Validate(ctx context.Context) error
}

// Store reads and writes credential envelopes at KV v2 paths.
type Store struct {
	name   string
	config Config
	logger *logging.Logger
	client Client
}

// New creates a Vault store from a raw config map, applying environment
// overrides the way the vault CLI tooling does.
func New(name string, configMap map[string]interface{}, logger *logging.Logger) (*Store, error) {
	var config Config
	config.AuthMethod = "token"
	config.Timeout = DefaultTimeout

	if addr, ok := configMap["address"].(string); ok {
		config.Address = addr
	}
	if token, ok := configMap["token"].(string); ok {
		config.Token = token
	}
	if authMethod, ok := configMap["auth_method"].(string); ok {
		config.AuthMethod = authMethod
	}
	if namespace, ok := configMap["namespace"].(string); ok {
		config.Namespace = namespace
	}
	if username, ok := configMap["userpass_username"].(string); ok {
		config.UserpassUsername = username
	}
	if password, ok := configMap["userpass_password"].(string); ok {
		config.UserpassPassword = password
	}
	if caCert, ok := configMap["ca_cert"].(string); ok {
		config.CACert = caCert
	}
	if tlsSkip, ok := configMap["tls_skip"].(bool); ok {
		config.TLSSkip = tlsSkip
	}
	if timeoutMs, ok := configMap["timeout_ms"].(int); ok && timeoutMs > 0 {
		config.Timeout = time.Duration(timeoutMs) * time.Millisecond
	}

	// Environment overrides
	if addr := os.Getenv("VAULT_ADDR"); addr != "" {
		config.Address = addr
	}
	if token := os.Getenv("VAULT_TOKEN"); token != "" {
		config.Token = token
	}
	if namespace := os.Getenv("VAULT_NAMESPACE"); namespace != "" {
		config.Namespace = namespace
	}
	if tlsSkip := os.Getenv("VAULT_SKIP_VERIFY"); tlsSkip == "1" || strings.ToLower(tlsSkip) == "true" {
		config.TLSSkip = true
	}

	if config.Address == "" {
		return nil, kerrors.ConfigError{
			Field:      "address",
			Message:    "vault address is required",
			Suggestion: "Set stores.<name>.address or the VAULT_ADDR environment variable",
		}
	}

	return &Store{
		name:   name,
		config: config,
		logger: logger,
		client: &httpClient{config: config, logger: logger},
	}, nil
}

// Name returns the store's configured name.
func (s *Store) Name() string {
	return s.name
}

// ReadCredential fetches the stored credential mapping at path.
func (s *Store) ReadCredential(ctx context.Context, path string) (map[string]string, error) {
	if err := s.client.Authenticate(ctx); err != nil {
		return nil, kerrors.StoreError{Store: s.name, Path: path, Message: "vault authentication failed", Err: err}
	}

	s.logger.Debug("reading credential from vault path %s", path)

	data, err := s.client.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, kerrors.NotFoundError{Store: s.name, Path: path}
	}
	return data, nil
}

// WriteCredential replaces the stored mapping at path wholesale. Callers
// must only invoke this with a verified credential: after this call the
// written material is the credential of record.
func (s *Store) WriteCredential(ctx context.Context, path string, data map[string]string) error {
	if err := s.client.Authenticate(ctx); err != nil {
		return kerrors.StoreError{Store: s.name, Path: path, Message: "vault authentication failed", Err: err}
	}

	s.logger.Debug("writing credential to vault path %s", path)
	return s.client.Write(ctx, path, data)
}

// Validate checks that the store is reachable and the token is honored.
func (s *Store) Validate(ctx context.Context) error {
	if err := s.client.Authenticate(ctx); err != nil {
		return fmt.Errorf("vault store %s: %w", s.name, err)
	}
	if err := s.client.Validate(ctx); err != nil {
		return fmt.Errorf("vault store %s: %w", s.name, err)
	}
	return nil
}
