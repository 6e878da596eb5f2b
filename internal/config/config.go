// Package config loads and validates the keyrotor.yaml configuration:
// the secret store definitions and the list of rotation tasks.
package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	kerrors "github.com/systmms/keyrotor/internal/errors"
	"github.com/systmms/keyrotor/internal/logging"
)

//go:embed schema.json
var configSchema string

// DefaultTimeoutMs bounds each network call a task makes.
const DefaultTimeoutMs = 10000

// Config holds the runtime configuration
type Config struct {
	Path           string
	Logger         *logging.Logger
	NonInteractive bool
	Definition     *Definition
}

// Definition represents the keyrotor.yaml structure
type Definition struct {
	Version int                    `yaml:"version" json:"version"`
	Stores  map[string]StoreConfig `yaml:"stores" json:"stores"`
	Tasks   []TaskConfig           `yaml:"tasks" json:"tasks"`
}

// StoreConfig holds secret store-specific configuration
type StoreConfig struct {
	Type   string                 `yaml:"type" json:"type"`
	Config map[string]interface{} `yaml:",inline" json:"-"`
}

// TaskConfig identifies one rotation target: which secret-store location
// and which identity-service tenant. Immutable for the duration of a run.
type TaskConfig struct {
	Name           string `yaml:"name" json:"name"`
	Store          string `yaml:"store" json:"store"`
	SecretPath     string `yaml:"secret_path" json:"secret_path"`
	IdentityAPIURL string `yaml:"identity_api_url" json:"identity_api_url"`
	TimeoutMs      int    `yaml:"timeout_ms,omitempty" json:"timeout_ms,omitempty"`
}

// Timeout returns the per-call timeout for this task.
func (t TaskConfig) Timeout() time.Duration {
	if t.TimeoutMs <= 0 {
		return DefaultTimeoutMs * time.Millisecond
	}
	return time.Duration(t.TimeoutMs) * time.Millisecond
}

// Load reads and parses the keyrotor.yaml file
func (c *Config) Load() error {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return kerrors.ConfigError{
				Field:      "path",
				Value:      c.Path,
				Message:    "configuration file not found",
				Suggestion: "Create a keyrotor.yaml with your stores and rotation tasks, or pass --config",
			}
		}
		return kerrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return kerrors.ConfigError{
			Field:      "yaml",
			Message:    "invalid YAML in configuration file",
			Suggestion: "Check for indentation errors and missing quotes",
			Err:        err,
		}
	}

	if err := validateSchema(&def); err != nil {
		return err
	}
	if err := validateSemantics(&def); err != nil {
		return err
	}

	c.Definition = &def
	return nil
}

// validateSchema checks the structural shape against the embedded JSON schema.
func validateSchema(def *Definition) error {
	jsonData, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("failed to marshal config for validation: %w", err)
	}

	schemaLoader := gojsonschema.NewStringLoader(configSchema)
	documentLoader := gojsonschema.NewBytesLoader(jsonData)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		var errorMessages []string
		for _, desc := range result.Errors() {
			errorMessages = append(errorMessages, desc.String())
		}
		return kerrors.ConfigError{
			Field:      "config",
			Message:    "configuration failed schema validation:\n  - " + strings.Join(errorMessages, "\n  - "),
			Suggestion: "Compare your keyrotor.yaml against the documented format",
		}
	}
	return nil
}

// validateSemantics checks cross-references the schema cannot express.
func validateSemantics(def *Definition) error {
	seen := make(map[string]bool, len(def.Tasks))
	for i, task := range def.Tasks {
		if seen[task.Name] {
			return kerrors.ConfigError{
				Field:   fmt.Sprintf("tasks[%d].name", i),
				Value:   task.Name,
				Message: "duplicate task name",
			}
		}
		seen[task.Name] = true

		if _, ok := def.Stores[task.Store]; !ok {
			return kerrors.ConfigError{
				Field:      fmt.Sprintf("tasks[%d].store", i),
				Value:      task.Store,
				Message:    "task references an undefined store",
				Suggestion: fmt.Sprintf("Define stores.%s or fix the reference", task.Store),
			}
		}

		if !strings.HasPrefix(task.IdentityAPIURL, "https://") && !strings.HasPrefix(task.IdentityAPIURL, "http://") {
			return kerrors.ConfigError{
				Field:   fmt.Sprintf("tasks[%d].identity_api_url", i),
				Value:   task.IdentityAPIURL,
				Message: "identity API URL must be http(s)",
			}
		}
	}
	return nil
}

// Task returns the task with the given name, or an error naming the
// known tasks.
func (d *Definition) Task(name string) (TaskConfig, error) {
	for _, t := range d.Tasks {
		if t.Name == name {
			return t, nil
		}
	}
	names := make([]string, 0, len(d.Tasks))
	for _, t := range d.Tasks {
		names = append(names, t.Name)
	}
	return TaskConfig{}, kerrors.ConfigError{
		Field:      "task",
		Value:      name,
		Message:    "unknown task",
		Suggestion: "Known tasks: " + strings.Join(names, ", "),
	}
}
