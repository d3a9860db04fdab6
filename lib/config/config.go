// Copyright 2026 The Slate Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the master configuration for the Slate GitHub sync service.
type Config struct {
	// Environment identifies the deployment type (development, staging,
	// production).
	Environment Environment `yaml:"environment"`

	// LogLevel sets the minimum slog level: debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// State configures local storage locations.
	State StateConfig `yaml:"state"`

	// Webhook configures the inbound webhook HTTP server.
	Webhook WebhookConfig `yaml:"webhook"`

	// GitHub configures the outbound API client and credentials.
	GitHub GitHubConfig `yaml:"github"`

	// Sync configures the push dispatcher.
	Sync SyncConfig `yaml:"sync"`

	// Per-environment overrides, applied after the base config is
	// loaded when Environment matches.
	Development *Overrides `yaml:"development,omitempty"`
	Staging     *Overrides `yaml:"staging,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// Overrides contains the sections that can be overridden per
// environment. Non-zero fields replace the base values.
type Overrides struct {
	LogLevel string         `yaml:"log_level,omitempty"`
	State    *StateConfig   `yaml:"state,omitempty"`
	Webhook  *WebhookConfig `yaml:"webhook,omitempty"`
	GitHub   *GitHubConfig  `yaml:"github,omitempty"`
	Sync     *SyncConfig    `yaml:"sync,omitempty"`
}

// StateConfig configures local storage locations.
type StateConfig struct {
	// Database is the SQLite database file path. The parent directory
	// is created by EnsurePaths.
	Database string `yaml:"database"`

	// Socket is the Unix socket path for the control protocol.
	Socket string `yaml:"socket"`
}

// WebhookConfig configures the inbound webhook HTTP server.
type WebhookConfig struct {
	// Listen is the address for the webhook HTTP server, for example
	// "127.0.0.1:8090". Empty disables the webhook server; the service
	// then only reacts to socket requests.
	Listen string `yaml:"listen"`

	// SecretFile is the path to the webhook HMAC secret. Required when
	// Listen is set. Deliveries failing signature verification are
	// rejected.
	SecretFile string `yaml:"secret_file"`

	// ArchiveKeyFile is the path to a 32-byte key for sealing archived
	// delivery payloads. Empty stores archives compressed but
	// unencrypted.
	ArchiveKeyFile string `yaml:"archive_key_file"`
}

// GitHubConfig configures the outbound API client.
type GitHubConfig struct {
	// BaseURL is the API root, default "https://api.github.com".
	// Override for GitHub Enterprise.
	BaseURL string `yaml:"base_url"`

	// RequestTimeout bounds each API call, as a Go duration string.
	// Default "15s".
	RequestTimeout string `yaml:"request_timeout"`

	// ProjectItemCap bounds how many project items a field sync will
	// page through looking for an issue. Default 1000.
	ProjectItemCap int `yaml:"project_item_cap"`

	// AccountMapFile is the path to the JSONC account map layering
	// per-org GitHub login → member ID overrides on top of the stored
	// member links.
	AccountMapFile string `yaml:"account_map_file"`

	// Credentials maps credential names (referenced by boards) to
	// token sources.
	Credentials map[string]CredentialConfig `yaml:"credentials"`
}

// CredentialConfig is one named credential. Exactly one form must be
// set: a plain token file, an age-sealed token file plus identity, or
// a GitHub App installation.
type CredentialConfig struct {
	// TokenFile is a plain file containing the token.
	TokenFile string `yaml:"token_file"`

	// SealedFile is an age-encrypted token file (base64 ciphertext as
	// produced by `slate credential seal`). Requires IdentityFile.
	SealedFile string `yaml:"sealed_file"`

	// IdentityFile holds the age private key that decrypts SealedFile.
	IdentityFile string `yaml:"identity_file"`

	// AppID, InstallationID, and PrivateKeyFile configure a GitHub App
	// installation token source.
	AppID          int64  `yaml:"app_id"`
	InstallationID int64  `yaml:"installation_id"`
	PrivateKeyFile string `yaml:"private_key_file"`
}

// Mode reports which credential form this entry uses: "token",
// "sealed", "app", or "" when no form is configured.
func (c *CredentialConfig) Mode() string {
	switch {
	case c.TokenFile != "":
		return "token"
	case c.SealedFile != "":
		return "sealed"
	case c.AppID != 0:
		return "app"
	default:
		return ""
	}
}

// SyncConfig configures the push dispatcher.
type SyncConfig struct {
	// PushTimeout bounds one outbound push (all API calls for a single
	// task), as a Go duration string. Default "30s".
	PushTimeout string `yaml:"push_timeout"`

	// QueueSize is the dispatcher's pending-notification buffer.
	// Default 256.
	QueueSize int `yaml:"queue_size"`
}

// Default returns the default configuration. These defaults are used
// as a base before loading the config file. They exist primarily to
// ensure all fields have sensible zero-values, not as a fallback — the
// config file is required.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	stateDir := filepath.Join(homeDir, ".local", "state", "slate")

	return &Config{
		Environment: Development,
		LogLevel:    "info",
		State: StateConfig{
			Database: filepath.Join(stateDir, "github.db"),
			Socket:   filepath.Join(stateDir, "github.sock"),
		},
		Webhook: WebhookConfig{
			Listen:     "",
			SecretFile: "",
		},
		GitHub: GitHubConfig{
			BaseURL:        "https://api.github.com",
			RequestTimeout: "15s",
			ProjectItemCap: 1000,
		},
		Sync: SyncConfig{
			PushTimeout: "30s",
			QueueSize:   256,
		},
	}
}

// Load loads configuration from the SLATE_CONFIG environment variable.
//
// This is the only way to load configuration without an explicit path.
// There are no fallbacks or defaults — if SLATE_CONFIG is not set, this
// fails. This ensures deterministic, auditable configuration with no
// hidden overrides.
func Load() (*Config, error) {
	configPath := os.Getenv("SLATE_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("SLATE_CONFIG environment variable not set; " +
			"set it to the path of your slate.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables
// do not override config values. The only expansion performed is
// ${HOME} and similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

// applyEnvironmentOverrides applies the section for the active
// environment over the base values.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}

	if overrides == nil {
		return
	}

	if overrides.LogLevel != "" {
		c.LogLevel = overrides.LogLevel
	}

	if overrides.State != nil {
		if overrides.State.Database != "" {
			c.State.Database = overrides.State.Database
		}
		if overrides.State.Socket != "" {
			c.State.Socket = overrides.State.Socket
		}
	}

	if overrides.Webhook != nil {
		if overrides.Webhook.Listen != "" {
			c.Webhook.Listen = overrides.Webhook.Listen
		}
		if overrides.Webhook.SecretFile != "" {
			c.Webhook.SecretFile = overrides.Webhook.SecretFile
		}
		if overrides.Webhook.ArchiveKeyFile != "" {
			c.Webhook.ArchiveKeyFile = overrides.Webhook.ArchiveKeyFile
		}
	}

	if overrides.GitHub != nil {
		if overrides.GitHub.BaseURL != "" {
			c.GitHub.BaseURL = overrides.GitHub.BaseURL
		}
		if overrides.GitHub.RequestTimeout != "" {
			c.GitHub.RequestTimeout = overrides.GitHub.RequestTimeout
		}
		if overrides.GitHub.ProjectItemCap != 0 {
			c.GitHub.ProjectItemCap = overrides.GitHub.ProjectItemCap
		}
		if overrides.GitHub.AccountMapFile != "" {
			c.GitHub.AccountMapFile = overrides.GitHub.AccountMapFile
		}
		// Credential maps replace wholesale; merging entries across
		// environments would make the effective token source hard to
		// audit.
		if overrides.GitHub.Credentials != nil {
			c.GitHub.Credentials = overrides.GitHub.Credentials
		}
	}

	if overrides.Sync != nil {
		if overrides.Sync.PushTimeout != "" {
			c.Sync.PushTimeout = overrides.Sync.PushTimeout
		}
		if overrides.Sync.QueueSize != 0 {
			c.Sync.QueueSize = overrides.Sync.QueueSize
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in file
// paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.State.Database = expandVars(c.State.Database, vars)
	c.State.Socket = expandVars(c.State.Socket, vars)
	c.Webhook.SecretFile = expandVars(c.Webhook.SecretFile, vars)
	c.Webhook.ArchiveKeyFile = expandVars(c.Webhook.ArchiveKeyFile, vars)
	c.GitHub.AccountMapFile = expandVars(c.GitHub.AccountMapFile, vars)

	for name, credential := range c.GitHub.Credentials {
		credential.TokenFile = expandVars(credential.TokenFile, vars)
		credential.SealedFile = expandVars(credential.SealedFile, vars)
		credential.IdentityFile = expandVars(credential.IdentityFile, vars)
		credential.PrivateKeyFile = expandVars(credential.PrivateKeyFile, vars)
		c.GitHub.Credentials[name] = credential
	}
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level must be one of debug, info, warn, error; got %q", c.LogLevel))
	}

	if c.State.Database == "" {
		errs = append(errs, fmt.Errorf("state.database is required"))
	}
	if c.State.Socket == "" {
		errs = append(errs, fmt.Errorf("state.socket is required"))
	}

	if c.Webhook.Listen != "" && c.Webhook.SecretFile == "" {
		errs = append(errs, fmt.Errorf("webhook.secret_file is required when webhook.listen is set"))
	}

	if c.GitHub.BaseURL == "" {
		errs = append(errs, fmt.Errorf("github.base_url is required"))
	}
	if _, err := time.ParseDuration(c.GitHub.RequestTimeout); err != nil {
		errs = append(errs, fmt.Errorf("github.request_timeout: %w", err))
	}
	if c.GitHub.ProjectItemCap <= 0 {
		errs = append(errs, fmt.Errorf("github.project_item_cap must be positive, got %d", c.GitHub.ProjectItemCap))
	}

	for name, credential := range c.GitHub.Credentials {
		if err := validateCredential(name, credential); err != nil {
			errs = append(errs, err)
		}
	}

	if _, err := time.ParseDuration(c.Sync.PushTimeout); err != nil {
		errs = append(errs, fmt.Errorf("sync.push_timeout: %w", err))
	}
	if c.Sync.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("sync.queue_size must be positive, got %d", c.Sync.QueueSize))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// validateCredential checks that exactly one credential form is
// configured and that the form is internally complete.
func validateCredential(name string, credential CredentialConfig) error {
	forms := 0
	if credential.TokenFile != "" {
		forms++
	}
	if credential.SealedFile != "" {
		forms++
	}
	if credential.AppID != 0 || credential.InstallationID != 0 || credential.PrivateKeyFile != "" {
		forms++
	}
	if forms == 0 {
		return fmt.Errorf("credential %q: one of token_file, sealed_file, or app_id is required", name)
	}
	if forms > 1 {
		return fmt.Errorf("credential %q: token_file, sealed_file, and app_id are mutually exclusive", name)
	}

	if credential.SealedFile != "" && credential.IdentityFile == "" {
		return fmt.Errorf("credential %q: identity_file is required with sealed_file", name)
	}
	if credential.AppID != 0 {
		if credential.InstallationID == 0 {
			return fmt.Errorf("credential %q: installation_id is required with app_id", name)
		}
		if credential.PrivateKeyFile == "" {
			return fmt.Errorf("credential %q: private_key_file is required with app_id", name)
		}
	}
	return nil
}

// RequestTimeout returns the parsed GitHub API call timeout, or 15s if
// the config has not been validated and the string is unparseable.
func (c *Config) RequestTimeout() time.Duration {
	if d, err := time.ParseDuration(c.GitHub.RequestTimeout); err == nil {
		return d
	}
	return 15 * time.Second
}

// PushTimeout returns the parsed per-push timeout, or 30s if the
// config has not been validated and the string is unparseable.
func (c *Config) PushTimeout() time.Duration {
	if d, err := time.ParseDuration(c.Sync.PushTimeout); err == nil {
		return d
	}
	return 30 * time.Second
}

// EnsurePaths creates the parent directories of the database and
// socket paths if they don't exist.
func (c *Config) EnsurePaths() error {
	for _, path := range []string{c.State.Database, c.State.Socket} {
		if path == "" {
			continue
		}
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}
