// Package config loads and validates quill.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the complete quill configuration. The zero value is valid
// and runs with defaults.
type Config struct {
	// Provider selects the backend wire format: "openai" or "anthropic".
	Provider string `yaml:"provider"`
	// Model names the model; empty picks a per-provider default.
	Model string `yaml:"model"`
	// BaseURL overrides the provider endpoint, useful for compatible APIs.
	BaseURL string `yaml:"base_url"`
	// APIKey supports ${VAR} expansion. Empty falls back to QUILL_API_KEY,
	// then the provider-specific variable.
	APIKey string `yaml:"api_key"`

	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`

	// MaxTurns and MaxPrice bound a session; zero means unlimited.
	MaxTurns int     `yaml:"max_turns"`
	MaxPrice float64 `yaml:"max_price"`

	// Mode is the starting agent mode: interactive, auto-approve, or plan.
	Mode string `yaml:"mode"`

	// Streaming toggles incremental responses. Unset means on.
	Streaming *bool `yaml:"streaming"`

	// Pricing maps model names to per-million-token prices in USD.
	Pricing map[string]ModelPricing `yaml:"pricing"`

	Tools   ToolsConfig   `yaml:"tools"`
	Compact CompactConfig `yaml:"compact"`
	Session SessionConfig `yaml:"session"`
	MCP     MCPConfig     `yaml:"mcp"`
}

// ModelPricing holds $/1M token prices for one model.
type ModelPricing struct {
	InputPerMTok  float64 `yaml:"input_per_mtok"`
	OutputPerMTok float64 `yaml:"output_per_mtok"`
}

// ToolsConfig adjusts the builtin tool policies.
type ToolsConfig struct {
	// Permissions overrides the permission class per tool name:
	// "always", "ask", or "never".
	Permissions map[string]string `yaml:"permissions"`
}

// CompactConfig tunes conversation compaction.
type CompactConfig struct {
	// Auto compacts the conversation before a turn when it has grown past
	// the threshold. Unset means on.
	Auto *bool `yaml:"auto"`
	// ContextWindow is the model context size in tokens used for the
	// threshold check.
	ContextWindow int `yaml:"context_window"`
	// Threshold is the share of the context window that triggers
	// compaction, in (0, 1].
	Threshold float64 `yaml:"threshold"`
	// MinMessages is the history length below which compaction never runs.
	MinMessages int `yaml:"min_messages"`
}

// SessionConfig controls conversation persistence.
type SessionConfig struct {
	// Enabled toggles saving sessions to disk. Unset means on.
	Enabled *bool `yaml:"enabled"`
	// Dir is where session files live. Default: ~/.quill/sessions.
	Dir string `yaml:"dir"`
	// Prefix starts every session filename. Default: "quill".
	Prefix string `yaml:"prefix"`
}

// MCPConfig contains MCP-specific settings
type MCPConfig struct {
	Servers []MCPServerConfig `yaml:"servers"`
}

// MCPServerConfig defines a single MCP server
type MCPServerConfig struct {
	Name      string            `yaml:"name"`      // Unique server identifier
	Transport string            `yaml:"transport"` // "stdio" (only supported initially)
	Command   string            `yaml:"command"`   // Executable to run
	Args      []string          `yaml:"args"`      // Command arguments
	Env       map[string]string `yaml:"env"`       // Environment variables with ${VAR} support
	Disabled  bool              `yaml:"disabled"`  // Skip this server if true
}

// Load reads and parses the YAML config file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// LoadWithDefaults loads config with fallback to default locations
// Checks: ./quill.yaml, ./configs/quill.yaml, ~/.config/quill/quill.yaml, /etc/quill/quill.yaml
func LoadWithDefaults() (*Config, error) {
	// Try config locations in order
	locations := []string{
		"./quill.yaml",
		"./configs/quill.yaml",
	}

	// Add user config directory if available
	if home, err := os.UserHomeDir(); err == nil {
		locations = append(locations, filepath.Join(home, ".config", "quill", "quill.yaml"))
	}

	// Add system-wide config
	locations = append(locations, "/etc/quill/quill.yaml")

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return Load(loc)
		}
	}

	// No config found - use defaults (not an error)
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults fills unset fields with provider-appropriate defaults. It
// only touches empty values, so callers may layer overrides on a loaded
// config and call it again.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = "openai"
	}
	if c.Model == "" {
		switch c.Provider {
		case "anthropic":
			c.Model = "claude-sonnet-4-20250514"
		default:
			c.Model = "gpt-4o"
		}
	}
	if c.Compact.ContextWindow == 0 {
		switch c.Provider {
		case "anthropic":
			c.Compact.ContextWindow = 200000
		default:
			c.Compact.ContextWindow = 128000
		}
	}
	if c.Session.Dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.Session.Dir = filepath.Join(home, ".quill", "sessions")
		} else {
			c.Session.Dir = filepath.Join(".quill", "sessions")
		}
	}
	if c.Session.Prefix == "" {
		c.Session.Prefix = "quill"
	}
	if c.Pricing == nil {
		c.Pricing = map[string]ModelPricing{
			"gpt-4o":                   {InputPerMTok: 2.5, OutputPerMTok: 10},
			"gpt-4o-mini":              {InputPerMTok: 0.15, OutputPerMTok: 0.6},
			"claude-sonnet-4-20250514": {InputPerMTok: 3, OutputPerMTok: 15},
			"claude-opus-4-20250514":   {InputPerMTok: 15, OutputPerMTok: 75},
		}
	}
}

// ResolveAPIKey expands the configured key and falls back to environment
// variables: QUILL_API_KEY first, then the provider's own variable.
func (c *Config) ResolveAPIKey() string {
	if key := ExpandEnv(c.APIKey); key != "" {
		return key
	}
	if key := os.Getenv("QUILL_API_KEY"); key != "" {
		return key
	}
	switch c.Provider {
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	default:
		return os.Getenv("OPENAI_API_KEY")
	}
}

// StreamingEnabled resolves the streaming toggle, defaulting to on.
func (c *Config) StreamingEnabled() bool {
	return c.Streaming == nil || *c.Streaming
}

// AutoEnabled resolves the auto-compaction toggle, defaulting to on.
func (c CompactConfig) AutoEnabled() bool {
	return c.Auto == nil || *c.Auto
}

// PersistEnabled resolves the session persistence toggle, defaulting to on.
func (c SessionConfig) PersistEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// PricingFor returns the configured prices for a model, zero when the
// model has no entry.
func (c *Config) PricingFor(model string) ModelPricing {
	return c.Pricing[model]
}

// Validate checks config correctness
func (c *Config) Validate() error {
	switch c.Provider {
	case "", "openai", "anthropic":
	default:
		return fmt.Errorf("unknown provider: %s (openai or anthropic)", c.Provider)
	}

	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature %v out of range [0, 2]", c.Temperature)
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max_tokens cannot be negative")
	}
	if c.MaxTurns < 0 {
		return fmt.Errorf("max_turns cannot be negative")
	}
	if c.MaxPrice < 0 {
		return fmt.Errorf("max_price cannot be negative")
	}

	if err := c.Tools.Validate(); err != nil {
		return err
	}
	if err := c.Compact.Validate(); err != nil {
		return err
	}
	return c.MCP.Validate()
}

// Validate checks the tool permission overrides
func (t *ToolsConfig) Validate() error {
	for name, perm := range t.Permissions {
		switch perm {
		case "always", "ask", "never":
		default:
			return fmt.Errorf("tool %s: unknown permission %q (always, ask, or never)", name, perm)
		}
	}
	return nil
}

// Validate checks the compaction settings
func (c *CompactConfig) Validate() error {
	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("compact threshold %v out of range (0, 1]", c.Threshold)
	}
	if c.ContextWindow < 0 {
		return fmt.Errorf("context_window cannot be negative")
	}
	if c.MinMessages < 0 {
		return fmt.Errorf("min_messages cannot be negative")
	}
	return nil
}

// Validate checks the MCP server list
func (m *MCPConfig) Validate() error {
	if len(m.Servers) == 0 {
		// Empty config is valid
		return nil
	}

	// Check for duplicate server names
	names := make(map[string]bool)
	for i, server := range m.Servers {
		if server.Name == "" {
			return fmt.Errorf("server #%d: name cannot be empty", i+1)
		}

		if names[server.Name] {
			return fmt.Errorf("duplicate server name: %s", server.Name)
		}
		names[server.Name] = true

		// Validate server config
		if err := server.Validate(); err != nil {
			return fmt.Errorf("server %s: %w", server.Name, err)
		}
	}

	return nil
}

// Validate checks a single server config
func (s *MCPServerConfig) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	// Validate server name matches tool name requirements
	// Pattern: ^[a-zA-Z0-9_-]+$
	for _, ch := range s.Name {
		if !((ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') || ch == '_' || ch == '-') {
			return fmt.Errorf("server name '%s' contains invalid character '%c' (only alphanumeric, underscore, and hyphen allowed)", s.Name, ch)
		}
	}

	if s.Transport == "" {
		return fmt.Errorf("transport is required")
	}

	if s.Transport != "stdio" {
		return fmt.Errorf("unsupported transport: %s (only 'stdio' is supported)", s.Transport)
	}

	if s.Command == "" {
		return fmt.Errorf("command is required")
	}

	return nil
}
