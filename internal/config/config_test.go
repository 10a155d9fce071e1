package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "quill.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
provider: anthropic
model: claude-sonnet-4-20250514
base_url: https://proxy.internal/v1
api_key: ${QUILL_TEST_KEY}
temperature: 0.4
max_tokens: 2048
max_turns: 30
max_price: 2.50
mode: plan
streaming: false
pricing:
  claude-sonnet-4-20250514:
    input_per_mtok: 3
    output_per_mtok: 15
tools:
  permissions:
    bash: never
    write: ask
compact:
  context_window: 200000
  threshold: 0.5
  min_messages: 6
session:
  dir: /tmp/quill-sessions
  prefix: work
mcp:
  servers:
    - name: github
      transport: stdio
      command: github-mcp
      args: ["--stdio"]
      env:
        GITHUB_TOKEN: ${GITHUB_TOKEN}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Provider != "anthropic" || cfg.Model != "claude-sonnet-4-20250514" {
		t.Errorf("provider/model = %s/%s", cfg.Provider, cfg.Model)
	}
	if cfg.BaseURL != "https://proxy.internal/v1" {
		t.Errorf("base url = %s", cfg.BaseURL)
	}
	if cfg.Temperature != 0.4 || cfg.MaxTokens != 2048 {
		t.Errorf("temperature/max_tokens = %v/%d", cfg.Temperature, cfg.MaxTokens)
	}
	if cfg.MaxTurns != 30 || cfg.MaxPrice != 2.50 {
		t.Errorf("budgets = %d/%v", cfg.MaxTurns, cfg.MaxPrice)
	}
	if cfg.Mode != "plan" {
		t.Errorf("mode = %s", cfg.Mode)
	}
	if cfg.StreamingEnabled() {
		t.Error("streaming: false not honored")
	}
	if p := cfg.PricingFor("claude-sonnet-4-20250514"); p.InputPerMTok != 3 || p.OutputPerMTok != 15 {
		t.Errorf("pricing = %+v", p)
	}
	if cfg.Tools.Permissions["bash"] != "never" {
		t.Errorf("tool permissions = %v", cfg.Tools.Permissions)
	}
	if cfg.Compact.ContextWindow != 200000 || cfg.Compact.Threshold != 0.5 || cfg.Compact.MinMessages != 6 {
		t.Errorf("compact = %+v", cfg.Compact)
	}
	if cfg.Session.Dir != "/tmp/quill-sessions" || cfg.Session.Prefix != "work" {
		t.Errorf("session = %+v", cfg.Session)
	}
	if len(cfg.MCP.Servers) != 1 || cfg.MCP.Servers[0].Name != "github" {
		t.Errorf("mcp servers = %+v", cfg.MCP.Servers)
	}
}

func TestLoad_EmptyFileGetsDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Provider != "openai" {
		t.Errorf("default provider = %s", cfg.Provider)
	}
	if cfg.Model != "gpt-4o" {
		t.Errorf("default model = %s", cfg.Model)
	}
	if cfg.Compact.ContextWindow != 128000 {
		t.Errorf("default context window = %d", cfg.Compact.ContextWindow)
	}
	if cfg.Session.Prefix != "quill" {
		t.Errorf("default session prefix = %s", cfg.Session.Prefix)
	}
	if cfg.Session.Dir == "" {
		t.Error("default session dir empty")
	}
	if !cfg.StreamingEnabled() || !cfg.Compact.AutoEnabled() || !cfg.Session.PersistEnabled() {
		t.Error("toggles should default to on")
	}
	if len(cfg.Pricing) == 0 {
		t.Error("default pricing table empty")
	}
}

func TestLoad_AnthropicDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "provider: anthropic\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model != "claude-sonnet-4-20250514" {
		t.Errorf("default anthropic model = %s", cfg.Model)
	}
	if cfg.Compact.ContextWindow != 200000 {
		t.Errorf("default anthropic context window = %d", cfg.Compact.ContextWindow)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "provider: [unclosed"))
	if err == nil || !strings.Contains(err.Error(), "failed to parse config YAML") {
		t.Fatalf("err = %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "failed to read config file") {
		t.Fatalf("err = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"unknown provider", "provider: gemini\n", "unknown provider"},
		{"temperature too high", "temperature: 3\n", "temperature"},
		{"negative max_turns", "max_turns: -1\n", "max_turns"},
		{"negative max_price", "max_price: -0.5\n", "max_price"},
		{"bad tool permission", "tools:\n  permissions:\n    bash: sometimes\n", "unknown permission"},
		{"threshold above one", "compact:\n  threshold: 1.5\n", "threshold"},
		{"duplicate mcp server", "mcp:\n  servers:\n    - name: a\n      transport: stdio\n      command: x\n    - name: a\n      transport: stdio\n      command: y\n", "duplicate server name"},
		{"bad mcp transport", "mcp:\n  servers:\n    - name: a\n      transport: http\n      command: x\n", "unsupported transport"},
		{"mcp server missing command", "mcp:\n  servers:\n    - name: a\n      transport: stdio\n", "command is required"},
		{"bad mcp server name", "mcp:\n  servers:\n    - name: \"a b\"\n      transport: stdio\n      command: x\n", "invalid character"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestResolveAPIKey(t *testing.T) {
	t.Setenv("QUILL_TEST_KEY", "sk-from-config")
	t.Setenv("QUILL_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")

	cfg := &Config{Provider: "openai", APIKey: "${QUILL_TEST_KEY}"}
	if got := cfg.ResolveAPIKey(); got != "sk-from-config" {
		t.Errorf("configured key = %q", got)
	}

	cfg.APIKey = ""
	t.Setenv("QUILL_API_KEY", "sk-quill")
	t.Setenv("OPENAI_API_KEY", "sk-openai")
	if got := cfg.ResolveAPIKey(); got != "sk-quill" {
		t.Errorf("QUILL_API_KEY should win, got %q", got)
	}

	t.Setenv("QUILL_API_KEY", "")
	if got := cfg.ResolveAPIKey(); got != "sk-openai" {
		t.Errorf("openai fallback = %q", got)
	}

	cfg.Provider = "anthropic"
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	if got := cfg.ResolveAPIKey(); got != "sk-ant" {
		t.Errorf("anthropic fallback = %q", got)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("QUILL_TEST_TOKEN", "tok123")

	tests := []struct {
		in   string
		want string
	}{
		{"Bearer ${QUILL_TEST_TOKEN}", "Bearer tok123"},
		{"Bearer $QUILL_TEST_TOKEN", "Bearer tok123"},
		{"plain", "plain"},
		{"${QUILL_TEST_UNSET_VAR}", ""},
	}
	for _, tt := range tests {
		if got := ExpandEnv(tt.in); got != tt.want {
			t.Errorf("ExpandEnv(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExpandEnvMap(t *testing.T) {
	t.Setenv("QUILL_TEST_TOKEN", "tok123")

	got := ExpandEnvMap(map[string]string{"AUTH": "Bearer ${QUILL_TEST_TOKEN}", "PLAIN": "x"})
	if got["AUTH"] != "Bearer tok123" || got["PLAIN"] != "x" {
		t.Errorf("ExpandEnvMap = %v", got)
	}
	if ExpandEnvMap(nil) != nil {
		t.Error("nil map should stay nil")
	}
}
