package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/famulus-ai/famulus/pkg/chat"
)

// writeConfig writes a YAML config into a temp dir and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "famulus.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

const minimalConfig = `
default: work
profiles:
  work:
    backend: openai
    api_key: sk-test
    model: gpt-4o
`

func TestLoad_Minimal(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Default != "work" {
		t.Errorf("Default = %q, want %q", cfg.Default, "work")
	}
	p := cfg.Profiles["work"]
	if p.Name != "work" {
		t.Errorf("profile Name = %q, want %q", p.Name, "work")
	}
	if p.Backend != BackendOpenAI {
		t.Errorf("Backend = %q, want %q", p.Backend, BackendOpenAI)
	}

	// Defaults survive when the file does not mention them.
	if cfg.Engine.MaxToolRounds != 8 {
		t.Errorf("MaxToolRounds = %d, want 8", cfg.Engine.MaxToolRounds)
	}
	if cfg.Storage.Type != "memory" {
		t.Errorf("Storage.Type = %q, want %q", cfg.Storage.Type, "memory")
	}
}

func TestLoad_MissingDefault(t *testing.T) {
	_, err := Load(writeConfig(t, `
profiles:
  work:
    backend: openai
    model: gpt-4o
`))
	if err == nil {
		t.Fatal("expected error for missing default")
	}
	if chat.KindOf(err) != chat.ErrKindConfig {
		t.Errorf("error kind = %q, want config", chat.KindOf(err))
	}
}

func TestLoad_UnresolvableDefault(t *testing.T) {
	_, err := Load(writeConfig(t, `
default: nope
profiles:
  work:
    backend: openai
    model: gpt-4o
`))
	if err == nil || !strings.Contains(err.Error(), `"nope"`) {
		t.Fatalf("expected unresolvable-default error, got %v", err)
	}
}

func TestLoad_UnknownBackend(t *testing.T) {
	_, err := Load(writeConfig(t, `
default: work
profiles:
  work:
    backend: frobnicator
    model: m1
`))
	if err == nil || !strings.Contains(err.Error(), "unknown kind") {
		t.Fatalf("expected unknown-backend error, got %v", err)
	}
}

func TestLoad_EnvPlaceholderResolved(t *testing.T) {
	t.Setenv("FOO", "bar")

	cfg, err := Load(writeConfig(t, minimalConfig+`
tool_servers:
  files:
    command: mcp-files
    args: ["--root", "${env:FOO}"]
    env:
      X: "${env:FOO}"
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	ts := cfg.ToolServers["files"]
	if ts.Env["X"] != "bar" {
		t.Errorf("env X = %q, want %q", ts.Env["X"], "bar")
	}
	if ts.Args[1] != "bar" {
		t.Errorf("args[1] = %q, want %q", ts.Args[1], "bar")
	}
}

func TestLoad_EnvPlaceholderUnset(t *testing.T) {
	os.Unsetenv("FAMULUS_TEST_UNSET_VAR")

	_, err := Load(writeConfig(t, minimalConfig+`
tool_servers:
  files:
    command: mcp-files
    env:
      X: "${env:FAMULUS_TEST_UNSET_VAR}"
`))
	if err == nil {
		t.Fatal("expected error for unset placeholder variable")
	}
	if chat.KindOf(err) != chat.ErrKindConfig {
		t.Errorf("error kind = %q, want config", chat.KindOf(err))
	}
}

func TestLoad_EnvPlaceholderEmptyButSet(t *testing.T) {
	t.Setenv("FAMULUS_TEST_EMPTY_VAR", "")

	cfg, err := Load(writeConfig(t, minimalConfig+`
tool_servers:
  files:
    command: mcp-files
    env:
      X: "${env:FAMULUS_TEST_EMPTY_VAR}"
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := cfg.ToolServers["files"].Env["X"]; got != "" {
		t.Errorf("env X = %q, want empty string", got)
	}
}

func TestLoad_APIKeyFile(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(keyPath, []byte("sk-secret\n"), 0o600); err != nil {
		t.Fatalf("writing key file: %v", err)
	}

	cfg, err := Load(writeConfig(t, `
default: work
profiles:
  work:
    backend: anthropic
    api_key_file: `+keyPath+`
    model: claude-sonnet-4-5
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := cfg.Profiles["work"].APIKey; got != "sk-secret" {
		t.Errorf("APIKey = %q, want %q (trimmed)", got, "sk-secret")
	}
}

func TestLoad_EndpointRequiredForLocalKinds(t *testing.T) {
	_, err := Load(writeConfig(t, `
default: local
profiles:
  local:
    backend: ollama
    model: llama3
`))
	if err == nil || !strings.Contains(err.Error(), "endpoint is required") {
		t.Fatalf("expected endpoint-required error, got %v", err)
	}
}

func TestExpandString_MultiplePlaceholders(t *testing.T) {
	t.Setenv("A", "1")
	t.Setenv("B", "2")

	got, err := expandString("${env:A}-${env:B}")
	if err != nil {
		t.Fatalf("expandString failed: %v", err)
	}
	if got != "1-2" {
		t.Errorf("got %q, want %q", got, "1-2")
	}
}

func TestExpandString_SubstitutedValueIsLiteral(t *testing.T) {
	// A variable whose value contains placeholder syntax must come
	// through verbatim, not expand again (a self-referential value
	// would otherwise never terminate).
	t.Setenv("SELF", "${env:SELF}")
	t.Setenv("OTHER", "${env:SELF} tail")

	got, err := expandString("${env:SELF}")
	if err != nil {
		t.Fatalf("expandString failed: %v", err)
	}
	if got != "${env:SELF}" {
		t.Errorf("got %q, want the literal placeholder text", got)
	}

	got, err = expandString("pre ${env:OTHER} ${env:SELF}")
	if err != nil {
		t.Fatalf("expandString failed: %v", err)
	}
	if got != "pre ${env:SELF} tail ${env:SELF}" {
		t.Errorf("got %q, want substituted values untouched", got)
	}
}

func TestExpandString_Unterminated(t *testing.T) {
	if _, err := expandString("${env:A"); err == nil {
		t.Fatal("expected error for unterminated placeholder")
	}
}

func TestRegistry(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
default: b
profiles:
  a:
    backend: openai
    model: m-a
  b:
    backend: anthropic
    model: m-b
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	reg := NewRegistry(cfg)

	if got := reg.Default().Model; got != "m-b" {
		t.Errorf("Default().Model = %q, want %q", got, "m-b")
	}

	p, err := reg.Get("a")
	if err != nil {
		t.Fatalf("Get(a) failed: %v", err)
	}
	if p.Backend != BackendOpenAI {
		t.Errorf("Get(a).Backend = %q, want openai", p.Backend)
	}

	if _, err := reg.Get("missing"); chat.KindOf(err) != chat.ErrKindConfig {
		t.Errorf("Get(missing) kind = %q, want config", chat.KindOf(err))
	}

	names := reg.List()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("List() = %v, want [a b]", names)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FAMULUS_DEFAULT_PROFILE", "alt")

	cfg, err := Load(writeConfig(t, `
default: work
profiles:
  work:
    backend: openai
    model: m1
  alt:
    backend: gemini
    model: m2
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Default != "alt" {
		t.Errorf("Default = %q, want %q (env override)", cfg.Default, "alt")
	}
}
