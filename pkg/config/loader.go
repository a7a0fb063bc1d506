package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/famulus-ai/famulus/pkg/chat"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, FAMULUS_CONFIG env, ./famulus.yaml,
//     ~/.config/famulus/famulus.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. ${env:NAME} placeholder expansion
//  6. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, chat.NewConfigError("loading config file %s: %v", filePath, err)
		}
	}

	applyEnvOverrides(&cfg)

	// Fill names from map keys before anything references them.
	for name, p := range cfg.Profiles {
		p.Name = name
	}
	for name, ts := range cfg.ToolServers {
		ts.Name = name
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, err
	}

	if err := expandPlaceholders(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. FAMULUS_CONFIG environment variable
// 3. ./famulus.yaml in the current directory
// 4. ~/.config/famulus/famulus.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("FAMULUS_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{"famulus.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "famulus", "famulus.yaml"))
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps FAMULUS_* environment variables to config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FAMULUS_DEFAULT_PROFILE"); v != "" {
		cfg.Default = v
	}
	if v := os.Getenv("FAMULUS_STORAGE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("FAMULUS_POSTGRES_DSN"); v != "" {
		cfg.Storage.Postgres.DSN = v
	}
}

// resolveFileReferences reads _file fields and populates the corresponding
// value fields. For each field ending in _file, if the value field is empty
// and the file field is set, the file is read, whitespace is trimmed, and
// the value field is populated.
func resolveFileReferences(cfg *Config) error {
	for name, p := range cfg.Profiles {
		if p.APIKeyFile != "" && p.APIKey == "" {
			val, err := readSecretFile(p.APIKeyFile)
			if err != nil {
				return chat.NewConfigError("profiles.%s.api_key_file: %v", name, err)
			}
			p.APIKey = val
		}
	}

	if cfg.Storage.Postgres.DSNFile != "" && cfg.Storage.Postgres.DSN == "" {
		val, err := readSecretFile(cfg.Storage.Postgres.DSNFile)
		if err != nil {
			return chat.NewConfigError("storage.postgres.dsn_file: %v", err)
		}
		cfg.Storage.Postgres.DSN = val
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding
// whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// expandPlaceholders resolves ${env:NAME} placeholders in tool server
// commands, args, and env values, and in profile API keys and endpoints.
// A placeholder naming an unset variable is a load-time error; a variable
// that is set but empty resolves to the empty string.
func expandPlaceholders(cfg *Config) error {
	for name, p := range cfg.Profiles {
		var err error
		if p.APIKey, err = expandString(p.APIKey); err != nil {
			return chat.NewConfigError("profiles.%s.api_key: %v", name, err)
		}
		if p.Endpoint, err = expandString(p.Endpoint); err != nil {
			return chat.NewConfigError("profiles.%s.endpoint: %v", name, err)
		}
	}

	for name, ts := range cfg.ToolServers {
		var err error
		if ts.Command, err = expandString(ts.Command); err != nil {
			return chat.NewConfigError("tool_servers.%s.command: %v", name, err)
		}
		for i, arg := range ts.Args {
			if ts.Args[i], err = expandString(arg); err != nil {
				return chat.NewConfigError("tool_servers.%s.args[%d]: %v", name, i, err)
			}
		}
		for k, v := range ts.Env {
			if ts.Env[k], err = expandString(v); err != nil {
				return chat.NewConfigError("tool_servers.%s.env.%s: %v", name, k, err)
			}
		}
	}

	return nil
}

// expandString replaces every ${env:NAME} occurrence in value with the
// named process environment variable. An unset variable is an error, not
// an empty string. Substituted values are taken literally, never
// rescanned, so a variable whose value contains the marker cannot
// trigger further (or unbounded) expansion.
func expandString(value string) (string, error) {
	const marker = "${env:"

	var out strings.Builder
	rest := value
	for {
		start := strings.Index(rest, marker)
		if start < 0 {
			out.WriteString(rest)
			return out.String(), nil
		}
		end := strings.Index(rest[start:], "}")
		if end < 0 {
			return "", fmt.Errorf("unterminated placeholder in %q", value)
		}
		name := rest[start+len(marker) : start+end]
		envValue, ok := os.LookupEnv(name)
		if !ok {
			return "", fmt.Errorf("environment variable %q is not set", name)
		}
		out.WriteString(rest[:start])
		out.WriteString(envValue)
		rest = rest[start+end+1:]
	}
}
