package config

import (
	"errors"
	"fmt"

	"github.com/famulus-ai/famulus/pkg/chat"
)

// Validate checks the configuration for required fields and valid values.
// Returns a config-kind error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Profiles) == 0 {
		errs = append(errs, fmt.Errorf("at least one profile is required"))
	}

	// default must be present and must name an existing profile.
	if c.Default == "" {
		errs = append(errs, fmt.Errorf("default profile name is required"))
	} else if _, ok := c.Profiles[c.Default]; !ok && len(c.Profiles) > 0 {
		errs = append(errs, fmt.Errorf("default profile %q is not defined", c.Default))
	}

	for name, p := range c.Profiles {
		if !isKnownBackend(p.Backend) {
			errs = append(errs, fmt.Errorf("profiles.%s.backend: unknown kind %q", name, p.Backend))
		}
		if p.Model == "" {
			errs = append(errs, fmt.Errorf("profiles.%s.model is required", name))
		}
		// Local and compatible backends need an explicit endpoint;
		// the hosted APIs have well-known defaults.
		switch p.Backend {
		case BackendOllama, BackendAzure, BackendCustom:
			if p.Endpoint == "" {
				errs = append(errs, fmt.Errorf("profiles.%s.endpoint is required for backend %q", name, p.Backend))
			}
		}
	}

	for name, ts := range c.ToolServers {
		if ts.Command == "" {
			errs = append(errs, fmt.Errorf("tool_servers.%s.command is required", name))
		}
	}

	switch c.Storage.Type {
	case "memory", "postgres":
	default:
		errs = append(errs, fmt.Errorf("storage.type must be \"memory\" or \"postgres\", got %q", c.Storage.Type))
	}
	if c.Storage.Type == "postgres" && c.Storage.Postgres.DSN == "" && c.Storage.Postgres.DSNFile == "" {
		errs = append(errs, fmt.Errorf("storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is \"postgres\""))
	}

	if c.Engine.MaxToolRounds <= 0 {
		errs = append(errs, fmt.Errorf("engine.max_tool_rounds must be > 0, got %d", c.Engine.MaxToolRounds))
	}

	if joined := errors.Join(errs...); joined != nil {
		return &chat.EngineError{Kind: chat.ErrKindConfig, Message: joined.Error(), Err: joined}
	}
	return nil
}

func isKnownBackend(kind BackendKind) bool {
	for _, k := range KnownBackends {
		if kind == k {
			return true
		}
	}
	return false
}
