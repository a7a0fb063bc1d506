package mcp

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/famulus-ai/famulus/pkg/chat"
	"github.com/famulus-ai/famulus/pkg/config"
	"github.com/famulus-ai/famulus/pkg/observability"
)

// Manager owns the configured tool servers. It aggregates their tool
// catalogs, routes invocations, and isolates per-server failures: one
// crashed or misconfigured server never blocks the others.
type Manager struct {
	invokeTimeout time.Duration

	mu       sync.RWMutex
	servers  map[string]*Server
	names    []string // sorted, for deterministic routing
	disabled map[string]bool
}

// NewManager builds a manager for the configured servers. Servers marked
// disabled in the config are skipped entirely.
func NewManager(cfgs map[string]*config.ToolServerConfig, engine config.EngineConfig) *Manager {
	m := &Manager{
		invokeTimeout: engine.ToolCallTimeout,
		servers:       make(map[string]*Server),
		disabled:      make(map[string]bool),
	}
	for name, cfg := range cfgs {
		if cfg.Disabled {
			slog.Info("skipping disabled tool server", "server", name)
			continue
		}
		m.servers[name] = NewServer(*cfg, engine.ServerStartTimeout)
		m.names = append(m.names, name)
	}
	sort.Strings(m.names)
	return m
}

// StartAll starts every server concurrently. Failures are logged and
// isolated; the returned error is nil as long as the manager itself is
// usable, regardless of how many servers came up.
func (m *Manager) StartAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, name := range m.names {
		srv := m.servers[name]
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Start(ctx); err != nil {
				slog.Warn("tool server failed to start", "server", srv.Name(), "error", err)
			}
		}()
	}
	wg.Wait()
	m.updateReadyGauge()
}

// Start starts one server by name.
func (m *Manager) Start(ctx context.Context, name string) error {
	srv, err := m.lookup(name)
	if err != nil {
		return err
	}
	err = srv.Start(ctx)
	m.updateReadyGauge()
	return err
}

// Stop stops one server by name.
func (m *Manager) Stop(name string) error {
	srv, err := m.lookup(name)
	if err != nil {
		return err
	}
	err = srv.Stop()
	m.updateReadyGauge()
	return err
}

// Restart stops and restarts one server by name.
func (m *Manager) Restart(ctx context.Context, name string) error {
	if err := m.Stop(name); err != nil {
		return err
	}
	return m.Start(ctx, name)
}

func (m *Manager) lookup(name string) (*Server, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	srv, ok := m.servers[name]
	if !ok {
		return nil, chat.NewToolServerError(nil, "unknown tool server %q", name)
	}
	return srv, nil
}

// Close stops every server. Used on shutdown.
func (m *Manager) Close() {
	var wg sync.WaitGroup
	for _, name := range m.names {
		srv := m.servers[name]
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Stop(); err != nil {
				slog.Warn("tool server shutdown failed", "server", srv.Name(), "error", err)
			}
		}()
	}
	wg.Wait()
	m.updateReadyGauge()
}

// SetToolEnabled toggles one tool in the aggregated catalog. Disabled
// tools disappear from Catalog and fail invocation with an error result.
func (m *Manager) SetToolEnabled(tool string, enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if enabled {
		delete(m.disabled, tool)
	} else {
		m.disabled[tool] = true
	}
}

// Catalog returns the deduplicated tool definitions of every Ready
// server, in sorted server order. When two servers declare the same tool
// name, the first server (by name) wins and keeps the route.
func (m *Manager) Catalog() []chat.ToolDefinition {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var defs []chat.ToolDefinition
	seen := make(map[string]bool)
	for _, name := range m.names {
		srv := m.servers[name]
		if srv.State() != StateReady {
			continue
		}
		for _, td := range srv.Tools() {
			if seen[td.Name] || m.disabled[td.Name] {
				continue
			}
			seen[td.Name] = true
			defs = append(defs, td)
		}
	}
	return defs
}

// Invoke routes one tool call to the server that owns the tool, bounded
// by the per-call timeout. It always returns a result: unknown tools,
// disabled tools, timeouts, and server failures all come back as error
// results.
func (m *Manager) Invoke(ctx context.Context, call chat.ToolCall) chat.ToolResult {
	srv := m.route(call.Name)
	if srv == nil {
		observability.ToolInvocationsTotal.WithLabelValues("none", call.Name, "error").Inc()
		return errorResult(call.ID, "no tool server provides tool %q", call.Name)
	}

	callCtx, cancel := context.WithTimeout(ctx, m.invokeTimeout)
	defer cancel()

	start := time.Now()
	result := srv.Call(callCtx, call)
	observability.ToolInvocationDuration.WithLabelValues(srv.Name(), call.Name).Observe(time.Since(start).Seconds())

	status := "ok"
	if result.IsError {
		status = "error"
	}
	observability.ToolInvocationsTotal.WithLabelValues(srv.Name(), call.Name, status).Inc()
	return result
}

// route finds the owning server for a tool, honoring first-wins ordering
// and the disabled set.
func (m *Manager) route(tool string) *Server {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.disabled[tool] {
		return nil
	}
	for _, name := range m.names {
		srv := m.servers[name]
		if srv.State() != StateReady {
			continue
		}
		for _, td := range srv.Tools() {
			if td.Name == tool {
				return srv
			}
		}
	}
	return nil
}

// States reports each configured server's current state, for status
// display and metrics.
func (m *Manager) States() map[string]ServerState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	states := make(map[string]ServerState, len(m.servers))
	for name, srv := range m.servers {
		states[name] = srv.State()
	}
	return states
}

// ReadyCount returns how many servers are currently Ready.
func (m *Manager) ReadyCount() int {
	n := 0
	for _, state := range m.States() {
		if state == StateReady {
			n++
		}
	}
	return n
}

func (m *Manager) updateReadyGauge() {
	observability.ToolServersReady.Set(float64(m.ReadyCount()))
}

// server exposes a handle for tests and the restart command path.
func (m *Manager) server(name string) *Server {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.servers[name]
}
