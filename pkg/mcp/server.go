package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/famulus-ai/famulus/pkg/chat"
	"github.com/famulus-ai/famulus/pkg/config"
)

// Server is one tool server subprocess. State transitions:
//
//	Stopped -> Starting -> Handshaking -> Ready -> Stopping -> Stopped
//
// with any pre-Ready failure and any unexpected exit landing in Failed.
// A Failed server stays down until explicitly restarted; it never takes
// the engine with it.
type Server struct {
	cfg          config.ToolServerConfig
	startTimeout time.Duration

	mu      sync.RWMutex
	state   ServerState
	session *mcp.ClientSession
	tools   []chat.ToolDefinition
	lastErr error

	// generation invalidates stale monitor goroutines across restarts.
	generation int
}

// NewServer builds an unstarted server handle.
func NewServer(cfg config.ToolServerConfig, startTimeout time.Duration) *Server {
	return &Server{
		cfg:          cfg,
		startTimeout: startTimeout,
		state:        StateStopped,
	}
}

// Name returns the configured server name.
func (s *Server) Name() string { return s.cfg.Name }

// State returns the current lifecycle state.
func (s *Server) State() ServerState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Err returns the failure that moved the server into Failed, if any.
func (s *Server) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Tools returns the tool definitions discovered during startup. Empty
// unless the server reached Ready.
func (s *Server) Tools() []chat.ToolDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tools
}

// Start spawns the subprocess and runs handshake plus tool discovery,
// all bounded by the configured start timeout. On failure the server
// lands in Failed with the cause retained; the subprocess, if spawned,
// is torn down by the transport.
func (s *Server) Start(ctx context.Context) error {
	cmd := exec.CommandContext(context.WithoutCancel(ctx), s.cfg.Command, s.cfg.Args...)
	cmd.Env = mergedEnv(s.cfg.Env)
	cmd.Stderr = os.Stderr

	return s.start(ctx, &mcp.CommandTransport{Command: cmd})
}

// start connects over the given transport. Split from Start so tests can
// inject in-memory transports.
func (s *Server) start(ctx context.Context, transport mcp.Transport) error {
	s.mu.Lock()
	switch s.state {
	case StateStopped, StateFailed:
	default:
		state := s.state
		s.mu.Unlock()
		return chat.NewToolServerError(nil, "tool server %q cannot start from state %s", s.cfg.Name, state)
	}
	s.state = StateStarting
	s.lastErr = nil
	s.generation++
	generation := s.generation
	s.mu.Unlock()

	startCtx, cancel := context.WithTimeout(ctx, s.startTimeout)
	defer cancel()

	client := mcp.NewClient(
		&mcp.Implementation{Name: "famulus", Version: "1.0.0"},
		&mcp.ClientOptions{Capabilities: &mcp.ClientCapabilities{}},
	)

	s.setState(StateHandshaking)

	session, err := client.Connect(startCtx, transport, nil)
	if err != nil {
		return s.fail(generation, chat.NewToolServerError(err, "tool server %q handshake failed", s.cfg.Name))
	}

	var tools []chat.ToolDefinition
	for tool, err := range session.Tools(startCtx, nil) {
		if err != nil {
			session.Close()
			return s.fail(generation, chat.NewToolServerError(err, "tool server %q tool discovery failed", s.cfg.Name))
		}
		td, convErr := convertTool(tool)
		if convErr != nil {
			session.Close()
			return s.fail(generation, chat.NewToolServerError(convErr, "tool server %q declared a bad tool %q", s.cfg.Name, tool.Name))
		}
		tools = append(tools, td)
	}

	s.mu.Lock()
	s.session = session
	s.tools = tools
	s.state = StateReady
	s.mu.Unlock()

	slog.Info("tool server ready", "server", s.cfg.Name, "tools", len(tools))

	go s.monitor(session, generation)
	return nil
}

// monitor watches the session and marks an unexpected exit as Failed.
// A shutdown initiated through Stop has already moved the state off
// Ready, so the monitor leaves it alone.
func (s *Server) monitor(session *mcp.ClientSession, generation int) {
	err := session.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != generation || s.state != StateReady {
		return
	}
	s.state = StateFailed
	s.lastErr = chat.NewToolServerError(err, "tool server %q exited unexpectedly", s.cfg.Name)
	s.session = nil
	s.tools = nil
	slog.Warn("tool server exited unexpectedly", "server", s.cfg.Name, "error", err)
}

// Stop shuts the server down gracefully. Stopping a server that is not
// running is a no-op.
func (s *Server) Stop() error {
	s.mu.Lock()
	if s.state != StateReady {
		if s.state == StateFailed {
			s.state = StateStopped
			s.lastErr = nil
		}
		s.mu.Unlock()
		return nil
	}
	s.state = StateStopping
	session := s.session
	s.session = nil
	s.tools = nil
	s.mu.Unlock()

	err := session.Close()

	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()

	if err != nil {
		return chat.NewToolServerError(err, "tool server %q shutdown failed", s.cfg.Name)
	}
	return nil
}

// Call invokes one tool on this server. Failures come back as error
// results, never as errors: a broken tool call must not end the turn.
func (s *Server) Call(ctx context.Context, call chat.ToolCall) chat.ToolResult {
	s.mu.RLock()
	session := s.session
	state := s.state
	s.mu.RUnlock()

	if state != StateReady || session == nil {
		return errorResult(call.ID, "tool server %q is %s", s.cfg.Name, state)
	}

	var args map[string]any
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return errorResult(call.ID, "invalid arguments JSON for %q: %v", call.Name, err)
		}
	}

	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      call.Name,
		Arguments: args,
	})
	if err != nil {
		if ctx.Err() != nil {
			return errorResult(call.ID, "tool %q timed out or was cancelled: %v", call.Name, ctx.Err())
		}
		return errorResult(call.ID, "tool %q failed: %v", call.Name, err)
	}

	return convertResult(call.ID, result)
}

// fail records a pre-Ready failure, unless a restart already superseded
// this attempt.
func (s *Server) fail(generation int, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation == generation {
		s.state = StateFailed
		s.lastErr = err
	}
	return err
}

func (s *Server) setState(state ServerState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// mergedEnv overlays the configured variables on the process
// environment, the same inheritance a shell-launched child would see.
func mergedEnv(extra map[string]string) []string {
	if len(extra) == 0 {
		return nil // exec uses the parent environment
	}
	env := os.Environ()
	for k, v := range extra {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	return env
}
