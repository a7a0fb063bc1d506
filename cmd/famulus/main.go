// Command famulus runs an interactive chat session over the
// conversation engine. It loads the configuration file, starts the
// configured tool servers, and reads user turns from stdin, streaming
// the assistant's reply as it arrives. Ctrl-C cancels the in-flight
// turn; a second Ctrl-C exits.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/famulus-ai/famulus/pkg/chat"
	"github.com/famulus-ai/famulus/pkg/config"
	"github.com/famulus-ai/famulus/pkg/engine"
	"github.com/famulus-ai/famulus/pkg/mcp"
	"github.com/famulus-ai/famulus/pkg/provider"
	"github.com/famulus-ai/famulus/pkg/store"
	"github.com/famulus-ai/famulus/pkg/store/memory"
	"github.com/famulus-ai/famulus/pkg/store/postgres"

	// Register the backend adapters.
	_ "github.com/famulus-ai/famulus/pkg/provider/anthropic"
	_ "github.com/famulus-ai/famulus/pkg/provider/chatcompat"
	_ "github.com/famulus-ai/famulus/pkg/provider/gemini"
	_ "github.com/famulus-ai/famulus/pkg/provider/ollama"
	_ "github.com/famulus-ai/famulus/pkg/provider/openai"
)

func main() {
	if err := run(); err != nil {
		slog.Error("famulus failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to the configuration file")
	profileName := flag.String("profile", "", "profile to use (default: config's default)")
	conversationID := flag.String("conversation", "", "conversation to resume (default: new)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	registry := config.NewRegistry(cfg)

	profile := registry.Default()
	if *profileName != "" {
		profile, err = registry.Get(*profileName)
		if err != nil {
			return err
		}
	}

	prov, err := provider.New(string(profile.Backend), provider.ClientConfig{
		APIKey:   profile.APIKey,
		Endpoint: profile.Endpoint,
	})
	if err != nil {
		return err
	}
	defer prov.Close()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()

	manager := mcp.NewManager(cfg.ToolServers, cfg.Engine)
	manager.StartAll(ctx)
	defer manager.Close()
	slog.Info("tool servers started", "ready", manager.ReadyCount(), "tools", len(manager.Catalog()))

	if cfg.Metrics.Enabled {
		go serveMetrics(cfg.Metrics)
	}

	eng, err := engine.New(prov, manager, st, consoleNotifier{}, engine.FromProfile(profile, cfg.Engine))
	if err != nil {
		return err
	}

	convID := *conversationID
	if convID == "" {
		convID = chat.NewConversationID()
	}
	fmt.Printf("famulus — profile %s (%s/%s), conversation %s\n",
		profile.Name, profile.Backend, profile.Model, convID)

	return repl(ctx, eng, manager, convID)
}

// repl reads user turns from stdin until EOF. A SIGINT during a turn
// cancels that turn; a SIGINT while idle (or a second one during a
// turn) exits.
func repl(ctx context.Context, eng *engine.Engine, manager *mcp.Manager, convID string) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var turnCancel atomic.Value
	turnCancel.Store(context.CancelFunc(nil))

	go func() {
		for range sigCh {
			if cancel, _ := turnCancel.Load().(context.CancelFunc); cancel != nil {
				fmt.Fprintln(os.Stderr, "\ncancelling turn (Ctrl-C again to exit)")
				turnCancel.Store(context.CancelFunc(nil))
				cancel()
				continue
			}
			fmt.Fprintln(os.Stderr)
			manager.Close()
			os.Exit(0)
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		turnCtx, cancel := context.WithCancel(ctx)
		turnCancel.Store(cancel)

		_, err := eng.Run(turnCtx, convID, line)
		turnCancel.Store(context.CancelFunc(nil))
		cancel()

		if err != nil {
			fmt.Fprintf(os.Stderr, "turn failed: %v\n", err)
		}
		fmt.Println()
	}
	return scanner.Err()
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Storage.Type {
	case "postgres":
		return postgres.New(context.Background(), postgres.Config{
			DSN:            cfg.Storage.Postgres.DSN,
			MaxConns:       cfg.Storage.Postgres.MaxConns,
			MigrateOnStart: cfg.Storage.Postgres.MigrateOnStart,
		})
	default:
		return memory.New(), nil
	}
}

func serveMetrics(cfg config.MetricsConfig) {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.Handler())
	slog.Info("metrics endpoint listening", "addr", cfg.Addr, "path", cfg.Path)
	if err := http.ListenAndServe(cfg.Addr, mux); err != nil {
		slog.Warn("metrics endpoint failed", "error", err)
	}
}

// consoleNotifier renders turn progress on the terminal.
type consoleNotifier struct{}

func (consoleNotifier) TextDelta(d string) { fmt.Print(d) }

func (consoleNotifier) ToolCallPlanned(c chat.ToolCall) {
	fmt.Printf("\n[calling %s %s]\n", c.Name, c.Arguments)
}

func (consoleNotifier) ToolCallDone(c chat.ToolCall, r chat.ToolResult) {
	if r.IsError {
		fmt.Printf("[%s failed: %s]\n", c.Name, r.Content)
		return
	}
	fmt.Printf("[%s done]\n", c.Name)
}

func (consoleNotifier) TurnCompleted(u chat.Usage) {
	if u.TotalTokens > 0 {
		fmt.Printf("\n(%d tokens)", u.TotalTokens)
	}
}

func (consoleNotifier) TurnFailed(error) {}
