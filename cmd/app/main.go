package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/agent-sphere/agent-sphere/src/agent"
	"github.com/agent-sphere/agent-sphere/src/agents"
	"github.com/agent-sphere/agent-sphere/src/config"
	"github.com/agent-sphere/agent-sphere/src/memory"
	"github.com/agent-sphere/agent-sphere/src/models"
	"github.com/agent-sphere/agent-sphere/src/orchestrator"
	"github.com/agent-sphere/agent-sphere/src/scheduler"
	"github.com/agent-sphere/agent-sphere/src/server"
)

var (
	version    = "0.3.0"
	configPath string
)

func main() {
	root := &cobra.Command{
		Use:   "agent-sphere",
		Short: "agent-sphere: multi-agent LLM assistant",
		Long:  "agent-sphere runs a set of tool-using LLM agents behind an HTTP/WebSocket API, with an orchestrator, scheduler, and multi-provider model router.",
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to server config YAML")

	root.AddCommand(serveCmd())
	root.AddCommand(demoCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP/WebSocket API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("agent-sphere", version)
		},
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(lvl).
		With().Timestamp().Logger()
}

// routedModel adapts the provider router to the agent's chat interface.
type routedModel struct {
	router *models.Router
}

func (m routedModel) Chat(ctx context.Context, messages []models.ChatMessage) string {
	return m.router.Chat(ctx, messages)
}

func runServe() error {
	cfg, err := config.LoadServerConfig(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.LogLevel)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return err
	}

	llm := config.NewLLMManager(filepath.Join(cfg.DataDir, "llm_config.json"))
	router := models.BuildRouter(context.Background(), llm.Config(), filepath.Join(cfg.DataDir, "cache"), logger)
	model := routedModel{router: router}

	mem := memory.NewManager(filepath.Join(cfg.DataDir, "memory"), logger)

	home, err := agents.NewHomeAgent(model, mem, logger)
	if err != nil {
		return err
	}
	calendar, err := agents.NewCalendarAgent(model, mem, logger)
	if err != nil {
		return err
	}
	finance, err := agents.NewFinanceAgent(model, mem, logger)
	if err != nil {
		return err
	}
	builtins := []*agent.Agent{home, calendar, finance}

	orch := orchestrator.New(orchestrator.Options{
		Chat: func(ctx context.Context, msgs []models.ChatMessage) string {
			return router.Chat(ctx, msgs)
		},
		DefaultAgent: cfg.DefaultAgent,
		Logger:       logger,
	})
	for _, a := range builtins {
		if err := orch.Registry().Register(&orchestrator.BuiltinRunner{Agent: a}); err != nil {
			return err
		}
	}

	store, err := scheduler.OpenStore(filepath.Join(cfg.DataDir, "schedules.db"))
	if err != nil {
		return err
	}
	defer store.Close()

	agentsByID := make(map[string]*agent.Agent, len(builtins))
	for _, a := range builtins {
		agentsByID[a.ID()] = a
	}
	engine := scheduler.NewEngine(scheduler.EngineOptions{
		Store:   store,
		Workers: cfg.SchedulerWorkers,
		Logger:  logger,
		Exec: func(ctx context.Context, agentID, prompt string) (string, error) {
			if a, ok := agentsByID[agentID]; ok {
				session := fmt.Sprintf("sched-%d", time.Now().UnixNano())
				defer a.ClearMemory(session)
				return a.ThinkAndAct(ctx, session, prompt), nil
			}
			result := orch.Handle(ctx, prompt)
			if !result.Success {
				return result.FinalResponse, fmt.Errorf("plan finished with %d errors", len(result.Errors))
			}
			return result.FinalResponse, nil
		},
	})

	detector := scheduler.NewDetector(func(ctx context.Context, msgs []models.ChatMessage) string {
		return router.Chat(ctx, msgs)
	}, logger)

	srv := server.New(server.Options{
		Orchestrator: orch,
		Agents:       builtins,
		Engine:       engine,
		Detector:     detector,
		Memories:     mem,
		LLM:          llm,
		Tester:       router,
		Logger:       logger,
	})
	engine.SetBroadcast(srv.Hub().Broadcast)

	if err := engine.Start(); err != nil {
		return err
	}
	defer engine.Stop()

	httpSrv := &http.Server{
		Addr:    cfg.Addr,
		Handler: srv.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(ctx)
}
