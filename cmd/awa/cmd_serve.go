package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/awa-io/awa/internal/actors"
	"github.com/awa-io/awa/internal/logging"
	"github.com/awa-io/awa/internal/reasoning"
	"github.com/awa-io/awa/internal/scheduler"
	"github.com/awa-io/awa/internal/server"
	"github.com/awa-io/awa/internal/service"
	"github.com/awa-io/awa/internal/store"
	"github.com/awa-io/awa/internal/tasks"
	awamcp "github.com/awa-io/awa/pkg/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the workflow server: HTTP API, scheduler, optional MCP stdio",
	Long: `Serve starts the long-running engine process. Configuration layers,
highest priority first: flags, AWA_* environment variables, awa.yaml
(working directory or ~/.awa), built-in defaults.

With --db the task queue and run archive persist to libSQL; without it
everything is in-memory and lost on exit. With --mcp the process also
speaks the Model Context Protocol over stdin/stdout so an agent host can
run workflows and complete tasks as tools.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.String("listen", ":8420", "HTTP listen address")
	f.String("db", "", "libSQL database path (default: in-memory)")
	f.String("ai-key", "", "API key for AI activities")
	f.Bool("mcp", false, "Also serve MCP over stdio")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	f.Duration("scheduler-interval", 30*time.Second, "Scheduler tick interval")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadServeConfig(cmd.Flags())
	if err != nil {
		return err
	}

	log := logging.New(cfg.Log.Level, cfg.Log.Format)

	var opts []service.Option
	var queue tasks.Queue = tasks.NewMemoryQueue()
	if cfg.DBPath != "" {
		st, err := store.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(cmd.Context()); err != nil {
			return err
		}
		queue = st
		opts = append(opts, service.WithArchive(st))
	}

	var regOpts []actors.Option
	if cfg.AIKey != "" {
		regOpts = append(regOpts, actors.WithGenerator(
			reasoning.NewOpenAIGenerator(cfg.AIKey, reasoning.WithLogger(log))))
	}
	registry, err := actors.DefaultRegistry(queue, log, regOpts...)
	if err != nil {
		return err
	}
	opts = append(opts,
		service.WithQueue(queue),
		service.WithRegistry(registry),
		service.WithLogger(log),
	)

	svc, err := service.New(opts...)
	if err != nil {
		return err
	}

	sch := scheduler.New(svc, cfg.Scheduler.Interval, log)
	srv := server.New(svc, sch, version, log)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sch.Start(ctx); err != nil {
		return err
	}
	defer sch.Stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(cfg.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if cfg.MCP {
		g.Go(func() error {
			mcpSrv := awamcp.NewAWAServer(awamcp.AWAServerDeps{
				Service: svc,
				Version: version,
				Logger:  log,
			})
			return mcpSrv.Serve(ctx)
		})
	}

	log.Info("awa server ready",
		"listen", cfg.Listen,
		"db_path", cfg.DBPath,
		"mcp", cfg.MCP,
		"scheduler_interval", cfg.Scheduler.Interval)
	return g.Wait()
}
