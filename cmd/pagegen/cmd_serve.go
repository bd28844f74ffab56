package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pagegen/internal/server"
	"pagegen/internal/tasks"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serves the page generation API under /api.

Long-running generations and audits can be started as background tasks
(POST /api/tasks/generate-page, POST /api/tasks/audit) and polled with
GET /api/tasks/{id}.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if servePort > 0 {
		cfg.Server.Port = servePort
	}

	a, err := newApp(cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	taskStore := tasks.NewStore(cfg.GetTaskTTL(), cfg.Tasks.MaxEntries)
	defer taskStore.Close()

	srv, err := server.New(cfg, server.Deps{
		Workspace: a.workspace,
		Analyzer:  a.analyzer,
		Selector:  a.selector,
		Generator: a.generator,
		Tasks:     taskStore,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting pagegen API",
		zap.String("addr", cfg.Addr()),
		zap.String("provider", cfg.LLM.Provider),
		zap.String("store", cfg.Store.Backend),
		zap.Int("max_iterations", cfg.Audit.MaxIterations))
	return srv.Start(ctx)
}
