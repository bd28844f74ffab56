package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"pagegen/internal/audit"
	"pagegen/internal/components"
	"pagegen/internal/config"
	"pagegen/internal/generation"
	"pagegen/internal/perception"
	"pagegen/internal/store"
	"pagegen/internal/types"
	"pagegen/internal/workspace"
)

// app wires the services shared by every command.
type app struct {
	cfg       *config.Config
	kv        store.Store
	client    types.LLMClient
	workspace *workspace.Workspace
	auditor   *audit.Orchestrator
	analyzer  *components.Analyzer
	selector  *components.Selector
	generator *generation.Generator
}

// newApp opens the store and, when needLLM is set, validates the config
// and builds the provider client.
func newApp(cfg *config.Config, needLLM bool) (*app, error) {
	a := &app{cfg: cfg}

	if needLLM {
		if err := cfg.Validate(); err != nil {
			var verr *config.ValidationError
			if errors.As(err, &verr) && verr.Field == "llm.api_key" {
				return nil, fmt.Errorf("%w\nset an API key or add llm.api_key to %s", err, configPath)
			}
			return nil, err
		}
		client, err := perception.NewClient(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create LLM client: %w", err)
		}
		a.client = client
	}

	kv, err := store.Open(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	a.kv = kv
	a.workspace = workspace.New(kv)

	if a.client != nil {
		a.auditor = audit.NewOrchestrator(a.client, audit.ConfigFrom(cfg))
		a.analyzer = components.NewAnalyzer(a.client,
			components.WithPathSegments(cfg.Components.PathSegments),
			components.WithConcurrency(cfg.Components.Concurrency))
		a.selector = components.NewSelector(a.client)
		a.generator = generation.NewGenerator(a.client, a.auditor, a.workspace)
	}
	return a, nil
}

func (a *app) Close() {
	if a.kv != nil {
		if err := a.kv.Close(); err != nil {
			logger.Warn("failed to close store", zap.Error(err))
		}
	}
}

// commandContext returns a context bounded by --timeout and cancelled on
// SIGINT/SIGTERM.
func commandContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}
