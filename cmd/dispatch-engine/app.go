// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/pdiddy/dispatch-engine/internal/adapter"
	"github.com/pdiddy/dispatch-engine/internal/federated"
	"github.com/pdiddy/dispatch-engine/internal/history"
	"github.com/pdiddy/dispatch-engine/internal/observability"
	"github.com/pdiddy/dispatch-engine/internal/profile"
	"github.com/pdiddy/dispatch-engine/internal/resolve"
	"github.com/pdiddy/dispatch-engine/internal/secrets"
)

// app wires the long-lived components a command needs.
type app struct {
	registry *adapter.Registry
	profiles *profile.Store
	resolver *resolve.Resolver
	engine   *federated.Engine
	history  *history.Store
	tracer   *sdktrace.TracerProvider
}

func newProfileStore() *profile.Store {
	path := cfg.ProfilesFile
	if path == "" {
		path = profile.DefaultPath()
	}
	return profile.NewStore(path)
}

func historyPath() string {
	if cfg.History.Path != "" {
		return cfg.History.Path
	}
	return history.DefaultPath()
}

// newApp builds the adapter registry, profile store, tracer and engine.
// History is opened only when enabled; a history failure is logged, not fatal.
func newApp(ctx context.Context) (*app, error) {
	tp, err := observability.Setup(ctx, cfg.Tracing, version)
	if err != nil {
		return nil, err
	}

	a := &app{
		registry: adapter.NewDefaultRegistry(cfg.HTTP, cfg.Adapters, adapter.Credentials{
			SemanticScholarAPIKey: loadedSecrets.Lookup(secrets.SemanticScholarAPIKey),
			OpenAlexEmail:         loadedSecrets.Lookup(secrets.OpenAlexEmail),
			PatentsViewAPIKey:     loadedSecrets.Lookup(secrets.PatentsViewAPIKey),
		}),
		profiles: newProfileStore(),
		resolver: resolve.New(),
		tracer:   tp,
	}

	opts := []federated.Option{
		federated.WithLogger(logger.Named("engine")),
		federated.WithTracerProvider(tp),
	}
	if cfg.History.Enabled {
		h, err := history.Open(historyPath())
		if err != nil {
			logger.Warn("search history disabled", zap.Error(err))
		} else {
			a.history = h
			opts = append(opts, federated.WithRecorder(h))
		}
	}
	a.engine = federated.New(a.registry, a.profiles, cfg.Engine, opts...)
	return a, nil
}

// close flushes spans and releases the history database.
func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.history != nil {
		errs = append(errs, a.history.Close())
	}
	if a.tracer != nil {
		errs = append(errs, a.tracer.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
