package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/vctfence/scrapbee/pkg/blob"
	"github.com/vctfence/scrapbee/pkg/config"
	"github.com/vctfence/scrapbee/pkg/observability"
	"github.com/vctfence/scrapbee/pkg/shelf"
)

type globalFlags struct {
	configPath string
	backend    string
	dir        string
	strict     bool
	logLevel   string
}

// app carries the state shared by all commands of one invocation.
type app struct {
	stdout, stderr io.Writer
	flags          globalFlags

	cfg      *config.Config
	logger   *slog.Logger
	provider *observability.Provider
	closer   io.Closer
	store    *shelf.Store
}

func (a *app) init(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(a.flags.configPath)
	if err != nil {
		return err
	}
	if a.flags.backend != "" {
		cfg.Backend.Type = a.flags.backend
	}
	if a.flags.dir != "" {
		cfg.Backend.FS.Dir = a.flags.dir
	}
	if a.flags.strict {
		cfg.Store.StrictDecoding = true
	}
	if a.flags.logLevel != "" {
		cfg.Log.Level = a.flags.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := observability.NewLogger(a.stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	a.logger = logger

	provider, err := observability.New(ctx, cfg.TelemetryProviderConfig())
	if err != nil {
		return err
	}
	a.provider = provider
	return nil
}

// openStore builds the backend and loads the shelf.
func (a *app) openStore(ctx context.Context) (*shelf.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	backend, closer, err := blob.NewFromConfig(ctx, a.cfg.BlobConfig(), a.provider)
	if err != nil {
		return nil, fmt.Errorf("open backend: %w", err)
	}
	a.closer = closer

	store, err := shelf.Open(ctx, backend,
		shelf.WithLogger(a.logger),
		shelf.WithStrictDecoding(a.cfg.Store.StrictDecoding),
		shelf.WithDeleteConcurrency(a.cfg.Store.DeleteConcurrency),
		shelf.WithTracer(a.provider.Tracer()),
	)
	if err != nil {
		return nil, err
	}
	a.store = store
	return store, nil
}

func (a *app) close() {
	if a.closer != nil {
		_ = a.closer.Close()
	}
	if a.provider != nil {
		_ = a.provider.Shutdown(context.Background())
	}
}
