package cli

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/labelreader/labelreader/internal/app"
	"github.com/labelreader/labelreader/internal/config"
	"github.com/labelreader/labelreader/internal/remote"
	"github.com/labelreader/labelreader/internal/searcher"
	"github.com/labelreader/labelreader/internal/storage"
	"github.com/labelreader/labelreader/internal/syncer"
)

// buildApp assembles the application from configuration and flags. The
// returned App owns the store; callers must Close it. When the remote side
// is unconfigured the App is built without a syncer: search and stats keep
// working, sync reports the incomplete configuration.
func buildApp(opts *RootOptions, syncerOpts ...syncer.Option) (*app.App, *zap.Logger, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, nil, err
	}
	if opts.DBPath != "" {
		cfg.DBPath = opts.DBPath
	}

	level := cfg.LogLevel
	if opts.Verbose {
		level = "debug"
	}
	log, err := newLogger(level, cfg.IsDevelopment())
	if err != nil {
		return nil, nil, fmt.Errorf("initializing logger: %w", err)
	}

	store, err := storage.New(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening local catalog: %w", err)
	}

	search := searcher.New(store)

	var sync *syncer.Syncer
	if cfg.RequireRemote() == nil {
		client, err := remote.New(cfg.RemoteURL, cfg.RemoteKey,
			remote.WithBatchSize(cfg.BatchSize),
			remote.WithTimeout(cfg.HTTPTimeout()),
			remote.WithLogger(log),
		)
		if err != nil {
			_ = store.Close()
			return nil, nil, err
		}
		syncerOpts = append(syncerOpts,
			syncer.WithLogger(log),
			syncer.WithInvalidate(search.InvalidateCache),
		)
		sync = syncer.New(store, client, syncerOpts...)
	} else {
		log.Debug("remote catalog not configured, sync disabled")
	}

	return app.New(store, search, sync, log), log, nil
}
