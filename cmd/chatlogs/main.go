// Command chatlogs stores and reads back chat logs.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/custodia-labs/chatlogs/internal/adapters/driven/config/file"
	"github.com/custodia-labs/chatlogs/internal/adapters/driven/fetch/httpfetch"
	"github.com/custodia-labs/chatlogs/internal/adapters/driven/metrics"
	"github.com/custodia-labs/chatlogs/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/chatlogs/internal/adapters/driven/storage/pebblestore"
	"github.com/custodia-labs/chatlogs/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/chatlogs/internal/adapters/driving/cli"
	"github.com/custodia-labs/chatlogs/internal/core/domain"
	"github.com/custodia-labs/chatlogs/internal/core/ports/driven"
	"github.com/custodia-labs/chatlogs/internal/core/services"
	"github.com/custodia-labs/chatlogs/internal/logger"
	"github.com/custodia-labs/chatlogs/internal/parsers"
	"github.com/custodia-labs/chatlogs/internal/pipeline"
	"github.com/custodia-labs/chatlogs/internal/retry"
)

const executorStopTimeout = 10 * time.Second

func main() {
	cli.SetBootstrap(bootstrap)
	if err := cli.Execute(context.Background()); err != nil {
		os.Exit(1)
	}
}

// loadSettings reads the typed settings and rejects a configuration that
// would break submissions, such as an unknown default expiry.
func loadSettings(configStore driven.ConfigStore) (*services.SettingsService, *domain.AppSettings, error) {
	settingsService := services.NewSettingsService(configStore)
	if err := settingsService.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration in %s: %w", configStore.Path(), err)
	}
	settings, err := settingsService.Get()
	if err != nil {
		return nil, nil, fmt.Errorf("reading settings: %w", err)
	}
	return settingsService, settings, nil
}

// stores groups the storage ports of one backend.
type stores struct {
	logs      driven.LogStore
	scheduler driven.SchedulerStore
	close     func() error
}

func bootstrap(_ context.Context) (*cli.Services, func(), error) {
	configStore, err := file.NewConfigStore("")
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	settingsService, settings, err := loadSettings(configStore)
	if err != nil {
		return nil, nil, err
	}

	st, err := openStores(settings.Storage)
	if err != nil {
		return nil, nil, err
	}

	observer := metrics.NewObserver()

	exec := pipeline.NewExecutor(settings.Pipeline.Workers, settings.Pipeline.QueueSize)
	if err := exec.Start(); err != nil {
		_ = st.close()
		return nil, nil, fmt.Errorf("starting executor: %w", err)
	}
	p := pipeline.New(exec, parsers.NewDefaultRegistry(), settings.Pipeline, pipeline.WithObserver(observer))

	logService := services.NewLogService(st.logs, p, settings.Policy,
		services.WithFetcher(httpfetch.New(settings.Fetch)),
		services.WithSubmissionObserver(observer),
		services.WithFetchRetry(fetchRetry(settings.Pipeline.Retry)),
	)

	scheduler := services.NewScheduler(settings.Scheduler, st.scheduler, st.logs)

	cleanup := func() {
		if err := exec.Stop(executorStopTimeout); err != nil {
			logger.Warn("stopping executor: %v", err)
		}
		if err := st.close(); err != nil {
			logger.Warn("closing store: %v", err)
		}
	}

	return &cli.Services{
		Logs:            logService,
		Settings:        settingsService,
		Scheduler:       scheduler,
		SchedulerConfig: settings.Scheduler,
		MetricsHandler:  observer.Handler(),
	}, cleanup, nil
}

// openStores opens the configured storage backend.
func openStores(cfg domain.StorageSettings) (*stores, error) {
	dataDir := cfg.DataDir
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".chatlogs", "data")
	}

	switch cfg.Backend {
	case domain.StoragePebble:
		store, err := pebblestore.NewStore(dataDir)
		if err != nil {
			return nil, fmt.Errorf("opening pebble store: %w", err)
		}
		logger.Debug("using pebble store at %s", store.Path())
		// Task state is not persisted by the pebble backend.
		return &stores{logs: store, scheduler: memory.NewSchedulerStore(), close: store.Close}, nil
	case domain.StorageMemory:
		logger.Debug("using in-memory store")
		return &stores{
			logs:      memory.NewLogStore(),
			scheduler: memory.NewSchedulerStore(),
			close:     func() error { return nil },
		}, nil
	default:
		store, err := sqlite.NewStore(dataDir)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		logger.Debug("using sqlite store at %s", store.Path())
		return &stores{logs: store.LogStore(), scheduler: store.SchedulerStore(), close: store.Close}, nil
	}
}

// fetchRetry maps the stage retry settings onto archive fetches.
func fetchRetry(cfg domain.RetryConfig) retry.Config {
	return retry.Config{
		MaxAttempts:  cfg.MaxAttempts,
		InitialDelay: cfg.InitialDelay,
		MaxDelay:     cfg.MaxDelay,
		Multiplier:   cfg.Multiplier,
		AddJitter:    true,
	}
}
