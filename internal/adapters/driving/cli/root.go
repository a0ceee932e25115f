// Package cli provides the chatlogs command line interface.
package cli

import (
	"context"
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/chatlogs/internal/core/domain"
	"github.com/custodia-labs/chatlogs/internal/core/ports/driving"
	"github.com/custodia-labs/chatlogs/internal/logger"
)

// version is set at build time with -ldflags "-X .../cli.version=...".
var version = "dev"

var verbose bool

// Services holds the ports and settings commands run against.
type Services struct {
	Logs            driving.LogService
	Settings        driving.SettingsService
	Scheduler       driving.Scheduler
	SchedulerConfig domain.SchedulerConfig

	// MetricsHandler serves Prometheus metrics, when configured.
	MetricsHandler http.Handler
}

// Bootstrap builds the services on first use. The returned cleanup is
// run after the command finishes.
type Bootstrap func(ctx context.Context) (*Services, func(), error)

var (
	logService      driving.LogService
	settingsService driving.SettingsService
	scheduler       driving.Scheduler
	schedulerConfig domain.SchedulerConfig
	metricsHandler  http.Handler

	bootstrap Bootstrap
	cleanup   func()
)

var rootCmd = &cobra.Command{
	Use:   "chatlogs",
	Short: "Store and read back chat logs",
	Long: `chatlogs stores chat logs as content-addressed, paginated records.

Submitting the same content twice returns the same log. Logs carry an
expiry and a privacy setting, and expired logs are removed in the
background.`,
	SilenceUsage:      true,
	PersistentPreRunE: initServices,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "show debug output")
}

// SetServices sets the services used by commands.
func SetServices(s *Services) {
	if s == nil {
		s = &Services{}
	}
	logService = s.Logs
	settingsService = s.Settings
	scheduler = s.Scheduler
	schedulerConfig = s.SchedulerConfig
	metricsHandler = s.MetricsHandler
}

// SetBootstrap sets the function that builds services before the first
// command that needs them runs.
func SetBootstrap(b Bootstrap) {
	bootstrap = b
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	defer func() {
		if cleanup != nil {
			cleanup()
			cleanup = nil
		}
	}()
	return rootCmd.ExecuteContext(ctx)
}

// initServices applies global flags and bootstraps services once.
func initServices(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)

	if bootstrap == nil || logService != nil || cmd == versionCmd {
		return nil
	}

	svc, done, err := bootstrap(cmd.Context())
	if err != nil {
		return err
	}
	SetServices(svc)
	cleanup = done
	return nil
}

// requireLogService returns the log service or a configuration error.
func requireLogService() (driving.LogService, error) {
	if logService == nil {
		return nil, errors.New("log service not configured")
	}
	return logService, nil
}
