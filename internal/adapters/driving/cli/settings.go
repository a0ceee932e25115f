package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/chatlogs/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show application settings",
	Long: `Show the effective settings, after applying config.toml, the .env
file and CHATLOGS_* environment variables.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	cmd.Println("[Expiry]")
	cmd.Printf("  Default: %s\n", settings.Policy.DefaultExpiry)
	cmd.Printf("  Tokens: %s\n", strings.Join(settings.Policy.Expiry.Tokens(), ", "))
	cmd.Println()

	p := settings.Pipeline
	cmd.Println("[Pipeline]")
	cmd.Printf("  Timeout: %s\n", p.Timeout)
	cmd.Printf("  Workers: %d (queue %d)\n", p.Workers, p.QueueSize)
	cmd.Printf("  Retry: %d attempt(s), %s initial delay, %s max delay\n",
		p.Retry.MaxAttempts, p.Retry.InitialDelay, p.Retry.MaxDelay)
	switch p.Pagination.Mode {
	case domain.PaginateByBytes:
		cmd.Printf("  Pagination: up to %s per page\n", humanize.IBytes(uint64(p.Pagination.MaxBytes)))
	default:
		cmd.Printf("  Pagination: up to %d messages per page\n", p.Pagination.MaxMessages)
	}
	cmd.Println()

	cmd.Println("[Fetch]")
	cmd.Printf("  Rate: %.2f/s\n", settings.Fetch.RatePerSecond)
	cmd.Printf("  Timeout: %s\n", settings.Fetch.Timeout)
	cmd.Printf("  Max size: %s\n", humanize.IBytes(uint64(settings.Fetch.MaxBytes)))
	cmd.Println()

	cmd.Println("[Storage]")
	cmd.Printf("  Backend: %s\n", settings.Storage.Backend.Description())
	dataDir := settings.Storage.DataDir
	if dataDir == "" {
		dataDir = "~/.chatlogs/data"
	}
	if settings.Storage.Backend.IsPersistent() {
		cmd.Printf("  Data dir: %s\n", dataDir)
	}
	cmd.Println()

	cmd.Println("[Scheduler]")
	if settings.Scheduler.Enabled {
		cmd.Printf("  Enabled: yes\n")
		cmd.Printf("  Expiry sweep: every %s\n", settings.Scheduler.GetTaskConfig(domain.TaskIDLogExpiry).Interval)
	} else {
		cmd.Printf("  Enabled: no\n")
	}
	cmd.Println()

	if keys := settingsService.Overrides(); len(keys) > 0 {
		cmd.Printf("Overridden by environment: %s\n", strings.Join(keys, ", "))
		cmd.Println()
	}

	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
	} else {
		cmd.Println("Configuration is valid.")
	}

	return nil
}
