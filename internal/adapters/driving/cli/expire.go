package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/chatlogs/internal/core/domain"
)

var expireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Remove expired logs now",
	Long: `Remove every log whose expiry has passed, without waiting for the
background sweep.`,
	Args: cobra.NoArgs,
	RunE: runExpire,
}

func init() {
	rootCmd.AddCommand(expireCmd)
}

func runExpire(cmd *cobra.Command, _ []string) error {
	if scheduler == nil {
		return errors.New("scheduler not configured")
	}

	result, err := scheduler.RunNow(cmd.Context(), domain.TaskIDLogExpiry)
	if err != nil {
		return fmt.Errorf("expiry sweep failed: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("expiry sweep failed: %s", result.Error)
	}

	cmd.Printf("Removed %d expired log(s).\n", result.Removed)
	return nil
}
