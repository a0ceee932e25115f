package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/chatlogs/internal/adapters/driving/cli/styles"
	"github.com/custodia-labs/chatlogs/internal/core/domain"
)

var getJSON bool

var getCmd = &cobra.Command{
	Use:   "get <fingerprint>",
	Short: "Show a stored log",
	Long:  `Show the summary of a stored log. Use --json for the complete record including pages.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

var pagesIndex int

var pagesCmd = &cobra.Command{
	Use:   "pages <fingerprint>",
	Short: "Print the messages of a stored log",
	Long: `Print the messages of a stored log page by page.

Use --page to print a single page (numbered from 1).`,
	Args: cobra.ExactArgs(1),
	RunE: runPages,
}

var (
	listOwner string
	listJSON  bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List logs by owner",
	Long:  `List the logs submitted by an owner, newest first.`,
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	getCmd.Flags().BoolVar(&getJSON, "json", false, "output the complete log as JSON")
	pagesCmd.Flags().IntVarP(&pagesIndex, "page", "n", 0, "page to print, from 1 (0 = all)")
	listCmd.Flags().StringVarP(&listOwner, "owner", "o", "", "owner identity (default $USER)")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "output logs as JSON")
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(pagesCmd)
	rootCmd.AddCommand(listCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	logs, err := requireLogService()
	if err != nil {
		return err
	}

	record, err := logs.Lookup(cmd.Context(), domain.Fingerprint(args[0]))
	if err != nil {
		return fmt.Errorf("lookup failed: %w", err)
	}

	if getJSON {
		return outputLogJSON(cmd, record)
	}
	renderSummary(cmd.OutOrStdout(), styles.DefaultStyles(), record)
	return nil
}

func runPages(cmd *cobra.Command, args []string) error {
	logs, err := requireLogService()
	if err != nil {
		return err
	}

	record, err := logs.Lookup(cmd.Context(), domain.Fingerprint(args[0]))
	if err != nil {
		return fmt.Errorf("lookup failed: %w", err)
	}

	total := len(record.Pages)
	if pagesIndex < 0 || pagesIndex > total {
		return fmt.Errorf("page %d out of range (log has %d)", pagesIndex, total)
	}

	st := styles.DefaultStyles()
	out := cmd.OutOrStdout()
	if pagesIndex > 0 {
		renderPage(out, st, record.Pages[pagesIndex-1], total)
		return nil
	}
	for i, p := range record.Pages {
		if i > 0 {
			cmd.Println()
		}
		renderPage(out, st, p, total)
	}
	return nil
}

func runList(cmd *cobra.Command, _ []string) error {
	logs, err := requireLogService()
	if err != nil {
		return err
	}

	owner := ownerID(listOwner)
	records, err := logs.ListByOwner(cmd.Context(), owner)
	if err != nil {
		return fmt.Errorf("list failed: %w", err)
	}

	if listJSON {
		return outputLogJSON(cmd, records)
	}

	if len(records) == 0 {
		cmd.Printf("No logs for %s.\n", owner)
		return nil
	}

	now := time.Now()
	cmd.Printf("Logs for %s:\n\n", owner)
	for i := range records {
		r := &records[i]
		cmd.Printf("  %s  %-10s %-10s %4d msgs  created %s, expires %s\n",
			r.Fingerprint.Short(), r.Type, r.Privacy, r.MessageCount,
			relativeAge(now, r.CreatedAt), formatExpiry(r))
	}
	return nil
}
