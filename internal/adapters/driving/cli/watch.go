package cli

import (
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/chatlogs/internal/connectors/inbox"
)

var (
	watchFlags  submissionFlags
	watchNoScan bool
	watchSettle time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Submit chat logs dropped into a directory",
	Long: `Watch a directory and submit every chat log written to it.

Files named *.json are submitted as message lists. Files named
*.<type>.txt are submitted as text logs of that type, for example
meeting.transcript.txt. A file is submitted once it has gone --settle
without writes. Files already present are submitted first unless
--no-scan is given. Runs until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchFlags.register(watchCmd, false)
	watchCmd.Flags().BoolVar(&watchNoScan, "no-scan", false, "skip files already in the directory")
	watchCmd.Flags().DurationVar(&watchSettle, "settle", inbox.DefaultSettleDelay, "quiet period before a written file is submitted")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	logs, err := requireLogService()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stopScheduler := startScheduler(ctx)
	defer stopScheduler()

	sub := watchFlags.submission()
	w := inbox.New(args[0], logs, inbox.Template{
		Owner:    sub.Owner,
		Expires:  sub.ExpiresSpec,
		Privacy:  sub.Privacy,
		GuildRef: sub.GuildRef,
	}, inbox.WithSettleDelay(watchSettle))
	defer w.Close()

	results, err := w.Watch(ctx)
	if err != nil {
		return err
	}

	if !watchNoScan {
		scanned, err := w.Scan(ctx)
		if err != nil {
			return err
		}
		for _, r := range scanned {
			printResult(cmd, r)
		}
	}

	cmd.Printf("Watching %s (Ctrl+C to stop)\n", w.Dir())
	for r := range results {
		printResult(cmd, r)
	}
	return nil
}

func printResult(cmd *cobra.Command, r inbox.Result) {
	name := filepath.Base(r.Path)
	if r.Err != nil {
		cmd.Printf("  %s: %v\n", name, r.Err)
		return
	}
	cmd.Printf("  %s -> %s\n", name, r.Record.Fingerprint)
}
