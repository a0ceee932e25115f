package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/chatlogs/internal/core/domain"
)

// defaultOwner is used when --owner is not given and $USER is empty.
const defaultOwner = "local"

// submissionFlags are the policy flags shared by submit, archive and watch.
type submissionFlags struct {
	declaredType string
	expires      string
	privacy      string
	guild        string
	owner        string
	privileged   bool
	json         bool
}

func (f *submissionFlags) register(cmd *cobra.Command, withType bool) {
	if withType {
		cmd.Flags().StringVarP(&f.declaredType, "type", "t", "", "content type of a text log (irc, transcript, json)")
	}
	cmd.Flags().StringVarP(&f.expires, "expires", "e", "", "expiry token, e.g. 30min, 1d, 1w (default 30min)")
	cmd.Flags().StringVarP(&f.privacy, "privacy", "p", "", "public, unlisted, guild or moderators (default public)")
	cmd.Flags().StringVarP(&f.guild, "guild", "g", "", "guild reference for guild and moderators privacy")
	cmd.Flags().StringVarP(&f.owner, "owner", "o", "", "owner identity (default $USER)")
	cmd.Flags().BoolVar(&f.privileged, "privileged", false, "submit as a privileged owner (allows never-expiring logs)")
}

func (f *submissionFlags) reset() {
	*f = submissionFlags{}
}

// submission builds a RawSubmission without content.
func (f *submissionFlags) submission() domain.RawSubmission {
	tier := domain.TierStandard
	if f.privileged {
		tier = domain.TierPrivileged
	}
	return domain.RawSubmission{
		DeclaredType: f.declaredType,
		Owner:        domain.Owner{ID: ownerID(f.owner), Tier: tier},
		ExpiresSpec:  f.expires,
		Privacy:      domain.Privacy(f.privacy),
		GuildRef:     f.guild,
	}
}

func ownerID(flag string) string {
	if flag != "" {
		return flag
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return defaultOwner
}

var submitFlags submissionFlags

var submitCmd = &cobra.Command{
	Use:   "submit [file]",
	Short: "Submit a chat log",
	Long: `Submit a chat log from a file or standard input.

Without --type the input must be a JSON array of message objects. With
--type the input is a text log parsed by that type, for example irc or
transcript. Submitting content that is already stored returns the
existing log unchanged.

Examples:
  chatlogs submit messages.json
  chatlogs submit --type irc --expires 1d session.log
  cat transcript.txt | chatlogs submit -t transcript --privacy unlisted`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSubmit,
}

func init() {
	submitFlags.register(submitCmd, true)
	submitCmd.Flags().BoolVar(&submitFlags.json, "json", false, "output the log as JSON")
	rootCmd.AddCommand(submitCmd)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	logs, err := requireLogService()
	if err != nil {
		return err
	}

	data, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	sub := submitFlags.submission()
	if sub.DeclaredType == "" {
		msgs, err := domain.DecodeMessageList(data)
		if err != nil {
			return fmt.Errorf("input is not a message list (use --type for text logs): %w", err)
		}
		sub.Content = domain.MessageContent(msgs)
	} else {
		sub.Content = domain.TextContent(string(data))
	}

	record, err := logs.Submit(cmd.Context(), sub)
	if err != nil {
		return fmt.Errorf("submit failed: %w", err)
	}

	if submitFlags.json {
		return outputLogJSON(cmd, record)
	}
	outputSubmitted(cmd, record)
	return nil
}

// readInput reads the named file, or standard input for "-" or no
// argument. An interactive terminal on stdin is refused.
func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 1 && args[0] != "-" {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", args[0], err)
		}
		return data, nil
	}

	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return nil, errors.New("no input: pass a file or pipe the log on stdin")
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return nil, fmt.Errorf("reading stdin: %w", err)
	}
	return data, nil
}

func outputSubmitted(cmd *cobra.Command, record *domain.LogRecord) {
	cmd.Printf("Stored log %s\n", record.Fingerprint)
	cmd.Printf("  Messages: %d in %d page(s)\n", record.MessageCount, len(record.Pages))
	cmd.Printf("  Privacy:  %s\n", record.Privacy)
	cmd.Printf("  Expires:  %s\n", formatExpiry(record))
}

func outputLogJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal log: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

var archiveFlags submissionFlags

var archiveCmd = &cobra.Command{
	Use:   "archive <url>",
	Short: "Submit a chat log from an archive URL",
	Long: `Fetch a JSON array of messages from a URL and submit it.

Fetches are rate limited, and timeouts and server errors are retried
before giving up.`,
	Args: cobra.ExactArgs(1),
	RunE: runArchive,
}

func init() {
	archiveFlags.register(archiveCmd, true)
	archiveCmd.Flags().BoolVar(&archiveFlags.json, "json", false, "output the log as JSON")
	rootCmd.AddCommand(archiveCmd)
}

func runArchive(cmd *cobra.Command, args []string) error {
	logs, err := requireLogService()
	if err != nil {
		return err
	}

	record, err := logs.SubmitArchive(cmd.Context(), args[0], archiveFlags.submission())
	if err != nil {
		return fmt.Errorf("archive failed: %w", err)
	}

	if archiveFlags.json {
		return outputLogJSON(cmd, record)
	}
	outputSubmitted(cmd, record)
	return nil
}
