package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/custodia-labs/chatlogs/internal/adapters/driving/cli/styles"
	"github.com/custodia-labs/chatlogs/internal/core/domain"
)

// timeLayout is used for timestamps in terminal output.
const timeLayout = "2006-01-02 15:04:05"

func formatExpiry(r *domain.LogRecord) string {
	if r.ExpiresAt == nil {
		return "never"
	}
	return r.ExpiresAt.Local().Format(timeLayout)
}

// renderSummary writes the record header as a bordered block.
func renderSummary(w io.Writer, st *styles.Styles, r *domain.LogRecord) {
	stages := make([]string, len(r.StageProvenance))
	for i, s := range r.StageProvenance {
		stages[i] = s.String()
	}

	rows := [][2]string{
		{"Type", r.Type},
		{"Owner", r.Owner},
		{"Privacy", st.Privacy(r.Privacy).Render(r.Privacy.String())},
	}
	if r.GuildRef != nil {
		rows = append(rows, [2]string{"Guild", *r.GuildRef})
	}
	rows = append(rows,
		[2]string{"Created", r.CreatedAt.Local().Format(timeLayout)},
		[2]string{"Expires", formatExpiry(r)},
		[2]string{"Messages", fmt.Sprintf("%d", r.MessageCount)},
		[2]string{"Pages", fmt.Sprintf("%d", len(r.Pages))},
		[2]string{"Stages", strings.Join(stages, " > ")},
	)

	lines := []string{st.Title.Render(r.Fingerprint.String())}
	for _, row := range rows {
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, st.Label.Render(row[0]), row[1]))
	}
	fmt.Fprintln(w, st.Frame.Render(strings.Join(lines, "\n")))
}

// renderPage writes one page of messages.
func renderPage(w io.Writer, st *styles.Styles, p domain.Page, total int) {
	fmt.Fprintln(w, st.PageHeader.Render(fmt.Sprintf("Page %d of %d", p.Index+1, total)))
	for i := range p.Messages {
		renderMessage(w, st, &p.Messages[i])
	}
}

func renderMessage(w io.Writer, st *styles.Styles, m *domain.Message) {
	header := []string{st.Author.Render(authorName(m.Author))}
	if m.Author.Bot {
		header = append(header, st.Bot.Render("BOT"))
	}
	if m.Timestamp != nil {
		header = append(header, st.Timestamp.Render(m.Timestamp.Local().Format(timeLayout)))
	}
	if m.EditedAt != nil {
		header = append(header, st.Timestamp.Render("(edited)"))
	}
	fmt.Fprintln(w, strings.Join(header, " "))

	if m.Body != "" {
		fmt.Fprintln(w, st.Body.Render(m.Body))
	}
	for _, a := range m.Attachments {
		fmt.Fprintln(w, st.Muted.Render("attachment: "+a.Filename+" "+a.URL))
	}
	if len(m.Reactions) > 0 {
		parts := make([]string, len(m.Reactions))
		for i, r := range m.Reactions {
			parts[i] = fmt.Sprintf("%s %d", r.Emoji, r.Count)
		}
		fmt.Fprintln(w, st.Muted.Render("reactions: "+strings.Join(parts, "  ")))
	}
	if len(m.Embeds) > 0 {
		fmt.Fprintln(w, st.Muted.Render(fmt.Sprintf("%d embed(s)", len(m.Embeds))))
	}
}

func authorName(a domain.Author) string {
	name := a.Name
	if name == "" {
		name = a.ID
	}
	if a.Discriminator != "" && a.Discriminator != "0" {
		name += "#" + a.Discriminator
	}
	return name
}

// relativeAge formats how long ago t was, for list output.
func relativeAge(now, t time.Time) string {
	if now.Sub(t) < time.Second {
		return "just now"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}
