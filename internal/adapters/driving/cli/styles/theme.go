// Package styles renders chat logs in the terminal with lipgloss.
package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/chatlogs/internal/core/domain"
)

// Palette is the set of colours log output is drawn with.
type Palette struct {
	Accent    lipgloss.Color
	Highlight lipgloss.Color
	Text      lipgloss.Color
	Dim       lipgloss.Color
	Frame     lipgloss.Color

	// Open, Restricted and Closed colour the privacy badge by how widely
	// a log is visible.
	Open       lipgloss.Color
	Restricted lipgloss.Color
	Closed     lipgloss.Color
}

// DefaultPalette is tuned for dark terminals.
func DefaultPalette() *Palette {
	return &Palette{
		Accent:     lipgloss.Color("#7C3AED"),
		Highlight:  lipgloss.Color("#06B6D4"),
		Text:       lipgloss.Color("#CDD6F4"),
		Dim:        lipgloss.Color("#6C7086"),
		Frame:      lipgloss.Color("#45475A"),
		Open:       lipgloss.Color("#A6E3A1"),
		Restricted: lipgloss.Color("#F9E2AF"),
		Closed:     lipgloss.Color("#F38BA8"),
	}
}

// Styles holds the styles for each part of a rendered log.
type Styles struct {
	palette *Palette

	Title      lipgloss.Style // fingerprint heading
	PageHeader lipgloss.Style
	Author     lipgloss.Style
	Bot        lipgloss.Style
	Timestamp  lipgloss.Style
	Body       lipgloss.Style
	Muted      lipgloss.Style // attachments, reactions, embeds
	Label      lipgloss.Style
	Frame      lipgloss.Style
}

// NewStyles builds styles from a palette. A nil palette means the default.
func NewStyles(p *Palette) *Styles {
	if p == nil {
		p = DefaultPalette()
	}

	return &Styles{
		palette:    p,
		Title:      lipgloss.NewStyle().Bold(true).Foreground(p.Accent),
		PageHeader: lipgloss.NewStyle().Bold(true).Foreground(p.Highlight),
		Author:     lipgloss.NewStyle().Bold(true).Foreground(p.Accent),
		Bot:        lipgloss.NewStyle().Foreground(p.Text).Background(p.Accent).Padding(0, 1),
		Timestamp:  lipgloss.NewStyle().Foreground(p.Dim),
		Body:       lipgloss.NewStyle().Foreground(p.Text).PaddingLeft(2),
		Muted:      lipgloss.NewStyle().Foreground(p.Dim).PaddingLeft(2),
		Label:      lipgloss.NewStyle().Foreground(p.Dim).Width(12),
		Frame: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(p.Frame).
			Padding(0, 1),
	}
}

// DefaultStyles returns styles drawn with DefaultPalette.
func DefaultStyles() *Styles {
	return NewStyles(nil)
}

// Palette returns the colours these styles were built from.
func (s *Styles) Palette() *Palette {
	return s.palette
}

// Privacy styles a privacy value: public is open, unlisted and guild are
// restricted, moderators is closed.
func (s *Styles) Privacy(p domain.Privacy) lipgloss.Style {
	c := s.palette.Restricted
	switch p {
	case domain.PrivacyPublic, "":
		c = s.palette.Open
	case domain.PrivacyModerators:
		c = s.palette.Closed
	}
	return lipgloss.NewStyle().Bold(true).Foreground(c)
}
