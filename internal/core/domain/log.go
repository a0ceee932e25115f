package domain

import "time"

// Fingerprint is the content-derived identifier of a log.
// It is the primary key and the idempotency token for submissions.
type Fingerprint string

// String returns the string representation.
func (f Fingerprint) String() string {
	return string(f)
}

// Short returns an abbreviated fingerprint for display.
func (f Fingerprint) Short() string {
	if len(f) <= 12 {
		return string(f)
	}
	return string(f[:12])
}

// LogRecord is the durable, paginated log document.
type LogRecord struct {
	// Fingerprint is the unique, immutable identifier.
	Fingerprint Fingerprint

	// Type is the declared content type.
	Type string

	// Owner is the identity that first submitted the content.
	Owner string

	// Privacy is the visibility setting.
	Privacy Privacy

	// GuildRef links guild-scoped logs to their guild.
	GuildRef *string

	// ExpiresAt is when the log expires. Nil means never.
	ExpiresAt *time.Time

	// CreatedAt is when the record was materialised.
	CreatedAt time.Time

	// StageProvenance lists the pipeline stages in execution order.
	StageProvenance []StageName

	// MessageCount is the number of normalised messages across all pages.
	MessageCount int

	// Pages holds the paginated content in order.
	Pages []Page

	// Metadata contains extraneous submission data.
	Metadata map[string]any
}

// Expired reports whether the record has expired at the given time.
func (r *LogRecord) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && !now.Before(*r.ExpiresAt)
}

// Page is a bounded, ordered chunk of normalised messages.
// Pages are created once by pagination and never modified.
type Page struct {
	// ID is derived from the fingerprint and index, so it is stable.
	ID string

	// Index is the zero-based position within the log.
	Index int

	// Messages are the normalised messages on this page.
	Messages []Message
}

// Author identifies the sender of a message.
type Author struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Discriminator string `json:"discriminator,omitempty"`
	Avatar        string `json:"avatar,omitempty"`
	Bot           bool   `json:"bot,omitempty"`
}

// Attachment is a file attached to a message.
type Attachment struct {
	ID       string `json:"id,omitempty"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
	Size     int64  `json:"size,omitempty"`
}

// Reaction is an emoji reaction tally.
type Reaction struct {
	Emoji string `json:"emoji"`
	Count int    `json:"count"`
}

// Message is the canonical normalised form of a chat message.
type Message struct {
	Ordinal     int              `json:"ordinal"`
	ID          string           `json:"id,omitempty"`
	Author      Author           `json:"author"`
	Timestamp   *time.Time       `json:"timestamp,omitempty"`
	EditedAt    *time.Time       `json:"edited_at,omitempty"`
	Body        string           `json:"body"`
	Attachments []Attachment     `json:"attachments"`
	Reactions   []Reaction       `json:"reactions"`
	Embeds      []map[string]any `json:"embeds"`
}
