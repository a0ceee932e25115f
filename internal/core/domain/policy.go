package domain

import (
	"sort"
	"time"
)

// Privacy defines who may view a log.
type Privacy string

// Available privacy settings.
const (
	// PrivacyPublic logs are listed and viewable by anyone.
	PrivacyPublic Privacy = "public"

	// PrivacyUnlisted logs are viewable by anyone holding the link.
	PrivacyUnlisted Privacy = "unlisted"

	// PrivacyGuild logs are viewable by members of the linked guild.
	PrivacyGuild Privacy = "guild"

	// PrivacyModerators logs are viewable by moderators of the linked guild.
	PrivacyModerators Privacy = "moderators"
)

// IsValid returns true if the privacy setting is recognised.
func (p Privacy) IsValid() bool {
	switch p {
	case PrivacyPublic, PrivacyUnlisted, PrivacyGuild, PrivacyModerators:
		return true
	default:
		return false
	}
}

// RequiresScope returns true if this setting needs a guild reference.
func (p Privacy) RequiresScope() bool {
	return p == PrivacyGuild || p == PrivacyModerators
}

// String returns the string representation.
func (p Privacy) String() string {
	return string(p)
}

// ExpiryOption is one entry of the expiry lookup table.
type ExpiryOption struct {
	// Token is the short name callers submit (e.g. "30min").
	Token string

	// Duration is the offset from submission time. Ignored when Never is set.
	Duration time.Duration

	// Never marks the option that keeps a log forever.
	Never bool

	// Privileged restricts the option to privileged owners.
	Privileged bool
}

// ExpiryTable is the closed set of expiry options, keyed by token.
type ExpiryTable map[string]ExpiryOption

// Tokens returns the table's tokens ordered by duration, "never" last.
func (t ExpiryTable) Tokens() []string {
	tokens := make([]string, 0, len(t))
	for token := range t {
		tokens = append(tokens, token)
	}
	sort.Slice(tokens, func(i, j int) bool {
		a, b := t[tokens[i]], t[tokens[j]]
		if a.Never != b.Never {
			return b.Never
		}
		if a.Duration != b.Duration {
			return a.Duration < b.Duration
		}
		return tokens[i] < tokens[j]
	})
	return tokens
}

// DefaultExpiryTable returns the built-in expiry options.
func DefaultExpiryTable() ExpiryTable {
	return ExpiryTable{
		"10min": {Token: "10min", Duration: 10 * time.Minute},
		"30min": {Token: "30min", Duration: 30 * time.Minute},
		"1h":    {Token: "1h", Duration: time.Hour},
		"6h":    {Token: "6h", Duration: 6 * time.Hour},
		"12h":   {Token: "12h", Duration: 12 * time.Hour},
		"1d":    {Token: "1d", Duration: 24 * time.Hour},
		"3d":    {Token: "3d", Duration: 3 * 24 * time.Hour},
		"1w":    {Token: "1w", Duration: 7 * 24 * time.Hour},
		"2w":    {Token: "2w", Duration: 14 * 24 * time.Hour, Privileged: true},
		"1mo":   {Token: "1mo", Duration: 30 * 24 * time.Hour, Privileged: true},
		"never": {Token: "never", Never: true, Privileged: true},
	}
}

// DefaultExpiryToken is used when a submission names no expiry.
const DefaultExpiryToken = "30min"

// PolicyConfig configures the policy gate.
type PolicyConfig struct {
	// Expiry is the table of allowed expiry options.
	Expiry ExpiryTable

	// DefaultExpiry is the token applied when a submission names none.
	DefaultExpiry string
}

// DefaultPolicyConfig returns the built-in policy.
func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		Expiry:        DefaultExpiryTable(),
		DefaultExpiry: DefaultExpiryToken,
	}
}

// Policy is the normalised outcome of the policy gate.
type Policy struct {
	// ExpiresAt is the absolute expiry, or nil for logs that never expire.
	ExpiresAt *time.Time

	// Privacy is the validated visibility setting.
	Privacy Privacy

	// GuildRef is set only for guild-scoped privacy.
	GuildRef *string
}
