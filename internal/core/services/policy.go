package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/chatlogs/internal/core/domain"
)

// PolicyGate validates and normalises expiry and privacy before any
// pipeline work starts. It has no side effects.
type PolicyGate struct {
	cfg domain.PolicyConfig
	now func() time.Time
}

// NewPolicyGate creates a policy gate over the given expiry table.
func NewPolicyGate(cfg domain.PolicyConfig) *PolicyGate {
	if cfg.Expiry == nil {
		cfg.Expiry = domain.DefaultExpiryTable()
	}
	if cfg.DefaultExpiry == "" {
		cfg.DefaultExpiry = domain.DefaultExpiryToken
	}
	return &PolicyGate{cfg: cfg, now: time.Now}
}

// Evaluate returns the canonical (expiresAt, privacy, guildRef) triple
// for a submission.
func (g *PolicyGate) Evaluate(sub domain.RawSubmission) (domain.Policy, error) {
	expiresAt, err := g.expiry(sub.ExpiresSpec, sub.Owner.Tier)
	if err != nil {
		return domain.Policy{}, err
	}

	privacy := sub.Privacy
	if privacy == "" {
		privacy = domain.PrivacyPublic
	}
	if !privacy.IsValid() {
		return domain.Policy{}, fmt.Errorf("%w: %q", domain.ErrInvalidPrivacy, privacy)
	}

	policy := domain.Policy{ExpiresAt: expiresAt, Privacy: privacy}
	if privacy.RequiresScope() {
		ref := strings.TrimSpace(sub.GuildRef)
		if ref == "" {
			return domain.Policy{}, fmt.Errorf("%w: privacy %s needs a guild", domain.ErrMissingScopeReference, privacy)
		}
		policy.GuildRef = &ref
	}

	return policy, nil
}

// ExpiryTokens lists the tokens an owner of the given tier may select.
func (g *PolicyGate) ExpiryTokens(tier domain.Tier) []string {
	var tokens []string
	for _, token := range g.cfg.Expiry.Tokens() {
		if g.cfg.Expiry[token].Privileged && tier != domain.TierPrivileged {
			continue
		}
		tokens = append(tokens, token)
	}
	return tokens
}

func (g *PolicyGate) expiry(spec string, tier domain.Tier) (*time.Time, error) {
	token := strings.ToLower(strings.TrimSpace(spec))
	if token == "" {
		token = g.cfg.DefaultExpiry
	}

	opt, ok := g.cfg.Expiry[token]
	if !ok {
		return nil, fmt.Errorf("%w: unknown token %q", domain.ErrInvalidExpiry, token)
	}
	if opt.Privileged && tier != domain.TierPrivileged {
		return nil, fmt.Errorf("%w: %q needs a privileged owner", domain.ErrInvalidExpiry, token)
	}
	if opt.Never {
		return nil, nil
	}

	at := g.now().UTC().Add(opt.Duration)
	return &at, nil
}
