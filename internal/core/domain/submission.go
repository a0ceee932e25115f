package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Tier is the privilege level of a log owner.
type Tier int

const (
	// TierStandard is an ordinary caller.
	TierStandard Tier = iota

	// TierPrivileged may select privileged expiry options such as "never".
	TierPrivileged
)

// Owner identifies who submitted a log.
type Owner struct {
	// ID is an opaque identity reference.
	ID string

	// Tier decides which expiry options the owner may select.
	Tier Tier
}

// Content is the submitted payload. Exactly one of Text or Messages is set.
type Content struct {
	// Text is a free-form text log whose format is named by DeclaredType.
	Text string

	// Messages is a list of structured message objects, as decoded from JSON.
	Messages []map[string]any

	// IsList marks Messages as the populated field, so an empty list is
	// distinguishable from empty text.
	IsList bool
}

// TextContent wraps a text blob.
func TextContent(text string) Content {
	return Content{Text: text}
}

// MessageContent wraps a list of message objects.
func MessageContent(msgs []map[string]any) Content {
	return Content{Messages: msgs, IsList: true}
}

// RawSubmission is the request-scoped input to LogService.Submit.
type RawSubmission struct {
	// Content is the raw payload.
	Content Content

	// DeclaredType selects the text parser. Required for text content;
	// optional for message lists, where it is only recorded.
	DeclaredType string

	// Owner is the submitting identity.
	Owner Owner

	// ExpiresSpec is an expiry token from the expiry table. Empty means
	// the table default.
	ExpiresSpec string

	// Privacy is the visibility setting. Empty means public.
	Privacy Privacy

	// GuildRef scopes guild and moderators privacy.
	GuildRef string

	// Metadata holds extraneous caller data stored with the record.
	Metadata map[string]any
}

// Validate checks the shape of a submission before fingerprinting.
// Policy rules are applied separately by the policy gate.
func (s *RawSubmission) Validate() error {
	if s == nil {
		return ErrInvalidInput
	}
	if !s.Content.IsList && s.Content.Text == "" {
		return ErrInvalidInput
	}
	if !s.Content.IsList && s.DeclaredType == "" {
		return ErrInvalidInput
	}
	return nil
}

// DecodeMessageList decodes data as a JSON array of message objects.
// Numbers are kept as json.Number so re-encoding reproduces them exactly.
// Any other shape is ErrMalformedContent.
func DecodeMessageList(data []byte) ([]map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw []json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: expected a JSON array: %v", ErrMalformedContent, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after JSON array", ErrMalformedContent)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: expected a JSON array, got null", ErrMalformedContent)
	}

	items := make([]map[string]any, 0, len(raw))
	for i, r := range raw {
		d := json.NewDecoder(bytes.NewReader(r))
		d.UseNumber()
		var obj map[string]any
		if err := d.Decode(&obj); err != nil || obj == nil {
			return nil, fmt.Errorf("%w: element %d is not an object", ErrMalformedContent, i)
		}
		items = append(items, obj)
	}
	return items, nil
}
