// Package jsonarray parses text holding a JSON array of message objects,
// as produced by bot exports and archive dumps.
package jsonarray

import (
	"context"

	"github.com/custodia-labs/chatlogs/internal/core/domain"
	"github.com/custodia-labs/chatlogs/internal/core/ports/driven"
)

// Type is the declared type handled by this parser.
const Type = "json"

// Ensure Parser implements the interface.
var _ driven.Parser = (*Parser)(nil)

// Parser handles JSON array text.
type Parser struct{}

// New creates a new JSON array parser.
func New() *Parser {
	return &Parser{}
}

// Type returns the declared type this parser handles.
func (p *Parser) Type() string {
	return Type
}

// Parse decodes a JSON array of objects into messages.
func (p *Parser) Parse(ctx context.Context, text string) ([]domain.ExtractedMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	items, err := domain.DecodeMessageList([]byte(text))
	if err != nil {
		return nil, err
	}

	msgs := make([]domain.ExtractedMessage, 0, len(items))
	for i, item := range items {
		msgs = append(msgs, domain.ExtractedMessage{
			Ordinal:    i,
			HasOrdinal: true,
			Source:     Type,
			Fields:     item,
		})
	}
	return msgs, nil
}
