package pipeline

import (
	"context"
	"fmt"

	"github.com/custodia-labs/chatlogs/internal/core/domain"
	"github.com/custodia-labs/chatlogs/internal/core/ports/driven"
)

// ListType is recorded as the type of message-list submissions that
// declare none.
const ListType = "list"

// listSource tags messages that arrived already structured.
const listSource = "list"

// Extractor is the text extraction stage.
type Extractor struct {
	parsers driven.ParserRegistry
}

// NewExtractor creates an extraction stage backed by the parser registry.
func NewExtractor(parsers driven.ParserRegistry) *Extractor {
	return &Extractor{parsers: parsers}
}

// Extract turns content into extracted records. Message lists pass
// through with their list position as ordinal. Text is handed to the
// parser registered for the declared type.
func (x *Extractor) Extract(ctx context.Context, declaredType string, content domain.Content) (domain.Extraction, error) {
	if content.IsList {
		if len(content.Messages) == 0 {
			return domain.Extraction{}, fmt.Errorf("%w: message list is empty", domain.ErrMalformedContent)
		}

		typ := declaredType
		if typ == "" {
			typ = ListType
		}

		msgs := make([]domain.ExtractedMessage, 0, len(content.Messages))
		for i, m := range content.Messages {
			if m == nil {
				return domain.Extraction{}, fmt.Errorf("%w: element %d is not an object", domain.ErrMalformedContent, i)
			}
			msgs = append(msgs, domain.ExtractedMessage{
				Ordinal:    i,
				HasOrdinal: true,
				Source:     listSource,
				Fields:     m,
			})
		}
		return domain.Extraction{Type: typ, Messages: msgs}, nil
	}

	parser, err := x.parsers.Lookup(declaredType)
	if err != nil {
		return domain.Extraction{}, err
	}

	msgs, err := parser.Parse(ctx, content.Text)
	if err != nil {
		return domain.Extraction{}, err
	}
	if len(msgs) == 0 {
		return domain.Extraction{}, fmt.Errorf("%w: no messages in %s content", domain.ErrMalformedContent, parser.Type())
	}

	return domain.Extraction{Type: parser.Type(), Messages: msgs}, nil
}
