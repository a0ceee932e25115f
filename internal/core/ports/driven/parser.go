package driven

import (
	"context"

	"github.com/custodia-labs/chatlogs/internal/core/domain"
)

// Parser extracts structured messages from a text log of one type.
// Each parser handles a single declared type (e.g., "irc", "transcript").
type Parser interface {
	// Type returns the declared type this parser handles.
	Type() string

	// Parse splits text into extracted messages in source order.
	// Returns domain.ErrMalformedContent when text does not match the format.
	Parse(ctx context.Context, text string) ([]domain.ExtractedMessage, error)
}

// ParserRegistry is the closed dispatch table from declared type to parser.
type ParserRegistry interface {
	// Lookup returns the parser for a declared type.
	// Returns domain.ErrUnsupportedType when no parser is registered.
	Lookup(declaredType string) (Parser, error)

	// Register adds a parser to the registry.
	Register(parser Parser)

	// Types returns all registered types, sorted.
	Types() []string
}
