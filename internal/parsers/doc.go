// Package parsers provides implementations of the Parser interface for
// text log formats. Each parser knows how to split one declared type of
// text into structured message records.
//
// Parsers are registered with the Registry at startup. The registry is a
// closed dispatch table: a declared type with no parser is rejected with
// domain.ErrUnsupportedType rather than guessed at.
package parsers
