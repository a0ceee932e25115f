// Package transcript parses timestamped chat transcripts.
//
// Each message starts with an RFC 3339 timestamp, the author's display
// name and the author's ID in parentheses:
//
//	[2024-01-02T15:04:05Z] Alice (1001): hello
//
// Lines that do not start a message continue the previous message's body.
package transcript

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/custodia-labs/chatlogs/internal/core/domain"
	"github.com/custodia-labs/chatlogs/internal/core/ports/driven"
)

// Type is the declared type handled by this parser.
const Type = "transcript"

// Ensure Parser implements the interface.
var _ driven.Parser = (*Parser)(nil)

var lineRe = regexp.MustCompile(`^\[([^\]]+)\]\s+(.+?)\s+\(([^()\s]+)\):\s?(.*)$`)

// Parser handles transcript text logs.
type Parser struct{}

// New creates a new transcript parser.
func New() *Parser {
	return &Parser{}
}

// Type returns the declared type this parser handles.
func (p *Parser) Type() string {
	return Type
}

// Parse splits a transcript into messages.
func (p *Parser) Parse(ctx context.Context, text string) ([]domain.ExtractedMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var msgs []domain.ExtractedMessage
	var bodies []string

	for n, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		m := lineRe.FindStringSubmatch(line)
		if m == nil {
			if len(msgs) == 0 {
				if strings.TrimSpace(line) == "" {
					continue
				}
				return nil, fmt.Errorf("%w: line %d is not a transcript message", domain.ErrMalformedContent, n+1)
			}
			bodies[len(bodies)-1] += "\n" + line
			continue
		}

		ts, err := time.Parse(time.RFC3339, m[1])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: bad timestamp %q", domain.ErrMalformedContent, n+1, m[1])
		}

		msgs = append(msgs, domain.ExtractedMessage{
			Ordinal:    len(msgs),
			HasOrdinal: true,
			Source:     Type,
			Fields: map[string]any{
				"author": map[string]any{
					"id":   m[3],
					"name": m[2],
				},
				"timestamp": ts.UTC().Format(time.RFC3339Nano),
			},
		})
		bodies = append(bodies, m[4])
	}

	if len(msgs) == 0 {
		return nil, fmt.Errorf("%w: no transcript messages found", domain.ErrMalformedContent)
	}

	for i := range msgs {
		msgs[i].Fields["content"] = strings.TrimRight(bodies[i], "\n")
	}

	return msgs, nil
}
