// Package irc parses IRC-style text logs.
//
// Each message starts with a bracketed time and a nick in angle brackets:
//
//	[12:01] <alice> hello there
//	[12:01:30] <bob> hi
//
// Lines that do not start a message continue the previous message's body.
package irc

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/custodia-labs/chatlogs/internal/core/domain"
	"github.com/custodia-labs/chatlogs/internal/core/ports/driven"
)

// Type is the declared type handled by this parser.
const Type = "irc"

// Ensure Parser implements the interface.
var _ driven.Parser = (*Parser)(nil)

var lineRe = regexp.MustCompile(`^\[(\d{1,2}:\d{2}(?::\d{2})?)\]\s+<([^>\s]+)>\s?(.*)$`)

// Parser handles IRC text logs.
type Parser struct{}

// New creates a new IRC parser.
func New() *Parser {
	return &Parser{}
}

// Type returns the declared type this parser handles.
func (p *Parser) Type() string {
	return Type
}

// Parse splits an IRC log into messages.
func (p *Parser) Parse(ctx context.Context, text string) ([]domain.ExtractedMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var msgs []domain.ExtractedMessage
	var body strings.Builder

	flush := func() {
		if len(msgs) > 0 {
			msgs[len(msgs)-1].Fields["content"] = body.String()
		}
		body.Reset()
	}

	for n, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if m := lineRe.FindStringSubmatch(line); m != nil {
			flush()
			msgs = append(msgs, domain.ExtractedMessage{
				Ordinal:    len(msgs),
				HasOrdinal: true,
				Source:     Type,
				Fields: map[string]any{
					"author": m[2],
					"clock":  m[1],
				},
			})
			body.WriteString(m[3])
			continue
		}

		if len(msgs) == 0 {
			if strings.TrimSpace(line) == "" {
				continue
			}
			return nil, fmt.Errorf("%w: line %d is not an irc message", domain.ErrMalformedContent, n+1)
		}
		body.WriteByte('\n')
		body.WriteString(line)
	}
	flush()

	if len(msgs) == 0 {
		return nil, fmt.Errorf("%w: no irc messages found", domain.ErrMalformedContent)
	}

	// Trailing blank lines belong to no one.
	for i := range msgs {
		msgs[i].Fields["content"] = strings.TrimRight(msgs[i].Fields["content"].(string), "\n")
	}

	return msgs, nil
}
