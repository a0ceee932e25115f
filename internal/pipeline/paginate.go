package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/custodia-labs/chatlogs/internal/core/domain"
)

// pageNamespace seeds deterministic page IDs.
var pageNamespace = uuid.MustParse("6f2a4c1e-8b3d-5e7f-9a0b-1c2d3e4f5a6b")

// Paginator is the pagination stage. Boundaries depend only on the
// messages and the configured limits.
type Paginator struct {
	mode        domain.PaginationMode
	maxMessages int
	maxBytes    int
}

// PaginatorOption configures the paginator.
type PaginatorOption func(*Paginator)

// WithMode selects count or byte bounded pages.
func WithMode(mode domain.PaginationMode) PaginatorOption {
	return func(p *Paginator) {
		if mode.IsValid() {
			p.mode = mode
		}
	}
}

// WithMaxMessages sets the message limit for count mode.
func WithMaxMessages(n int) PaginatorOption {
	return func(p *Paginator) {
		if n > 0 {
			p.maxMessages = n
		}
	}
}

// WithMaxBytes sets the encoded size limit for bytes mode.
func WithMaxBytes(n int) PaginatorOption {
	return func(p *Paginator) {
		if n > 0 {
			p.maxBytes = n
		}
	}
}

// NewPaginator creates a paginator with the given options.
func NewPaginator(opts ...PaginatorOption) *Paginator {
	p := &Paginator{
		mode:        domain.PaginateByCount,
		maxMessages: domain.DefaultPageMessages,
		maxBytes:    domain.DefaultPageBytes,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewPaginatorFromConfig creates a paginator from pipeline configuration.
func NewPaginatorFromConfig(cfg domain.PaginationConfig) *Paginator {
	return NewPaginator(
		WithMode(cfg.Mode),
		WithMaxMessages(cfg.MaxMessages),
		WithMaxBytes(cfg.MaxBytes),
	)
}

// Paginate splits messages into pages. A message is never split; in
// bytes mode a message larger than the limit gets a page of its own.
func (p *Paginator) Paginate(ctx context.Context, fp domain.Fingerprint, msgs []domain.Message) ([]domain.Page, error) {
	if len(msgs) == 0 {
		return nil, nil
	}

	var groups [][]domain.Message
	var err error
	if p.mode == domain.PaginateByBytes {
		groups, err = p.byBytes(ctx, msgs)
	} else {
		groups = p.byCount(msgs)
	}
	if err != nil {
		return nil, err
	}

	pages := make([]domain.Page, 0, len(groups))
	for i, g := range groups {
		pages = append(pages, domain.Page{
			ID:       PageID(fp, i),
			Index:    i,
			Messages: g,
		})
	}
	return pages, nil
}

func (p *Paginator) byCount(msgs []domain.Message) [][]domain.Message {
	groups := make([][]domain.Message, 0, (len(msgs)+p.maxMessages-1)/p.maxMessages)
	for start := 0; start < len(msgs); start += p.maxMessages {
		end := start + p.maxMessages
		if end > len(msgs) {
			end = len(msgs)
		}
		groups = append(groups, msgs[start:end:end])
	}
	return groups
}

func (p *Paginator) byBytes(ctx context.Context, msgs []domain.Message) ([][]domain.Message, error) {
	var groups [][]domain.Message
	start, size := 0, 0

	for i := range msgs {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		encoded, err := json.Marshal(msgs[i])
		if err != nil {
			return nil, fmt.Errorf("encode message %d: %w", msgs[i].Ordinal, err)
		}

		if i > start && size+len(encoded) > p.maxBytes {
			groups = append(groups, msgs[start:i:i])
			start, size = i, 0
		}
		size += len(encoded)
	}
	groups = append(groups, msgs[start:len(msgs):len(msgs)])

	return groups, nil
}

// PageID derives the stable ID of the page at index within a log.
func PageID(fp domain.Fingerprint, index int) string {
	return uuid.NewSHA1(pageNamespace, []byte(fp.String()+"/"+strconv.Itoa(index))).String()
}
