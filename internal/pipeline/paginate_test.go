package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/chatlogs/internal/core/domain"
)

func messages(n int, body string) []domain.Message {
	msgs := make([]domain.Message, n)
	for i := range msgs {
		msgs[i] = domain.Message{
			Ordinal:     i,
			Author:      domain.Author{ID: "a", Name: "a"},
			Body:        body,
			Attachments: []domain.Attachment{},
			Reactions:   []domain.Reaction{},
			Embeds:      []map[string]any{},
		}
	}
	return msgs
}

func TestNewPaginator_Defaults(t *testing.T) {
	p := NewPaginator()
	assert.Equal(t, domain.PaginateByCount, p.mode)
	assert.Equal(t, domain.DefaultPageMessages, p.maxMessages)
	assert.Equal(t, domain.DefaultPageBytes, p.maxBytes)
}

func TestNewPaginator_IgnoresInvalidOptions(t *testing.T) {
	p := NewPaginator(WithMode("pages"), WithMaxMessages(0), WithMaxBytes(-1))
	assert.Equal(t, domain.PaginateByCount, p.mode)
	assert.Equal(t, domain.DefaultPageMessages, p.maxMessages)
	assert.Equal(t, domain.DefaultPageBytes, p.maxBytes)
}

func TestPaginate_ByCount(t *testing.T) {
	p := NewPaginator(WithMaxMessages(2))

	pages, err := p.Paginate(context.Background(), "fp", messages(5, "x"))
	require.NoError(t, err)
	require.Len(t, pages, 3)

	for i, page := range pages {
		assert.Equal(t, i, page.Index)
		assert.Equal(t, PageID("fp", i), page.ID)
	}
	assert.Len(t, pages[0].Messages, 2)
	assert.Len(t, pages[1].Messages, 2)
	assert.Len(t, pages[2].Messages, 1)
	assert.Equal(t, 4, pages[2].Messages[0].Ordinal)
}

func TestPaginate_SinglePage(t *testing.T) {
	pages, err := NewPaginator().Paginate(context.Background(), "fp", messages(2, "x"))
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Len(t, pages[0].Messages, 2)
}

func TestPaginate_Empty(t *testing.T) {
	pages, err := NewPaginator().Paginate(context.Background(), "fp", nil)
	require.NoError(t, err)
	assert.Empty(t, pages)
}

func TestPaginate_ByBytes(t *testing.T) {
	msgs := messages(6, strings.Repeat("b", 100))
	encoded, err := json.Marshal(msgs[0])
	require.NoError(t, err)
	size := len(encoded)

	// Room for two messages but not three.
	p := NewPaginator(WithMode(domain.PaginateByBytes), WithMaxBytes(size*2+size/2))

	pages, err := p.Paginate(context.Background(), "fp", msgs)
	require.NoError(t, err)
	require.Len(t, pages, 3)
	for _, page := range pages {
		assert.Len(t, page.Messages, 2)
	}
}

func TestPaginate_ByBytesOversizeMessage(t *testing.T) {
	msgs := messages(3, "x")
	msgs[1].Body = strings.Repeat("y", 1000)

	p := NewPaginator(WithMode(domain.PaginateByBytes), WithMaxBytes(300))

	pages, err := p.Paginate(context.Background(), "fp", msgs)
	require.NoError(t, err)
	require.Len(t, pages, 3)
	assert.Equal(t, 1, pages[1].Messages[0].Ordinal)
}

func TestPaginate_Deterministic(t *testing.T) {
	msgs := messages(250, "determinism")
	for _, opts := range [][]PaginatorOption{
		{WithMaxMessages(7)},
		{WithMode(domain.PaginateByBytes), WithMaxBytes(1500)},
	} {
		p := NewPaginator(opts...)
		first, err := p.Paginate(context.Background(), "fp", msgs)
		require.NoError(t, err)

		for i := 0; i < 5; i++ {
			again, err := p.Paginate(context.Background(), "fp", msgs)
			require.NoError(t, err)

			a, _ := json.Marshal(first)
			b, _ := json.Marshal(again)
			assert.Equal(t, a, b)
		}
	}
}

func TestPageID_Stable(t *testing.T) {
	assert.Equal(t, PageID("abc", 0), PageID("abc", 0))
	assert.NotEqual(t, PageID("abc", 0), PageID("abc", 1))
	assert.NotEqual(t, PageID("abc", 0), PageID("abd", 0))

	ids := make(map[string]bool)
	for i := 0; i < 100; i++ {
		ids[PageID(domain.Fingerprint(fmt.Sprintf("fp-%d", i%10)), i/10)] = true
	}
	assert.Len(t, ids, 100)
}
