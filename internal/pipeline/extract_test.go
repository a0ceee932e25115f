package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/chatlogs/internal/core/domain"
	"github.com/custodia-labs/chatlogs/internal/parsers"
)

func TestExtract_List(t *testing.T) {
	x := NewExtractor(parsers.NewDefaultRegistry())
	content := domain.MessageContent([]map[string]any{
		{"author": "a", "body": "hi"},
		{"author": "b", "body": "yo"},
	})

	ext, err := x.Extract(context.Background(), "", content)
	require.NoError(t, err)
	assert.Equal(t, ListType, ext.Type)
	require.Len(t, ext.Messages, 2)
	assert.Equal(t, 1, ext.Messages[1].Ordinal)
	assert.True(t, ext.Messages[1].HasOrdinal)
	assert.Equal(t, "list", ext.Messages[1].Source)
	assert.Equal(t, "yo", ext.Messages[1].Fields["body"])
}

func TestExtract_ListKeepsDeclaredType(t *testing.T) {
	x := NewExtractor(parsers.NewDefaultRegistry())
	content := domain.MessageContent([]map[string]any{{"author": "a"}})

	ext, err := x.Extract(context.Background(), "discord", content)
	require.NoError(t, err)
	assert.Equal(t, "discord", ext.Type)
}

func TestExtract_EmptyList(t *testing.T) {
	x := NewExtractor(parsers.NewDefaultRegistry())

	_, err := x.Extract(context.Background(), "", domain.MessageContent([]map[string]any{}))
	assert.ErrorIs(t, err, domain.ErrMalformedContent)
}

func TestExtract_NilElement(t *testing.T) {
	x := NewExtractor(parsers.NewDefaultRegistry())

	_, err := x.Extract(context.Background(), "", domain.MessageContent([]map[string]any{nil}))
	assert.ErrorIs(t, err, domain.ErrMalformedContent)
}

func TestExtract_Text(t *testing.T) {
	x := NewExtractor(parsers.NewDefaultRegistry())

	ext, err := x.Extract(context.Background(), "IRC", domain.TextContent("[10:00] <a> hi\n[10:01] <b> yo"))
	require.NoError(t, err)
	assert.Equal(t, "irc", ext.Type)
	assert.Len(t, ext.Messages, 2)
}

func TestExtract_UnsupportedType(t *testing.T) {
	x := NewExtractor(parsers.NewDefaultRegistry())

	_, err := x.Extract(context.Background(), "unknown-format", domain.TextContent("hello"))
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}

func TestExtract_EmptyJSONArrayText(t *testing.T) {
	x := NewExtractor(parsers.NewDefaultRegistry())

	_, err := x.Extract(context.Background(), "json", domain.TextContent("[]"))
	assert.ErrorIs(t, err, domain.ErrMalformedContent)
}
