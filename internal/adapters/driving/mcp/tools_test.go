package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/chatlogs/internal/core/domain"
)

func newTestServer(t *testing.T, logs *mockLogService) *Server {
	t.Helper()
	server, err := NewServer(&Ports{Logs: logs})
	require.NoError(t, err)
	return server
}

func TestServer_handleSubmitLog(t *testing.T) {
	ctx := context.Background()

	t.Run("submits message list", func(t *testing.T) {
		logs := &mockLogService{record: sampleRecord()}
		server := newTestServer(t, logs)

		input := SubmitLogInput{
			Messages: []map[string]any{
				{"author": map[string]any{"id": "1", "name": "ana"}, "content": "hello"},
			},
			Expires: "1d",
			Privacy: "guild",
			Guild:   "guild-1",
		}
		_, output, err := server.handleSubmitLog(ctx, nil, input)

		require.NoError(t, err)
		require.Len(t, logs.submitted, 1)
		sub := logs.submitted[0]
		assert.True(t, sub.Content.IsList)
		require.Len(t, sub.Content.Messages, 1)
		assert.Equal(t, "hello", sub.Content.Messages[0]["content"])
		assert.Equal(t, DefaultOwner, sub.Owner.ID)
		assert.Equal(t, domain.TierStandard, sub.Owner.Tier)
		assert.Equal(t, "1d", sub.ExpiresSpec)
		assert.Equal(t, domain.PrivacyGuild, sub.Privacy)
		assert.Equal(t, "guild-1", sub.GuildRef)

		assert.Equal(t, "abc123", output.Fingerprint)
		assert.Equal(t, []string{"extract", "normalise", "paginate"}, output.Stages)
		assert.Equal(t, 2, output.PageCount)
		assert.Empty(t, output.Pages)
	})

	t.Run("numbers reach the service as json numbers", func(t *testing.T) {
		logs := &mockLogService{record: sampleRecord()}
		server := newTestServer(t, logs)

		input := SubmitLogInput{Messages: []map[string]any{{"id": float64(42), "content": "x"}}}
		_, _, err := server.handleSubmitLog(ctx, nil, input)

		require.NoError(t, err)
		assert.Equal(t, json.Number("42"), logs.submitted[0].Content.Messages[0]["id"])
	})

	t.Run("submits text with type", func(t *testing.T) {
		logs := &mockLogService{record: sampleRecord()}
		server := newTestServer(t, logs)

		input := SubmitLogInput{Text: "[12:00] <ana> hi", Type: "irc"}
		_, _, err := server.handleSubmitLog(ctx, nil, input)

		require.NoError(t, err)
		sub := logs.submitted[0]
		assert.False(t, sub.Content.IsList)
		assert.Equal(t, "[12:00] <ana> hi", sub.Content.Text)
		assert.Equal(t, "irc", sub.DeclaredType)
	})

	t.Run("custom owner", func(t *testing.T) {
		logs := &mockLogService{record: sampleRecord()}
		server, err := NewServer(&Ports{Logs: logs, Owner: "agent-7"})
		require.NoError(t, err)

		_, _, err = server.handleSubmitLog(ctx, nil, SubmitLogInput{Text: "x", Type: "irc"})
		require.NoError(t, err)
		assert.Equal(t, "agent-7", logs.submitted[0].Owner.ID)
	})

	t.Run("rejects missing content", func(t *testing.T) {
		logs := &mockLogService{}
		server := newTestServer(t, logs)

		_, _, err := server.handleSubmitLog(ctx, nil, SubmitLogInput{})

		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		assert.Empty(t, logs.submitted)
	})

	t.Run("rejects both messages and text", func(t *testing.T) {
		logs := &mockLogService{}
		server := newTestServer(t, logs)

		input := SubmitLogInput{Messages: []map[string]any{{"content": "x"}}, Text: "x"}
		_, _, err := server.handleSubmitLog(ctx, nil, input)

		require.Error(t, err)
		assert.Empty(t, logs.submitted)
	})

	t.Run("returns service error", func(t *testing.T) {
		logs := &mockLogService{err: domain.ErrInvalidExpiry}
		server := newTestServer(t, logs)

		_, _, err := server.handleSubmitLog(ctx, nil, SubmitLogInput{Text: "x", Type: "irc", Expires: "never"})

		assert.ErrorIs(t, err, domain.ErrInvalidExpiry)
	})
}

func TestServer_handleGetLog(t *testing.T) {
	ctx := context.Background()

	t.Run("summary only", func(t *testing.T) {
		server := newTestServer(t, &mockLogService{record: sampleRecord()})

		_, output, err := server.handleGetLog(ctx, nil, GetLogInput{Fingerprint: "abc123"})

		require.NoError(t, err)
		assert.Equal(t, "abc123", output.Fingerprint)
		assert.Equal(t, "guild", output.Privacy)
		assert.Equal(t, "guild-1", output.GuildRef)
		assert.Equal(t, 3, output.MessageCount)
		assert.Equal(t, 2, output.PageCount)
		assert.NotNil(t, output.ExpiresAt)
		assert.Empty(t, output.Pages)
	})

	t.Run("with page", func(t *testing.T) {
		server := newTestServer(t, &mockLogService{record: sampleRecord()})
		page := 1

		_, output, err := server.handleGetLog(ctx, nil, GetLogInput{Fingerprint: "abc123", Page: &page})

		require.NoError(t, err)
		require.Len(t, output.Pages, 1)
		assert.Equal(t, 1, output.Pages[0].Index)
		require.Len(t, output.Pages[0].Messages, 1)
		assert.Equal(t, "bye", output.Pages[0].Messages[0].Body)
	})

	t.Run("page out of range", func(t *testing.T) {
		server := newTestServer(t, &mockLogService{record: sampleRecord()})
		page := 5

		_, _, err := server.handleGetLog(ctx, nil, GetLogInput{Fingerprint: "abc123", Page: &page})

		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("unknown fingerprint", func(t *testing.T) {
		server := newTestServer(t, &mockLogService{record: sampleRecord()})

		_, _, err := server.handleGetLog(ctx, nil, GetLogInput{Fingerprint: "nope"})

		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestServer_handleListLogs(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults to server owner", func(t *testing.T) {
		rec := sampleRecord()
		rec.Pages = nil
		logs := &mockLogService{records: []domain.LogRecord{*rec}}
		server := newTestServer(t, logs)

		_, output, err := server.handleListLogs(ctx, nil, ListLogsInput{})

		require.NoError(t, err)
		assert.Equal(t, DefaultOwner, logs.listOwner)
		assert.Equal(t, 1, output.Count)
		assert.Equal(t, "abc123", output.Logs[0].Fingerprint)
		assert.Zero(t, output.Logs[0].PageCount)
	})

	t.Run("explicit owner", func(t *testing.T) {
		logs := &mockLogService{}
		server := newTestServer(t, logs)

		_, output, err := server.handleListLogs(ctx, nil, ListLogsInput{Owner: "someone"})

		require.NoError(t, err)
		assert.Equal(t, "someone", logs.listOwner)
		assert.Zero(t, output.Count)
		assert.NotNil(t, output.Logs)
	})

	t.Run("returns error on failure", func(t *testing.T) {
		server := newTestServer(t, &mockLogService{err: errors.New("database error")})

		_, _, err := server.handleListLogs(ctx, nil, ListLogsInput{})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "database error")
	})
}
