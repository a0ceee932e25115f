package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/chatlogs/internal/core/domain"
)

// SubmitLogInput is the input schema for the submit_log tool.
type SubmitLogInput struct {
	Messages []map[string]any `json:"messages,omitempty" jsonschema:"chat messages as JSON objects; mutually exclusive with text"`
	Text     string           `json:"text,omitempty" jsonschema:"a text chat log; requires type"`
	Type     string           `json:"type,omitempty" jsonschema:"content type, e.g. irc or transcript; required for text"`
	Expires  string           `json:"expires,omitempty" jsonschema:"expiry token such as 30min, 1d or 1w (default 30min)"`
	Privacy  string           `json:"privacy,omitempty" jsonschema:"public, unlisted, guild or moderators (default public)"`
	Guild    string           `json:"guild,omitempty" jsonschema:"guild reference; required for guild and moderators privacy"`
}

// GetLogInput is the input schema for the get_log tool.
type GetLogInput struct {
	Fingerprint string `json:"fingerprint" jsonschema:"the log fingerprint returned by submit_log"`
	Page        *int   `json:"page,omitempty" jsonschema:"zero-based page to include; omit for the summary only"`
}

// ListLogsInput is the input schema for the list_logs tool.
type ListLogsInput struct {
	Owner string `json:"owner,omitempty" jsonschema:"owner whose logs to list (default: this server's owner)"`
}

// LogOutput summarises a log. Pages are included only when requested.
type LogOutput struct {
	Fingerprint  string       `json:"fingerprint"`
	Type         string       `json:"type"`
	Owner        string       `json:"owner"`
	Privacy      string       `json:"privacy"`
	GuildRef     string       `json:"guild_ref,omitempty"`
	ExpiresAt    *time.Time   `json:"expires_at,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	Stages       []string     `json:"stages"`
	MessageCount int          `json:"message_count"`
	PageCount    int          `json:"page_count,omitempty"`
	Pages        []PageOutput `json:"pages,omitempty"`
}

// PageOutput is one page of normalised messages.
type PageOutput struct {
	Index    int              `json:"index"`
	Messages []domain.Message `json:"messages"`
}

// ListLogsOutput is the output schema for the list_logs tool.
type ListLogsOutput struct {
	Logs  []LogOutput `json:"logs"`
	Count int         `json:"count"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "submit_log",
		Description: "Store a chat log; resubmitting identical content returns the existing log",
	}, s.handleSubmitLog)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_log",
		Description: "Look up a stored chat log by fingerprint",
	}, s.handleGetLog)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_logs",
		Description: "List the chat logs submitted by an owner",
	}, s.handleListLogs)
}

// handleSubmitLog handles the submit_log tool invocation.
func (s *Server) handleSubmitLog(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SubmitLogInput,
) (*mcp.CallToolResult, LogOutput, error) {
	content, err := submissionContent(input)
	if err != nil {
		return nil, LogOutput{}, err
	}

	record, err := s.ports.Logs.Submit(ctx, domain.RawSubmission{
		Content:      content,
		DeclaredType: input.Type,
		Owner:        domain.Owner{ID: s.ports.owner()},
		ExpiresSpec:  input.Expires,
		Privacy:      domain.Privacy(input.Privacy),
		GuildRef:     input.Guild,
	})
	if err != nil {
		return nil, LogOutput{}, err
	}

	return nil, toLogOutput(record, -1), nil
}

// handleGetLog handles the get_log tool invocation.
func (s *Server) handleGetLog(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GetLogInput,
) (*mcp.CallToolResult, LogOutput, error) {
	record, err := s.ports.Logs.Lookup(ctx, domain.Fingerprint(input.Fingerprint))
	if err != nil {
		return nil, LogOutput{}, err
	}

	page := -1
	if input.Page != nil {
		page = *input.Page
		if page < 0 || page >= len(record.Pages) {
			return nil, LogOutput{}, fmt.Errorf("%w: page %d out of range (log has %d)",
				domain.ErrInvalidInput, page, len(record.Pages))
		}
	}

	return nil, toLogOutput(record, page), nil
}

// handleListLogs handles the list_logs tool invocation.
func (s *Server) handleListLogs(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListLogsInput,
) (*mcp.CallToolResult, ListLogsOutput, error) {
	owner := input.Owner
	if owner == "" {
		owner = s.ports.owner()
	}

	records, err := s.ports.Logs.ListByOwner(ctx, owner)
	if err != nil {
		return nil, ListLogsOutput{}, err
	}

	output := ListLogsOutput{
		Logs:  make([]LogOutput, len(records)),
		Count: len(records),
	}
	for i := range records {
		output.Logs[i] = toLogOutput(&records[i], -1)
	}
	return nil, output, nil
}

// submissionContent picks the message list or text from the input.
// The list is re-decoded so numbers keep their JSON form for fingerprinting.
func submissionContent(input SubmitLogInput) (domain.Content, error) {
	switch {
	case input.Messages != nil && input.Text != "":
		return domain.Content{}, errors.New("provide either messages or text, not both")
	case input.Messages != nil:
		data, err := json.Marshal(input.Messages)
		if err != nil {
			return domain.Content{}, fmt.Errorf("%w: %v", domain.ErrMalformedContent, err)
		}
		msgs, err := domain.DecodeMessageList(data)
		if err != nil {
			return domain.Content{}, err
		}
		return domain.MessageContent(msgs), nil
	case input.Text != "":
		return domain.TextContent(input.Text), nil
	default:
		return domain.Content{}, fmt.Errorf("%w: messages or text is required", domain.ErrInvalidInput)
	}
}

// toLogOutput converts a record, including the page at index page when
// page is not negative.
func toLogOutput(r *domain.LogRecord, page int) LogOutput {
	out := LogOutput{
		Fingerprint:  r.Fingerprint.String(),
		Type:         r.Type,
		Owner:        r.Owner,
		Privacy:      r.Privacy.String(),
		ExpiresAt:    r.ExpiresAt,
		CreatedAt:    r.CreatedAt,
		Stages:       make([]string, len(r.StageProvenance)),
		MessageCount: r.MessageCount,
		PageCount:    len(r.Pages),
	}
	if r.GuildRef != nil {
		out.GuildRef = *r.GuildRef
	}
	for i, st := range r.StageProvenance {
		out.Stages[i] = st.String()
	}
	if page >= 0 && page < len(r.Pages) {
		out.Pages = []PageOutput{{Index: r.Pages[page].Index, Messages: r.Pages[page].Messages}}
	}
	return out
}
