package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/chatlogs/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for chatlogs resources.
	uriScheme = "chatlogs://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "logs/{fingerprint}",
		Name:        "log",
		Description: "A stored chat log with all of its pages",
		MIMEType:    "application/json",
	}, s.handleLogResource)
}

// handleLogResource returns a complete log as JSON.
func (s *Server) handleLogResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	fp := extractFingerprint(req.Params.URI)
	if fp == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	record, err := s.ports.Logs.Lookup(ctx, domain.Fingerprint(fp))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("looking up log: %w", err)
	}

	out := toLogOutput(record, -1)
	out.Pages = make([]PageOutput, len(record.Pages))
	for i, p := range record.Pages {
		out.Pages[i] = PageOutput{Index: p.Index, Messages: p.Messages}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling log: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractFingerprint extracts the fingerprint from a URI like chatlogs://logs/{fingerprint}.
func extractFingerprint(uri string) string {
	const prefix = uriScheme + "logs/"

	fp, ok := strings.CutPrefix(uri, prefix)
	if !ok || strings.Contains(fp, "/") {
		return ""
	}
	return fp
}
