// Package mcp provides an MCP (Model Context Protocol) server adapter for chatlogs.
// It lets agent clients submit chat logs and read them back by fingerprint.
package mcp

import "errors"

// ErrMissingLogService is returned when the log service is not provided.
var ErrMissingLogService = errors.New("mcp: log service is required")
