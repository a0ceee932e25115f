// Package connectors holds sources that feed logs into the log service
// from outside the CLI and MCP surfaces.
//
// The inbox connector watches a directory and submits each file dropped
// into it.
package connectors
