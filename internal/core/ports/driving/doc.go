// Package driving defines what the CLI and MCP server call into: log
// submission and lookup, settings, and the maintenance scheduler.
//
// internal/core/services implements every interface here.
package driving
