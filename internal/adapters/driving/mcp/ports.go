package mcp

import (
	"github.com/custodia-labs/chatlogs/internal/core/ports/driving"
)

// DefaultOwner is the identity recorded on logs submitted over MCP when
// Ports.Owner is empty.
const DefaultOwner = "mcp"

// Ports aggregates the driving ports and identity used by the MCP server.
type Ports struct {
	// Logs submits and reads chat logs.
	Logs driving.LogService

	// Owner is recorded as the owner of submitted logs.
	Owner string
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Logs == nil {
		return ErrMissingLogService
	}
	return nil
}

func (p *Ports) owner() string {
	if p.Owner == "" {
		return DefaultOwner
	}
	return p.Owner
}
