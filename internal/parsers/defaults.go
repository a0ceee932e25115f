package parsers

import (
	"github.com/custodia-labs/chatlogs/internal/parsers/irc"
	"github.com/custodia-labs/chatlogs/internal/parsers/jsonarray"
	"github.com/custodia-labs/chatlogs/internal/parsers/transcript"
)

// RegisterDefaults registers all built-in parsers with the registry.
// Call this during application initialisation to enable standard formats.
func RegisterDefaults(r *Registry) {
	r.Register(irc.New())
	r.Register(transcript.New())
	r.Register(jsonarray.New())
}

// NewDefaultRegistry returns a registry with the built-in parsers.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	RegisterDefaults(r)
	return r
}
