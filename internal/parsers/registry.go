package parsers

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/chatlogs/internal/core/domain"
	"github.com/custodia-labs/chatlogs/internal/core/ports/driven"
)

// Ensure Registry implements the interface.
var _ driven.ParserRegistry = (*Registry)(nil)

// Registry maps declared types to parsers.
type Registry struct {
	mu      sync.RWMutex
	parsers map[string]driven.Parser
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{
		parsers: make(map[string]driven.Parser),
	}
}

// Register adds a parser. A later registration for the same type replaces
// the earlier one.
func (r *Registry) Register(parser driven.Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parsers[normaliseType(parser.Type())] = parser
}

// Lookup returns the parser for a declared type.
func (r *Registry) Lookup(declaredType string) (driven.Parser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	parser, ok := r.parsers[normaliseType(declaredType)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedType, declaredType)
	}
	return parser, nil
}

// Types returns all registered types, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.parsers))
	for t := range r.parsers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func normaliseType(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}
