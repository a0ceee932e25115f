package memory

import (
	"sync"

	"github.com/custodia-labs/chatlogs/internal/adapters/driven/config"
	"github.com/custodia-labs/chatlogs/internal/core/ports/driven"
)

var _ driven.ConfigStore = (*ConfigStore)(nil)

// ConfigStore is an in-memory implementation of driven.ConfigStore for
// tests. Override stands in for the environment overlay.
type ConfigStore struct {
	mu        sync.RWMutex
	values    map[string]any
	overrides map[string]any
}

// NewConfigStore creates an in-memory config store seeded with values.
func NewConfigStore(seed ...map[string]any) *ConfigStore {
	s := &ConfigStore{values: make(map[string]any), overrides: make(map[string]any)}
	for _, m := range seed {
		for k, v := range m {
			s.values[k] = v
		}
	}
	return s
}

// Get consults overrides before stored values.
func (s *ConfigStore) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.overrides[key]; ok {
		return v, true
	}
	val, ok := s.values[key]
	return val, ok
}

func (s *ConfigStore) GetString(key string) string {
	val, _ := s.Get(key)
	return config.String(val)
}

func (s *ConfigStore) GetInt(key string) int {
	val, _ := s.Get(key)
	return config.Int(val)
}

func (s *ConfigStore) GetBool(key string) bool {
	val, _ := s.Get(key)
	return config.Bool(val)
}

func (s *ConfigStore) GetStringSlice(key string) []string {
	val, _ := s.Get(key)
	return config.StringSlice(val)
}

// Set stores a configuration value.
func (s *ConfigStore) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// Save is a no-op.
func (s *ConfigStore) Save() error {
	return nil
}

// Load is a no-op.
func (s *ConfigStore) Load() error {
	return nil
}

// Override sets a value that shadows stored values, as an environment
// variable would.
func (s *ConfigStore) Override(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[key] = value
}

// Overrides lists overridden keys, sorted.
func (s *ConfigStore) Overrides() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return config.SortedKeys(s.overrides)
}

// Path returns a placeholder path.
func (s *ConfigStore) Path() string {
	return ":memory:"
}
