package file

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/chatlogs/internal/adapters/driven/config"
	"github.com/custodia-labs/chatlogs/internal/core/ports/driven"
)

var _ driven.ConfigStore = (*ConfigStore)(nil)

// EnvPrefix marks environment variables that override config keys.
// CHATLOGS_PIPELINE_TIMEOUT_SECONDS overrides pipeline.timeout_seconds.
const EnvPrefix = "CHATLOGS_"

// ConfigStore keeps settings in config.toml, one table per section.
// CHATLOGS_* variables, from the process or a .env file beside the TOML
// file, shadow the file and are never written back.
type ConfigStore struct {
	mu       sync.RWMutex
	filePath string
	envPath  string
	data     map[string]any
	env      map[string]string
}

// NewConfigStore opens configDir/config.toml, creating configDir if
// needed. An empty configDir means ~/.chatlogs.
func NewConfigStore(configDir string) (*ConfigStore, error) {
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		configDir = filepath.Join(home, ".chatlogs")
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, err
	}

	s := &ConfigStore{
		filePath: filepath.Join(configDir, "config.toml"),
		envPath:  filepath.Join(configDir, ".env"),
		data:     make(map[string]any),
		env:      make(map[string]string),
	}

	if err := s.Load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	return s, nil
}

// Get returns the environment value for key if set, else the file value.
func (s *ConfigStore) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if v, ok := s.env[key]; ok {
		return v, true
	}
	val, ok := s.data[key]
	return val, ok
}

// GetString returns a string value, or "" if missing or not a string.
func (s *ConfigStore) GetString(key string) string {
	val, _ := s.Get(key)
	return config.String(val)
}

// GetInt returns an integer value. TOML integers decode as int64 and
// environment values are strings; both are accepted.
func (s *ConfigStore) GetInt(key string) int {
	val, _ := s.Get(key)
	return config.Int(val)
}

func (s *ConfigStore) GetBool(key string) bool {
	val, _ := s.Get(key)
	return config.Bool(val)
}

// GetStringSlice returns a list value. TOML arrays decode as []any and
// environment values are comma-separated.
func (s *ConfigStore) GetStringSlice(key string) []string {
	val, _ := s.Get(key)
	return config.StringSlice(val)
}

// Set stores a value and rewrites the file.
func (s *ConfigStore) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = value
	return s.save()
}

// Save rewrites the file from the stored values.
func (s *ConfigStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save()
}

// save requires s.mu held.
func (s *ConfigStore) save() error {
	data, err := toml.Marshal(nestMap(s.data))
	if err != nil {
		return err
	}

	return os.WriteFile(s.filePath, data, 0600)
}

// Load rereads the environment overlay and the TOML file. A missing file
// leaves the store empty.
func (s *ConfigStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	env, err := readEnv(s.envPath)
	if err != nil {
		return err
	}
	s.env = env

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			s.data = make(map[string]any)
			return nil
		}
		return err
	}

	var loaded map[string]any
	if err := toml.Unmarshal(data, &loaded); err != nil {
		return err
	}

	if loaded == nil {
		loaded = make(map[string]any)
	}

	s.data = flattenMap(loaded, "")
	return nil
}

// Overrides lists the keys currently set from the environment, sorted.
func (s *ConfigStore) Overrides() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return config.SortedKeys(s.env)
}

// readEnv merges the optional .env file with the process environment,
// the process environment winning, and maps CHATLOGS_* names to keys.
func readEnv(envPath string) (map[string]string, error) {
	vars := make(map[string]string)

	fileVars, err := godotenv.Read(envPath)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	for k, v := range fileVars {
		vars[k] = v
	}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}

	out := make(map[string]string)
	for name, v := range vars {
		if key, ok := EnvKey(name); ok {
			out[key] = v
		}
	}
	return out, nil
}

// EnvKey maps an environment variable name to a config key. The first
// underscore after the prefix separates the section from the setting.
func EnvKey(name string) (string, bool) {
	rest, ok := strings.CutPrefix(name, EnvPrefix)
	if !ok || rest == "" {
		return "", false
	}
	section, setting, ok := strings.Cut(strings.ToLower(rest), "_")
	if !ok || section == "" || setting == "" {
		return "", false
	}
	return section + "." + setting, true
}

// flattenMap turns nested tables into dotted keys: {"a": {"b": 1}} is
// {"a.b": 1}.
func flattenMap(m map[string]any, prefix string) map[string]any {
	result := make(map[string]any)

	for key, value := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}

		if nested, ok := value.(map[string]any); ok {
			for k, v := range flattenMap(nested, fullKey) {
				result[k] = v
			}
		} else {
			result[fullKey] = value
		}
	}

	return result
}

// nestMap is the inverse of flattenMap for the first dot only, giving
// one TOML table per section.
func nestMap(m map[string]any) map[string]any {
	result := make(map[string]any)
	for key, value := range m {
		section, setting, ok := strings.Cut(key, ".")
		if !ok {
			result[key] = value
			continue
		}
		table, ok := result[section].(map[string]any)
		if !ok {
			table = make(map[string]any)
			result[section] = table
		}
		table[setting] = value
	}
	return result
}

// Path returns the TOML file path.
func (s *ConfigStore) Path() string {
	return s.filePath
}
