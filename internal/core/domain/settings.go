package domain

import "time"

// StorageBackend selects the LogStore implementation.
type StorageBackend string

// Available storage backends.
const (
	// StorageSQLite is the default relational store.
	StorageSQLite StorageBackend = "sqlite"

	// StoragePebble is an embedded key-value store.
	StoragePebble StorageBackend = "pebble"

	// StorageMemory keeps logs in process memory only.
	StorageMemory StorageBackend = "memory"
)

// IsValid returns true if the backend is recognised.
func (b StorageBackend) IsValid() bool {
	switch b {
	case StorageSQLite, StoragePebble, StorageMemory:
		return true
	default:
		return false
	}
}

// IsPersistent returns true if logs survive a restart.
func (b StorageBackend) IsPersistent() bool {
	return b != StorageMemory
}

// String returns the string representation.
func (b StorageBackend) String() string {
	return string(b)
}

// Description returns a human-readable description of the backend.
func (b StorageBackend) Description() string {
	switch b {
	case StorageSQLite:
		return "SQLite (default)"
	case StoragePebble:
		return "Pebble (embedded key-value)"
	case StorageMemory:
		return "Memory (not persisted)"
	default:
		return "Unknown"
	}
}

// FetchSettings configures archive fetching.
type FetchSettings struct {
	// RatePerSecond throttles outgoing requests.
	RatePerSecond float64

	// Timeout bounds a single request.
	Timeout time.Duration

	// MaxBytes caps the response body size.
	MaxBytes int64
}

// StorageSettings configures persistence.
type StorageSettings struct {
	Backend StorageBackend

	// DataDir holds the database files. Empty means ~/.chatlogs/data.
	DataDir string
}

// AppSettings is the complete application configuration.
type AppSettings struct {
	Policy    PolicyConfig
	Pipeline  PipelineConfig
	Fetch     FetchSettings
	Storage   StorageSettings
	Scheduler SchedulerConfig
}

// DefaultAppSettings returns sensible defaults for all settings.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Policy:   DefaultPolicyConfig(),
		Pipeline: DefaultPipelineConfig(),
		Fetch: FetchSettings{
			RatePerSecond: 2,
			Timeout:       30 * time.Second,
			MaxBytes:      32 << 20,
		},
		Storage: StorageSettings{
			Backend: StorageSQLite,
		},
		Scheduler: DefaultSchedulerConfig(),
	}
}
