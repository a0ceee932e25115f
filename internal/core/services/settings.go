package services

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/custodia-labs/chatlogs/internal/core/domain"
	"github.com/custodia-labs/chatlogs/internal/core/ports/driven"
	"github.com/custodia-labs/chatlogs/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
const (
	keyExpiryDefault      = "expiry.default"
	keyExpiryTokens       = "expiry.tokens"
	keyPaginationMode     = "pagination.mode"
	keyPaginationMessages = "pagination.max_messages"
	keyPaginationBytes    = "pagination.max_bytes"
	keyPipelineTimeout    = "pipeline.timeout_seconds"
	keyPipelineWorkers    = "pipeline.workers"
	keyPipelineQueue      = "pipeline.queue_size"
	keyRetryAttempts      = "retry.max_attempts"
	keyRetryInitialDelay  = "retry.initial_delay_ms"
	keyRetryMaxDelay      = "retry.max_delay_ms"
	keyFetchRate          = "fetch.rate_per_second"
	keyFetchTimeout       = "fetch.timeout_seconds"
	keyFetchMaxBytes      = "fetch.max_bytes"
	keyStorageBackend     = "storage.backend"
	keyStorageDataDir     = "storage.data_dir"
	keySchedulerEnabled   = "scheduler.enabled"
	keyExpiryInterval     = "scheduler.expiry_interval_minutes"
)

// SettingsService maps configuration keys to typed settings.
type SettingsService struct {
	configStore driven.ConfigStore
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{configStore: configStore}
}

// Get retrieves current application settings. Missing or unusable
// values fall back to defaults.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()
	defaultExpiry := normaliseToken(s.getString(keyExpiryDefault, defaults.Policy.DefaultExpiry))

	settings := &domain.AppSettings{
		Policy: domain.PolicyConfig{
			Expiry:        s.getExpiryTable(defaults.Policy.Expiry, defaultExpiry),
			DefaultExpiry: defaultExpiry,
		},
		Pipeline: domain.PipelineConfig{
			Timeout:   s.getDuration(keyPipelineTimeout, time.Second, defaults.Pipeline.Timeout),
			Workers:   s.getInt(keyPipelineWorkers, defaults.Pipeline.Workers),
			QueueSize: s.getInt(keyPipelineQueue, defaults.Pipeline.QueueSize),
			Pagination: domain.PaginationConfig{
				Mode:        s.getPaginationMode(defaults.Pipeline.Pagination.Mode),
				MaxMessages: s.getInt(keyPaginationMessages, defaults.Pipeline.Pagination.MaxMessages),
				MaxBytes:    int(s.getBytes(keyPaginationBytes, int64(defaults.Pipeline.Pagination.MaxBytes))),
			},
			Retry: domain.RetryConfig{
				MaxAttempts:  s.getInt(keyRetryAttempts, defaults.Pipeline.Retry.MaxAttempts),
				InitialDelay: s.getDuration(keyRetryInitialDelay, time.Millisecond, defaults.Pipeline.Retry.InitialDelay),
				MaxDelay:     s.getDuration(keyRetryMaxDelay, time.Millisecond, defaults.Pipeline.Retry.MaxDelay),
				Multiplier:   defaults.Pipeline.Retry.Multiplier,
			},
		},
		Fetch: domain.FetchSettings{
			RatePerSecond: s.getFloat(keyFetchRate, defaults.Fetch.RatePerSecond),
			Timeout:       s.getDuration(keyFetchTimeout, time.Second, defaults.Fetch.Timeout),
			MaxBytes:      s.getBytes(keyFetchMaxBytes, defaults.Fetch.MaxBytes),
		},
		Storage: domain.StorageSettings{
			Backend: s.getBackend(defaults.Storage.Backend),
			DataDir: s.configStore.GetString(keyStorageDataDir),
		},
		Scheduler: domain.SchedulerConfig{
			Enabled: s.getBool(keySchedulerEnabled, defaults.Scheduler.Enabled),
			TaskConfigs: map[string]domain.TaskConfig{
				domain.TaskIDLogExpiry: {
					Enabled: true,
					Interval: s.getDuration(keyExpiryInterval, time.Minute,
						defaults.Scheduler.GetTaskConfig(domain.TaskIDLogExpiry).Interval),
				},
			},
		},
	}

	return settings, nil
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyExpiryDefault, settings.Policy.DefaultExpiry},
		{keyExpiryTokens, settings.Policy.Expiry.Tokens()},
		{keyPaginationMode, string(settings.Pipeline.Pagination.Mode)},
		{keyPaginationMessages, settings.Pipeline.Pagination.MaxMessages},
		{keyPaginationBytes, settings.Pipeline.Pagination.MaxBytes},
		{keyPipelineTimeout, int(settings.Pipeline.Timeout / time.Second)},
		{keyPipelineWorkers, settings.Pipeline.Workers},
		{keyPipelineQueue, settings.Pipeline.QueueSize},
		{keyRetryAttempts, settings.Pipeline.Retry.MaxAttempts},
		{keyRetryInitialDelay, int(settings.Pipeline.Retry.InitialDelay / time.Millisecond)},
		{keyRetryMaxDelay, int(settings.Pipeline.Retry.MaxDelay / time.Millisecond)},
		{keyFetchRate, settings.Fetch.RatePerSecond},
		{keyFetchTimeout, int(settings.Fetch.Timeout / time.Second)},
		{keyFetchMaxBytes, settings.Fetch.MaxBytes},
		{keyStorageBackend, settings.Storage.Backend.String()},
		{keyStorageDataDir, settings.Storage.DataDir},
		{keySchedulerEnabled, settings.Scheduler.Enabled},
		{keyExpiryInterval, int(settings.Scheduler.GetTaskConfig(domain.TaskIDLogExpiry).Interval / time.Minute)},
	}

	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}
	return nil
}

// Validate checks that current settings are usable.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	if _, ok := settings.Policy.Expiry[settings.Policy.DefaultExpiry]; !ok {
		return fmt.Errorf("default expiry %q is not an allowed token", settings.Policy.DefaultExpiry)
	}
	if raw := s.configStore.GetString(keyPaginationMode); raw != "" && !domain.PaginationMode(raw).IsValid() {
		return fmt.Errorf("invalid pagination mode: %s", raw)
	}
	if raw := s.configStore.GetString(keyStorageBackend); raw != "" && !domain.StorageBackend(raw).IsValid() {
		return fmt.Errorf("invalid storage backend: %s", raw)
	}
	for _, token := range s.configStore.GetStringSlice(keyExpiryTokens) {
		if _, ok := domain.DefaultExpiryTable()[normaliseToken(token)]; !ok {
			return fmt.Errorf("unknown expiry token in %s: %s", keyExpiryTokens, token)
		}
	}
	if settings.Fetch.RatePerSecond <= 0 {
		return fmt.Errorf("%s must be positive", keyFetchRate)
	}

	return nil
}

// Overrides lists the config keys set from the environment.
func (s *SettingsService) Overrides() []string {
	return s.configStore.Overrides()
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val <= 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	raw, exists := s.configStore.Get(key)
	if !exists {
		return defaultVal
	}
	switch v := raw.(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

// getBytes reads a byte size given as a number or a humanized string
// such as "64KiB" or "32MB".
func (s *SettingsService) getBytes(key string, defaultVal int64) int64 {
	raw, exists := s.configStore.Get(key)
	if !exists {
		return defaultVal
	}
	var n int64
	switch v := raw.(type) {
	case int64:
		n = v
	case int:
		n = int64(v)
	case float64:
		n = int64(v)
	case string:
		b, err := humanize.ParseBytes(strings.TrimSpace(v))
		if err != nil || b > math.MaxInt64 {
			return defaultVal
		}
		n = int64(b)
	}
	if n <= 0 {
		return defaultVal
	}
	return n
}

func (s *SettingsService) getDuration(key string, unit, defaultVal time.Duration) time.Duration {
	val := s.configStore.GetInt(key)
	if val <= 0 {
		return defaultVal
	}
	return time.Duration(val) * unit
}

func (s *SettingsService) getPaginationMode(defaultVal domain.PaginationMode) domain.PaginationMode {
	mode := domain.PaginationMode(s.configStore.GetString(keyPaginationMode))
	if !mode.IsValid() {
		return defaultVal
	}
	return mode
}

func (s *SettingsService) getBackend(defaultVal domain.StorageBackend) domain.StorageBackend {
	backend := domain.StorageBackend(s.configStore.GetString(keyStorageBackend))
	if !backend.IsValid() {
		return defaultVal
	}
	return backend
}

// getExpiryTable restricts the built-in table to the configured tokens.
// The default token is always kept, so submissions without an expiry
// still resolve when the token list leaves it out.
func (s *SettingsService) getExpiryTable(defaultVal domain.ExpiryTable, defaultToken string) domain.ExpiryTable {
	tokens := s.configStore.GetStringSlice(keyExpiryTokens)
	if len(tokens) == 0 {
		return defaultVal
	}

	table := make(domain.ExpiryTable, len(tokens))
	for _, token := range tokens {
		if opt, ok := defaultVal[normaliseToken(token)]; ok {
			table[opt.Token] = opt
		}
	}
	if len(table) == 0 {
		return defaultVal
	}
	if opt, ok := defaultVal[defaultToken]; ok {
		table[opt.Token] = opt
	}
	return table
}

func normaliseToken(token string) string {
	return strings.ToLower(strings.TrimSpace(token))
}
