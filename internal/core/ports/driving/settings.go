package driving

import "github.com/custodia-labs/chatlogs/internal/core/domain"

// SettingsService reads typed settings from configuration.
type SettingsService interface {
	// Get returns the effective settings. Unset or unusable values fall
	// back to defaults.
	Get() (*domain.AppSettings, error)

	// Save writes every setting back to configuration.
	Save(settings *domain.AppSettings) error

	// Validate reports the first configured value that is present but
	// unusable.
	Validate() error

	// Overrides lists the config keys set from the environment.
	Overrides() []string

	// GetDefaults returns the built-in settings, ignoring configuration.
	GetDefaults() domain.AppSettings
}
