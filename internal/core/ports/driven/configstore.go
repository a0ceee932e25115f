package driven

// ConfigStore is flat key/value configuration addressed by dotted keys
// such as "pagination.max_messages". Typed getters return the zero value
// for a missing key or a value of the wrong type.
type ConfigStore interface {
	// Get returns the raw value and whether the key is set.
	Get(key string) (any, bool)

	GetString(key string) string

	// GetInt accepts integers and numeric strings.
	GetInt(key string) int

	// GetBool accepts booleans and strconv.ParseBool strings.
	GetBool(key string) bool

	// GetStringSlice accepts lists and comma-separated strings.
	GetStringSlice(key string) []string

	// Set stores a value and persists it immediately.
	Set(key string, value any) error

	// Save persists stored values. Values that come from the environment
	// are never written.
	Save() error

	// Load rereads the backing file and the environment.
	Load() error

	// Overrides lists the keys whose value comes from the environment,
	// sorted.
	Overrides() []string

	// Path names the backing file.
	Path() string
}
