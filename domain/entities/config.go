package entities

// Config represents bridge configuration settings.
// Zero-valued fields loaded from a file are filled from DefaultConfig.
type Config struct {
	// ModuleName is the import module name the native host links against.
	ModuleName string `json:"module_name" yaml:"module_name" validate:"required,max=64"`

	// EntryPoint is the native host export invoked after instantiation.
	EntryPoint string `json:"entry_point" yaml:"entry_point" validate:"required"`

	// LogLevel is the logging verbosity level (e.g., "debug", "info", "warn", "error").
	LogLevel string `json:"log_level,omitempty" yaml:"log_level" validate:"oneof=debug info warn error"`

	// Expose lists glob patterns over type names ("App/**") visible to the native side.
	Expose []string `json:"expose,omitempty" yaml:"expose" validate:"dive,required,glob"`

	// MaxStringBytes bounds a single string read from or written to native memory.
	MaxStringBytes uint32 `json:"max_string_bytes" yaml:"max_string_bytes" validate:"gt=0"`

	// MaxLiveStrings bounds the number of strings owned by the native side at once.
	MaxLiveStrings int `json:"max_live_strings" yaml:"max_live_strings" validate:"gt=0"`
}

// DefaultConfig returns the default bridge configuration.
func DefaultConfig() Config {
	return Config{
		ModuleName:     "coral",
		EntryPoint:     "_start",
		LogLevel:       "info",
		Expose:         []string{"**"},
		MaxStringBytes: 1 << 20,
		MaxLiveStrings: 1 << 16,
	}
}

// ConfigOption is a functional option for configuring bridge settings.
type ConfigOption func(*Config)

// WithModuleName sets the import module name.
func WithModuleName(name string) ConfigOption {
	return func(c *Config) {
		if name != "" {
			c.ModuleName = name
		}
	}
}

// WithEntryPoint sets the native host export invoked after instantiation.
func WithEntryPoint(name string) ConfigOption {
	return func(c *Config) {
		if name != "" {
			c.EntryPoint = name
		}
	}
}

// WithLogLevel sets the logging verbosity.
func WithLogLevel(level string) ConfigOption {
	return func(c *Config) {
		if level != "" {
			c.LogLevel = level
		}
	}
}

// WithExpose replaces the exposure patterns.
func WithExpose(patterns ...string) ConfigOption {
	return func(c *Config) {
		if len(patterns) > 0 {
			c.Expose = patterns
		}
	}
}

// NewConfig creates a Config from defaults and the given options.
func NewConfig(opts ...ConfigOption) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// ApplyDefaults fills zero-valued fields from DefaultConfig.
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.ModuleName == "" {
		c.ModuleName = d.ModuleName
	}
	if c.EntryPoint == "" {
		c.EntryPoint = d.EntryPoint
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if len(c.Expose) == 0 {
		c.Expose = d.Expose
	}
	if c.MaxStringBytes == 0 {
		c.MaxStringBytes = d.MaxStringBytes
	}
	if c.MaxLiveStrings == 0 {
		c.MaxLiveStrings = d.MaxLiveStrings
	}
}
