package host

import (
	"fmt"
	"os"

	"github.com/coral-dev/coral-go/application/config"
	apptemplate "github.com/coral-dev/coral-go/application/template"
	"github.com/coral-dev/coral-go/domain/entities"
	"github.com/coral-dev/coral-go/domain/ports"
	"github.com/coral-dev/coral-go/infrastructure/parser"
)

// loaderConfig holds configuration for the Loader.
type loaderConfig struct {
	templateEngine  ports.TemplateEngine
	parser          ports.ConfigParser
	strictTemplates bool // Fail on missing template keys
	env             bool
}

func defaultLoaderConfig() loaderConfig {
	return loaderConfig{
		parser:          parser.NewYamlConfigParser(),
		strictTemplates: true,
	}
}

// Loader orchestrates the configuration loading pipeline:
// render, parse, apply defaults, validate.
type Loader struct {
	config loaderConfig
}

// LoaderOption configures the Loader.
type LoaderOption func(*loaderConfig)

// WithParser sets a custom config parser.
func WithParser(p ports.ConfigParser) LoaderOption {
	return func(c *loaderConfig) {
		c.parser = p
	}
}

// WithTemplateEngine sets a template engine.
func WithTemplateEngine(t ports.TemplateEngine) LoaderOption {
	return func(c *loaderConfig) {
		c.templateEngine = t
	}
}

// WithStrictTemplates enables/disables strict template mode.
// When enabled (default), rendering fails if a referenced variable is missing.
func WithStrictTemplates(enabled bool) LoaderOption {
	return func(c *loaderConfig) {
		c.strictTemplates = enabled
	}
}

// WithEnvironment exposes the process environment to templates as {{.env.NAME}}.
func WithEnvironment(enabled bool) LoaderOption {
	return func(c *loaderConfig) {
		c.env = enabled
	}
}

// NewLoader creates a new Loader with defaults.
func NewLoader(opts ...LoaderOption) *Loader {
	cfg := defaultLoaderConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.templateEngine == nil {
		cfg.templateEngine = apptemplate.NewGoTemplateEngine(
			apptemplate.WithStrict(cfg.strictTemplates),
			apptemplate.WithEnv(cfg.env),
		)
	}
	return &Loader{config: cfg}
}

// LoadConfig renders, parses and validates a configuration document.
func (l *Loader) LoadConfig(raw []byte, vars map[string]any) (*entities.Config, error) {
	data, err := l.config.templateEngine.Render(raw, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to render config: %w", err)
	}

	cfg, err := config.Load(data, l.config.parser)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// LoadFile reads path and loads it with LoadConfig.
func (l *Loader) LoadFile(path string, vars map[string]any) (*entities.Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return l.LoadConfig(raw, vars)
}
