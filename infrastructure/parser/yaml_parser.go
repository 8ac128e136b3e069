// Package parser provides configuration parsers.
package parser

import (
	"bytes"
	"fmt"

	"github.com/coral-dev/coral-go/domain/entities"
	"github.com/coral-dev/coral-go/domain/ports"
	"gopkg.in/yaml.v3"
)

// YamlConfigParser implements ConfigParser for YAML.
type YamlConfigParser struct {
	strict bool
}

// YamlOption configures a YamlConfigParser.
type YamlOption func(*YamlConfigParser)

// WithKnownFields rejects documents containing keys that map to no Config field.
func WithKnownFields(enabled bool) YamlOption {
	return func(p *YamlConfigParser) {
		p.strict = enabled
	}
}

// NewYamlConfigParser creates a new YamlConfigParser.
func NewYamlConfigParser(opts ...YamlOption) ports.ConfigParser {
	p := &YamlConfigParser{strict: true}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse unmarshals YAML bytes into a Config struct.
// An empty document yields a zero Config.
func (p *YamlConfigParser) Parse(data []byte) (*entities.Config, error) {
	var cfg entities.Config
	if len(bytes.TrimSpace(data)) == 0 {
		return &cfg, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(p.strict)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode yaml config: %w", err)
	}
	return &cfg, nil
}
