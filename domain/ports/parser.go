package ports

import "github.com/coral-dev/coral-go/domain/entities"

// ConfigParser parses raw configuration bytes into a bridge Config.
type ConfigParser interface {
	// Parse unmarshals bytes into a Config. Defaults are not applied.
	Parse(data []byte) (*entities.Config, error)
}
