// Package config loads and validates bridge configuration.
package config

import (
	stdErrors "errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/coral-dev/coral-go/domain/entities"
	"github.com/coral-dev/coral-go/domain/errors"
	"github.com/coral-dev/coral-go/domain/ports"
	"github.com/go-playground/validator/v10"
)

// validate is shared; validator caches struct metadata per type.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("glob", func(fl validator.FieldLevel) bool {
		return doublestar.ValidatePattern(fl.Field().String())
	})
	return v
}

// Load parses data, fills unset fields from entities.DefaultConfig and
// validates the result.
func Load(data []byte, p ports.ConfigParser) (*entities.Config, error) {
	if p == nil {
		return nil, fmt.Errorf("config parser is required")
	}
	cfg, err := p.Parse(data)
	if err != nil {
		return nil, &errors.ConfigError{Err: err}
	}
	cfg.ApplyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cfg against its struct tags. Every failing field yields
// one *errors.ConfigError; several are joined.
func Validate(cfg *entities.Config) error {
	if cfg == nil {
		return &errors.ConfigError{Err: fmt.Errorf("config is nil")}
	}

	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !stdErrors.As(err, &verrs) {
		return &errors.ConfigError{Err: err}
	}

	errs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		errs = append(errs, &errors.ConfigError{
			Field: fieldPath(fe),
			Err:   fmt.Errorf("failed on '%s' (value %v)", tagText(fe), fe.Value()),
		})
	}
	return stdErrors.Join(errs...)
}

// fieldPath strips the root struct name from the validator namespace,
// leaving "expose[1]" or "module_name".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func tagText(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}
