package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate checks struct tags, then the options of the selected backend.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil { return formatValidationError(err) }
	if err := validateCustomRules(cfg); err != nil { return err }
	return nil
}

func validateCustomRules(cfg *Config) error {
	if cfg.Metrics.Addr != "" && !cfg.Metrics.Enabled {
		return fmt.Errorf("metrics: addr is set but metrics are disabled")
	}
	if err := validateBackend(&cfg.Engine); err != nil {
		return fmt.Errorf("engine.%s: %w", cfg.Engine.Backend, err)
	}
	return nil
}

func formatValidationError(err error) error {
	if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
		e := errs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)", e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
