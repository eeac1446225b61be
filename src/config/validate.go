package config

import "fmt"

// ValidationError reports a configuration value that fails validation.
// It is always raised before any external tool is invoked.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// validate checks enum-like fields of a resolved Config.
func validate(cfg *Config) error {
	switch cfg.Mode {
	case ModeBuild, ModeRun:
	default:
		return &ValidationError{
			Field:  "mode",
			Value:  cfg.Mode,
			Reason: fmt.Sprintf("must be %q or %q", ModeBuild, ModeRun),
		}
	}
	return nil
}
