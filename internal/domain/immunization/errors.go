// internal/domain/immunization/errors.go
package immunization

import (
	"errors"
	"fmt"
)

var errNilTable = errors.New("reference table is nil")

// ConfigError reports a reference table that is missing, unreadable or structurally
// invalid. It is returned at construction time only and is not retryable.
type ConfigError struct {
	Path string // empty when the table was not read from a file
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("invalid immunization reference table: %v", e.Err)
	}
	return fmt.Sprintf("invalid immunization reference table %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ValidationError reports a caller-supplied argument the calculator rejects.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}
