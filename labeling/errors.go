package labeling

import (
	"fmt"
)

// A malformed rule source. These are fatal: nothing gets labeled with a partially loaded rule set.
type ConfigError struct {
	Source string
	// 1-based line in a CSV source, or zero
	Row int
	Err error
}

func (e *ConfigError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("rules config %s (line %d): %v", e.Source, e.Row, e.Err)
	}
	return fmt.Sprintf("rules config %s: %v", e.Source, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func configErrorf(source string, row int, format string, args ...any) *ConfigError {
	return &ConfigError{Source: source, Row: row, Err: fmt.Errorf(format, args...)}
}
