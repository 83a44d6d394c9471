package instrument

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration matches every *ConfigurationError via errors.Is.
	ErrConfiguration = errors.New("instrument configuration error")
	// ErrNotFound is returned for unknown questions, fields and instruments.
	ErrNotFound = errors.New("not found")
)

// ConfigurationError lists every problem found in a malformed definition.
type ConfigurationError struct {
	Instrument string
	Problems   []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("instrument %q: invalid definition: %s", e.Instrument, strings.Join(e.Problems, "; "))
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}
