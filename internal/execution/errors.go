package execution

import (
	"errors"
	"fmt"
)

// ErrEmptyResponse is returned when the provider answered without any text.
var ErrEmptyResponse = errors.New("provider returned an empty response")

// GenerationError wraps a failed generation call with the provider that failed.
type GenerationError struct {
	Provider string
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s generation failed: %v", e.Provider, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

func newGenerationError(provider string, err error) error {
	return &GenerationError{Provider: provider, Err: err}
}
