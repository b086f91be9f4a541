package searcher

import (
	"fmt"
	"strings"

	"github.com/determined-ai/hyperband/pkg/model"
)

// ConfigurationError reports invalid search parameters or search inputs. It is raised before
// any training happens and is never recoverable.
type ConfigurationError struct {
	Errs []error
}

func newConfigurationError(errs ...error) *ConfigurationError {
	return &ConfigurationError{Errs: errs}
}

func (e *ConfigurationError) Error() string {
	msgs := make([]string, 0, len(e.Errs))
	for _, err := range e.Errs {
		msgs = append(msgs, err.Error())
	}
	return "invalid hyperband configuration: " + strings.Join(msgs, "; ")
}

// InsufficientResultsError reports that fewer results were available than successive halving
// needs, which means the trainer broke its contract.
type InsufficientResultsError struct {
	Bracket int
	Want    int
	Got     int
	// Missing lists keys that were submitted but have no result, when known.
	Missing []model.MSTKey
	// Cause holds the individual contract violations, when known.
	Cause error
}

func (e *InsufficientResultsError) Error() string {
	msg := fmt.Sprintf("insufficient results for bracket %d: want %d, got %d",
		e.Bracket, e.Want, e.Got)
	if e.Bracket < 0 {
		msg = fmt.Sprintf("insufficient results: want %d, got %d", e.Want, e.Got)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *InsufficientResultsError) Unwrap() error {
	return e.Cause
}

// ExternalExecutionError reports that the trainer call itself failed. Unwrap returns the
// trainer's error unchanged.
type ExternalExecutionError struct {
	Iteration int
	Err       error
}

func (e *ExternalExecutionError) Error() string {
	return fmt.Sprintf("trainer failed at iteration %d: %s", e.Iteration, e.Err)
}

func (e *ExternalExecutionError) Unwrap() error {
	return e.Err
}

// Cause lets github.com/pkg/errors.Cause see through the wrapper.
func (e *ExternalExecutionError) Cause() error {
	return e.Err
}
