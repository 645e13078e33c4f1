// Package errors provides error wrapping utilities for consistent error
// handling across the pipeline.
package errors

import "fmt"

// Wrap wraps an error with a descriptive action and optional detail.
// It returns a formatted error in the form "failed to <action> [(<detail>)]: <error>".
//
// Example usage:
//
//	if err := pushImage(ref); err != nil {
//	    return errors.Wrap("push image", ref, err)
//	}
func Wrap(action, detail string, err error) error {
	if err == nil {
		return nil
	}

	if detail != "" {
		return fmt.Errorf("failed to %s (%s): %w", action, detail, err)
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}

// StageError annotates an error with the pipeline stage that produced it, so
// a failure deep in the pipeline is always reported with the stage name.
type StageError struct {
	Stage string
	Err   error
}

// Error returns the stage-prefixed error message.
func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error { return e.Err }

// AtStage wraps err with the name of the pipeline stage that produced it.
// Returns nil if err is nil.
func AtStage(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}
