package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrModelUnavailable is returned for every prediction while no model is loaded.
	ErrModelUnavailable = errors.New("model not loaded")

	// ErrStrategySkipped marks a strategy whose artifact is not configured.
	ErrStrategySkipped = errors.New("strategy skipped")
)

// ImageDecodeError reports upload bytes that are not a decodable image.
type ImageDecodeError struct {
	Err error
}

func (e *ImageDecodeError) Error() string {
	return fmt.Sprintf("cannot decode image: %v", e.Err)
}

func (e *ImageDecodeError) Unwrap() error { return e.Err }

// PreprocessingError reports a tensor with an unexpected shape or range.
type PreprocessingError struct {
	Reason string
}

func (e *PreprocessingError) Error() string {
	return "preprocessing failed: " + e.Reason
}

// InferenceError reports a failed forward pass or an unusable output.
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference failed: %v", e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// StrategyError is one failed load attempt.
type StrategyError struct {
	Strategy string
	Err      error
}

func (e StrategyError) Error() string {
	return e.Strategy + ": " + e.Err.Error()
}

func (e StrategyError) Unwrap() error { return e.Err }

// LoadFailure is returned when every load strategy failed or was skipped.
type LoadFailure struct {
	Attempts []StrategyError
}

func (e *LoadFailure) Error() string {
	if len(e.Attempts) == 0 {
		return "model load failed: no strategies configured"
	}
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = a.Error()
	}
	return "model load failed: " + strings.Join(parts, "; ")
}

func (e *LoadFailure) Unwrap() []error {
	errs := make([]error, len(e.Attempts))
	for i, a := range e.Attempts {
		errs[i] = a
	}
	return errs
}
