package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline errors for the propagation policy:
// only configuration errors abort a run, everything else degrades to
// partial output plus the failure manifest.
type ErrorKind string

const (
	ErrorKindConfiguration ErrorKind = "configuration"
	ErrorKindExtraction    ErrorKind = "extraction"
	ErrorKindTransport     ErrorKind = "transport"
	ErrorKindTimeout       ErrorKind = "timeout"
	ErrorKindFormat        ErrorKind = "format"
	ErrorKindAggregation   ErrorKind = "aggregation"
)

// PipelineError is an error with a pipeline-level classification.
type PipelineError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewError creates a classified pipeline error.
func NewError(kind ErrorKind, message string, err error) *PipelineError {
	return &PipelineError{Kind: kind, Message: message, Err: err}
}

func ConfigurationError(message string, err error) *PipelineError {
	return NewError(ErrorKindConfiguration, message, err)
}

func ExtractionError(message string, err error) *PipelineError {
	return NewError(ErrorKindExtraction, message, err)
}

func TransportError(message string, err error) *PipelineError {
	return NewError(ErrorKindTransport, message, err)
}

func TimeoutError(message string, err error) *PipelineError {
	return NewError(ErrorKindTimeout, message, err)
}

func FormatError(message string, err error) *PipelineError {
	return NewError(ErrorKindFormat, message, err)
}

func AggregationError(message string, err error) *PipelineError {
	return NewError(ErrorKindAggregation, message, err)
}

// KindOf returns the classification of err, or an empty kind when err
// carries no PipelineError in its chain.
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
