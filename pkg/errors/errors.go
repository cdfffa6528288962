package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeRender represents renderer failures (network, unreachable host, bad status)
	ErrorTypeRender ErrorType = "render"
	// ErrorTypeRenderTimeout represents a render that did not settle in time
	ErrorTypeRenderTimeout ErrorType = "render_timeout"
	// ErrorTypeParsing represents HTML parsing errors
	ErrorTypeParsing ErrorType = "parsing"
	// ErrorTypeStore represents store lookup or create failures
	ErrorTypeStore ErrorType = "store"
	// ErrorTypeCache represents seen-cache errors
	ErrorTypeCache ErrorType = "cache"
	// ErrorTypePublisher represents publisher-related errors
	ErrorTypePublisher ErrorType = "publisher"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// PipelineError is an error raised by one stage of an extraction run
type PipelineError struct {
	Type    ErrorType
	Source  string
	Message string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Source, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Source, e.Message)
}

// Unwrap returns the underlying error
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether running again may succeed.
// Infrastructure faults are retryable, data and configuration faults are not.
func (e *PipelineError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeRender, ErrorTypeRenderTimeout, ErrorTypeStore, ErrorTypeCache, ErrorTypePublisher:
		return true
	default:
		return false
	}
}

// New creates a new PipelineError
func New(errType ErrorType, source, message string, err error) *PipelineError {
	return &PipelineError{
		Type:    errType,
		Source:  source,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewRender creates a new render error
func NewRender(source, message string, err error) *PipelineError {
	return New(ErrorTypeRender, source, message, err)
}

// NewRenderTimeout creates a new render timeout error
func NewRenderTimeout(source string, timeout time.Duration, err error) *PipelineError {
	if timeout <= 0 {
		return New(ErrorTypeRenderTimeout, source, "render did not settle before the deadline", err)
	}
	return New(ErrorTypeRenderTimeout, source, fmt.Sprintf("render did not settle within %v", timeout), err)
}

// NewParsing creates a new parsing error
func NewParsing(source, message string, err error) *PipelineError {
	return New(ErrorTypeParsing, source, message, err)
}

// NewStore creates a new store error
func NewStore(source, message string, err error) *PipelineError {
	return New(ErrorTypeStore, source, message, err)
}

// NewCache creates a new cache error
func NewCache(source, message string, err error) *PipelineError {
	return New(ErrorTypeCache, source, message, err)
}

// NewPublisher creates a new publisher error
func NewPublisher(source, message string, err error) *PipelineError {
	return New(ErrorTypePublisher, source, message, err)
}

// NewValidation creates a new validation error
func NewValidation(source, message string) *PipelineError {
	return New(ErrorTypeValidation, source, message, nil)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *PipelineError {
	return New(ErrorTypeConfiguration, "", message, err)
}

// TypeOf returns the ErrorType of the first PipelineError in err's chain,
// or an empty ErrorType if there is none.
func TypeOf(err error) ErrorType {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Type
	}
	return ""
}

// IsRetryable reports whether err's chain holds a retryable PipelineError
func IsRetryable(err error) bool {
	var pe *PipelineError
	return errors.As(err, &pe) && pe.IsRetryable()
}

// IsType reports whether err's chain holds a PipelineError of the given type
func IsType(err error, errType ErrorType) bool {
	return TypeOf(err) == errType
}
