package domain

import (
	"fmt"
	"net/http"
)

// Kind classifies a binding error. Every kind is terminal for the request.
type Kind int

const (
	KindInvalidImage Kind = iota + 1
	KindInvalidTransforms
	KindUnsupportedInput
	KindUnsupportedOutput
	KindInternalInconsistency
	KindEngineFailure
	KindOutputTooLarge
)

const (
	CodeBadRequest  = 9523
	CodeUnsupported = 9520
)

func (k Kind) String() string {
	switch k {
	case KindInvalidImage:
		return "invalid_image"
	case KindInvalidTransforms:
		return "invalid_transforms"
	case KindUnsupportedInput:
		return "unsupported_input"
	case KindUnsupportedOutput:
		return "unsupported_output"
	case KindInternalInconsistency:
		return "internal_inconsistency"
	case KindEngineFailure:
		return "engine_failure"
	case KindOutputTooLarge:
		return "output_too_large"
	default:
		return "unknown"
	}
}

// Error is the (status, code, message) triple rendered to the caller.
type Error struct {
	Kind    Kind
	Status  int
	Code    int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ClientCaused reports whether the request itself was at fault.
func (e *Error) ClientCaused() bool {
	return e.Status < http.StatusInternalServerError
}

func InvalidImage(cause error) *Error {
	return &Error{
		Kind:    KindInvalidImage,
		Status:  http.StatusBadRequest,
		Code:    CodeBadRequest,
		Message: "ERROR: Expected image in request",
		Err:     cause,
	}
}

func InvalidTransforms(cause error) *Error {
	return &Error{
		Kind:    KindInvalidTransforms,
		Status:  http.StatusBadRequest,
		Code:    CodeBadRequest,
		Message: "ERROR: Expected JSON transforms in transforms field",
		Err:     cause,
	}
}

func UnsupportedInput(cause error) *Error {
	return &Error{
		Kind:    KindUnsupportedInput,
		Status:  http.StatusUnsupportedMediaType,
		Code:    CodeUnsupported,
		Message: "ERROR: Unsupported image type",
		Err:     cause,
	}
}

func UnsupportedOutput(message string, cause error) *Error {
	return &Error{
		Kind:    KindUnsupportedOutput,
		Status:  http.StatusUnsupportedMediaType,
		Code:    CodeUnsupported,
		Message: message,
		Err:     cause,
	}
}

func InternalInconsistency(cause error) *Error {
	return &Error{
		Kind:    KindInternalInconsistency,
		Status:  http.StatusInternalServerError,
		Code:    CodeBadRequest,
		Message: "ERROR: Expected size, width and height for bitmap input",
		Err:     cause,
	}
}

func EngineFailure(cause error) *Error {
	return &Error{
		Kind:    KindEngineFailure,
		Status:  http.StatusInternalServerError,
		Code:    CodeBadRequest,
		Message: "ERROR: Failed to process image",
		Err:     cause,
	}
}

// OutputTooLarge rejects transforms whose source or intermediate images would
// exceed the configured pixel budget.
func OutputTooLarge(cause error) *Error {
	return &Error{
		Kind:    KindOutputTooLarge,
		Status:  http.StatusBadRequest,
		Code:    CodeBadRequest,
		Message: "ERROR: Requested output exceeds the maximum image size",
		Err:     cause,
	}
}
