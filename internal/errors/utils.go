package errors

import (
	"errors"
)

// Wrap wraps an error with additional context, creating an *Error if the input is not already one
func Wrap(err error, errType ErrorType, code, message string) *Error {
	if err == nil {
		return nil
	}

	// Keep location and context from an existing *Error
	var e *Error
	if errors.As(err, &e) {
		return &Error{
			Type:    errType,
			Code:    code,
			Message: message,
			Cause:   e,
			Context: e.Context,
			Page:    e.Page,
			Line:    e.Line,
		}
	}

	return &Error{
		Type:    errType,
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// WrapIO wraps a storage failure.
func WrapIO(err error, code, message string) *Error {
	return Wrap(err, ErrorTypeIO, code, message)
}

// WrapConfig wraps a configuration failure.
func WrapConfig(err error, message string) *Error {
	return Wrap(err, ErrorTypeConfig, ErrCodeConfigInvalid, message)
}

// WrapRender wraps a failure of the template runtime.
func WrapRender(err error, page string) *Error {
	e := Wrap(err, ErrorTypeRender, ErrCodeRenderFailed, "rendering failed")
	if e != nil {
		e.Page = page
	}
	return e
}

// Locate attaches page and line to err when it is an *Error without a location.
func Locate(err error, page string, line int) error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		if e.Page == "" {
			e.Page = page
		}
		if e.Line == 0 {
			e.Line = line
		}
		return err
	}

	return &Error{
		Type:    ErrorTypeInternal,
		Code:    ErrCodeInternalError,
		Message: err.Error(),
		Cause:   err,
		Page:    page,
		Line:    line,
	}
}

// Code returns the code of err, or the empty string for foreign errors.
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
