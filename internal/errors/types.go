// Package errors defines the typed failures of the template compiler.
//
// Every failure of a single page compile is an *Error carrying a category
// (Type), a stable machine code (Code), the page being compiled and, where
// known, the source line. Sentinels such as ErrBlockRecursion match any
// *Error of the same type and code through errors.Is, so callers can branch
// on the kind of failure without string matching.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeSource   ErrorType = "source"
	ErrorTypeSyntax   ErrorType = "syntax"
	ErrorTypeRegistry ErrorType = "registry"
	ErrorTypeIO       ErrorType = "io"
	ErrorTypeConfig   ErrorType = "config"
	ErrorTypeRender   ErrorType = "render"
	ErrorTypeInternal ErrorType = "internal"
)

// Error codes.
const (
	ErrCodeTemplateNotFound  = "TEMPLATE_NOT_FOUND"
	ErrCodeFragmentNotFound  = "TEMPLATE_RESOLVE_ERROR"
	ErrCodeBlockRecursion    = "BLOCK_RECURSION_ERROR"
	ErrCodeTokenArgument     = "TOKEN_ARGUMENT_ERROR"
	ErrCodeUnbalancedBlock   = "UNBALANCED_BLOCK_ERROR"
	ErrCodeUnclosedBlock     = "UNCLOSED_BLOCK_ERROR"
	ErrCodeUnregisteredToken = "UNREGISTERED_TOKEN_ERROR"
	ErrCodeUnknownGenerator  = "UNKNOWN_GENERATOR_ERROR"
	ErrCodeRegistryFrozen    = "REGISTRY_FROZEN"
	ErrCodeGeneratedCode     = "GENERATED_CODE_ERROR"
	ErrCodeCacheIO           = "CACHE_IO_ERROR"
	ErrCodeSourceIO          = "SOURCE_IO_ERROR"
	ErrCodeRenderFailed      = "RENDER_FAILED"
	ErrCodeConfigInvalid     = "CONFIG_INVALID"
	ErrCodeInternalError     = "INTERNAL_ERROR"
)

// Error is a structured compiler error with context.
type Error struct {
	Type    ErrorType
	Code    string
	Message string
	Cause   error
	Context map[string]interface{}
	Page    string
	Line    int
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Page != "" {
		location := e.Page
		if e.Line > 0 {
			location += fmt.Sprintf(":%d", e.Line)
		}
		parts = append(parts, location)
	}

	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithLocation sets the page and line the error was raised at.
func (e *Error) WithLocation(page string, line int) *Error {
	e.Page = page
	e.Line = line

	return e
}

// WithPage sets the page without touching the line.
func (e *Error) WithPage(page string) *Error {
	e.Page = page

	return e
}

// Sentinels for errors.Is.
var (
	ErrTemplateNotFound  = &Error{Type: ErrorTypeSource, Code: ErrCodeTemplateNotFound}
	ErrFragmentNotFound  = &Error{Type: ErrorTypeSource, Code: ErrCodeFragmentNotFound}
	ErrBlockRecursion    = &Error{Type: ErrorTypeSource, Code: ErrCodeBlockRecursion}
	ErrTokenArgument     = &Error{Type: ErrorTypeSyntax, Code: ErrCodeTokenArgument}
	ErrUnbalancedBlock   = &Error{Type: ErrorTypeSyntax, Code: ErrCodeUnbalancedBlock}
	ErrUnclosedBlock     = &Error{Type: ErrorTypeSyntax, Code: ErrCodeUnclosedBlock}
	ErrUnregisteredToken = &Error{Type: ErrorTypeRegistry, Code: ErrCodeUnregisteredToken}
	ErrUnknownGenerator  = &Error{Type: ErrorTypeRegistry, Code: ErrCodeUnknownGenerator}
	ErrRegistryFrozen    = &Error{Type: ErrorTypeRegistry, Code: ErrCodeRegistryFrozen}
	ErrGeneratedCode     = &Error{Type: ErrorTypeSyntax, Code: ErrCodeGeneratedCode}
)

// TemplateNotFound reports a page whose source does not exist.
func TemplateNotFound(page string, cause error) *Error {
	return &Error{
		Type:    ErrorTypeSource,
		Code:    ErrCodeTemplateNotFound,
		Message: "cannot find template " + page,
		Cause:   cause,
		Page:    page,
	}
}

// FragmentNotFound reports a block directive naming a missing fragment.
func FragmentNotFound(name string) *Error {
	return &Error{
		Type:    ErrorTypeSource,
		Code:    ErrCodeFragmentNotFound,
		Message: fmt.Sprintf("fragment %q does not exist", name),
	}
}

// BlockRecursion reports a fragment that is already on the inclusion chain.
func BlockRecursion(name string, chain []string) *Error {
	includer := "page"
	if len(chain) > 0 {
		includer = chain[len(chain)-1]
	}

	return (&Error{
		Type:    ErrorTypeSource,
		Code:    ErrCodeBlockRecursion,
		Message: fmt.Sprintf("fragment %q in %q was already included", name, includer),
	}).WithContext("chain", append(append([]string{}, chain...), name))
}

// TokenArgument reports a tag whose arguments have the wrong shape.
func TokenArgument(tag, message string) *Error {
	return &Error{
		Type:    ErrorTypeSyntax,
		Code:    ErrCodeTokenArgument,
		Message: fmt.Sprintf("%s: %s", tag, message),
	}
}

// UnbalancedBlock reports an end tag with no open block to close.
func UnbalancedBlock(tag string) *Error {
	return &Error{
		Type:    ErrorTypeSyntax,
		Code:    ErrCodeUnbalancedBlock,
		Message: fmt.Sprintf("{{end %s}} has no open block", tag),
	}
}

// UnclosedBlock reports a block still open at the end of the page.
func UnclosedBlock(tag string) *Error {
	return &Error{
		Type:    ErrorTypeSyntax,
		Code:    ErrCodeUnclosedBlock,
		Message: fmt.Sprintf("{{%s}} is never closed", tag),
	}
}

// UnregisteredToken reports a tag type with no generator.
func UnregisteredToken(name string) *Error {
	return &Error{
		Type:    ErrorTypeRegistry,
		Code:    ErrCodeUnregisteredToken,
		Message: fmt.Sprintf("no generator registered for %q", name),
	}
}

// UnknownGenerator reports an alias registered before its target.
func UnknownGenerator(original, alias string) *Error {
	return &Error{
		Type:    ErrorTypeRegistry,
		Code:    ErrCodeUnknownGenerator,
		Message: fmt.Sprintf("cannot alias %q to unknown generator %q", alias, original),
	}
}

// RegistryFrozen reports a registration attempted after compilation began.
func RegistryFrozen(name string) *Error {
	return &Error{
		Type:    ErrorTypeRegistry,
		Code:    ErrCodeRegistryFrozen,
		Message: fmt.Sprintf("cannot register %q: registry is frozen", name),
	}
}

// GeneratedCode reports generated output the template runtime cannot parse,
// usually an if condition that is not a valid pipeline.
func GeneratedCode(cause error) *Error {
	return &Error{
		Type:    ErrorTypeSyntax,
		Code:    ErrCodeGeneratedCode,
		Message: "generated template does not parse",
		Cause:   cause,
	}
}

// IsNotFound reports whether err is a missing page.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTemplateNotFound)
}

// IsSyntaxError reports whether err stems from malformed tags.
func IsSyntaxError(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == ErrorTypeSyntax
	}

	return false
}

// ErrorHandler provides centralized error handling.
type ErrorHandler struct {
	logger Logger
}

// Logger interface for error logging.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle logs err at a level matching its category.
func (h *ErrorHandler) Handle(ctx context.Context, err error) {
	if err == nil || h.logger == nil {
		return
	}

	var e *Error
	if !errors.As(err, &e) {
		h.logger.Error(ctx, err, "Unhandled error occurred")
		return
	}

	switch e.Type {
	case ErrorTypeSource:
		h.logger.Warn(ctx, err, "Template source error",
			"code", e.Code,
			"page", e.Page)
	case ErrorTypeSyntax, ErrorTypeRegistry:
		h.logger.Warn(ctx, err, "Template compile error",
			"code", e.Code,
			"page", e.Page,
			"line", e.Line)
	default:
		h.logger.Error(ctx, err, "Error occurred",
			"type", e.Type,
			"code", e.Code,
			"page", e.Page)
	}
}
