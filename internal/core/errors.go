package core

import (
	"errors"
	"fmt"
)

// Error codes attached to every pipeline error.
const (
	CodeUnknown          = "UNKNOWN"
	CodeValidation       = "VALIDATION"
	CodeUnsupportedInput = "UNSUPPORTED_INPUT"
	CodeTemplateRender   = "TEMPLATE_RENDER"
	CodeExternal         = "EXTERNAL_CLASSIFIER"
	CodePersistence      = "PERSISTENCE"
	CodeCatalog          = "CATALOG_CONFIGURATION"
)

var (
	// ErrMissingVariable is matched by every MissingVariableError.
	ErrMissingVariable = errors.New("missing template variable")
	// ErrCacheMiss is wrapped by cache adapters when a fingerprint has no live entry.
	ErrCacheMiss = errors.New("cache miss")
)

// ApplicationError is implemented by every typed pipeline error.
type ApplicationError interface {
	error
	Code() string
	Unwrap() error
}

type baseError struct {
	code    string
	message string
	err     error
}

func (e *baseError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.message, e.err)
	}
	return e.message
}

func (e *baseError) Code() string {
	return e.code
}

func (e *baseError) Unwrap() error {
	return e.err
}

// Code returns the code of the first ApplicationError in err's chain,
// or CodeUnknown if there is none.
func Code(err error) string {
	var appErr ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Code()
	}
	return CodeUnknown
}

// ValidationError reports empty or oversized input.
type ValidationError struct{ baseError }

func NewValidationError(message string, cause error) error {
	return &ValidationError{baseError{code: CodeValidation, message: message, err: cause}}
}

// UnsupportedInputError reports raw content that could not be parsed.
type UnsupportedInputError struct{ baseError }

func NewUnsupportedInputError(message string, cause error) error {
	return &UnsupportedInputError{baseError{code: CodeUnsupportedInput, message: message, err: cause}}
}

// TemplateRenderError reports a reply template that could not be rendered.
type TemplateRenderError struct{ baseError }

func NewTemplateRenderError(message string, cause error) error {
	return &TemplateRenderError{baseError{code: CodeTemplateRender, message: message, err: cause}}
}

// ExternalClassifierError reports a failed or timed out escalation call.
// The pipeline always absorbs it.
type ExternalClassifierError struct{ baseError }

func NewExternalClassifierError(message string, cause error) error {
	return &ExternalClassifierError{baseError{code: CodeExternal, message: message, err: cause}}
}

// PersistenceError reports a failed save or lookup in the result repository.
type PersistenceError struct{ baseError }

func NewPersistenceError(message string, cause error) error {
	return &PersistenceError{baseError{code: CodePersistence, message: message, err: cause}}
}

// CatalogConfigurationError reports a malformed rule or template at startup.
type CatalogConfigurationError struct{ baseError }

func NewCatalogConfigurationError(message string, cause error) error {
	return &CatalogConfigurationError{baseError{code: CodeCatalog, message: message, err: cause}}
}

// MissingVariableError names the template variable left unresolved.
type MissingVariableError struct {
	TemplateID string
	Variable   string
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("template %q: variable %q is not resolved", e.TemplateID, e.Variable)
}

func (e *MissingVariableError) Is(target error) bool {
	return target == ErrMissingVariable
}

// StageError wraps the cause of a FAILED run with the stage it failed in.
type StageError struct {
	Stage     Stage
	InputSize int
	Err       error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("triage failed after stage %s (input %d bytes): %v", e.Stage, e.InputSize, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
