// Package errors defines the error taxonomy used by folio.
//
// Configuration errors are fatal to the process. Hook and markdown errors are
// fatal to the current init, build or reload pass only: the dev server keeps
// running and reports them to the browser. Files that no plugin claims are
// not errors at all; they are logged and dropped.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeConfig   ErrorType = "config"
	ErrorTypeHook     ErrorType = "hook"
	ErrorTypeMarkdown ErrorType = "markdown"
	ErrorTypeIO       ErrorType = "io"
	ErrorTypeState    ErrorType = "state"
	ErrorTypeInternal ErrorType = "internal"
)

// Common error codes.
const (
	ErrCodeConfigInvalid   = "ERR_CONFIG_INVALID"
	ErrCodeUnknownPlugin   = "ERR_UNKNOWN_PLUGIN"
	ErrCodeInvalidBaseURL  = "ERR_INVALID_BASE_URL"
	ErrCodeInvalidPagePath = "ERR_INVALID_PAGE_PATH"
	ErrCodeHookFailed      = "ERR_HOOK_FAILED"
	ErrCodeFrontmatter     = "ERR_FRONTMATTER"
	ErrCodeRender          = "ERR_RENDER"
	ErrCodeFileNotFound    = "ERR_FILE_NOT_FOUND"
	ErrCodeWriteFailed     = "ERR_WRITE_FAILED"
	ErrCodeClosed          = "ERR_APP_CLOSED"
	ErrCodeInvalidState    = "ERR_INVALID_STATE"
)

// FolioError is a structured error type with context.
type FolioError struct {
	Type     ErrorType
	Code     string
	Message  string
	Cause    error
	Plugin   string
	Hook     string
	FilePath string
}

// Error implements the error interface.
func (e *FolioError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Plugin != "" {
		parts = append(parts, "plugin:"+e.Plugin)
	}

	if e.Hook != "" {
		parts = append(parts, "hook:"+e.Hook)
	}

	if e.FilePath != "" {
		parts = append(parts, e.FilePath)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *FolioError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison on type and code.
func (e *FolioError) Is(target error) bool {
	var t *FolioError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithFile adds file location information.
func (e *FolioError) WithFile(filePath string) *FolioError {
	e.FilePath = filePath

	return e
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *FolioError {
	return &FolioError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
	}
}

// NewHookError records which plugin hook failed.
func NewHookError(plugin, hook string, cause error) *FolioError {
	return &FolioError{
		Type:    ErrorTypeHook,
		Code:    ErrCodeHookFailed,
		Message: "plugin hook failed",
		Cause:   cause,
		Plugin:  plugin,
		Hook:    hook,
	}
}

// NewMarkdownError creates an error for bad markdown or frontmatter input.
func NewMarkdownError(code, filePath string, cause error) *FolioError {
	return &FolioError{
		Type:     ErrorTypeMarkdown,
		Code:     code,
		Message:  "failed to process markdown",
		Cause:    cause,
		FilePath: filePath,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *FolioError {
	return &FolioError{
		Type:    ErrorTypeIO,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewStateError reports an operation invoked in the wrong lifecycle state.
func NewStateError(code, message string) *FolioError {
	return &FolioError{
		Type:    ErrorTypeState,
		Code:    code,
		Message: message,
	}
}

// ErrClosed is returned by every App operation after Close.
var ErrClosed = NewStateError(ErrCodeClosed, "app is closed")

// IsFatal reports whether err should terminate the process rather than just
// the current pass.
func IsFatal(err error) bool {
	var fe *FolioError
	if errors.As(err, &fe) {
		return fe.Type == ErrorTypeConfig || fe.Type == ErrorTypeInternal
	}

	return false
}

// IsHookError checks if an error came from a plugin hook.
func IsHookError(err error) bool {
	var fe *FolioError
	if errors.As(err, &fe) {
		return fe.Type == ErrorTypeHook
	}

	return false
}

// FormatError formats an error for user display
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	return err.Error()
}
