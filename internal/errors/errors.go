package errors

import (
	stderrors "errors"
	"fmt"
)

// WatchError is the structured error type for watchset.
// It carries enough context to log a diagnostic or show it to a user.
type WatchError struct {
	// Code is the unique error code (e.g., "ERR_201_DIRECTORY_MISSING").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Watch, Validation, Internal).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Path is the watched file path the error refers to, if any.
	Path string

	// Cause is the underlying error that caused this error.
	Cause error

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *WatchError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *WatchError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with WatchError.
func (e *WatchError) Is(target error) bool {
	if t, ok := target.(*WatchError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithPath records the path the error refers to.
// Returns the error for method chaining.
func (e *WatchError) WithPath(path string) *WatchError {
	e.Path = path
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *WatchError) WithSuggestion(suggestion string) *WatchError {
	e.Suggestion = suggestion
	return e
}

// New creates a new WatchError with the given code and message.
// Category and severity are derived from the code.
func New(code string, message string, cause error) *WatchError {
	return &WatchError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: severityFromCode(code),
		Cause:    cause,
	}
}

// Wrap creates a WatchError from an existing error.
// The error's message becomes the WatchError message.
func Wrap(code string, err error) *WatchError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// Sentinels for errors.Is comparisons by code.
var (
	ErrDirectoryMissing    = &WatchError{Code: ErrCodeDirectoryMissing}
	ErrWatchCreationFailed = &WatchError{Code: ErrCodeWatchCreationFailed}
	ErrWatchRuntime        = &WatchError{Code: ErrCodeWatchRuntime}
	ErrInvalidPath         = &WatchError{Code: ErrCodeInvalidPath}
	ErrConfigInvalid       = &WatchError{Code: ErrCodeConfigInvalid}
)

// DirectoryMissing reports that a path's containing directory does not exist.
func DirectoryMissing(path, dir string, cause error) *WatchError {
	return New(ErrCodeDirectoryMissing,
		fmt.Sprintf("directory %s of %s does not exist", dir, path), cause).
		WithPath(path).
		WithSuggestion("create the directory or remove the file from the inventory")
}

// WatchCreationFailed reports that the OS refused a watch subscription.
func WatchCreationFailed(path string, cause error) *WatchError {
	return New(ErrCodeWatchCreationFailed,
		fmt.Sprintf("cannot watch %s: %v", path, cause), cause).
		WithPath(path).
		WithSuggestion("check permissions and the inotify limits (fs.inotify.max_user_instances)")
}

// InvalidPath reports a malformed path entry.
func InvalidPath(path, reason string) *WatchError {
	return New(ErrCodeInvalidPath,
		fmt.Sprintf("invalid path %q: %s", path, reason), nil).
		WithPath(path)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *WatchError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *WatchError {
	return New(ErrCodeInternal, message, cause)
}

// GetCode extracts the error code from a WatchError anywhere in the chain.
// Returns empty string if there is none.
func GetCode(err error) string {
	var we *WatchError
	if stderrors.As(err, &we) {
		return we.Code
	}
	return ""
}

// GetCategory extracts the category from a WatchError.
// Returns empty string if not a WatchError.
func GetCategory(err error) Category {
	var we *WatchError
	if stderrors.As(err, &we) {
		return we.Category
	}
	return ""
}

// Diagnostics is the non-fatal result of reconfiguring a watch set:
// one entry per path that could not be watched.
type Diagnostics []*WatchError

// Err joins all diagnostics into a single error, or nil when empty.
func (d Diagnostics) Err() error {
	if len(d) == 0 {
		return nil
	}
	errs := make([]error, len(d))
	for i, e := range d {
		errs[i] = e
	}
	return stderrors.Join(errs...)
}

// ByCode returns the diagnostics with the given code.
func (d Diagnostics) ByCode(code string) Diagnostics {
	var out Diagnostics
	for _, e := range d {
		if e.Code == code {
			out = append(out, e)
		}
	}
	return out
}
