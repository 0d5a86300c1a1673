// Package errors provides structured error handling for watchset.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Watch errors (directories, OS subscriptions)
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryWatch indicates errors creating or running a file watch.
	CategoryWatch Category = "WATCH"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigInvalid  = "ERR_101_CONFIG_INVALID"
	ErrCodeConfigNotFound = "ERR_102_CONFIG_NOT_FOUND"

	// Watch errors (200-299)
	ErrCodeDirectoryMissing    = "ERR_201_DIRECTORY_MISSING"
	ErrCodeWatchCreationFailed = "ERR_202_WATCH_CREATION_FAILED"
	ErrCodeWatchRuntime        = "ERR_203_WATCH_RUNTIME"

	// Validation errors (400-499)
	ErrCodeInvalidPath = "ERR_401_INVALID_PATH"

	// Internal errors (500-599)
	ErrCodeInternal = "ERR_501_INTERNAL"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract numeric portion (e.g., "201" from "ERR_201_DIRECTORY_MISSING")
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryWatch
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
// Per-path watch failures never abort a batch, so they are warnings.
func severityFromCode(code string) Severity {
	switch categoryFromCode(code) {
	case CategoryWatch, CategoryValidation:
		return SeverityWarning
	default:
		return SeverityError
	}
}
