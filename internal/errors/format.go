package errors

import (
	"fmt"
	"strings"
)

// FormatForCLI formats an error for CLI output.
// Uses a concise format suitable for terminal display.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	we, ok := err.(*WatchError)
	if !ok {
		// Wrap standard error
		we = Wrap(ErrCodeInternal, err)
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%s: %s\n", strings.ToLower(string(we.Severity)), we.Message))

	if we.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("  Hint: %s\n", we.Suggestion))
	}

	sb.WriteString(fmt.Sprintf("  Code: %s\n", we.Code))

	return sb.String()
}

// FormatForLog formats an error for structured logging.
// Returns key-value pairs suitable for slog attributes.
func FormatForLog(err error) []any {
	if err == nil {
		return nil
	}

	we, ok := err.(*WatchError)
	if !ok {
		return []any{"error", err.Error()}
	}

	attrs := []any{
		"error_code", we.Code,
		"message", we.Message,
		"category", string(we.Category),
		"severity", string(we.Severity),
	}
	if we.Path != "" {
		attrs = append(attrs, "path", we.Path)
	}
	if we.Cause != nil {
		attrs = append(attrs, "cause", we.Cause.Error())
	}
	return attrs
}
