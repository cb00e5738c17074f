package errors

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatForUser returns a user-friendly error message.
// If debug is true, includes additional technical details.
func FormatForUser(err error, debug bool) string {
	if err == nil {
		return ""
	}

	be, ok := err.(*BrewError)
	if !ok {
		// Standard error - just return message
		return err.Error()
	}

	var sb strings.Builder

	sb.WriteString("Error: ")
	sb.WriteString(be.Message)
	sb.WriteString("\n")

	if be.Suggestion != "" {
		sb.WriteString("\nSuggestion: ")
		sb.WriteString(be.Suggestion)
		sb.WriteString("\n")
	}

	if debug && be.Cause != nil {
		sb.WriteString("\nCause: ")
		sb.WriteString(be.Cause.Error())
		sb.WriteString("\n")
	}

	sb.WriteString(fmt.Sprintf("\n[%s]", be.Code))

	return sb.String()
}

// FormatForCLI formats an error for CLI output.
// Uses a concise format suitable for terminal display.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	be, ok := err.(*BrewError)
	if !ok {
		// Wrap standard error
		be = Wrap(ErrCodeInternal, err)
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Error: %s\n", be.Message))

	if be.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("  Hint: %s\n", be.Suggestion))
	}

	sb.WriteString(fmt.Sprintf("  Code: %s\n", be.Code))

	return sb.String()
}

// jsonError is the JSON representation of an error.
type jsonError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Category   string            `json:"category"`
	Severity   string            `json:"severity"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Cause      string            `json:"cause,omitempty"`
	Retryable  bool              `json:"retryable"`
}

// FormatJSON returns a JSON representation of the error.
// Suitable for machine consumption and structured logging.
func FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}

	be, ok := err.(*BrewError)
	if !ok {
		be = Wrap(ErrCodeInternal, err)
	}

	je := jsonError{
		Code:       be.Code,
		Message:    be.Message,
		Category:   string(be.Category),
		Severity:   string(be.Severity),
		Details:    be.Details,
		Suggestion: be.Suggestion,
		Retryable:  be.Retryable,
	}

	if be.Cause != nil {
		je.Cause = be.Cause.Error()
	}

	return json.Marshal(je)
}

// FormatForLog formats an error for structured logging.
// Returns key-value pairs suitable for slog attributes.
func FormatForLog(err error) map[string]any {
	if err == nil {
		return nil
	}

	be, ok := err.(*BrewError)
	if !ok {
		return map[string]any{
			"error": err.Error(),
		}
	}

	result := map[string]any{
		"error_code": be.Code,
		"message":    be.Message,
		"category":   string(be.Category),
		"severity":   string(be.Severity),
		"retryable":  be.Retryable,
	}

	if be.Cause != nil {
		result["cause"] = be.Cause.Error()
	}

	if be.Suggestion != "" {
		result["suggestion"] = be.Suggestion
	}

	for k, v := range be.Details {
		result["detail_"+k] = v
	}

	return result
}
