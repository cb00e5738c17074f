package errors

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatForUser_BasicError(t *testing.T) {
	err := New(ErrCodeConfigNotFound, "config file 'brewindex.yaml' not found", nil)

	result := FormatForUser(err, false)

	assert.Contains(t, result, "config file 'brewindex.yaml' not found")
	assert.Contains(t, result, ErrCodeConfigNotFound)
}

func TestFormatForUser_WithSuggestion(t *testing.T) {
	err := New(ErrCodeStoreUnavailable, "connection refused", nil).
		WithSuggestion("Check that Qdrant is running on the configured port")

	result := FormatForUser(err, false)

	assert.Contains(t, result, "Suggestion:")
	assert.Contains(t, result, "Check that Qdrant is running")
}

func TestFormatForUser_DebugIncludesCause(t *testing.T) {
	cause := errors.New("dial tcp 127.0.0.1:6333: connect: connection refused")
	err := New(ErrCodeStoreUnavailable, "store unreachable", cause)

	plain := FormatForUser(err, false)
	debug := FormatForUser(err, true)

	assert.NotContains(t, plain, "dial tcp")
	assert.Contains(t, debug, "dial tcp")
}

func TestFormatForUser_PlainError(t *testing.T) {
	err := errors.New("something broke")
	assert.Equal(t, "something broke", FormatForUser(err, false))
}

func TestFormatForUser_Nil(t *testing.T) {
	assert.Equal(t, "", FormatForUser(nil, false))
}

func TestFormatForCLI(t *testing.T) {
	err := New(ErrCodeLeaseHeld, "another reconcile run holds the lease", nil).
		WithSuggestion("Wait for the other run to finish or remove a stale lease file")

	result := FormatForCLI(err)

	assert.Contains(t, result, "Error: another reconcile run holds the lease")
	assert.Contains(t, result, "Hint: Wait for the other run")
	assert.Contains(t, result, "Code: "+ErrCodeLeaseHeld)
}

func TestFormatForCLI_WrapsPlainError(t *testing.T) {
	result := FormatForCLI(errors.New("boom"))

	assert.Contains(t, result, "Error: boom")
	assert.Contains(t, result, ErrCodeInternal)
}

func TestFormatJSON(t *testing.T) {
	err := New(ErrCodeStoreTimeout, "scroll timed out", errors.New("context deadline exceeded")).
		WithDetail("collection", "brewmaster_knowledge")

	data, jerr := FormatJSON(err)
	require.NoError(t, jerr)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(data, &parsed))

	assert.Equal(t, ErrCodeStoreTimeout, parsed["code"])
	assert.Equal(t, "scroll timed out", parsed["message"])
	assert.Equal(t, string(CategoryStore), parsed["category"])
	assert.Equal(t, true, parsed["retryable"])
	assert.Equal(t, "context deadline exceeded", parsed["cause"])

	details, ok := parsed["details"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "brewmaster_knowledge", details["collection"])
}

func TestFormatForLog(t *testing.T) {
	err := New(ErrCodeChunkingFailed, "chunking failed", errors.New("boom")).
		WithDetail("source", "ipa-recipe.txt")

	attrs := FormatForLog(err)

	assert.Equal(t, ErrCodeChunkingFailed, attrs["error_code"])
	assert.Equal(t, "chunking failed", attrs["message"])
	assert.Equal(t, string(CategoryProcessing), attrs["category"])
	assert.Equal(t, "boom", attrs["cause"])
	assert.Equal(t, "ipa-recipe.txt", attrs["detail_source"])
}

func TestFormatForLog_PlainError(t *testing.T) {
	attrs := FormatForLog(errors.New("plain"))
	assert.Equal(t, "plain", attrs["error"])
}

func TestFormatForLog_Nil(t *testing.T) {
	assert.Nil(t, FormatForLog(nil))
}
