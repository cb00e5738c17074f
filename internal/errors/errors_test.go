package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrewError_Unwrap_PreservesOriginalError(t *testing.T) {
	originalErr := errors.New("original error")

	brewErr := New(ErrCodeFileRead, "cannot read transcript.txt", originalErr)

	require.NotNil(t, brewErr)
	assert.Equal(t, originalErr, errors.Unwrap(brewErr))
	assert.True(t, errors.Is(brewErr, originalErr))
}

func TestBrewError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{
			name:     "config error",
			code:     ErrCodeConfigNotFound,
			message:  "config file not found",
			expected: "[ERR_101_CONFIG_NOT_FOUND] config file not found",
		},
		{
			name:     "validation error",
			code:     ErrCodeTextTooShort,
			message:  "text below minimum length",
			expected: "[ERR_202_TEXT_TOO_SHORT] text below minimum length",
		},
		{
			name:     "store error",
			code:     ErrCodeStoreTimeout,
			message:  "scroll request timed out",
			expected: "[ERR_301_STORE_TIMEOUT] scroll request timed out",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, nil)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestBrewError_Is_MatchesByCode(t *testing.T) {
	err1 := New(ErrCodeFileRead, "file A unreadable", nil)
	err2 := New(ErrCodeFileRead, "file B unreadable", nil)

	assert.True(t, errors.Is(err1, err2))
}

func TestBrewError_Is_DoesNotMatchDifferentCodes(t *testing.T) {
	err1 := New(ErrCodeFileRead, "file unreadable", nil)
	err2 := New(ErrCodeConfigNotFound, "config not found", nil)

	assert.False(t, errors.Is(err1, err2))
}

func TestBrewError_WithDetails_AddsContext(t *testing.T) {
	err := New(ErrCodeFileRead, "file unreadable", nil)

	err = err.WithDetail("path", "/data/transcripts/ipa.txt")
	err = err.WithDetail("size", "1024")

	assert.Equal(t, "/data/transcripts/ipa.txt", err.Details["path"])
	assert.Equal(t, "1024", err.Details["size"])
}

func TestBrewError_WithSuggestion_AddsSuggestion(t *testing.T) {
	err := New(ErrCodeStoreUnavailable, "connection refused", nil)

	err = err.WithSuggestion("Check that the vector store is running")

	assert.Equal(t, "Check that the vector store is running", err.Suggestion)
}

func TestBrewError_CategoryFromCode(t *testing.T) {
	tests := []struct {
		code         string
		wantCategory Category
	}{
		{ErrCodeConfigNotFound, CategoryConfig},
		{ErrCodeProfileUnknown, CategoryConfig},
		{ErrCodeTextEmpty, CategoryValidation},
		{ErrCodeTooRepetitive, CategoryValidation},
		{ErrCodeStoreTimeout, CategoryStore},
		{ErrCodeStoreRequest, CategoryStore},
		{ErrCodeChunkingFailed, CategoryProcessing},
		{ErrCodeEmbedFailed, CategoryProcessing},
		{ErrCodeInternal, CategoryInternal},
		{ErrCodeLeaseHeld, CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantCategory, err.Category)
		})
	}
}

func TestBrewError_SeverityFromCode(t *testing.T) {
	tests := []struct {
		code         string
		wantSeverity Severity
	}{
		{ErrCodeLeaseHeld, SeverityFatal},
		{ErrCodeSnapshotFailed, SeverityFatal},
		{ErrCodeScanFailed, SeverityFatal},
		{ErrCodeStoreTimeout, SeverityWarning},
		{ErrCodeStoreUnavailable, SeverityWarning},
		{ErrCodeEmbedTimeout, SeverityWarning},
		{ErrCodeTextTooShort, SeverityError},
		{ErrCodeChunkingFailed, SeverityError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantSeverity, err.Severity)
		})
	}
}

func TestBrewError_RetryableFlag(t *testing.T) {
	retryable := []string{ErrCodeStoreTimeout, ErrCodeStoreUnavailable, ErrCodeEmbedTimeout}
	for _, code := range retryable {
		assert.True(t, IsRetryable(New(code, "transient", nil)), "expected %s retryable", code)
	}

	notRetryable := []string{ErrCodeStoreRequest, ErrCodeTextEmpty, ErrCodeChunkingFailed, ErrCodeInternal}
	for _, code := range notRetryable {
		assert.False(t, IsRetryable(New(code, "permanent", nil)), "expected %s not retryable", code)
	}
}

func TestIsRetryable_PlainError(t *testing.T) {
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsRetryable(nil))
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(New(ErrCodeLeaseHeld, "lease held by another run", nil)))
	assert.False(t, IsFatal(New(ErrCodeChunkingFailed, "chunking failed", nil)))
	assert.False(t, IsFatal(errors.New("plain")))
	assert.False(t, IsFatal(nil))
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestWrap_PreservesMessage(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Wrap(ErrCodeStoreUnavailable, cause)

	require.NotNil(t, err)
	assert.Equal(t, "dial tcp: connection refused", err.Message)
	assert.Equal(t, cause, err.Cause)
}

func TestConstructorHelpers(t *testing.T) {
	assert.Equal(t, CategoryConfig, ConfigError("bad config", nil).Category)
	assert.Equal(t, CategoryValidation, ValidationError("bad text", nil).Category)
	assert.Equal(t, CategoryStore, StoreError("store down", nil).Category)
	assert.Equal(t, CategoryProcessing, ProcessingError("chunking blew up", nil).Category)
	assert.Equal(t, CategoryInternal, InternalError("bug", nil).Category)
}

func TestGetCode_AndCategory(t *testing.T) {
	err := New(ErrCodeStoreRequest, "bad request", nil)
	assert.Equal(t, ErrCodeStoreRequest, GetCode(err))
	assert.Equal(t, CategoryStore, GetCategory(err))

	assert.Equal(t, "", GetCode(errors.New("plain")))
	assert.Equal(t, Category(""), GetCategory(errors.New("plain")))
}
