// Package errors provides structured error handling for the brewindex engine.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Validation errors (text quality gates)
//   - 3XX: Store errors (vector store RPCs)
//   - 4XX: Processing errors (read/chunk/embed, file-scoped)
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryValidation indicates text quality gate failures.
	CategoryValidation Category = "VALIDATION"
	// CategoryStore indicates vector store communication errors.
	CategoryStore Category = "STORE"
	// CategoryProcessing indicates file-scoped processing errors.
	CategoryProcessing Category = "PROCESSING"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, the run must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but the run can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo indicates informational only.
	SeverityInfo Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"
	ErrCodeProfileUnknown = "ERR_103_PROFILE_UNKNOWN"
	ErrCodeSourceInvalid  = "ERR_104_SOURCE_INVALID"

	// Validation errors (200-299)
	ErrCodeTextEmpty       = "ERR_201_TEXT_EMPTY"
	ErrCodeTextTooShort    = "ERR_202_TEXT_TOO_SHORT"
	ErrCodeTextTooLong     = "ERR_203_TEXT_TOO_LONG"
	ErrCodeLowContent      = "ERR_204_INSUFFICIENT_CONTENT"
	ErrCodeTooRepetitive   = "ERR_205_TOO_REPETITIVE"
	ErrCodeValidationOther = "ERR_206_VALIDATION_FAILED"

	// Store errors (300-399)
	ErrCodeStoreTimeout     = "ERR_301_STORE_TIMEOUT"
	ErrCodeStoreUnavailable = "ERR_302_STORE_UNAVAILABLE"
	ErrCodeStoreRequest     = "ERR_303_STORE_REQUEST"
	ErrCodeCollectionFailed = "ERR_304_COLLECTION_FAILED"

	// Processing errors (400-499)
	ErrCodeFileRead       = "ERR_401_FILE_READ"
	ErrCodeChunkingFailed = "ERR_402_CHUNKING_FAILED"
	ErrCodeEmbedTimeout   = "ERR_403_EMBED_TIMEOUT"
	ErrCodeEmbedFailed    = "ERR_404_EMBED_FAILED"
	ErrCodeFileTooLarge   = "ERR_405_FILE_TOO_LARGE"

	// Internal errors (500-599)
	ErrCodeInternal       = "ERR_501_INTERNAL"
	ErrCodeLeaseHeld      = "ERR_502_LEASE_HELD"
	ErrCodeSnapshotFailed = "ERR_503_SNAPSHOT_FAILED"
	ErrCodeScanFailed     = "ERR_504_SCAN_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract numeric portion (e.g., "101" from "ERR_101_CONFIG_NOT_FOUND")
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryValidation
	case '3':
		return CategoryStore
	case '4':
		return CategoryProcessing
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	// Fatal errors abort the whole run: a held lease or a failed
	// snapshot/scan leaves no consistent view to reconcile against.
	switch code {
	case ErrCodeLeaseHeld, ErrCodeSnapshotFailed, ErrCodeScanFailed:
		return SeverityFatal
	}

	// Retryable transport errors get warning severity
	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
// Transport-level store failures and embedding timeouts are worth a bounded
// retry; request errors (4xx) and validation verdicts are not.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeStoreTimeout, ErrCodeStoreUnavailable, ErrCodeEmbedTimeout:
		return true
	default:
		return false
	}
}
