package reconcile

import (
	"fmt"
	"sync"
	"time"
)

// Timings breaks the run duration down by phase.
type Timings struct {
	Snapshot time.Duration `json:"snapshot"`
	Scan     time.Duration `json:"scan"`
	Cleanup  time.Duration `json:"cleanup"`
	Process  time.Duration `json:"process"`
}

// Summary is the outcome of one reconciliation run. Produced per run,
// logged, optionally printed as JSON, never persisted.
type Summary struct {
	// RunID identifies the run in logs.
	RunID string `json:"run_id"`
	// DryRun records whether writes were suppressed.
	DryRun bool `json:"dry_run"`

	// FilesChecked is the number of distinct indexed sources in the
	// snapshot.
	FilesChecked int `json:"files_checked"`
	// FilesOrphaned is the number of indexed sources no longer on
	// disk whose records were deleted.
	FilesOrphaned int `json:"files_orphaned"`
	// ChunksDeleted counts records removed by orphan cleanup and
	// reprocessing.
	ChunksDeleted int `json:"chunks_deleted"`

	FilesProcessed   int `json:"files_processed"`
	FilesReprocessed int `json:"files_reprocessed"`
	FilesSkipped     int `json:"files_skipped"`
	FilesFailed      int `json:"files_failed"`

	ChunksCreated int `json:"chunks_created"`
	// ChunksValidated counts chunks that passed re-validation.
	ChunksValidated int `json:"chunks_validated"`
	// ChunksRejected counts chunks dropped by re-validation.
	ChunksRejected int `json:"chunks_rejected"`

	// Errors holds one line per failed file or orphan delete.
	Errors []string `json:"errors,omitempty"`

	Duration time.Duration `json:"duration"`
	Timings  Timings       `json:"timings"`

	mu sync.Mutex
}

// addError records a per-file error line. Safe for concurrent workers.
func (s *Summary) addError(identity string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Errors = append(s.Errors, fmt.Sprintf("%s: %v", identity, err))
}

// count applies fn under the summary lock. Workers use it for all
// counter updates.
func (s *Summary) count(fn func(*Summary)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}
