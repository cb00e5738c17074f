// Package logging provides file-based logging with rotation for brewindex.
// Reconciliation runs write structured JSON logs to ~/.brewindex/logs/ so
// per-file decisions and store operations can be audited after the fact.
//
// Without --debug, only info and above is recorded; user-facing output
// stays on stdout via the progress renderer.
package logging
