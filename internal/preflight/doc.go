// Package preflight runs the environment checks behind the doctor
// command, verifying that a reconcile run has what it needs before
// any documents are touched.
//
// The package validates:
//   - Configured source directories exist
//   - Disk space availability (minimum 100MB)
//   - Write permissions in the project directory
//   - File descriptor limits (minimum 1024)
//   - Vector store reachability
//   - Embedding provider reachability
//
// Use the Checker type to run all validations:
//
//	checker := preflight.New(cfg)
//	results := checker.RunAll(ctx, "/path/to/project")
//	if checker.HasCriticalFailures(results) {
//	    // Handle failures
//	}
package preflight
