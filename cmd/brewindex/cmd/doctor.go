package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jcascante/brew-master-ai/internal/preflight"
)

func newDoctorCmd() *cobra.Command {
	var (
		verbose    bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "doctor [path]",
		Short: "Check system requirements and diagnose issues",
		Long: `Run environment diagnostics against the effective configuration
before committing to a reconcile run.

Checks:
  - Configured source directories exist
  - Disk space (100MB minimum)
  - Write permissions in the project directory
  - File descriptor limits (1024 minimum)
  - Vector store reachability
  - Embedding provider reachability

Use --verbose for detailed diagnostic information.
Use --json for machine-readable output.`,
		Example: `  # Run diagnostics for the current directory
  brewindex doctor

  # Verbose output with remediation hints
  brewindex doctor --verbose

  # JSON output for scripting
  brewindex doctor --json ~/brewing`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runDoctor(ctx, cmd, args, verbose, jsonOutput)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed diagnostic info")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")

	return cmd
}

func runDoctor(ctx context.Context, cmd *cobra.Command, args []string, verbose, jsonOutput bool) error {
	dir, err := resolveProjectDir(args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(dir)
	if err != nil {
		return err
	}

	checker := preflight.New(cfg,
		preflight.WithVerbose(verbose),
		preflight.WithOutput(cmd.OutOrStdout()),
	)

	results := checker.RunAll(ctx, dir)

	if jsonOutput {
		if err := writeDoctorJSON(cmd, checker, results); err != nil {
			return err
		}
	} else {
		checker.PrintResults(results)
	}

	if checker.HasCriticalFailures(results) {
		return errors.New("system check failed")
	}
	return nil
}

// doctorReport is the JSON shape of a doctor run.
type doctorReport struct {
	Status   string        `json:"status"`
	Checks   []doctorCheck `json:"checks"`
	Warnings []string      `json:"warnings,omitempty"`
	Errors   []string      `json:"errors,omitempty"`
}

type doctorCheck struct {
	Name     string `json:"name"`
	Status   string `json:"status"`
	Message  string `json:"message"`
	Required bool   `json:"required"`
	Details  string `json:"details,omitempty"`
}

func writeDoctorJSON(cmd *cobra.Command, checker *preflight.Checker, results []preflight.CheckResult) error {
	report := doctorReport{
		Status: checker.SummaryStatus(results),
		Checks: make([]doctorCheck, len(results)),
	}

	for i, r := range results {
		report.Checks[i] = doctorCheck{
			Name:     r.Name,
			Status:   strings.ToLower(r.Status.String()),
			Message:  r.Message,
			Required: r.Required,
			Details:  r.Details,
		}

		if r.IsCritical() {
			report.Errors = append(report.Errors, r.Name+": "+r.Message)
		} else if r.Status == preflight.StatusWarn {
			report.Warnings = append(report.Warnings, r.Name+": "+r.Message)
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
