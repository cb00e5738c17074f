package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jcascante/brew-master-ai/internal/chunk"
	brewerrors "github.com/jcascante/brew-master-ai/internal/errors"
	"github.com/jcascante/brew-master-ai/internal/output"
	"github.com/jcascante/brew-master-ai/internal/profile"
	"github.com/jcascante/brew-master-ai/internal/scanner"
	"github.com/jcascante/brew-master-ai/internal/textproc"
)

func newValidateCmd() *cobra.Command {
	var (
		profileName string
		jsonOutput  bool
	)

	cmd := &cobra.Command{
		Use:   "validate [path]",
		Short: "Check documents against their processing profiles",
		Long: `Validate runs the processing pipeline up to, but not including,
embedding: each document is preprocessed, quality-checked, and chunked
under the profile that a reconcile run would select for it.

Nothing is written. Use it to find transcripts that would be rejected
(too short, too repetitive) before paying for a full run. The exit
status is non-zero when any document fails.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runValidate(ctx, cmd, args, profileName, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&profileName, "profile", "", "Force this processing profile for every file")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the report as JSON")

	return cmd
}

type validateFileReport struct {
	Identity       string `json:"identity"`
	ContentType    string `json:"content_type"`
	Profile        string `json:"profile"`
	Valid          bool   `json:"valid"`
	Reason         string `json:"reason,omitempty"`
	Chunks         int    `json:"chunks"`
	ChunksRejected int    `json:"chunks_rejected"`
}

type validateReport struct {
	Files   []validateFileReport `json:"files"`
	Total   int                  `json:"total"`
	Valid   int                  `json:"valid"`
	Invalid int                  `json:"invalid"`
	Errors  int                  `json:"errors"`
}

func runValidate(ctx context.Context, cmd *cobra.Command, args []string, profileName string, jsonOutput bool) error {
	dir, err := resolveProjectDir(args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(dir)
	if err != nil {
		return err
	}
	if profileName != "" {
		cfg.Processing.Profile = profileName
	}

	cleanup := setupFileLogging(cfg.Logging)
	defer cleanup()

	// Missing source directories are fine here; the scanner skips them
	// and the report simply covers fewer files.
	sc, err := scanner.New(cfg.Sources,
		scanner.WithMaxFileSize(cfg.Processing.MaxFileSize),
		scanner.WithLogger(slog.Default()))
	if err != nil {
		return err
	}

	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}

	results, err := sc.Scan(ctx)
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	pre := textproc.NewPreprocessor(slog.Default())
	report := validateReport{Files: []validateFileReport{}}

	for result := range results {
		if result.Err != nil {
			report.Errors++
			if !jsonOutput {
				out.Warningf("scan: %v", result.Err)
			}
			continue
		}

		file := checkDocument(ctx, result.Doc, cfg.Processing.Profile, registry, pre)
		report.Total++
		if file.Valid {
			report.Valid++
		} else {
			report.Invalid++
		}
		report.Files = append(report.Files, file)

		if jsonOutput {
			continue
		}
		if file.Valid {
			if file.ChunksRejected > 0 {
				out.Statusf("✅", "%s (%s, %d chunks, %d rejected)", file.Identity, file.Profile, file.Chunks, file.ChunksRejected)
			} else {
				out.Statusf("✅", "%s (%s, %d chunks)", file.Identity, file.Profile, file.Chunks)
			}
		} else {
			out.Statusf("❌", "%s: %s", file.Identity, file.Reason)
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		out.Newline()
		if report.Total == 0 {
			out.Status("📭", "No documents found")
		} else if report.Invalid == 0 && report.Errors == 0 {
			out.Successf("%d documents valid", report.Valid)
		} else {
			out.Statusf("📊", "%d valid, %d invalid, %d scan errors", report.Valid, report.Invalid, report.Errors)
		}
	}

	if report.Invalid > 0 {
		return brewerrors.ValidationError(
			fmt.Sprintf("%d of %d documents failed validation", report.Invalid, report.Total), nil)
	}
	return nil
}

// checkDocument runs one document through preprocessing, document
// validation, and chunking, mirroring the decisions a write run makes
// before embedding.
func checkDocument(ctx context.Context, doc *scanner.Document, manualProfile string, registry *profile.Registry, pre *textproc.Preprocessor) validateFileReport {
	name := registry.Select(doc.ContentType, manualProfile)
	prof := registry.Resolve(name)

	file := validateFileReport{
		Identity:    doc.Identity,
		ContentType: doc.ContentType,
		Profile:     prof.Name,
	}

	text, err := doc.LoadText()
	if err != nil {
		file.Reason = fmt.Sprintf("read failed: %v", err)
		return file
	}

	processed := pre.Preprocess(text, prof)
	if verdict := textproc.Validate(processed, textproc.DocumentBounds(prof)); !verdict.OK {
		file.Reason = verdict.Reason
		return file
	}

	chunks, err := chunk.New(prof).Chunk(ctx, processed)
	if err != nil {
		file.Reason = fmt.Sprintf("chunking failed: %v", err)
		return file
	}

	bounds := textproc.ChunkBounds(prof)
	for _, c := range chunks {
		if verdict := textproc.Validate(c.Text, bounds); verdict.OK {
			file.Chunks++
		} else {
			file.ChunksRejected++
		}
	}

	if file.Chunks == 0 {
		file.Reason = "no chunks survived validation"
		return file
	}

	file.Valid = true
	return file
}
