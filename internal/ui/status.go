package ui

import (
	"encoding/json"
	"fmt"
	"io"
)

// StatusInfo contains collection health information: what is indexed,
// what is on disk, and what a reconciliation run would do about the
// difference.
type StatusInfo struct {
	Collection   string `json:"collection"`
	StoreBackend string `json:"store_backend"`
	StoreURL     string `json:"store_url,omitempty"`

	// Indexed state
	IndexedFiles  int `json:"indexed_files"`
	IndexedChunks int `json:"indexed_chunks"`
	FilesOnDisk   int `json:"files_on_disk"`

	// Pending work, as a dry run would report it
	PendingNew     int `json:"pending_new"`
	PendingChanged int `json:"pending_changed"`
	Orphans        int `json:"orphans"`
	UpToDate       int `json:"up_to_date"`

	// Component status
	EmbedderProvider string `json:"embedder_provider"`
	EmbedderStatus   string `json:"embedder_status"` // "ready", "offline", "error"
	EmbedderModel    string `json:"embedder_model,omitempty"`
}

// InSync reports whether a run would change nothing.
func (s StatusInfo) InSync() bool {
	return s.PendingNew == 0 && s.PendingChanged == 0 && s.Orphans == 0
}

// StatusRenderer displays collection status.
type StatusRenderer struct {
	out     io.Writer
	styles  Styles
	noColor bool
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{
		out:     out,
		styles:  GetStyles(noColor),
		noColor: noColor,
	}
}

// Render displays status info to terminal.
func (r *StatusRenderer) Render(info StatusInfo) error {
	// Header
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Collection Status: "+info.Collection))

	// Store
	if info.StoreURL != "" {
		_, _ = fmt.Fprintf(r.out, "  Store:  %s (%s)\n", info.StoreBackend, info.StoreURL)
	} else {
		_, _ = fmt.Fprintf(r.out, "  Store:  %s\n", info.StoreBackend)
	}
	_, _ = fmt.Fprintf(r.out, "  Files:  %d indexed, %d on disk\n", info.IndexedFiles, info.FilesOnDisk)
	_, _ = fmt.Fprintf(r.out, "  Chunks: %d\n", info.IndexedChunks)
	_, _ = fmt.Fprintln(r.out)

	// Pending work
	if info.InSync() {
		_, _ = fmt.Fprintf(r.out, "  %s\n", r.styles.Success.Render("In sync: nothing to do"))
	} else {
		_, _ = fmt.Fprintln(r.out, "  Pending:")
		if info.PendingNew > 0 {
			_, _ = fmt.Fprintf(r.out, "    New:      %d\n", info.PendingNew)
		}
		if info.PendingChanged > 0 {
			_, _ = fmt.Fprintf(r.out, "    Changed:  %d\n", info.PendingChanged)
		}
		if info.Orphans > 0 {
			_, _ = fmt.Fprintf(r.out, "    Orphaned: %d\n", info.Orphans)
		}
	}
	if info.UpToDate > 0 {
		_, _ = fmt.Fprintf(r.out, "  Up to date: %d\n", info.UpToDate)
	}
	_, _ = fmt.Fprintln(r.out)

	// Embedder status
	_, _ = fmt.Fprintln(r.out, "  Embedder:")
	_, _ = fmt.Fprintf(r.out, "    Provider: %s\n", info.EmbedderProvider)
	_, _ = fmt.Fprintf(r.out, "    Status:   %s\n", r.renderStatus(info.EmbedderStatus))
	if info.EmbedderModel != "" {
		_, _ = fmt.Fprintf(r.out, "    Model:    %s\n", info.EmbedderModel)
	}

	return nil
}

// RenderJSON outputs status as JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

// renderStatus formats a status string with color.
func (r *StatusRenderer) renderStatus(status string) string {
	switch status {
	case "ready", "running":
		return r.styles.Success.Render(status)
	case "offline", "stopped":
		return r.styles.Warning.Render(status)
	case "error":
		return r.styles.Error.Render(status)
	default:
		return status
	}
}
