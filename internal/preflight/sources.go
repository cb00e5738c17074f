package preflight

import (
	"fmt"
	"os"
	"strings"
)

// CheckSources checks that the configured source directories exist.
// Reconcile refuses to run when none of them do, because an empty scan
// against a populated collection would garbage-collect everything.
func (c *Checker) CheckSources() CheckResult {
	result := CheckResult{
		Name:     "sources",
		Required: true,
	}

	if len(c.cfg.Sources) == 0 {
		result.Status = StatusFail
		result.Message = "no sources configured"
		result.Details = "Add a sources list to brewindex.yaml"
		return result
	}

	var missing []string
	for _, src := range c.cfg.Sources {
		info, err := os.Stat(src.Path)
		if err != nil || !info.IsDir() {
			missing = append(missing, src.Path)
		}
	}

	total := len(c.cfg.Sources)
	found := total - len(missing)

	switch {
	case found == 0:
		result.Status = StatusFail
		result.Message = "no source directories exist"
		result.Details = "missing: " + strings.Join(missing, ", ")
	case len(missing) > 0:
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("%d of %d source directories exist", found, total)
		result.Details = "missing: " + strings.Join(missing, ", ")
	default:
		result.Status = StatusPass
		result.Message = fmt.Sprintf("%d of %d source directories exist", found, total)
	}
	return result
}
