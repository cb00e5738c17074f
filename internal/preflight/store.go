package preflight

import (
	"context"
	"fmt"
	"time"

	"github.com/jcascante/brew-master-ai/internal/store"
)

// storeProbeTimeout bounds the store check so doctor stays responsive
// when Qdrant is down.
const storeProbeTimeout = 5 * time.Second

// CheckStore checks that the vector store backend answers. A missing
// collection still passes; reconcile creates it on the first run.
func (c *Checker) CheckStore(ctx context.Context) CheckResult {
	result := CheckResult{
		Name:     "store",
		Required: true,
	}

	probeCtx, cancel := context.WithTimeout(ctx, storeProbeTimeout)
	defer cancel()

	st, err := store.New(c.cfg.Store)
	if err != nil {
		result.Status = StatusFail
		result.Message = err.Error()
		result.Details = c.storeHint()
		return result
	}
	defer func() { _ = st.Close() }()

	count, err := st.Count(probeCtx)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot reach %s: %v", c.cfg.Store.Backend, err)
		result.Details = c.storeHint()
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%s reachable (%d records in %s)",
		c.cfg.Store.Backend, count, c.cfg.Store.Collection)
	return result
}

func (c *Checker) storeHint() string {
	if c.cfg.Store.Backend == store.BackendSQLite {
		return "Check that the sqlite path is writable"
	}
	return "Start Qdrant or set store.backend to sqlite"
}
