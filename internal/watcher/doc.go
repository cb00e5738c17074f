// Package watcher provides filesystem watching over document source
// roots with debounced event delivery.
//
// The package implements a hybrid watching strategy:
//   - Primary: fsnotify for efficient event-based watching
//   - Fallback: periodic polling where fsnotify is unavailable
//     (network mounts, some container volumes)
//
// Bursts of raw events are coalesced by a debouncer so one editor save
// or one batch copy produces a single settled batch. Hidden entries
// and files outside the configured extension set are filtered out,
// matching what the document scanner would skip.
//
// Usage:
//
//	w, err := watcher.NewHybridWatcher(watcher.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	go func() {
//	    for batch := range w.Events() {
//	        // A settled batch means source trees changed; run a
//	        // reconcile pass.
//	        _ = batch
//	    }
//	}()
//
//	if err := w.Start(ctx, roots); err != nil {
//	    return err
//	}
package watcher
