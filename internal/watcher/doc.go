// Package watcher rescans packages when the corpus changes.
//
// A Watcher registers every directory under the corpus root with fsnotify,
// adding new directories as they appear and skipping those matching the
// exclude globs. Bursts of events are collapsed: a rescan runs once no
// event has arrived for the debounce interval. Rescans run on the
// watcher's own goroutine, one at a time.
//
// The watcher only rescans. It never triggers a remote search.
//
// Example usage:
//
//	w, err := watcher.New(watcher.Options{
//		Root:     "/src/nixpkgs",
//		Exclude:  []string{".git/**"},
//		Debounce: 2 * time.Second,
//	}, func(ctx context.Context) error {
//		_, err := sc.Scan(ctx, "hatchling", "/src/nixpkgs")
//		return err
//	}, log)
//	if err != nil {
//		return err
//	}
//	return w.Run(ctx)
//
// StartDaemon, RunDaemon and StopDaemon run the same loop as a background
// process tracked by a PID file.
package watcher
