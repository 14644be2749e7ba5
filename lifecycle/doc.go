// Package lifecycle coordinates startup and graceful shutdown of the
// daemon's threads of execution.
//
// The package provides three pieces: Flag, a monotonic process-wide
// shutdown indicator with single-writer discipline; SignalBridge, which
// translates delivered OS signals into either a tick callback (SIGALRM) or
// the shutdown transition (SIGTERM, SIGINT); and Worker, which runs the
// store-servicing loop on a background goroutine and is joined before the
// process exits.
//
// Shutdown is cooperative: no thread is forcibly terminated. Every
// long-running loop observes the Flag at short-interval check-points, so
// shutdown latency is bounded by the longest gap between check-points.
package lifecycle
