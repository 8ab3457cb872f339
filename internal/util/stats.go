package util

import (
	"context"
	"fmt"
	"time"

	"github.com/pterm/pterm"
)

// StatsSnapshot mirrors nexus.Stats's shape so this package can report on it
// without importing internal/nexus (cmd/ wiring supplies the adapter
// closure, avoiding a dependency this package otherwise has no need of).
type StatsSnapshot struct {
	OpenPortals int
	FramesSent  int64
	FramesRecv  int64
}

// StartStatsReporter launches a goroutine that logs portal throughput every
// 10 seconds, generalizing the teacher's byte/connection counters
// (internal/util/stats.go) from raw DataChannel bytes to wire frame counts.
// It stops when ctx is cancelled.
func StartStatsReporter(ctx context.Context, snapshot func() StatsSnapshot) {
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()

		var prevSent, prevRecv int64
		for {
			select {
			case <-ticker.C:
				snap := snapshot()
				inS := float64(snap.FramesSent-prevSent) / 10.0
				outS := float64(snap.FramesRecv-prevRecv) / 10.0

				if snap.OpenPortals > 0 || inS > 0 || outS > 0 {
					pterm.DefaultLogger.Info(formatStats(snap.OpenPortals, inS, outS))
				}

				prevSent = snap.FramesSent
				prevRecv = snap.FramesRecv

			case <-ctx.Done():
				return
			}
		}
	}()
}

// formatStats returns a formatted string of the current stats for display in the logger.
func formatStats(openPortals int, outFPS, inFPS float64) string {
	return fmt.Sprintf("portals: %2d | frames out: %5.1f/s | frames in: %5.1f/s", openPortals, outFPS, inFPS)
}
