package main

import (
	"context"
	"log/slog"
	"time"
)

const sweepInterval = 10 * time.Minute

// sweepJob drops expired in-process state and reports how much it removed.
type sweepJob struct {
	name string
	run  func() int
}

// sweepLoop runs every job each interval until ctx is done.
func sweepLoop(ctx context.Context, interval time.Duration, jobs ...sweepJob) {
	if len(jobs) == 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, j := range jobs {
				if n := j.run(); n > 0 {
					slog.Debug("swept expired entries", "job", j.name, "removed", n)
				}
			}
		}
	}
}
