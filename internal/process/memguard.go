package process

import (
	"context"
	"time"

	"github.com/localci/rlci/internal/events"
)

const memoryPollInterval = time.Second

// MemoryGuard watches a running process tree's resident-anonymous
// memory and kills it once it crosses ByteLimit.
type MemoryGuard struct {
	ByteLimit uint64
	Sink      events.Sink
}

// Watch polls the RSS of the process tree rooted at pid every second
// until ctx is cancelled or the limit is exceeded, in which case it
// calls kill and returns. It is meant to be run in its own goroutine
// alongside Runner.Run, cancelled via the same context.
func (g *MemoryGuard) Watch(ctx context.Context, pid int, kill func()) {
	if g.ByteLimit == 0 {
		return
	}

	sink := g.Sink
	if sink == nil {
		sink = events.Discard
	}

	t := time.NewTicker(memoryPollInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			rss, err := treeMemoryUsage(pid)
			if err != nil {
				// The process may have exited between polls.
				continue
			}
			if rss < g.ByteLimit {
				continue
			}
			sink.Emit(events.KindExit, map[string]any{
				"reason": "memory limit exceeded",
				"limit":  g.ByteLimit,
				"used":   rss,
			})
			kill()
			return
		}
	}
}
