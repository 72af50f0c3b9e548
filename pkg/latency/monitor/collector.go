package monitor

import (
	"context"
	"time"

	"github.com/pulseframe/netaudio/pkg/latency"
)

// MetricsWriter is the consumer of measurement snapshots, normally a
// *latency.Tuner.
type MetricsWriter interface {
	WriteMetrics(m latency.Metrics)
}

// Collector periodically snapshots a queue into a tuner. It runs on its
// own goroutine, off the realtime path, and is the single producer of
// metrics for the session.
type Collector struct {
	queue    *Queue
	writer   MetricsWriter
	interval time.Duration
	now      func() time.Time
}

// NewCollector creates a collector pushing a snapshot every interval.
// now is the clock; pass nil for time.Now.
func NewCollector(queue *Queue, writer MetricsWriter, interval time.Duration, now func() time.Time) *Collector {
	if now == nil {
		now = time.Now
	}
	if interval <= 0 {
		interval = 20 * time.Millisecond
	}
	return &Collector{queue: queue, writer: writer, interval: interval, now: now}
}

// Run pushes snapshots until the context is canceled.
func (c *Collector) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.Collect()
		}
	}
}

// Collect takes one snapshot immediately and hands it to the writer when
// it carries any measurement.
func (c *Collector) Collect() {
	m := c.queue.Snapshot(c.now())
	if m.Fields == 0 {
		return
	}
	c.writer.WriteMetrics(m)
}
