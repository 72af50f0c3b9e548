package latency

import "time"

// Field identifies which measurements a Metrics snapshot carries. The
// tuner only trusts a metric kind after at least one snapshot supplied it.
type Field uint8

const (
	// FieldNIQ marks the network-incoming-queue measurements
	// (NIQLatency and NIQStalling) as populated.
	FieldNIQ Field = 1 << iota

	// FieldE2E marks E2ELatency as populated.
	FieldE2E

	// FieldJitter marks Jitter as populated.
	FieldJitter
)

// Has reports whether all bits of o are set.
func (f Field) Has(o Field) bool {
	return f&o == o
}

// Metrics is a snapshot of latency measurements. A producer builds the
// whole snapshot and pushes it with [Tuner.WriteMetrics]; snapshots are
// overwritten wholesale, never merged.
type Metrics struct {
	// Fields marks which measurements the producer populated.
	Fields Field `json:"-" msgpack:"-"`

	// NIQLatency is the estimated network incoming queue latency: how
	// much media is buffered in the receiver packet queue.
	NIQLatency time.Duration `json:"niq_latency" msgpack:"niq_latency"`

	// NIQStalling is the delay since the last received packet: how long
	// the incoming queue has seen no new data.
	NIQStalling time.Duration `json:"niq_stalling" msgpack:"niq_stalling"`

	// E2ELatency is the estimated end-to-end latency: the time from
	// recording a frame on the sender to playing it on the receiver.
	E2ELatency time.Duration `json:"e2e_latency" msgpack:"e2e_latency"`

	// Jitter is the estimated interarrival jitter: the statistical
	// variance of packet interarrival time.
	Jitter time.Duration `json:"jitter" msgpack:"jitter"`
}
