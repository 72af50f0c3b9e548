// Package monitor produces latency measurements on the receiver and wires
// the latency tuner into the playback pipeline.
//
// The incoming [Queue] buffers RTP packets between the network and the
// decoder while measuring what the tuner needs: how much audio is queued
// (niq latency), how long the queue has been dry (stalling), and the
// interarrival jitter. A [Collector] periodically snapshots the queue into
// a tuner; a [Pipeline] drives the tuner from the playback loop and
// forwards the scaling coefficient to the resampler.
package monitor

import (
	"sync"
	"time"

	"github.com/pion/rtp"

	"github.com/pulseframe/netaudio/pkg/audio/pcm"
	"github.com/pulseframe/netaudio/pkg/buffer"
	"github.com/pulseframe/netaudio/pkg/latency"
)

// Packet is one queued RTP packet with its arrival time.
type Packet struct {
	RTP     *rtp.Packet
	Arrival time.Time

	samples int64
}

// Queue is the network incoming queue of one receiving session. The
// network goroutine pushes packets; the playback loop pops them. Both
// sides may run concurrently.
//
// Queue does not reorder packets; sequencing is the jitter buffer's job
// downstream. It only buffers and measures.
type Queue struct {
	format pcm.Format
	ring   *buffer.Ring[Packet]

	mu          sync.Mutex
	buffered    int64 // samples currently queued
	lastArrival time.Time
	haveLast    bool

	// RFC 3550 interarrival jitter state, in RTP ticks.
	lastTransit int64
	haveTransit bool
	jitter      float64
}

// NewQueue creates an incoming queue holding at most capacity packets.
// When the network outruns the player the oldest packets are dropped.
func NewQueue(format pcm.Format, capacity int) *Queue {
	return &Queue{
		format: format,
		ring:   buffer.NewRing[Packet](capacity),
	}
}

// Push appends a received packet. arrival is its receive timestamp.
func (q *Queue) Push(pkt *rtp.Packet, arrival time.Time) error {
	n := q.format.Samples(int64(len(pkt.Payload)))
	old, dropped, err := q.ring.Add(Packet{RTP: pkt, Arrival: arrival, samples: n})
	if err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.buffered += n
	if dropped {
		q.buffered -= old.samples
		if q.buffered < 0 {
			q.buffered = 0
		}
	}

	// Interarrival jitter per RFC 3550: smooth the difference between
	// the arrival spacing and the media-clock spacing.
	arrivalTicks := int64(arrival.UnixNano()) * int64(q.format.SampleRate()) / int64(time.Second)
	transit := arrivalTicks - int64(pkt.Timestamp)
	if q.haveTransit {
		d := transit - q.lastTransit
		if d < 0 {
			d = -d
		}
		q.jitter += (float64(d) - q.jitter) / 16
	}
	q.lastTransit = transit
	q.haveTransit = true

	q.lastArrival = arrival
	q.haveLast = true
	return nil
}

// Pop removes the next packet without blocking. ok is false when the queue
// is empty.
func (q *Queue) Pop() (p Packet, ok bool) {
	p, ok = q.ring.TryNext()
	if !ok {
		return p, false
	}
	q.mu.Lock()
	q.buffered -= p.samples
	if q.buffered < 0 {
		q.buffered = 0
	}
	q.mu.Unlock()
	return p, true
}

// Len returns the number of queued packets.
func (q *Queue) Len() int {
	return q.ring.Len()
}

// Close releases the queue. Pending Push calls fail afterwards.
func (q *Queue) Close() error {
	return q.ring.Close()
}

// Snapshot measures the queue at the given instant. The niq fields are
// populated once at least one packet has arrived; the jitter field needs
// two.
func (q *Queue) Snapshot(now time.Time) latency.Metrics {
	q.mu.Lock()
	defer q.mu.Unlock()

	var m latency.Metrics
	if !q.haveLast {
		return m
	}
	m.Fields = latency.FieldNIQ
	m.NIQLatency = q.format.DurationOfSamples(q.buffered)
	if stall := now.Sub(q.lastArrival); stall > 0 {
		m.NIQStalling = stall
	}
	if q.jitter > 0 {
		m.Fields |= latency.FieldJitter
		m.Jitter = q.format.DurationOfSamples(int64(q.jitter))
	}
	return m
}
