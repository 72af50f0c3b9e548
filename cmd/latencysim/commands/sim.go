package commands

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/pion/rtp"

	"github.com/pulseframe/netaudio/pkg/audio/pcm"
	"github.com/pulseframe/netaudio/pkg/audio/resampler"
	"github.com/pulseframe/netaudio/pkg/latency"
	"github.com/pulseframe/netaudio/pkg/latency/monitor"
)

// summary is the outcome of one simulated session.
type summary struct {
	SessionID string           `json:"session_id"`
	Tuning    latency.Config   `json:"tuning"`
	Simulated latency.Duration `json:"simulated"`

	Packets        int `json:"packets"`
	DroppedPackets int `json:"dropped_packets"`

	FinalScaling float32 `json:"final_scaling"`
	MinScaling   float32 `json:"min_scaling"`
	MaxScaling   float32 `json:"max_scaling"`

	MinNIQ  latency.Duration `json:"min_niq_latency"`
	MaxNIQ  latency.Duration `json:"max_niq_latency"`
	LastNIQ latency.Duration `json:"last_niq_latency"`

	Failed   bool   `json:"failed"`
	FailedAt uint64 `json:"failed_at,omitempty"`
}

// virtualClock is the simulated receiver wall clock.
type virtualClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *virtualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *virtualClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// queueSource adapts the incoming queue to the resampler's reader. When
// the queue runs dry it substitutes silence, like a real player would.
type queueSource struct {
	queue    *monitor.Queue
	leftover []byte
}

func (s *queueSource) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if len(s.leftover) > 0 {
			c := copy(p[n:], s.leftover)
			s.leftover = s.leftover[c:]
			n += c
			continue
		}
		pkt, ok := s.queue.Pop()
		if !ok {
			for i := n; i < len(p); i++ {
				p[i] = 0
			}
			return len(p), nil
		}
		s.leftover = pkt.RTP.Payload
	}
	return n, nil
}

// sender generates the arrival schedule of a drifting, jittery sender.
type sender struct {
	format     pcm.Format
	interval   time.Duration
	drift      float64
	jitter     time.Duration
	rng        *rand.Rand
	start      time.Time
	next       int
	samplesPer int64
	payload    []byte

	pending   *rtp.Packet
	pendingAt time.Time
}

func newSender(sc Scenario, start time.Time, rng *rand.Rand) *sender {
	format := sc.format()
	interval := time.Duration(sc.PacketInterval)
	samplesPer := format.SamplesInDuration(interval)
	return &sender{
		format:     format,
		interval:   interval,
		drift:      sc.DriftPPM / 1e6,
		jitter:     time.Duration(sc.Jitter),
		rng:        rng,
		start:      start,
		samplesPer: samplesPer,
		payload:    make([]byte, format.BytesInDuration(interval)),
	}
}

// peek returns the arrival time of the next packet without consuming it.
func (s *sender) peek() time.Time {
	if s.pending == nil {
		s.generate()
	}
	return s.pendingAt
}

// emit consumes and returns the next packet.
func (s *sender) emit() (*rtp.Packet, time.Time) {
	if s.pending == nil {
		s.generate()
	}
	pkt, at := s.pending, s.pendingAt
	s.pending = nil
	return pkt, at
}

func (s *sender) generate() {
	ideal := float64(s.next) * float64(s.interval) * (1 + s.drift)
	noise := 0.0
	if s.jitter > 0 {
		noise = s.rng.NormFloat64() * float64(s.jitter)
	}
	at := time.Duration(ideal + noise)
	if at < 0 {
		at = 0
	}
	s.pending = &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			SequenceNumber: uint16(s.next),
			Timestamp:      uint32(int64(s.next) * s.samplesPer),
			SSRC:           0x4e4c4154,
		},
		Payload: s.payload,
	}
	s.pendingAt = s.start.Add(at)
	s.next++
}

// runSimulation drives the full receive path over a virtual clock and
// returns the session summary.
func runSimulation(sc Scenario, sessionID string, reporter latency.Reporter) (*summary, error) {
	format := sc.format()
	tuning, err := sc.Latency.Resolve(latency.Session{
		DefaultTarget: 200 * time.Millisecond,
		Receiver:      true,
	})
	if err != nil {
		return nil, err
	}

	interval := time.Duration(sc.PacketInterval)
	capacity := int(4*time.Duration(tuning.TargetLatency)/interval) + 16
	queue := monitor.NewQueue(format, capacity)
	defer queue.Close()

	clock := &virtualClock{t: time.Unix(0, 0).UTC()}
	tuner, err := latency.NewTuner(tuning, format,
		latency.WithSessionID(sessionID),
		latency.WithReporter(reporter),
		latency.WithReportInterval(time.Second),
	)
	if err != nil {
		return nil, err
	}

	stream, err := resampler.New(&queueSource{queue: queue}, format)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	pipe := monitor.NewPipeline(tuner, stream, format)
	collector := monitor.NewCollector(queue, tuner, interval, clock.Now)

	sum := &summary{
		SessionID:  sessionID,
		Tuning:     tuning.AsConfig(),
		Simulated:  sc.Duration,
		MinScaling: 0,
		MaxScaling: 0,
		MinNIQ:     latency.Duration(-1),
	}

	rng := rand.New(rand.NewSource(sc.Seed))
	snd := newSender(sc, clock.Now(), rng)

	// Prefill the queue to the starting depth before playback.
	prefill := time.Duration(sc.StartQueue)
	if prefill <= 0 {
		prefill = tuning.TargetLatency
	}
	for format.DurationOfSamples(int64(queue.Len())*snd.samplesPer) < prefill {
		pkt, _ := snd.emit()
		if err := queue.Push(pkt, clock.Now()); err != nil {
			return nil, err
		}
		sum.Packets++
	}
	// Rebase the sender clock so the next packet lands right after the
	// prefill instead of a queue-depth into the future.
	snd.start = clock.Now().Add(-time.Duration(float64(snd.next) * float64(interval) * (1 + snd.drift)))

	blockSamples := int(format.SamplesInDuration(interval))
	blockBytes := int(format.BytesInDuration(interval))
	buf := make([]byte, blockBytes)

	for elapsed := time.Duration(0); elapsed < time.Duration(sc.Duration); elapsed += interval {
		clock.advance(interval)
		now := clock.Now()

		// Deliver every packet scheduled to arrive by now.
		for !snd.peek().After(now) {
			before := queue.Len()
			pkt, at := snd.emit()
			if err := queue.Push(pkt, at); err != nil {
				return nil, err
			}
			sum.Packets++
			if queue.Len() == before {
				sum.DroppedPackets++
			}
		}

		collector.Collect()
		observe(sum, queue.Snapshot(now))

		// Play one block through the resampler.
		for read := 0; read < blockBytes; {
			n, err := stream.Read(buf[read:])
			if err != nil && err != io.EOF {
				return nil, fmt.Errorf("playback: %w", err)
			}
			if n == 0 {
				break
			}
			read += n
		}

		if err := pipe.ProcessBlock(blockSamples); err != nil {
			if errors.Is(err, monitor.ErrSessionFailed) {
				sum.Failed = true
				sum.FailedAt = uint64(format.SamplesInDuration(elapsed))
				break
			}
			return nil, err
		}
		if s := tuner.Scaling(); s != 0 {
			if sum.MinScaling == 0 || s < sum.MinScaling {
				sum.MinScaling = s
			}
			if s > sum.MaxScaling {
				sum.MaxScaling = s
			}
			sum.FinalScaling = s
		}
	}

	if sum.MinNIQ == latency.Duration(-1) {
		sum.MinNIQ = 0
	}
	return sum, nil
}

func observe(sum *summary, m latency.Metrics) {
	if !m.Fields.Has(latency.FieldNIQ) {
		return
	}
	d := latency.Duration(m.NIQLatency)
	if sum.MinNIQ == latency.Duration(-1) || d < sum.MinNIQ {
		sum.MinNIQ = d
	}
	if d > sum.MaxNIQ {
		sum.MaxNIQ = d
	}
	sum.LastNIQ = d
}
