package monitor

import (
	"errors"
	"fmt"

	"github.com/pulseframe/netaudio/pkg/audio/pcm"
	"github.com/pulseframe/netaudio/pkg/latency"
)

// ErrSessionFailed is returned by Pipeline.ProcessBlock when the tuner has
// declared the session's latency unrecoverable. The owner must stop the
// session; further blocks are pointless.
var ErrSessionFailed = errors.New("monitor: session latency out of bounds")

// Scaler applies a playback-rate scaling ratio, normally a
// *resampler.Stream.
type Scaler interface {
	SetRatio(ratio float64) error
}

// Pipeline glues the tuner into the playback loop. Once per processed
// audio block the loop calls ProcessBlock; the pipeline advances the tuner
// and forwards a changed scaling coefficient to the resampler.
//
// Pipeline belongs to the consumer role of the tuner contract: drive it
// from the single playback goroutine.
type Pipeline struct {
	tuner  *latency.Tuner
	scaler Scaler
	format pcm.Format

	applied float32
}

// NewPipeline creates the glue for one session. scaler may be nil when the
// session runs with tuning disabled.
func NewPipeline(tuner *latency.Tuner, scaler Scaler, format pcm.Format) *Pipeline {
	return &Pipeline{tuner: tuner, scaler: scaler, format: format}
}

// ProcessBlock advances the stream by one block of nSamples. It returns
// ErrSessionFailed when the tuner signals termination.
func (p *Pipeline) ProcessBlock(nSamples int) error {
	if !p.tuner.AdvanceStream(nSamples) {
		return ErrSessionFailed
	}
	s := p.tuner.Scaling()
	if s == 0 || s == p.applied || p.scaler == nil {
		return nil
	}
	if err := p.scaler.SetRatio(float64(s)); err != nil {
		return fmt.Errorf("monitor: apply scaling %v: %w", s, err)
	}
	p.applied = s
	return nil
}

// ProcessChunk is ProcessBlock for a PCM chunk.
func (p *Pipeline) ProcessChunk(c pcm.Chunk) error {
	return p.ProcessBlock(int(p.format.Samples(c.Len())))
}
