package latency

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/pulseframe/netaudio/pkg/audio/pcm"
)

// DefaultReportInterval is the cadence at which a Tuner emits diagnostic
// reports, in stream time. Much coarser than the scaling interval.
const DefaultReportInterval = 5 * time.Second

// Option configures a Tuner.
type Option func(*Tuner)

// WithEstimator injects the feedback filter. Without it the built-in
// estimator for the resolved profile is used. Ignored when tuning is
// disabled.
func WithEstimator(e Estimator) Option {
	return func(t *Tuner) { t.fe = e }
}

// WithReporter sets the diagnostics sink receiving periodic reports.
func WithReporter(r Reporter) Option {
	return func(t *Tuner) { t.reporter = r }
}

// WithSessionID stamps reports with the given session identifier.
func WithSessionID(id string) Option {
	return func(t *Tuner) { t.sessionID = id }
}

// WithReportInterval overrides DefaultReportInterval.
func WithReportInterval(d time.Duration) Option {
	return func(t *Tuner) { t.reportEvery = d }
}

// Tuner is the adaptive latency controller for one streaming session.
//
// It consumes latency measurements, advances with the audio stream, and
// maintains the playback-rate scaling coefficient the resampler applies.
// At a configured cadence (in stream samples, so behavior does not depend
// on block size) it selects the tracked latency per the resolved backend,
// checks it against the tolerance bounds, and feeds the deviation to the
// frequency estimator.
//
// See the package documentation for the two-role concurrency contract.
type Tuner struct {
	tuning Tuning
	format pcm.Format

	fe          Estimator
	reporter    Reporter
	sessionID   string
	reportEvery time.Duration

	// Written by WriteMetrics, read by AdvanceStream.
	slot atomic.Pointer[Metrics]

	streamPos uint64

	updateInterval uint64
	updatePos      uint64

	reportInterval uint64
	reportPos      uint64

	scaling pcm.AtomicFloat32

	hasNIQ    bool
	hasE2E    bool
	hasJitter bool

	// Latest measurements in sample-count units.
	niqLatency  int64
	niqStalling int64
	e2eLatency  int64
	jitter      int64

	targetLatency int64
	minLatency    int64
	maxLatency    int64
	maxStalling   int64

	failed bool
}

// NewTuner creates the latency controller for a session from a resolved
// Tuning and the stream sample format. It returns an error when the tuning
// is not mutually consistent; a returned Tuner is always usable.
func NewTuner(tuning Tuning, format pcm.Format, opts ...Option) (*Tuner, error) {
	if tuning.Backend != BackendNIQ && tuning.Backend != BackendE2E {
		return nil, fmt.Errorf("latency: unresolved backend %q", tuning.Backend)
	}
	if tuning.Profile == ProfileDefault {
		return nil, errors.New("latency: unresolved profile")
	}
	if tuning.EnableTuning && tuning.TargetLatency <= 0 {
		return nil, errors.New("latency: tuning enabled with zero target latency")
	}
	if tuning.EnableChecking && tuning.LatencyTolerance <= 0 {
		return nil, errors.New("latency: checking enabled with zero latency tolerance")
	}
	if tuning.ScalingInterval <= 0 {
		return nil, errors.New("latency: scaling interval must be positive")
	}
	if tuning.TargetLatency < 0 || tuning.LatencyTolerance < 0 || tuning.StaleTolerance < 0 {
		return nil, errors.New("latency: negative duration in resolved tuning")
	}
	if tuning.EnableTuning && (tuning.ScalingTolerance <= 0 || tuning.ScalingTolerance >= 1) {
		return nil, fmt.Errorf("latency: scaling tolerance %v out of range (0, 1)", tuning.ScalingTolerance)
	}

	t := &Tuner{
		tuning:      tuning,
		format:      format,
		reportEvery: DefaultReportInterval,

		updateInterval: uint64(format.SamplesInDuration(tuning.ScalingInterval)),

		targetLatency: format.SamplesInDuration(tuning.TargetLatency),
		maxStalling:   format.SamplesInDuration(tuning.StaleTolerance),
	}
	for _, opt := range opts {
		opt(t)
	}

	if t.updateInterval == 0 {
		return nil, fmt.Errorf("latency: scaling interval %v shorter than one sample at %v",
			tuning.ScalingInterval, format)
	}
	t.updatePos = t.updateInterval

	if t.reportEvery <= 0 {
		return nil, errors.New("latency: report interval must be positive")
	}
	t.reportInterval = uint64(t.format.SamplesInDuration(t.reportEvery))
	if t.reportInterval == 0 {
		t.reportInterval = t.updateInterval
	}
	t.reportPos = t.reportInterval

	tol := format.SamplesInDuration(tuning.LatencyTolerance)
	t.minLatency = t.targetLatency - tol
	t.maxLatency = t.targetLatency + tol

	if tuning.EnableTuning && t.fe == nil {
		t.fe = NewEstimator(tuning.Profile, tuning.ScalingTolerance)
	}
	if !tuning.EnableTuning {
		t.fe = nil
	}
	return t, nil
}

// Tuning returns the resolved configuration the tuner runs with.
func (t *Tuner) Tuning() Tuning {
	return t.tuning
}

// WriteMetrics stores a fresh measurement snapshot. The tuner picks it up
// on the next update cycle; pushing has no other side effect. Safe to call
// concurrently with AdvanceStream and Scaling, from one producer.
func (t *Tuner) WriteMetrics(m Metrics) {
	t.slot.Store(&m)
}

// AdvanceStream advances the stream position by nSamples and runs any
// update cycles whose boundary was crossed. A zero-length advance is
// allowed and still processes a pending boundary.
//
// It returns false when the tracked latency went out of bounds and the
// session must be terminated. The signal is terminal: the tuner keeps
// accepting calls, but its output is no longer meaningful.
func (t *Tuner) AdvanceStream(nSamples int) bool {
	if nSamples < 0 {
		panic("latency: negative stream advance")
	}
	t.streamPos += uint64(nSamples)

	for t.streamPos >= t.updatePos {
		if !t.update() {
			t.failed = true
		}
		t.updatePos += t.updateInterval
	}

	if t.reporter != nil && t.streamPos >= t.reportPos {
		t.report()
		for t.reportPos <= t.streamPos {
			t.reportPos += t.reportInterval
		}
	}
	return !t.failed
}

// Scaling returns the current playback-rate scaling coefficient, close to
// 1.0. It returns 0.0 until the first update cycle has computed one, and
// always 0.0 when tuning is disabled. Safe to call concurrently with
// WriteMetrics.
func (t *Tuner) Scaling() float32 {
	return t.scaling.Load()
}

// update runs one cycle: absorb the latest snapshot, select the tracked
// latency, check bounds, recompute scaling. Returns false on an
// unsuppressed bounds violation.
func (t *Tuner) update() bool {
	if m := t.slot.Load(); m != nil {
		if m.Fields.Has(FieldNIQ) {
			t.hasNIQ = true
			t.niqLatency = t.format.SamplesInDuration(m.NIQLatency)
			t.niqStalling = t.format.SamplesInDuration(m.NIQStalling)
		}
		if m.Fields.Has(FieldE2E) {
			t.hasE2E = true
			t.e2eLatency = t.format.SamplesInDuration(m.E2ELatency)
		}
		if m.Fields.Has(FieldJitter) {
			t.hasJitter = true
			t.jitter = t.format.SamplesInDuration(m.Jitter)
		}
	}

	var lat int64
	switch t.tuning.Backend {
	case BackendNIQ:
		if !t.hasNIQ {
			return true
		}
		lat = t.niqLatency
	case BackendE2E:
		if !t.hasE2E {
			return true
		}
		lat = t.e2eLatency
	}

	if t.tuning.EnableChecking && !t.checkBounds(lat) {
		return false
	}
	if t.fe != nil {
		t.computeScaling(lat)
	}
	return true
}

// checkBounds reports whether the tracked latency is acceptable this
// cycle. An out-of-bounds latency is tolerated while the incoming queue
// stalls: without new packets the queue estimate only decays and says
// nothing about the link. Checking resumes as soon as packets flow again.
func (t *Tuner) checkBounds(lat int64) bool {
	if lat >= t.minLatency && lat <= t.maxLatency {
		return true
	}
	if t.maxStalling > 0 && t.niqStalling > t.maxStalling {
		return true
	}
	slog.Warn("latency: out of bounds, terminating session",
		"session", t.sessionID,
		"latency", t.format.DurationOfSamples(lat),
		"target", t.tuning.TargetLatency,
		"tolerance", t.tuning.LatencyTolerance)
	return false
}

// computeScaling feeds the signed deviation to the estimator and publishes
// the clamped coefficient.
func (t *Tuner) computeScaling(lat int64) {
	coeff := t.fe.Update(float64(lat - t.targetLatency))

	if hi := 1.0 + t.tuning.ScalingTolerance; coeff > hi {
		coeff = hi
	}
	if lo := 1.0 - t.tuning.ScalingTolerance; coeff < lo {
		coeff = lo
	}
	t.scaling.Store(float32(coeff))
}

// report emits a diagnostic snapshot to the reporter.
func (t *Tuner) report() {
	r := Report{
		SessionID: t.sessionID,
		Position:  t.streamPos,
		Backend:   t.tuning.Backend.String(),
		Profile:   t.tuning.Profile.String(),
		Scaling:   t.scaling.Load(),
	}
	if m := t.slot.Load(); m != nil {
		r.Metrics = *m
	}
	t.reporter.Report(r)
}
