package latency

// Estimator is the feedback filter that drives latency toward the target.
// It is session-scoped and stateful; the Tuner owns exactly one instance
// and is its only caller.
//
// Implementations must be computation-only: no blocking, no allocation in
// steady state, no I/O. The numeric method is up to the implementation;
// only the contract below matters to the tuner.
type Estimator interface {
	// Update consumes the signed deviation of the measured latency from
	// the target, in sample-count units, and returns the updated
	// playback-rate scaling coefficient. The returned value is expected
	// near 1.0; values above 1.0 speed playback up and drain latency,
	// values below slow it down and build latency.
	Update(errSamples float64) float64
}

// Responsiveness parameters per profile. Gains are per sample of latency
// error, so they are tiny: a 100ms error at 48kHz is 4800 samples.
const (
	responsiveGainP = 1e-6
	responsiveGainI = 5e-9
	responsiveDecim = 5

	gradualGainP = 1e-7
	gradualGainI = 1e-9
	gradualDecim = 10
)

// piEstimator is the default Estimator: a decimating PI controller.
// Incoming errors are averaged over a decimation window to reject jitter
// noise, then fed through proportional and integral terms. The integral
// term absorbs constant clock drift; the proportional term reacts to
// residual offset.
type piEstimator struct {
	gainP float64
	gainI float64

	decim int
	acc   float64
	count int

	integ    float64
	maxInteg float64

	out float64
}

// NewEstimator returns the built-in estimator for the given profile.
// ProfileResponsive reacts within a few update cycles; ProfileGradual
// smooths over a longer window. scalingTolerance bounds the integral term
// so a long latency excursion cannot wind the controller up beyond the
// range the tuner would clamp to anyway.
func NewEstimator(profile Profile, scalingTolerance float64) Estimator {
	e := &piEstimator{out: 1.0}
	switch profile {
	case ProfileResponsive:
		e.gainP = responsiveGainP
		e.gainI = responsiveGainI
		e.decim = responsiveDecim
	default:
		e.gainP = gradualGainP
		e.gainI = gradualGainI
		e.decim = gradualDecim
	}
	e.maxInteg = scalingTolerance / e.gainI
	return e
}

func (e *piEstimator) Update(errSamples float64) float64 {
	e.acc += errSamples
	e.count++
	if e.count < e.decim {
		return e.out
	}

	avg := e.acc / float64(e.decim)
	e.acc = 0
	e.count = 0

	e.integ += avg
	if e.integ > e.maxInteg {
		e.integ = e.maxInteg
	} else if e.integ < -e.maxInteg {
		e.integ = -e.maxInteg
	}

	e.out = 1.0 + e.gainP*avg + e.gainI*e.integ
	return e.out
}
