package latency

import (
	"errors"
	"fmt"
	"time"
)

// Defaults applied during config resolution.
const (
	// DefaultScalingInterval is how often the estimator runs and the
	// resampler scaling is updated.
	DefaultScalingInterval = 5 * time.Millisecond

	// DefaultScalingTolerance is the maximum allowed deviation of the
	// scaling coefficient from 1.0. 0.005 allows values in [0.995, 1.005].
	DefaultScalingTolerance = 0.005

	// responsiveTargetCeiling is the largest target latency for which the
	// responsive profile is deduced on the NIQ backend. Above it, or on
	// the e2e backend, drift estimates are noisier and the gradual
	// profile is a safer default.
	responsiveTargetCeiling = 40 * time.Millisecond

	// minLatencyTolerance and minStaleTolerance floor the derived
	// tolerances so tiny targets don't produce hair-trigger sessions.
	minLatencyTolerance = 5 * time.Millisecond
	minStaleTolerance   = 2 * time.Millisecond
)

// Duration is a time.Duration that round-trips through YAML and JSON as a
// human-readable string ("60ms", "1.5s").
type Duration time.Duration

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("latency: parse duration: %w", err)
	}
	*d = Duration(v)
	return nil
}

// DurationPtr returns a pointer to d, for filling optional Config fields.
func DurationPtr(d time.Duration) *Duration {
	v := Duration(d)
	return &v
}

// Config carries operator-facing latency settings before resolution.
//
// Optional duration fields distinguish "not set, use the session default"
// (nil) from "explicitly disabled" (zero). [Config.Resolve] turns a Config
// into a fully concrete [Tuning]; nothing else in this package consumes a
// Config directly.
type Config struct {
	// Backend selects the tracked latency kind. BackendDefault resolves
	// from the session role and feedback availability.
	Backend Backend `yaml:"backend,omitempty" json:"backend,omitempty"`

	// Profile selects tuning aggressiveness. ProfileDefault resolves
	// from the target latency and backend.
	Profile Profile `yaml:"profile,omitempty" json:"profile,omitempty"`

	// TargetLatency is the play-out latency the tuner maintains.
	// Zero disables tuning; nil uses the session default.
	TargetLatency *Duration `yaml:"target_latency,omitempty" json:"target_latency,omitempty"`

	// LatencyTolerance is the maximum allowed deviation from the target
	// before the session is terminated. Zero disables bounds checking;
	// nil derives a default from the target.
	LatencyTolerance *Duration `yaml:"latency_tolerance,omitempty" json:"latency_tolerance,omitempty"`

	// StaleTolerance is the maximum delay since the last received packet
	// before the queue is considered stalling. While the queue stalls,
	// bounds violations are suppressed. Zero disables stall suppression;
	// nil derives a default from the latency tolerance.
	StaleTolerance *Duration `yaml:"stale_tolerance,omitempty" json:"stale_tolerance,omitempty"`

	// ScalingInterval is the estimator update cadence.
	// Zero uses DefaultScalingInterval.
	ScalingInterval Duration `yaml:"scaling_interval,omitempty" json:"scaling_interval,omitempty"`

	// ScalingTolerance is the maximum deviation of the scaling
	// coefficient from 1.0. Zero uses DefaultScalingTolerance.
	ScalingTolerance float64 `yaml:"scaling_tolerance,omitempty" json:"scaling_tolerance,omitempty"`
}

// Session describes the streaming session a Config is resolved for.
type Session struct {
	// DefaultTarget is the target latency used when the config leaves it
	// unset. Required when the config does not set one.
	DefaultTarget time.Duration

	// Receiver reports whether this endpoint receives the stream.
	Receiver bool

	// Feedback reports whether both endpoints support the feedback
	// protocol carrying end-to-end measurements.
	Feedback bool
}

// Tuning is a fully resolved latency configuration. All durations are
// concrete and non-negative, the backend and profile are never the Default
// variants, and the checking/tuning switches are explicit.
type Tuning struct {
	Backend Backend
	Profile Profile

	TargetLatency    time.Duration
	LatencyTolerance time.Duration
	StaleTolerance   time.Duration

	ScalingInterval  time.Duration
	ScalingTolerance float64

	// EnableChecking is true when bounds checking runs: the tracked
	// latency must stay within LatencyTolerance of the target.
	EnableChecking bool

	// EnableTuning is true when the estimator runs and the scaling
	// coefficient is updated.
	EnableTuning bool
}

// Resolve produces a concrete Tuning from the config and session. Unset
// fields get session-derived defaults; set fields are kept as-is.
//
// Resolution is deterministic and stable: resolving the Config view of a
// resolved Tuning (see [Tuning.AsConfig]) yields the same Tuning.
func (c Config) Resolve(s Session) (Tuning, error) {
	var t Tuning

	switch c.Backend {
	case BackendDefault:
		// E2E needs bidirectional feedback support and only the
		// receiver can close the loop on it; everyone can measure the
		// incoming queue.
		if s.Receiver && s.Feedback {
			t.Backend = BackendE2E
		} else {
			t.Backend = BackendNIQ
		}
	case BackendNIQ, BackendE2E:
		t.Backend = c.Backend
	default:
		return Tuning{}, fmt.Errorf("latency: unknown backend %d", int(c.Backend))
	}

	switch {
	case c.TargetLatency == nil:
		if s.DefaultTarget < 0 {
			return Tuning{}, errors.New("latency: negative session default target")
		}
		t.TargetLatency = s.DefaultTarget
	case *c.TargetLatency < 0:
		return Tuning{}, errors.New("latency: negative target latency")
	default:
		t.TargetLatency = time.Duration(*c.TargetLatency)
	}

	switch {
	case c.LatencyTolerance == nil:
		t.LatencyTolerance = defaultLatencyTolerance(t.TargetLatency)
	case *c.LatencyTolerance < 0:
		return Tuning{}, errors.New("latency: negative latency tolerance")
	default:
		t.LatencyTolerance = time.Duration(*c.LatencyTolerance)
	}

	switch {
	case c.StaleTolerance == nil:
		t.StaleTolerance = defaultStaleTolerance(t.LatencyTolerance)
	case *c.StaleTolerance < 0:
		return Tuning{}, errors.New("latency: negative stale tolerance")
	default:
		t.StaleTolerance = time.Duration(*c.StaleTolerance)
	}

	switch {
	case c.ScalingInterval == 0:
		t.ScalingInterval = DefaultScalingInterval
	case c.ScalingInterval < 0:
		return Tuning{}, errors.New("latency: negative scaling interval")
	default:
		t.ScalingInterval = time.Duration(c.ScalingInterval)
	}

	switch {
	case c.ScalingTolerance == 0:
		t.ScalingTolerance = DefaultScalingTolerance
	case c.ScalingTolerance < 0 || c.ScalingTolerance >= 1:
		return Tuning{}, fmt.Errorf("latency: scaling tolerance %v out of range (0, 1)", c.ScalingTolerance)
	default:
		t.ScalingTolerance = c.ScalingTolerance
	}

	switch c.Profile {
	case ProfileDefault:
		t.Profile = deduceProfile(t.Backend, t.TargetLatency)
	case ProfileIntact, ProfileResponsive, ProfileGradual:
		t.Profile = c.Profile
	default:
		return Tuning{}, fmt.Errorf("latency: unknown profile %d", int(c.Profile))
	}

	// Checking and tuning are independent switches: Intact turns off
	// tuning only, and a zero tolerance turns off checking only.
	t.EnableChecking = t.LatencyTolerance > 0 && t.TargetLatency > 0
	t.EnableTuning = t.TargetLatency > 0 && t.Profile != ProfileIntact

	if t.LatencyTolerance > 0 && t.TargetLatency == 0 {
		return Tuning{}, errors.New("latency: latency tolerance set but target latency is zero")
	}
	return t, nil
}

// AsConfig returns the Config view of a resolved Tuning. Resolving it again
// (under any session) reproduces the same Tuning.
func (t Tuning) AsConfig() Config {
	return Config{
		Backend:          t.Backend,
		Profile:          t.Profile,
		TargetLatency:    DurationPtr(t.TargetLatency),
		LatencyTolerance: DurationPtr(t.LatencyTolerance),
		StaleTolerance:   DurationPtr(t.StaleTolerance),
		ScalingInterval:  Duration(t.ScalingInterval),
		ScalingTolerance: t.ScalingTolerance,
	}
}

// defaultLatencyTolerance derives a tolerance from the target: half the
// target, floored so small targets keep a workable margin.
func defaultLatencyTolerance(target time.Duration) time.Duration {
	if target == 0 {
		return 0
	}
	tol := target / 2
	if tol < minLatencyTolerance {
		tol = minLatencyTolerance
	}
	return tol
}

// defaultStaleTolerance derives the stalling threshold from the latency
// tolerance: a quarter of it, floored.
func defaultStaleTolerance(tolerance time.Duration) time.Duration {
	if tolerance == 0 {
		return 0
	}
	st := tolerance / 4
	if st < minStaleTolerance {
		st = minStaleTolerance
	}
	return st
}

// deduceProfile picks the tuning profile for a resolved backend and target.
// Queue-based measurements at low targets are fresh enough for responsive
// tuning; longer targets and end-to-end measurements need smoothing.
func deduceProfile(backend Backend, target time.Duration) Profile {
	if target == 0 {
		return ProfileIntact
	}
	if backend == BackendNIQ && target <= responsiveTargetCeiling {
		return ProfileResponsive
	}
	return ProfileGradual
}
