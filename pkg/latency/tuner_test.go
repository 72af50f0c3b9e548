package latency

import (
	"testing"
	"time"

	"github.com/pulseframe/netaudio/pkg/audio/pcm"
)

const testFormat = pcm.L16Mono48K

// tuningNIQ returns a checking+tuning configuration on the niq backend.
func tuningNIQ(t *testing.T, profile Profile) Tuning {
	t.Helper()
	cfg := Config{
		Backend:          BackendNIQ,
		Profile:          profile,
		TargetLatency:    DurationPtr(200 * time.Millisecond),
		LatencyTolerance: DurationPtr(50 * time.Millisecond),
		StaleTolerance:   DurationPtr(20 * time.Millisecond),
		ScalingInterval:  Duration(10 * time.Millisecond),
	}
	tuning, err := cfg.Resolve(Session{})
	if err != nil {
		t.Fatal(err)
	}
	return tuning
}

// intervalSamples is one scaling interval of tuningNIQ in samples.
const intervalSamples = 480 // 10ms at 48kHz

func niqMetrics(lat, stall time.Duration) Metrics {
	return Metrics{Fields: FieldNIQ, NIQLatency: lat, NIQStalling: stall}
}

// countingEstimator records update calls and returns a fixed coefficient.
type countingEstimator struct {
	calls int
	errs  []float64
	out   float64
}

func (e *countingEstimator) Update(errSamples float64) float64 {
	e.calls++
	e.errs = append(e.errs, errSamples)
	return e.out
}

func TestScalingZeroBeforeFirstCycle(t *testing.T) {
	tn, err := NewTuner(tuningNIQ(t, ProfileResponsive), testFormat)
	if err != nil {
		t.Fatal(err)
	}
	if got := tn.Scaling(); got != 0.0 {
		t.Fatalf("Scaling() = %v before any update cycle, want 0.0", got)
	}

	// Metrics alone must not trigger a computation.
	tn.WriteMetrics(niqMetrics(200*time.Millisecond, 0))
	if got := tn.Scaling(); got != 0.0 {
		t.Fatalf("Scaling() = %v after push without advance, want 0.0", got)
	}

	// Advancing short of the first boundary must not either.
	if !tn.AdvanceStream(intervalSamples - 1) {
		t.Fatal("AdvanceStream returned false")
	}
	if got := tn.Scaling(); got != 0.0 {
		t.Fatalf("Scaling() = %v before first boundary, want 0.0", got)
	}

	// One more sample crosses the boundary.
	if !tn.AdvanceStream(1) {
		t.Fatal("AdvanceStream returned false")
	}
	if got := tn.Scaling(); got == 0.0 {
		t.Fatal("Scaling() still 0.0 after first update cycle")
	}
}

func TestCheckingDisabledNeverFails(t *testing.T) {
	cfg := Config{
		Backend:          BackendNIQ,
		Profile:          ProfileResponsive,
		TargetLatency:    DurationPtr(200 * time.Millisecond),
		LatencyTolerance: DurationPtr(0), // checking disabled
		ScalingInterval:  Duration(10 * time.Millisecond),
	}
	tuning, err := cfg.Resolve(Session{})
	if err != nil {
		t.Fatal(err)
	}
	tn, err := NewTuner(tuning, testFormat)
	if err != nil {
		t.Fatal(err)
	}

	// Wildly divergent latency: no failure without checking.
	tn.WriteMetrics(niqMetrics(5*time.Second, 0))
	for i := 0; i < 100; i++ {
		if !tn.AdvanceStream(intervalSamples) {
			t.Fatal("AdvanceStream returned false with checking disabled")
		}
	}
}

func TestBoundsViolationTerminates(t *testing.T) {
	tn, err := NewTuner(tuningNIQ(t, ProfileResponsive), testFormat)
	if err != nil {
		t.Fatal(err)
	}

	// 400ms measured vs 200ms target, 50ms tolerance: out of bounds.
	tn.WriteMetrics(niqMetrics(400*time.Millisecond, 0))
	if tn.AdvanceStream(intervalSamples) {
		t.Fatal("AdvanceStream returned true for an out-of-bounds latency")
	}
	// The signal is terminal.
	tn.WriteMetrics(niqMetrics(200*time.Millisecond, 0))
	if tn.AdvanceStream(intervalSamples) {
		t.Fatal("AdvanceStream recovered after a terminal violation")
	}
}

func TestStallingSuppressesViolation(t *testing.T) {
	tn, err := NewTuner(tuningNIQ(t, ProfileResponsive), testFormat)
	if err != nil {
		t.Fatal(err)
	}

	// Out of bounds, but the queue is stalling beyond the 20ms stale
	// tolerance: the violation is suppressed for this cycle.
	tn.WriteMetrics(niqMetrics(400*time.Millisecond, 30*time.Millisecond))
	if !tn.AdvanceStream(intervalSamples) {
		t.Fatal("AdvanceStream returned false during stalling")
	}

	// Checking resumes once stalling ends.
	tn.WriteMetrics(niqMetrics(400*time.Millisecond, 0))
	if tn.AdvanceStream(intervalSamples) {
		t.Fatal("AdvanceStream returned true after stalling ended")
	}
}

func TestStallSuppressionDisabled(t *testing.T) {
	cfg := Config{
		Backend:          BackendNIQ,
		Profile:          ProfileResponsive,
		TargetLatency:    DurationPtr(200 * time.Millisecond),
		LatencyTolerance: DurationPtr(50 * time.Millisecond),
		StaleTolerance:   DurationPtr(0), // suppression disabled
		ScalingInterval:  Duration(10 * time.Millisecond),
	}
	tuning, err := cfg.Resolve(Session{})
	if err != nil {
		t.Fatal(err)
	}
	tn, err := NewTuner(tuning, testFormat)
	if err != nil {
		t.Fatal(err)
	}

	tn.WriteMetrics(niqMetrics(400*time.Millisecond, time.Hour))
	if tn.AdvanceStream(intervalSamples) {
		t.Fatal("stalling suppressed a violation with suppression disabled")
	}
}

func TestMissingMetricsSkipsCycle(t *testing.T) {
	tn, err := NewTuner(tuningNIQ(t, ProfileResponsive), testFormat)
	if err != nil {
		t.Fatal(err)
	}

	// No metrics yet: cycles are skipped, not failed.
	for i := 0; i < 10; i++ {
		if !tn.AdvanceStream(intervalSamples) {
			t.Fatal("AdvanceStream returned false before any metrics")
		}
	}
	if got := tn.Scaling(); got != 0.0 {
		t.Fatalf("Scaling() = %v without metrics, want 0.0", got)
	}

	// An e2e-only snapshot does not latch the niq backend either.
	tn.WriteMetrics(Metrics{Fields: FieldE2E, E2ELatency: 100 * time.Millisecond})
	if !tn.AdvanceStream(intervalSamples) {
		t.Fatal("AdvanceStream returned false with only e2e metrics on the niq backend")
	}
	if got := tn.Scaling(); got != 0.0 {
		t.Fatalf("Scaling() = %v, want 0.0: wrong metric kind must not feed the estimator", got)
	}
}

func TestE2EBackendTracksE2ELatency(t *testing.T) {
	cfg := Config{
		Backend:          BackendE2E,
		Profile:          ProfileGradual,
		TargetLatency:    DurationPtr(200 * time.Millisecond),
		LatencyTolerance: DurationPtr(50 * time.Millisecond),
		ScalingInterval:  Duration(10 * time.Millisecond),
	}
	tuning, err := cfg.Resolve(Session{})
	if err != nil {
		t.Fatal(err)
	}
	est := &countingEstimator{out: 1.0}
	tn, err := NewTuner(tuning, testFormat, WithEstimator(est))
	if err != nil {
		t.Fatal(err)
	}

	tn.WriteMetrics(Metrics{
		Fields:     FieldNIQ | FieldE2E,
		NIQLatency: 500 * time.Millisecond, // would violate if tracked
		E2ELatency: 210 * time.Millisecond,
	})
	if !tn.AdvanceStream(intervalSamples) {
		t.Fatal("AdvanceStream returned false: e2e backend must ignore niq latency")
	}
	if est.calls != 1 {
		t.Fatalf("estimator called %d times, want 1", est.calls)
	}
	wantErr := float64(testFormat.SamplesInDuration(10 * time.Millisecond))
	if est.errs[0] != wantErr {
		t.Errorf("estimator error = %v samples, want %v", est.errs[0], wantErr)
	}
}

func TestScalingClamped(t *testing.T) {
	tuning := tuningNIQ(t, ProfileResponsive)
	est := &countingEstimator{out: 2.0} // far out of tolerance
	tn, err := NewTuner(tuning, testFormat, WithEstimator(est))
	if err != nil {
		t.Fatal(err)
	}

	tn.WriteMetrics(niqMetrics(210*time.Millisecond, 0))
	if !tn.AdvanceStream(intervalSamples) {
		t.Fatal("AdvanceStream returned false")
	}
	want := float32(1.0 + tuning.ScalingTolerance)
	if got := tn.Scaling(); got != want {
		t.Errorf("Scaling() = %v, want clamp at %v", got, want)
	}

	est.out = 0.1
	if !tn.AdvanceStream(intervalSamples) {
		t.Fatal("AdvanceStream returned false")
	}
	want = float32(1.0 - tuning.ScalingTolerance)
	if got := tn.Scaling(); got != want {
		t.Errorf("Scaling() = %v, want clamp at %v", got, want)
	}
}

func TestUpdateCadenceBlockSizeInvariant(t *testing.T) {
	// The same total advance must produce identical update cycles
	// whether it arrives one sample at a time or as one large block.
	const total = intervalSamples*7 + 123

	run := func(advance func(tn *Tuner)) int {
		tuning := tuningNIQ(t, ProfileResponsive)
		est := &countingEstimator{out: 1.0}
		tn, err := NewTuner(tuning, testFormat, WithEstimator(est))
		if err != nil {
			t.Fatal(err)
		}
		tn.WriteMetrics(niqMetrics(210*time.Millisecond, 0))
		advance(tn)
		return est.calls
	}

	bySample := run(func(tn *Tuner) {
		for i := 0; i < total; i++ {
			tn.AdvanceStream(1)
		}
	})
	bulk := run(func(tn *Tuner) {
		tn.AdvanceStream(total)
	})

	if bySample != bulk {
		t.Errorf("update cycles: %d one-sample advances vs %d bulk, want equal", bySample, bulk)
	}
	if want := 7; bySample != want {
		t.Errorf("update cycles = %d for %d samples, want %d", bySample, total, want)
	}
}

func TestZeroAdvanceCrossesPendingBoundary(t *testing.T) {
	tuning := tuningNIQ(t, ProfileResponsive)
	est := &countingEstimator{out: 1.0}
	tn, err := NewTuner(tuning, testFormat, WithEstimator(est))
	if err != nil {
		t.Fatal(err)
	}

	// Without metrics, the boundary cycle is skipped (no estimator
	// call) but the boundary itself is consumed.
	tn.AdvanceStream(intervalSamples)
	if est.calls != 0 {
		t.Fatalf("estimator called %d times without metrics", est.calls)
	}

	// A zero-length advance must be accepted and harmless.
	tn.WriteMetrics(niqMetrics(210*time.Millisecond, 0))
	if !tn.AdvanceStream(0) {
		t.Fatal("AdvanceStream(0) returned false")
	}
}

func TestIntactProfileChecksButNeverTunes(t *testing.T) {
	// Intact disables tuning only; a non-zero tolerance keeps bounds
	// checking armed.
	tn, err := NewTuner(tuningNIQ(t, ProfileIntact), testFormat)
	if err != nil {
		t.Fatal(err)
	}

	// Within tolerance: advance succeeds and no coefficient appears.
	tn.WriteMetrics(niqMetrics(210*time.Millisecond, 0))
	if !tn.AdvanceStream(intervalSamples) {
		t.Fatal("AdvanceStream returned false for an in-bounds latency")
	}
	if got := tn.Scaling(); got != 0.0 {
		t.Fatalf("Scaling() = %v with tuning disabled, want 0.0", got)
	}

	// Out of bounds: checking still terminates the session.
	tn2, err := NewTuner(tuningNIQ(t, ProfileIntact), testFormat)
	if err != nil {
		t.Fatal(err)
	}
	tn2.WriteMetrics(niqMetrics(400*time.Millisecond, 0))
	if tn2.AdvanceStream(intervalSamples) {
		t.Fatal("intact profile disabled bounds checking")
	}
}

func TestConvergesToOneAtTarget(t *testing.T) {
	tn, err := NewTuner(tuningNIQ(t, ProfileResponsive), testFormat)
	if err != nil {
		t.Fatal(err)
	}

	// Latency held exactly at target: the coefficient must converge to
	// (and here, stay at) 1.0.
	tn.WriteMetrics(niqMetrics(200*time.Millisecond, 0))
	for i := 0; i < 1000; i++ {
		if !tn.AdvanceStream(intervalSamples) {
			t.Fatal("AdvanceStream returned false at target latency")
		}
	}
	if got := tn.Scaling(); got != 1.0 {
		t.Errorf("Scaling() = %v after holding at target, want 1.0", got)
	}
}

func TestScalingStaysWithinTolerance(t *testing.T) {
	tuning := tuningNIQ(t, ProfileResponsive)
	tn, err := NewTuner(tuning, testFormat)
	if err != nil {
		t.Fatal(err)
	}

	lo := float32(1.0 - tuning.ScalingTolerance)
	hi := float32(1.0 + tuning.ScalingTolerance)

	// Swing the latency around inside the bounds and verify the
	// coefficient never leaves [1-t, 1+t].
	lats := []time.Duration{210, 190, 240, 160, 200, 249, 151}
	for i := 0; i < 700; i++ {
		tn.WriteMetrics(niqMetrics(lats[i%len(lats)]*time.Millisecond, 0))
		if !tn.AdvanceStream(intervalSamples) {
			t.Fatal("AdvanceStream returned false")
		}
		if got := tn.Scaling(); got < lo || got > hi {
			t.Fatalf("Scaling() = %v outside [%v, %v] on cycle %d", got, lo, hi, i)
		}
	}
}

func TestReportCadence(t *testing.T) {
	tuning := tuningNIQ(t, ProfileResponsive)

	var reports []Report
	tn, err := NewTuner(tuning, testFormat,
		WithSessionID("sess-1"),
		WithReportInterval(100*time.Millisecond),
		WithReporter(ReporterFunc(func(r Report) { reports = append(reports, r) })),
	)
	if err != nil {
		t.Fatal(err)
	}

	tn.WriteMetrics(niqMetrics(210*time.Millisecond, 0))

	// 100ms report interval = 4800 samples; advance 1s in 10ms blocks.
	for i := 0; i < 100; i++ {
		tn.AdvanceStream(intervalSamples)
	}
	if len(reports) != 10 {
		t.Fatalf("got %d reports over 1s at 100ms cadence, want 10", len(reports))
	}

	r := reports[0]
	if r.SessionID != "sess-1" {
		t.Errorf("SessionID = %q", r.SessionID)
	}
	if r.Backend != "niq" || r.Profile != "responsive" {
		t.Errorf("report names = %q/%q, want niq/responsive", r.Backend, r.Profile)
	}
	if r.Metrics.NIQLatency != 210*time.Millisecond {
		t.Errorf("report metrics = %+v", r.Metrics)
	}
	if r.Scaling == 0 {
		t.Error("report carries no coefficient after update cycles")
	}
	if r.Position == 0 {
		t.Error("report carries no stream position")
	}
}

func TestNewTunerRejectsInconsistentTuning(t *testing.T) {
	valid := tuningNIQ(t, ProfileResponsive)

	tests := []struct {
		name   string
		mutate func(*Tuning)
	}{
		{"unresolved backend", func(tu *Tuning) { tu.Backend = BackendDefault }},
		{"unresolved profile", func(tu *Tuning) { tu.Profile = ProfileDefault }},
		{"tuning without target", func(tu *Tuning) { tu.TargetLatency = 0 }},
		{"checking without tolerance", func(tu *Tuning) { tu.LatencyTolerance = 0 }},
		{"zero scaling interval", func(tu *Tuning) { tu.ScalingInterval = 0 }},
		{"bad scaling tolerance", func(tu *Tuning) { tu.ScalingTolerance = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tu := valid
			tt.mutate(&tu)
			if _, err := NewTuner(tu, testFormat); err == nil {
				t.Error("NewTuner succeeded, want error")
			}
		})
	}
}

func TestConcurrentWriterAndAdvancer(t *testing.T) {
	tn, err := NewTuner(tuningNIQ(t, ProfileResponsive), testFormat)
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5000; i++ {
			tn.WriteMetrics(niqMetrics(200*time.Millisecond, 0))
		}
	}()
	for i := 0; i < 5000; i++ {
		tn.AdvanceStream(48)
		_ = tn.Scaling()
	}
	<-done
}
