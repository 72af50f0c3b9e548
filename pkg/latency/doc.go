// Package latency implements the adaptive latency controller of the
// streaming engine.
//
// On the receiver, a queue monitor measures how much media is buffered but
// not yet played; on the sender, a feedback reader obtains the same
// measurements from the remote peer. Either way the measurements land in a
// [Tuner], which compares the tracked latency against the configured target
// and computes a playback-rate scaling coefficient (a value near 1.0) for
// the resampler, compensating the clock drift between the two endpoints.
//
// The Tuner also polices the session: when the tracked latency diverges
// beyond the configured tolerance, the session is declared failed and the
// stream owner is expected to tear it down.
//
// Two roles interact with a Tuner:
//
//   - the measurement producer calls [Tuner.WriteMetrics] whenever fresh
//     measurements are available;
//   - the audio processing loop calls [Tuner.AdvanceStream] once per block
//     and reads [Tuner.Scaling] for the resampler.
//
// The two roles may run on different goroutines; calls within one role must
// be serialized by the caller. No Tuner operation blocks or performs I/O,
// so the advance path is safe to call from a real-time audio thread.
package latency
