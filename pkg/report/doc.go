// Package report contains the diagnostic sinks fed by the latency tuner:
// a slog sink for structured logs, a websocket stream sink for live
// observation, and a badger-backed store for post-mortem replay.
//
// All sinks implement [latency.Reporter] and never block the playback
// goroutine: slow consumers lose the oldest reports, not new audio.
package report
