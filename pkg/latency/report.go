package latency

// Report is a periodic diagnostic snapshot emitted by the tuner at the
// report cadence.
type Report struct {
	// SessionID identifies the streaming session.
	SessionID string `json:"session_id" msgpack:"session_id"`

	// Position is the stream position in samples at emission time.
	Position uint64 `json:"position" msgpack:"position"`

	// Backend and Profile are the stable names of the resolved variants.
	Backend string `json:"backend" msgpack:"backend"`
	Profile string `json:"profile" msgpack:"profile"`

	// Scaling is the current coefficient; 0 before the first update.
	Scaling float32 `json:"scaling" msgpack:"scaling"`

	// Metrics is the latest snapshot the tuner has seen. Zero value when
	// nothing was pushed yet.
	Metrics Metrics `json:"metrics" msgpack:"metrics"`
}

// Reporter receives periodic reports from a tuner. Report is invoked on
// the goroutine driving [Tuner.AdvanceStream], so implementations must not
// block; hand the value to a drop-oldest queue if the sink can be slow.
type Reporter interface {
	Report(r Report)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(r Report)

// Report implements Reporter.
func (f ReporterFunc) Report(r Report) { f(r) }
