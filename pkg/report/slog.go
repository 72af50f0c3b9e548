package report

import (
	"log/slog"

	"github.com/pulseframe/netaudio/pkg/latency"
)

// SlogSink logs each report at Info level.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink creates a sink writing to logger, or slog.Default when nil.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

// Report implements latency.Reporter.
func (s *SlogSink) Report(r latency.Report) {
	s.logger.Info("latency report",
		"session", r.SessionID,
		"position", r.Position,
		"backend", r.Backend,
		"profile", r.Profile,
		"scaling", r.Scaling,
		"niq_latency", r.Metrics.NIQLatency,
		"niq_stalling", r.Metrics.NIQStalling,
		"e2e_latency", r.Metrics.E2ELatency,
		"jitter", r.Metrics.Jitter,
	)
}
