package report

import "github.com/pulseframe/netaudio/pkg/latency"

type multiReporter []latency.Reporter

// Multi fans each report out to every sink in order. Nil sinks are
// skipped.
func Multi(sinks ...latency.Reporter) latency.Reporter {
	var m multiReporter
	for _, s := range sinks {
		if s != nil {
			m = append(m, s)
		}
	}
	return m
}

func (m multiReporter) Report(r latency.Report) {
	for _, s := range m {
		s.Report(r)
	}
}
