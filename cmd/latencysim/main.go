// Package main provides the latencysim CLI tool.
//
// Usage:
//
//	latencysim <command> [flags]
//
// Commands:
//
//	run      - Simulate a streaming session from a YAML scenario file
//	sessions - List sessions stored in a report store
//	replay   - Print the stored reports of one session
//
// A scenario file describes the network (packet cadence, clock drift,
// arrival jitter) and the latency configuration of the receiver. The
// simulation runs the full receive path on a virtual clock: incoming
// queue, metrics collector, latency tuner and resampler.
package main

import (
	"fmt"
	"os"

	"github.com/pulseframe/netaudio/cmd/latencysim/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
