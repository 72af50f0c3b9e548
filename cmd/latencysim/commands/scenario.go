package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/pulseframe/netaudio/pkg/audio/pcm"
	"github.com/pulseframe/netaudio/pkg/latency"
)

// Scenario describes one simulated streaming session.
type Scenario struct {
	// Format is the PCM format of the stream. Defaults to
	// "audio/L16; rate=48000; channels=1".
	Format *pcm.Format `yaml:"format" json:"format,omitempty"`

	// Duration is the simulated stream length. Defaults to 30s.
	Duration latency.Duration `yaml:"duration" json:"duration"`

	// PacketInterval is the audio carried by one packet. Defaults to 10ms.
	PacketInterval latency.Duration `yaml:"packet_interval" json:"packet_interval"`

	// StartQueue prefills the incoming queue before playback starts.
	// Defaults to the resolved target latency.
	StartQueue latency.Duration `yaml:"start_queue" json:"start_queue"`

	// DriftPPM is the sender clock drift in parts per million. Positive
	// drift means the sender runs fast and the queue grows.
	DriftPPM float64 `yaml:"drift_ppm" json:"drift_ppm"`

	// Jitter is the standard deviation of the packet arrival noise.
	Jitter latency.Duration `yaml:"jitter" json:"jitter"`

	// Seed makes the arrival noise reproducible. 0 picks a fixed default.
	Seed int64 `yaml:"seed" json:"seed"`

	// Latency configures the tuner.
	Latency latency.Config `yaml:"latency" json:"latency"`
}

// loadScenario reads and validates a scenario YAML file.
func loadScenario(path string) (Scenario, error) {
	var sc Scenario
	data, err := os.ReadFile(path)
	if err != nil {
		return sc, fmt.Errorf("read scenario %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return sc, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if sc.Duration <= 0 {
		sc.Duration = latency.Duration(30 * time.Second)
	}
	if sc.PacketInterval <= 0 {
		sc.PacketInterval = latency.Duration(10 * time.Millisecond)
	}
	if sc.Jitter < 0 {
		return sc, fmt.Errorf("scenario %s: negative jitter", path)
	}
	if sc.Seed == 0 {
		sc.Seed = 1
	}
	return sc, nil
}

func (sc Scenario) format() pcm.Format {
	if sc.Format != nil {
		return *sc.Format
	}
	return pcm.L16Mono48K
}
