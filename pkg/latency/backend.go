package latency

import "fmt"

// Backend selects which latency measurement the tuner tracks and tunes
// toward the target.
type Backend int

const (
	// BackendDefault deduces the best backend for the session during
	// config resolution.
	BackendDefault Backend = iota

	// BackendNIQ tracks the network incoming queue length: an estimate of
	// how much media sits in the receiver packet queue. Computed on the
	// receiver without any signaling protocol, reported back to the
	// sender via feedback packets.
	BackendNIQ

	// BackendE2E tracks the end-to-end delay: the time from capturing a
	// frame on the sender to playing it on the receiver. Requires
	// feedback protocol support on both sides.
	BackendE2E
)

// String returns the stable human-readable name of the backend.
func (b Backend) String() string {
	switch b {
	case BackendDefault:
		return "default"
	case BackendNIQ:
		return "niq"
	case BackendE2E:
		return "e2e"
	}
	return fmt.Sprintf("backend(%d)", int(b))
}

// MarshalText implements encoding.TextMarshaler.
func (b Backend) MarshalText() ([]byte, error) {
	switch b {
	case BackendDefault, BackendNIQ, BackendE2E:
		return []byte(b.String()), nil
	}
	return nil, fmt.Errorf("latency: unknown backend %d", int(b))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *Backend) UnmarshalText(text []byte) error {
	switch string(text) {
	case "", "default":
		*b = BackendDefault
	case "niq":
		*b = BackendNIQ
	case "e2e":
		*b = BackendE2E
	default:
		return fmt.Errorf("latency: unknown backend %q", text)
	}
	return nil
}

// Profile selects whether and how aggressively the tuner adjusts playback
// rate to compensate clock drift and jitter.
type Profile int

const (
	// ProfileDefault deduces the best profile for the session during
	// config resolution.
	ProfileDefault Profile = iota

	// ProfileIntact disables latency tuning. Bounds checking, when
	// enabled by a non-zero tolerance, still runs.
	ProfileIntact

	// ProfileResponsive reacts quickly to latency deviation. Good for
	// lower network latency and jitter.
	ProfileResponsive

	// ProfileGradual adjusts slowly and smoothly. Good for higher
	// network latency and jitter.
	ProfileGradual
)

// String returns the stable human-readable name of the profile.
func (p Profile) String() string {
	switch p {
	case ProfileDefault:
		return "default"
	case ProfileIntact:
		return "intact"
	case ProfileResponsive:
		return "responsive"
	case ProfileGradual:
		return "gradual"
	}
	return fmt.Sprintf("profile(%d)", int(p))
}

// MarshalText implements encoding.TextMarshaler.
func (p Profile) MarshalText() ([]byte, error) {
	switch p {
	case ProfileDefault, ProfileIntact, ProfileResponsive, ProfileGradual:
		return []byte(p.String()), nil
	}
	return nil, fmt.Errorf("latency: unknown profile %d", int(p))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Profile) UnmarshalText(text []byte) error {
	switch string(text) {
	case "", "default":
		*p = ProfileDefault
	case "intact":
		*p = ProfileIntact
	case "responsive":
		*p = ProfileResponsive
	case "gradual":
		*p = ProfileGradual
	default:
		return fmt.Errorf("latency: unknown profile %q", text)
	}
	return nil
}
