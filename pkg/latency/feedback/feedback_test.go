package feedback

import (
	"errors"
	"testing"
	"time"

	"github.com/pion/rtcp"

	"github.com/pulseframe/netaudio/pkg/latency"
)

func TestEncodeExtractRoundTrip(t *testing.T) {
	in := latency.Metrics{
		Fields:      latency.FieldNIQ | latency.FieldJitter,
		NIQLatency:  62500 * time.Microsecond, // 3000 ticks at 48kHz
		NIQStalling: 20 * time.Millisecond,
		Jitter:      3 * time.Millisecond,
	}

	raw, err := Encode(0xCAFE, 48000, in)
	if err != nil {
		t.Fatal(err)
	}
	out, err := Extract(raw, 48000)
	if err != nil {
		t.Fatal(err)
	}

	if out.Fields != in.Fields {
		t.Errorf("Fields = %v, want %v", out.Fields, in.Fields)
	}
	if out.NIQLatency != in.NIQLatency {
		t.Errorf("NIQLatency = %v, want %v", out.NIQLatency, in.NIQLatency)
	}
	if out.NIQStalling != in.NIQStalling {
		t.Errorf("NIQStalling = %v, want %v", out.NIQStalling, in.NIQStalling)
	}
	if out.Jitter != in.Jitter {
		t.Errorf("Jitter = %v, want %v", out.Jitter, in.Jitter)
	}
	if out.E2ELatency != 0 {
		t.Errorf("E2ELatency = %v, want 0", out.E2ELatency)
	}
}

func TestExtractIgnoresForeignPackets(t *testing.T) {
	// A compound with a receiver report and an unrelated APP packet
	// before ours.
	rr := &rtcp.ReceiverReport{SSRC: 1}
	other := &rtcp.ApplicationDefined{SubType: 2, SSRC: 1, Name: "XXXX", Data: []byte{0, 0, 0, 0}}

	in := latency.Metrics{Fields: latency.FieldE2E, E2ELatency: 150 * time.Millisecond}
	ours, err := Encode(7, 48000, in)
	if err != nil {
		t.Fatal(err)
	}
	head, err := rtcp.Marshal([]rtcp.Packet{rr, other})
	if err != nil {
		t.Fatal(err)
	}

	out, err := Extract(append(head, ours...), 48000)
	if err != nil {
		t.Fatal(err)
	}
	if !out.Fields.Has(latency.FieldE2E) || out.E2ELatency != 150*time.Millisecond {
		t.Errorf("Extract = %+v", out)
	}
}

func TestExtractNoMetrics(t *testing.T) {
	raw, err := rtcp.Marshal([]rtcp.Packet{&rtcp.ReceiverReport{SSRC: 1}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Extract(raw, 48000); !errors.Is(err, ErrNoMetrics) {
		t.Fatalf("Extract = %v, want ErrNoMetrics", err)
	}
}

func TestEncodeRejectsBadClockRate(t *testing.T) {
	if _, err := Encode(1, 0, latency.Metrics{}); err == nil {
		t.Error("Encode with zero clock rate succeeded")
	}
	if _, err := Extract([]byte{0}, -1); err == nil {
		t.Error("Extract with negative clock rate succeeded")
	}
}
