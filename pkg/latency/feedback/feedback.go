// Package feedback carries latency measurements from the receiver back to
// the sender inside RTCP application-defined packets.
//
// The receiver measures queue and end-to-end latency locally, encodes the
// snapshot with [Encode], and ships it on its RTCP channel; the sender
// extracts snapshots from incoming compound packets with [Extract] and
// pushes them into its latency tuner. Durations travel as 32-bit RTP clock
// ticks, like the rest of RTCP.
package feedback

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/pion/rtcp"

	"github.com/pulseframe/netaudio/pkg/latency"
)

// PacketName is the 4-octet name identifying our application-defined RTCP
// packets.
const PacketName = "NLAT"

// subTypeMetrics is the APP packet subtype for a metrics snapshot.
const subTypeMetrics = 1

// payloadLen is fields octet + 3 reserved octets + 4 tick words.
const payloadLen = 4 + 4*4

// ErrNoMetrics is returned by Extract when a compound packet carries no
// metrics snapshot.
var ErrNoMetrics = errors.New("feedback: no metrics packet")

// Encode marshals a metrics snapshot into a serialized RTCP packet.
// clockRate is the stream sample rate used for tick conversion.
func Encode(ssrc uint32, clockRate int, m latency.Metrics) ([]byte, error) {
	if clockRate <= 0 {
		return nil, fmt.Errorf("feedback: invalid clock rate %d", clockRate)
	}

	data := make([]byte, payloadLen)
	data[0] = byte(m.Fields)
	binary.BigEndian.PutUint32(data[4:], durationToTicks(m.NIQLatency, clockRate))
	binary.BigEndian.PutUint32(data[8:], durationToTicks(m.NIQStalling, clockRate))
	binary.BigEndian.PutUint32(data[12:], durationToTicks(m.E2ELatency, clockRate))
	binary.BigEndian.PutUint32(data[16:], durationToTicks(m.Jitter, clockRate))

	pkt := &rtcp.ApplicationDefined{
		SubType: subTypeMetrics,
		SSRC:    ssrc,
		Name:    PacketName,
		Data:    data,
	}
	return pkt.Marshal()
}

// Extract finds the first metrics snapshot in a serialized RTCP compound
// packet. Non-metrics packets in the compound are ignored. Returns
// ErrNoMetrics when none is present.
func Extract(raw []byte, clockRate int) (latency.Metrics, error) {
	if clockRate <= 0 {
		return latency.Metrics{}, fmt.Errorf("feedback: invalid clock rate %d", clockRate)
	}

	pkts, err := rtcp.Unmarshal(raw)
	if err != nil {
		return latency.Metrics{}, fmt.Errorf("feedback: unmarshal rtcp: %w", err)
	}
	for _, p := range pkts {
		app, ok := p.(*rtcp.ApplicationDefined)
		if !ok || app.Name != PacketName || app.SubType != subTypeMetrics {
			continue
		}
		if len(app.Data) < payloadLen {
			return latency.Metrics{}, fmt.Errorf("feedback: truncated payload: %d bytes", len(app.Data))
		}
		return latency.Metrics{
			Fields:      latency.Field(app.Data[0]),
			NIQLatency:  ticksToDuration(binary.BigEndian.Uint32(app.Data[4:]), clockRate),
			NIQStalling: ticksToDuration(binary.BigEndian.Uint32(app.Data[8:]), clockRate),
			E2ELatency:  ticksToDuration(binary.BigEndian.Uint32(app.Data[12:]), clockRate),
			Jitter:      ticksToDuration(binary.BigEndian.Uint32(app.Data[16:]), clockRate),
		}, nil
	}
	return latency.Metrics{}, ErrNoMetrics
}

func durationToTicks(d time.Duration, rate int) uint32 {
	if d < 0 {
		d = 0
	}
	return uint32(int64(d) * int64(rate) / int64(time.Second))
}

func ticksToDuration(ticks uint32, rate int) time.Duration {
	return time.Duration(int64(ticks) * int64(time.Second) / int64(rate))
}
