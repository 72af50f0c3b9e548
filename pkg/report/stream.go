package report

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/pulseframe/netaudio/pkg/buffer"
	"github.com/pulseframe/netaudio/pkg/latency"
)

// DefaultStreamQueue is the per-subscriber queue depth of a StreamSink.
const DefaultStreamQueue = 64

// StreamSink broadcasts reports to websocket subscribers as msgpack
// binary frames. Each subscriber has its own drop-oldest queue, so a
// stuck client never backpressures the tuner.
type StreamSink struct {
	queueLen int
	upgrader websocket.Upgrader

	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	closed bool
}

type subscriber struct {
	ring *buffer.Ring[latency.Report]
}

// NewStreamSink creates a sink with the given per-subscriber queue depth;
// pass 0 for DefaultStreamQueue.
func NewStreamSink(queueLen int) *StreamSink {
	if queueLen <= 0 {
		queueLen = DefaultStreamQueue
	}
	return &StreamSink{
		queueLen: queueLen,
		subs:     make(map[*subscriber]struct{}),
	}
}

// Report implements latency.Reporter. It never blocks; subscribers that
// fall behind lose their oldest reports.
func (s *StreamSink) Report(r latency.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sub := range s.subs {
		sub.ring.Add(r)
	}
}

// ServeHTTP upgrades the request to a websocket and streams reports until
// the client disconnects or the sink is closed.
func (s *StreamSink) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	conn, err := s.upgrader.Upgrade(w, req, nil)
	if err != nil {
		slog.Warn("report: websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	sub := &subscriber{ring: buffer.NewRing[latency.Report](s.queueLen)}
	if !s.subscribe(sub) {
		return
	}
	defer s.unsubscribe(sub)

	// Drain the client side so a close frame ends the stream.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				sub.ring.Close()
				return
			}
		}
	}()

	for {
		r, err := sub.ring.Next()
		if err != nil {
			return
		}
		b, err := msgpack.Marshal(r)
		if err != nil {
			slog.Error("report: encode report", "err", err)
			return
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
			return
		}
	}
}

func (s *StreamSink) subscribe(sub *subscriber) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.subs[sub] = struct{}{}
	return true
}

func (s *StreamSink) unsubscribe(sub *subscriber) {
	s.mu.Lock()
	delete(s.subs, sub)
	s.mu.Unlock()
	sub.ring.Close()
}

// Close disconnects all subscribers. Further Report calls are dropped.
func (s *StreamSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("report: stream sink already closed")
	}
	s.closed = true
	for sub := range s.subs {
		sub.ring.Close()
	}
	clear(s.subs)
	return nil
}
