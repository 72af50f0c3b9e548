package report

import (
	"testing"
	"time"

	"github.com/pulseframe/netaudio/pkg/latency"
)

func testReport(session string, pos uint64) latency.Report {
	return latency.Report{
		SessionID: session,
		Position:  pos,
		Backend:   "niq",
		Profile:   "responsive",
		Scaling:   1.001,
		Metrics: latency.Metrics{
			Fields:     latency.FieldNIQ,
			NIQLatency: 200 * time.Millisecond,
		},
	}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(StoreOptions{InMemory: true})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreAppendReplay(t *testing.T) {
	s := openTestStore(t)

	for _, pos := range []uint64{480, 960, 1440} {
		if err := s.Append(testReport("sess-a", pos)); err != nil {
			t.Fatal(err)
		}
	}

	var got []latency.Report
	for r, err := range s.Replay("sess-a") {
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, r)
	}
	if len(got) != 3 {
		t.Fatalf("replayed %d reports, want 3", len(got))
	}
	for i, want := range []uint64{480, 960, 1440} {
		if got[i].Position != want {
			t.Fatalf("report %d at position %d, want %d", i, got[i].Position, want)
		}
	}
	if got[0].Metrics.NIQLatency != 200*time.Millisecond {
		t.Fatalf("NIQLatency = %v, want 200ms", got[0].Metrics.NIQLatency)
	}
}

func TestStoreReplayOrderSurvivesLargePositions(t *testing.T) {
	s := openTestStore(t)

	// Positions spanning digit counts must still replay in stream order.
	positions := []uint64{5, 50, 500, 5000, 50000, 5000000000}
	for _, pos := range positions {
		if err := s.Append(testReport("sess-b", pos)); err != nil {
			t.Fatal(err)
		}
	}

	i := 0
	for r, err := range s.Replay("sess-b") {
		if err != nil {
			t.Fatal(err)
		}
		if r.Position != positions[i] {
			t.Fatalf("report %d at position %d, want %d", i, r.Position, positions[i])
		}
		i++
	}
	if i != len(positions) {
		t.Fatalf("replayed %d reports, want %d", i, len(positions))
	}
}

func TestStoreSessions(t *testing.T) {
	s := openTestStore(t)

	for _, sess := range []string{"a", "b", "b"} {
		if err := s.Append(testReport(sess, 480)); err != nil {
			t.Fatal(err)
		}
	}

	ids, err := s.Sessions()
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 {
		t.Fatalf("Sessions() = %v, want 2 ids", ids)
	}
}

func TestStoreReplayIsolatesSessions(t *testing.T) {
	s := openTestStore(t)

	if err := s.Append(testReport("a", 480)); err != nil {
		t.Fatal(err)
	}
	if err := s.Append(testReport("ab", 960)); err != nil {
		t.Fatal(err)
	}

	n := 0
	for r, err := range s.Replay("a") {
		if err != nil {
			t.Fatal(err)
		}
		if r.SessionID != "a" {
			t.Fatalf("replayed session %q, want %q", r.SessionID, "a")
		}
		n++
	}
	if n != 1 {
		t.Fatalf("replayed %d reports for session a, want 1", n)
	}
}

func TestStoreAsyncReporter(t *testing.T) {
	s := openTestStore(t)

	s.Report(testReport("sess-c", 480))
	s.Report(testReport("sess-c", 960))

	deadline := time.After(5 * time.Second)
	for {
		n := 0
		for _, err := range s.Replay("sess-c") {
			if err != nil {
				t.Fatal(err)
			}
			n++
		}
		if n == 2 {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("background writer persisted %d reports, want 2", n)
		case <-time.After(10 * time.Millisecond):
		}
	}
}
