package report

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/pulseframe/netaudio/pkg/buffer"
	"github.com/pulseframe/netaudio/pkg/latency"
)

// Key layout:
//
//	r:<session>:<position, 20 digits>  -> msgpack(latency.Report)
//	s:<session>                        -> empty marker
//
// The zero-padded position keeps badger's lexicographic iteration in
// stream order.
const (
	reportPrefix  = "r:"
	sessionPrefix = "s:"
)

// StoreOptions configures the report store.
type StoreOptions struct {
	// Dir is the directory for the badger data files. Required unless
	// InMemory is set.
	Dir string

	// InMemory runs badger without disk persistence. For tests.
	InMemory bool

	// QueueLen is the depth of the asynchronous write queue; 0 means
	// DefaultStreamQueue.
	QueueLen int
}

// Store persists reports in badger for post-mortem replay. Report calls
// are queued and written on a background goroutine, so the playback
// goroutine never waits on disk.
type Store struct {
	db    *badger.DB
	queue *buffer.Ring[latency.Report]
	done  sync.WaitGroup
}

// OpenStore opens (or creates) a report store.
func OpenStore(opts StoreOptions) (*Store, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("report: StoreOptions.Dir is required for on-disk mode")
	}
	if opts.QueueLen <= 0 {
		opts.QueueLen = DefaultStreamQueue
	}
	dbOpts := badger.DefaultOptions(opts.Dir).WithLogger(quietLogger{})
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("report: open store: %w", err)
	}
	s := &Store{
		db:    db,
		queue: buffer.NewRing[latency.Report](opts.QueueLen),
	}
	s.done.Add(1)
	go s.writeLoop()
	return s, nil
}

// Report implements latency.Reporter. The report is queued; when the
// queue is full the oldest unwritten report is dropped.
func (s *Store) Report(r latency.Report) {
	if _, dropped, err := s.queue.Add(r); err == nil && dropped {
		slog.Warn("report: store queue full, dropped oldest report", "session", r.SessionID)
	}
}

func (s *Store) writeLoop() {
	defer s.done.Done()
	for {
		r, err := s.queue.Next()
		if err != nil {
			return
		}
		if err := s.Append(r); err != nil {
			slog.Error("report: persist report", "session", r.SessionID, "err", err)
		}
	}
}

// Append writes one report synchronously.
func (s *Store) Append(r latency.Report) error {
	val, err := msgpack.Marshal(r)
	if err != nil {
		return fmt.Errorf("report: encode report: %w", err)
	}
	key := fmt.Sprintf("%s%s:%020d", reportPrefix, r.SessionID, r.Position)
	marker := sessionPrefix + r.SessionID
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(key), val); err != nil {
			return err
		}
		return txn.Set([]byte(marker), nil)
	})
}

// Sessions lists the IDs of all stored sessions.
func (s *Store) Sessions() ([]string, error) {
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(sessionPrefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			k := it.Item().Key()
			ids = append(ids, string(k[len(sessionPrefix):]))
		}
		return nil
	})
	return ids, err
}

// Replay iterates the stored reports of one session in stream order.
func (s *Store) Replay(sessionID string) iter.Seq2[latency.Report, error] {
	prefix := []byte(reportPrefix + sessionID + ":")
	return func(yield func(latency.Report, error) bool) {
		err := s.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix
			it := txn.NewIterator(opts)
			defer it.Close()
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				val, err := it.Item().ValueCopy(nil)
				if err != nil {
					if !yield(latency.Report{}, err) {
						return nil
					}
					continue
				}
				var r latency.Report
				if err := msgpack.Unmarshal(val, &r); err != nil {
					err = fmt.Errorf("report: decode report: %w", err)
					if !yield(latency.Report{}, err) {
						return nil
					}
					continue
				}
				if !yield(r, nil) {
					return nil
				}
			}
			return nil
		})
		if err != nil {
			yield(latency.Report{}, err)
		}
	}
}

// Close drains the write queue and closes the database.
func (s *Store) Close() error {
	s.queue.CloseWrite()
	s.done.Wait()
	return s.db.Close()
}

// quietLogger suppresses badger's info and debug chatter.
type quietLogger struct{}

func (quietLogger) Errorf(f string, v ...interface{}) { slog.Error(fmt.Sprintf("badger: "+f, v...)) }
func (quietLogger) Warningf(f string, v ...interface{}) {
	slog.Warn(fmt.Sprintf("badger: "+f, v...))
}
func (quietLogger) Infof(string, ...interface{})  {}
func (quietLogger) Debugf(string, ...interface{}) {}
