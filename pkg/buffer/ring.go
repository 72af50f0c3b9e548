package buffer

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrIteratorDone is returned by Next when the buffer is closed for writing
// and drained.
var ErrIteratorDone = errors.New("buffer: iterator done")

// Ring is a thread-safe ring buffer. Unlike a pipe, Ring overwrites the
// oldest element when the buffer is full, making it suitable for keeping a
// sliding window of the most recent data while never blocking the writer.
//
// The write side never blocks; Next blocks until an element is available,
// TryNext never blocks. One writer and one reader may run on different
// goroutines.
type Ring[T any] struct {
	writeNotify chan struct{}

	mu         sync.Mutex
	buf        []T
	head, tail int64
	closeWrite bool
	closeErr   error
}

// NewRing creates a new Ring with the specified capacity.
// The buffer overwrites the oldest element when the capacity is exceeded.
func NewRing[T any](size int) *Ring[T] {
	if size <= 0 {
		panic("buffer: ring size must be positive")
	}
	return &Ring[T]{
		writeNotify: make(chan struct{}, 1),

		buf: make([]T, size),
	}
}

// Add appends a single element to the buffer. If the buffer is full, the
// oldest element is dropped to make room and returned with dropped=true so
// the caller can account for the loss. Add never blocks.
func (rb *Ring[T]) Add(t T) (old T, dropped bool, err error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.closeErr != nil {
		return old, false, fmt.Errorf("buffer: write to closed buffer: %w", rb.closeErr)
	}
	if rb.closeWrite {
		return old, false, fmt.Errorf("buffer: write to closed buffer: %w", io.ErrClosedPipe)
	}
	if rb.tail-rb.head == int64(len(rb.buf)) {
		// Full: the slot being written holds the oldest element.
		head := rb.head % int64(len(rb.buf))
		old = rb.buf[head]
		dropped = true
		rb.head++
	}
	tail := rb.tail % int64(len(rb.buf))
	rb.buf[tail] = t
	rb.tail++
	select {
	case rb.writeNotify <- struct{}{}:
	default:
	}
	return old, dropped, nil
}

// Next reads and returns the next element from the buffer.
// It blocks until an element is available or the buffer is closed.
// Returns ErrIteratorDone when the buffer is closed for writing and empty.
func (rb *Ring[T]) Next() (t T, err error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	for rb.head == rb.tail {
		if rb.closeErr != nil {
			err = fmt.Errorf("buffer: read from closed buffer: %w", rb.closeErr)
			return
		}
		if rb.closeWrite {
			err = ErrIteratorDone
			return
		}
		rb.mu.Unlock()
		<-rb.writeNotify
		rb.mu.Lock()
	}
	head := rb.head % int64(len(rb.buf))
	t = rb.buf[head]
	rb.head++
	return t, nil
}

// TryNext reads the next element without blocking. The second return value
// reports whether an element was available.
func (rb *Ring[T]) TryNext() (t T, ok bool) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.head == rb.tail {
		return t, false
	}
	head := rb.head % int64(len(rb.buf))
	t = rb.buf[head]
	rb.head++
	return t, true
}

// Len returns the number of elements currently in the buffer.
func (rb *Ring[T]) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return int(rb.tail - rb.head)
}

// Reset discards all buffered elements.
func (rb *Ring[T]) Reset() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.head = 0
	rb.tail = 0
}

// CloseWrite closes the write side of the buffer, preventing further writes.
// Reads continue until the buffer is drained, then return ErrIteratorDone.
func (rb *Ring[T]) CloseWrite() error {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.closeWrite {
		return nil
	}
	rb.closeWrite = true
	close(rb.writeNotify)
	return nil
}

// CloseWithError closes the buffer with the specified error.
// Pending reads are unblocked and return this error.
func (rb *Ring[T]) CloseWithError(err error) error {
	if err == nil {
		err = io.ErrClosedPipe
	}
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.closeErr != nil {
		return nil
	}
	rb.closeErr = err
	if !rb.closeWrite {
		rb.closeWrite = true
		close(rb.writeNotify)
	}
	return nil
}

// Close closes the buffer. Equivalent to CloseWithError(io.ErrClosedPipe).
func (rb *Ring[T]) Close() error {
	return rb.CloseWithError(io.ErrClosedPipe)
}
