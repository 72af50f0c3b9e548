package resampler

import (
	"fmt"
	"io"
	"sync"

	resampling "github.com/tphakala/go-audio-resampling"

	"github.com/pulseframe/netaudio/pkg/audio/pcm"
)

// MaxRatioDelta bounds how far the playback ratio may move from 1.0. The
// tuner clamps its coefficient far tighter; anything beyond this is a bug
// upstream.
const MaxRatioDelta = 0.05

// Stream reads PCM audio from an underlying reader and stretches or
// compresses it by the current ratio. A ratio above 1.0 consumes source
// samples faster than it produces output, draining a queue that runs too
// deep; below 1.0 it does the opposite.
//
// Read and SetRatio may be called from different goroutines.
type Stream struct {
	format pcm.Format
	src    io.Reader

	mu       sync.Mutex
	ratio    float64
	conv     resampling.Resampler
	readBuf  []byte
	leftover []byte
	closeErr error
}

// New creates a stream over src at the given format, starting at ratio
// 1.0 (passthrough).
func New(src io.Reader, format pcm.Format) (*Stream, error) {
	if format.SampleRate() <= 0 {
		return nil, fmt.Errorf("resampler: invalid format %v", format)
	}
	return &Stream{
		format: format,
		src:    newFrameReader(src, format.Channels()*2),
		ratio:  1.0,
	}, nil
}

// SetRatio changes the playback ratio. Buffered leftover output is kept;
// the converter is rebuilt, so a long-running session should change the
// ratio at the tuner's cadence, not per read.
func (s *Stream) SetRatio(ratio float64) error {
	if ratio < 1.0-MaxRatioDelta || ratio > 1.0+MaxRatioDelta {
		return fmt.Errorf("resampler: ratio %v out of range", ratio)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closeErr != nil {
		return s.closeErr
	}
	if ratio == s.ratio {
		return nil
	}
	if ratio == 1.0 {
		s.ratio = 1.0
		s.conv = nil
		return nil
	}
	rate := float64(s.format.SampleRate())
	conv, err := resampling.New(&resampling.Config{
		InputRate:  rate * ratio,
		OutputRate: rate,
		Channels:   s.format.Channels(),
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return fmt.Errorf("resampler: rebuild converter: %w", err)
	}
	s.ratio = ratio
	s.conv = conv
	return nil
}

// Ratio returns the current playback ratio.
func (s *Stream) Ratio() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ratio
}

// Read fills p with rate-adjusted audio. It returns 0 or a multiple of
// the frame size.
func (s *Stream) Read(p []byte) (int, error) {
	frame := s.format.Channels() * 2
	if len(p) < frame {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.ErrShortBuffer
	}
	p = p[:len(p)/frame*frame]

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closeErr != nil {
		return 0, s.closeErr
	}

	if len(s.leftover) > 0 {
		n := copy(p, s.leftover)
		s.leftover = s.leftover[n:]
		return n, nil
	}

	if s.conv == nil {
		return s.src.Read(p)
	}
	return s.readConverted(p)
}

func (s *Stream) readConverted(p []byte) (int, error) {
	if cap(s.readBuf) < len(p) {
		s.readBuf = make([]byte, len(p))
	}
	nr, readErr := s.src.Read(s.readBuf[:len(p)])
	if nr == 0 {
		if readErr != nil {
			return 0, readErr
		}
		return 0, io.EOF
	}

	// int16 bytes to normalized float64 and back around Process.
	input := make([]float64, nr/2)
	for i := range input {
		v := int16(s.readBuf[i*2]) | int16(s.readBuf[i*2+1])<<8
		input[i] = float64(v) / 32768.0
	}
	output, err := s.conv.Process(input)
	if err != nil {
		return 0, fmt.Errorf("resampler: convert: %w", err)
	}

	frame := s.format.Channels() * 2
	out := make([]byte, len(output)*2/frame*frame)
	for i := 0; i < len(out)/2; i++ {
		f := output[i]
		var v int16
		switch {
		case f >= 1.0:
			v = 32767
		case f <= -1.0:
			v = -32768
		default:
			v = int16(f * 32767.0)
		}
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}

	n := copy(p, out)
	if n < len(out) {
		s.leftover = append(s.leftover, out[n:]...)
	}
	if n == 0 && readErr == nil {
		// The converter absorbed the whole input into its filter
		// state; report an empty read rather than EOF.
		return 0, nil
	}
	return n, readErr
}

// Close releases the stream. Further reads fail with io.ErrClosedPipe.
func (s *Stream) Close() error {
	return s.CloseWithError(fmt.Errorf("resampler: %w", io.ErrClosedPipe))
}

// CloseWithError closes the stream with a custom error returned by
// subsequent reads.
func (s *Stream) CloseWithError(err error) error {
	if err == nil {
		err = io.ErrClosedPipe
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closeErr == nil {
		s.closeErr = err
		s.conv = nil
	}
	return nil
}

// frameReader aligns reads from the source to whole frames, buffering a
// partial frame between calls.
type frameReader struct {
	r         io.Reader
	frameSize int
	rem       []byte
	buffered  int
}

func newFrameReader(r io.Reader, frameSize int) *frameReader {
	return &frameReader{
		r:         r,
		frameSize: frameSize,
		rem:       make([]byte, frameSize-1),
	}
}

func (fr *frameReader) Read(p []byte) (n int, err error) {
	if len(p) < fr.frameSize {
		return 0, io.ErrShortBuffer
	}
	p = p[:len(p)/fr.frameSize*fr.frameSize]

	if fr.buffered > 0 {
		n = copy(p, fr.rem[:fr.buffered])
		fr.buffered = 0
	}
	rn, err := fr.r.Read(p[n:])
	n += rn
	if err != nil {
		if n%fr.frameSize != 0 && err == io.EOF {
			return n, io.ErrUnexpectedEOF
		}
		return n, err
	}
	if mod := n % fr.frameSize; mod != 0 {
		n -= mod
		copy(fr.rem[:mod], p[n:n+mod])
		fr.buffered = mod
	}
	return n, nil
}
