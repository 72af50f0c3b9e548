// Package pcm provides types and utilities for working with PCM (Pulse Code
// Modulation) audio data in a network streaming engine.
//
// The package defines audio formats for common configurations (16-bit mono
// and stereo at various sample rates) and the conversions between wall-clock
// durations, byte counts, and sample counts that the streaming pipeline
// schedules by.
//
// Key types:
//   - Format: Represents audio format (sample rate, channels, bit depth)
//   - Chunk: Interface for audio data chunks
//   - DataChunk: Concrete implementation of Chunk for raw audio data
//   - SilenceChunk: Chunk that produces silence of a specified duration
//   - AtomicFloat32: lock-free float cell for cross-goroutine scalars
//
// Example usage:
//
//	// Pick a 48kHz stereo stream format
//	format := pcm.L16Stereo48K
//
//	// Calculate samples in one 10ms block
//	n := format.SamplesInDuration(10 * time.Millisecond)
//
//	// Convert a queue depth back to a play-out latency
//	d := format.DurationOfSamples(n)
package pcm
