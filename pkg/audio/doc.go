// Package audio provides audio processing utilities.
//
// This package serves as an umbrella for audio-related sub-packages:
//
//   - pcm: PCM (Pulse Code Modulation) audio format handling
//   - resampler: playback-rate adjustment for latency tuning
//
// For buffer utilities, use the separate
// github.com/pulseframe/netaudio/pkg/buffer package.
//
// Example usage:
//
//	import (
//	    "github.com/pulseframe/netaudio/pkg/audio/pcm"
//	)
//
//	// Work with PCM format
//	format := pcm.L16Mono48K
//	chunk := format.DataChunk(audioData)
package audio
