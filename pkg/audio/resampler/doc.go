// Package resampler adjusts the playback rate of a PCM stream by a small
// ratio around 1.0, compensating the clock drift between sender and
// receiver. The latency tuner computes the ratio; [Stream.SetRatio]
// applies it.
//
// Samples are 16-bit signed integers in the formats of package pcm. The
// conversion itself is done by a pure Go resampling library, rebuilt
// whenever the ratio changes.
package resampler
