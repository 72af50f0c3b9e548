// Package buffer provides generic ring buffers used by the streaming
// pipeline.
//
// A [Ring] overwrites the oldest element when full instead of blocking the
// writer, so a real-time producer (an audio thread, a packet receiver) can
// always make progress; slow consumers lose the oldest data, never the
// newest.
package buffer
