// Package audio provides the fixed-capacity chunk buffer filled by the
// capture callback, the unbounded session recorder, and PCM/WAV conversion
// for persisted recordings and file playback.
package audio
