// Package dispatch guarantees at most one in-flight transcription per chunk.
// Filled chunks are offered through a non-blocking submit; while a chunk is
// being processed, further offers are rejected and the audio is dropped in
// favor of real-time responsiveness.
package dispatch
