// Package pipeline wires capture, chunking, dispatch, inference and export
// into one lifecycle: open the source, accumulate fixed windows of audio,
// transcribe them one at a time, render results live and persist artifacts
// per run, then shut everything down in order.
package pipeline
