// Package transcript defines the segment/token result model produced by an
// inference run, centisecond timestamp formatting, and the energy-based
// stereo speaker attribution heuristic.
package transcript
