// Package console renders live transcription output: segments are printed
// incrementally as the engine produces them, optionally colorized by token
// confidence, and progress percentages are reported at a configurable step.
package console
