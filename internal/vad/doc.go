// Package vad gates filled chunks on voice activity so silent windows never
// reach the inference engine. Detection is a deterministic RMS-energy
// estimate with light exponential smoothing across consecutive chunks.
package vad
