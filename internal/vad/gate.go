package vad

import (
	"fmt"
	"math"
	"sync"
)

// referenceEnergy is the RMS level treated as full-scale speech for
// normalized float samples in [-1, 1].
const referenceEnergy = 0.1

// smoothingFactor weights the current chunk against the smoothed history.
const smoothingFactor = 0.1

// Gate decides per chunk whether inference is worth running.
type Gate struct {
	threshold float32

	mu          sync.RWMutex
	lastResult  float32
	totalChunks uint64
	voiceChunks uint64
}

// Stats represents gate statistics.
type Stats struct {
	TotalChunks     uint64  `json:"total_chunks"`
	VoiceChunks     uint64  `json:"voice_chunks"`
	VoicePercentage float64 `json:"voice_percentage"`
	Threshold       float32 `json:"threshold"`
}

// NewGate creates a gate with the given probability threshold.
func NewGate(threshold float32) (*Gate, error) {
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("threshold must be between 0 and 1, got %f", threshold)
	}
	return &Gate{threshold: threshold}, nil
}

// Admit reports whether the chunk carries enough voice energy for an
// inference run, along with the smoothed probability estimate.
func (g *Gate) Admit(chunk []float32) (bool, float32) {
	g.mu.Lock()
	defer g.mu.Unlock()

	probability := estimate(chunk)

	if g.totalChunks > 0 {
		probability = smoothingFactor*probability + (1-smoothingFactor)*g.lastResult
	}
	g.lastResult = probability

	hasVoice := probability >= g.threshold

	g.totalChunks++
	if hasVoice {
		g.voiceChunks++
	}

	return hasVoice, probability
}

// estimate maps a chunk's RMS energy into a [0, 1] probability.
func estimate(chunk []float32) float32 {
	if len(chunk) == 0 {
		return 0
	}

	var energy float64
	for _, s := range chunk {
		energy += float64(s) * float64(s)
	}
	energy = math.Sqrt(energy / float64(len(chunk)))

	normalized := energy / referenceEnergy
	if normalized > 1.0 {
		normalized = 1.0
	}

	return float32(normalized)
}

// Reset clears the smoothed state and statistics.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.lastResult = 0
	g.totalChunks = 0
	g.voiceChunks = 0
}

// Threshold returns the configured threshold.
func (g *Gate) Threshold() float32 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.threshold
}

// GetStats returns current gate statistics.
func (g *Gate) GetStats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	voicePercentage := float64(0)
	if g.totalChunks > 0 {
		voicePercentage = float64(g.voiceChunks) / float64(g.totalChunks) * 100
	}

	return Stats{
		TotalChunks:     g.totalChunks,
		VoiceChunks:     g.voiceChunks,
		VoicePercentage: voicePercentage,
		Threshold:       g.threshold,
	}
}
