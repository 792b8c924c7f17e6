package audio

import (
	"fmt"
	"sync"
	"time"
)

// ChunkBuffer accumulates samples up to a fixed capacity. The capture
// callback is the sole producer and calls Push sequentially per frame; the
// dispatcher consumes a full buffer through SnapshotAndReset. The buffer is
// deliberately unlocked: the single-producer/single-consumer-per-cycle
// discipline is owned by the callback, which never runs concurrently with
// itself.
type ChunkBuffer struct {
	samples []float32
	cursor  int
}

// NewChunkBuffer creates a buffer holding capacity samples. A capacity of
// zero or less is a configuration error.
func NewChunkBuffer(capacity int) (*ChunkBuffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("chunk buffer capacity must be positive, got %d", capacity)
	}

	return &ChunkBuffer{
		samples: make([]float32, capacity),
	}, nil
}

// Push appends one sample at the write cursor and reports whether the buffer
// has just become full. A push on an already-full buffer drops the sample and
// keeps reporting full; the capture path never blocks waiting for a consumer.
func (b *ChunkBuffer) Push(s float32) bool {
	if b.cursor >= len(b.samples) {
		return true
	}

	b.samples[b.cursor] = s
	b.cursor++

	return b.cursor == len(b.samples)
}

// SnapshotAndReset returns a copy of the samples pushed so far and resets the
// write cursor to zero. The returned slice is owned by the caller; the
// internal arena is reused for the next cycle without reallocation.
func (b *ChunkBuffer) SnapshotAndReset() []float32 {
	snapshot := make([]float32, b.cursor)
	copy(snapshot, b.samples[:b.cursor])
	b.cursor = 0

	return snapshot
}

// Len returns the current number of buffered samples.
func (b *ChunkBuffer) Len() int {
	return b.cursor
}

// Cap returns the buffer capacity in samples.
func (b *ChunkBuffer) Cap() int {
	return len(b.samples)
}

// Full reports whether the buffer has reached capacity.
func (b *ChunkBuffer) Full() bool {
	return b.cursor == len(b.samples)
}

// Recorder retains every sample captured during a session, independent of the
// chunk cycle, for duration accounting, speaker attribution and optional
// persistence. It holds one or two parallel channel sequences of equal
// length. Unlike ChunkBuffer it is locked, because the console and exporters
// read it while the capture callback is still appending.
type Recorder struct {
	channels [][]float32
	mu       sync.RWMutex
}

// RecorderStats summarizes a recording for logging and the status API.
type RecorderStats struct {
	Channels int     `json:"channels"`
	Samples  int     `json:"samples"`
	Duration float64 `json:"duration_seconds"`
}

// NewRecorder creates a recorder with the given channel count (1 or 2).
func NewRecorder(channels int) (*Recorder, error) {
	if channels < 1 || channels > 2 {
		return nil, fmt.Errorf("recorder supports 1 or 2 channels, got %d", channels)
	}

	r := &Recorder{
		channels: make([][]float32, channels),
	}
	for i := range r.channels {
		r.channels[i] = make([]float32, 0, 16000*4)
	}

	return r, nil
}

// Append adds one batch per channel. Every channel slice must have the same
// length so the parallel sequences stay aligned.
func (r *Recorder) Append(channels [][]float32) error {
	if len(channels) != len(r.channels) {
		return fmt.Errorf("expected %d channel batches, got %d", len(r.channels), len(channels))
	}

	for i := 1; i < len(channels); i++ {
		if len(channels[i]) != len(channels[0]) {
			return fmt.Errorf("channel batches must be equal length: channel 0 has %d samples, channel %d has %d",
				len(channels[0]), i, len(channels[i]))
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i, batch := range channels {
		r.channels[i] = append(r.channels[i], batch...)
	}

	return nil
}

// Channels returns the number of recorded channels.
func (r *Recorder) Channels() int {
	return len(r.channels)
}

// Samples returns the recorded sequence for one channel. The returned slice
// must be treated as read-only; appends only ever grow the tail.
func (r *Recorder) Samples(ch int) []float32 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if ch < 0 || ch >= len(r.channels) {
		return nil
	}
	return r.channels[ch]
}

// Len returns the per-channel sample count.
func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels[0])
}

// Duration returns the recorded duration for the given sample rate.
func (r *Recorder) Duration(sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(r.Len()) / float64(sampleRate) * float64(time.Second))
}

// Stats returns current recording statistics.
func (r *Recorder) Stats(sampleRate int) RecorderStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := len(r.channels[0])
	duration := float64(0)
	if sampleRate > 0 {
		duration = float64(n) / float64(sampleRate)
	}

	return RecorderStats{
		Channels: len(r.channels),
		Samples:  n,
		Duration: duration,
	}
}
