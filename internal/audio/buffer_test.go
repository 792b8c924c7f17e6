package audio

import "testing"

func TestNewChunkBufferInvalidCapacity(t *testing.T) {
	if _, err := NewChunkBuffer(0); err == nil {
		t.Error("Expected error for zero capacity")
	}

	if _, err := NewChunkBuffer(-1); err == nil {
		t.Error("Expected error for negative capacity")
	}
}

func TestChunkBufferFullOnExactCapacity(t *testing.T) {
	for _, capacity := range []int{1, 2, 16, 1024, 48000} {
		buf, err := NewChunkBuffer(capacity)
		if err != nil {
			t.Fatalf("Failed to create buffer with capacity %d: %v", capacity, err)
		}

		for i := 0; i < capacity-1; i++ {
			if full := buf.Push(0.5); full {
				t.Fatalf("capacity %d: buffer reported full on push %d", capacity, i+1)
			}
		}

		if full := buf.Push(0.5); !full {
			t.Errorf("capacity %d: buffer did not report full on push %d", capacity, capacity)
		}

		if !buf.Full() {
			t.Errorf("capacity %d: Full() = false after %d pushes", capacity, capacity)
		}
	}
}

func TestChunkBufferSnapshotAndReset(t *testing.T) {
	buf, err := NewChunkBuffer(4)
	if err != nil {
		t.Fatalf("Failed to create buffer: %v", err)
	}

	samples := []float32{0.1, 0.2, 0.3, 0.4}
	for _, s := range samples {
		buf.Push(s)
	}

	snapshot := buf.SnapshotAndReset()

	if len(snapshot) != 4 {
		t.Fatalf("Expected 4 samples in snapshot, got %d", len(snapshot))
	}

	for i, s := range samples {
		if snapshot[i] != s {
			t.Errorf("snapshot[%d] = %f, want %f", i, snapshot[i], s)
		}
	}

	if buf.Len() != 0 {
		t.Errorf("Expected cursor reset to 0, got %d", buf.Len())
	}

	// A subsequent push sequence must behave like a fresh buffer.
	for i := 0; i < 3; i++ {
		if full := buf.Push(0.9); full {
			t.Fatalf("Buffer reported full on push %d after reset", i+1)
		}
	}
	if full := buf.Push(0.9); !full {
		t.Error("Buffer did not report full on 4th push after reset")
	}
}

func TestChunkBufferSnapshotIsACopy(t *testing.T) {
	buf, _ := NewChunkBuffer(2)
	buf.Push(0.1)
	buf.Push(0.2)

	snapshot := buf.SnapshotAndReset()

	// Overwrite the arena; the snapshot must be unaffected.
	buf.Push(0.8)
	buf.Push(0.9)

	if snapshot[0] != 0.1 || snapshot[1] != 0.2 {
		t.Errorf("Snapshot aliases the internal arena: %v", snapshot)
	}
}

func TestChunkBufferOverflowDropsSamples(t *testing.T) {
	buf, _ := NewChunkBuffer(2)
	buf.Push(0.1)
	buf.Push(0.2)

	// Push on a full buffer: sample dropped, still reports full.
	if full := buf.Push(0.7); !full {
		t.Error("Expected push on full buffer to report full")
	}

	snapshot := buf.SnapshotAndReset()
	if len(snapshot) != 2 || snapshot[1] != 0.2 {
		t.Errorf("Overflow sample leaked into buffer: %v", snapshot)
	}
}

func TestChunkBufferThreeSecondsPlusOneSample(t *testing.T) {
	// 3 seconds at 16 kHz fills the buffer exactly; one extra sample lands
	// in the reset buffer.
	const sampleRate = 16000
	capacity := sampleRate * 3

	buf, err := NewChunkBuffer(capacity)
	if err != nil {
		t.Fatalf("Failed to create buffer: %v", err)
	}

	fills := 0
	for i := 0; i < capacity; i++ {
		if buf.Push(0.1) {
			fills++
			buf.SnapshotAndReset()
		}
	}

	if fills != 1 {
		t.Errorf("Expected exactly 1 fill after %d pushes, got %d", capacity, fills)
	}

	if buf.Push(0.1) {
		t.Error("Buffer reported full on first push after reset")
	}

	if buf.Len() != 1 {
		t.Errorf("Expected exactly 1 sample in reset buffer, got %d", buf.Len())
	}
}

func TestNewRecorderChannelValidation(t *testing.T) {
	if _, err := NewRecorder(0); err == nil {
		t.Error("Expected error for 0 channels")
	}

	if _, err := NewRecorder(3); err == nil {
		t.Error("Expected error for 3 channels")
	}

	for _, n := range []int{1, 2} {
		r, err := NewRecorder(n)
		if err != nil {
			t.Errorf("Unexpected error for %d channels: %v", n, err)
		}
		if r.Channels() != n {
			t.Errorf("Expected %d channels, got %d", n, r.Channels())
		}
	}
}

func TestRecorderAppendAndDuration(t *testing.T) {
	r, err := NewRecorder(1)
	if err != nil {
		t.Fatalf("Failed to create recorder: %v", err)
	}

	batch := make([]float32, 1600)
	for i := 0; i < 10; i++ {
		if err := r.Append([][]float32{batch}); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	if r.Len() != 16000 {
		t.Errorf("Expected 16000 samples, got %d", r.Len())
	}

	d := r.Duration(16000)
	if d.Seconds() != 1.0 {
		t.Errorf("Expected 1s duration, got %v", d)
	}
}

func TestRecorderStereoAppend(t *testing.T) {
	r, err := NewRecorder(2)
	if err != nil {
		t.Fatalf("Failed to create recorder: %v", err)
	}

	left := []float32{0.1, 0.2}
	right := []float32{0.3, 0.4}

	if err := r.Append([][]float32{left, right}); err != nil {
		t.Fatalf("Stereo append failed: %v", err)
	}

	if got := r.Samples(0); len(got) != 2 || got[1] != 0.2 {
		t.Errorf("Unexpected channel 0 samples: %v", got)
	}

	if got := r.Samples(1); len(got) != 2 || got[0] != 0.3 {
		t.Errorf("Unexpected channel 1 samples: %v", got)
	}

	// Mismatched batch lengths break channel alignment and must fail.
	if err := r.Append([][]float32{{0.1}, {0.1, 0.2}}); err == nil {
		t.Error("Expected error for mismatched channel batch lengths")
	}

	// Wrong channel count must fail.
	if err := r.Append([][]float32{{0.1}}); err == nil {
		t.Error("Expected error for wrong channel count")
	}
}

func TestRecorderStats(t *testing.T) {
	r, _ := NewRecorder(2)
	r.Append([][]float32{make([]float32, 8000), make([]float32, 8000)})

	stats := r.Stats(16000)

	if stats.Channels != 2 {
		t.Errorf("Expected 2 channels in stats, got %d", stats.Channels)
	}

	if stats.Samples != 8000 {
		t.Errorf("Expected 8000 samples in stats, got %d", stats.Samples)
	}

	if stats.Duration != 0.5 {
		t.Errorf("Expected 0.5s duration, got %f", stats.Duration)
	}
}
