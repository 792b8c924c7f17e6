package audio

import (
	"math"
	"testing"
)

func TestEncodeDecodeWAVMono(t *testing.T) {
	samples := make([]float32, 1600)
	for i := range samples {
		samples[i] = float32(math.Sin(float64(i) * 0.01))
	}

	data, err := EncodeWAV([][]float32{samples}, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	if len(data) != 44+len(samples)*2 {
		t.Errorf("Unexpected WAV size: %d", len(data))
	}

	channels, rate, err := DecodeWAV(data)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}

	if rate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", rate)
	}

	if len(channels) != 1 {
		t.Fatalf("Expected 1 channel, got %d", len(channels))
	}

	if len(channels[0]) != len(samples) {
		t.Fatalf("Expected %d samples, got %d", len(samples), len(channels[0]))
	}

	// 16-bit quantization allows a small round-trip error.
	for i := range samples {
		if diff := math.Abs(float64(channels[0][i] - samples[i])); diff > 1.0/32000.0 {
			t.Fatalf("Sample %d round-trip error too large: %f", i, diff)
		}
	}
}

func TestEncodeDecodeWAVStereo(t *testing.T) {
	left := []float32{0.5, -0.5, 0.25, -0.25}
	right := []float32{-0.5, 0.5, -0.25, 0.25}

	data, err := EncodeWAV([][]float32{left, right}, 8000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	channels, rate, err := DecodeWAV(data)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}

	if rate != 8000 {
		t.Errorf("Expected sample rate 8000, got %d", rate)
	}

	if len(channels) != 2 {
		t.Fatalf("Expected 2 channels, got %d", len(channels))
	}

	if len(channels[0]) != 4 || len(channels[1]) != 4 {
		t.Fatalf("Expected 4 frames per channel, got %d/%d", len(channels[0]), len(channels[1]))
	}

	if channels[0][0] < 0.49 || channels[1][0] > -0.49 {
		t.Errorf("Channels deinterleaved incorrectly: L=%v R=%v", channels[0], channels[1])
	}
}

func TestEncodeWAVValidation(t *testing.T) {
	if _, err := EncodeWAV(nil, 16000); err == nil {
		t.Error("Expected error for no channels")
	}

	if _, err := EncodeWAV([][]float32{{}}, 16000); err == nil {
		t.Error("Expected error for empty samples")
	}

	if _, err := EncodeWAV([][]float32{{0.1}}, 0); err == nil {
		t.Error("Expected error for zero sample rate")
	}

	if _, err := EncodeWAV([][]float32{{0.1, 0.2}, {0.1}}, 16000); err == nil {
		t.Error("Expected error for mismatched channel lengths")
	}
}

func TestEncodeWAVClipping(t *testing.T) {
	data, err := EncodeWAV([][]float32{{2.0, -2.0}}, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	channels, _, err := DecodeWAV(data)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}

	if channels[0][0] < 0.99 {
		t.Errorf("Positive clip not at full scale: %f", channels[0][0])
	}

	if channels[0][1] > -0.99 {
		t.Errorf("Negative clip not at full scale: %f", channels[0][1])
	}
}

func TestDecodeWAVInvalidData(t *testing.T) {
	if _, _, err := DecodeWAV([]byte("too short")); err == nil {
		t.Error("Expected error for truncated data")
	}

	bad := make([]byte, 64)
	copy(bad, "JUNK")
	if _, _, err := DecodeWAV(bad); err == nil {
		t.Error("Expected error for missing RIFF header")
	}
}
