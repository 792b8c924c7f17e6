package transcript

import "testing"

const testSampleRate = 16000

// constantChannel returns one second of audio at the given amplitude.
func constantChannel(amplitude float32) []float32 {
	ch := make([]float32, testSampleRate)
	for i := range ch {
		ch[i] = amplitude
	}
	return ch
}

func TestEstimateSpeakerChannelZeroDominates(t *testing.T) {
	ch0 := constantChannel(0.4)
	ch1 := constantChannel(0.2)

	got := EstimateSpeaker(ch0, ch1, 0, 100, testSampleRate, true)
	if got != "0" {
		t.Errorf("Expected speaker \"0\" for 2x channel-0 energy, got %q", got)
	}
}

func TestEstimateSpeakerChannelOneDominates(t *testing.T) {
	ch0 := constantChannel(0.1)
	ch1 := constantChannel(0.5)

	got := EstimateSpeaker(ch0, ch1, 0, 100, testSampleRate, true)
	if got != "1" {
		t.Errorf("Expected speaker \"1\", got %q", got)
	}
}

func TestEstimateSpeakerEqualEnergiesAmbiguous(t *testing.T) {
	ch0 := constantChannel(0.3)
	ch1 := constantChannel(0.3)

	got := EstimateSpeaker(ch0, ch1, 0, 100, testSampleRate, true)
	if got != "?" {
		t.Errorf("Expected \"?\" for equal energies, got %q", got)
	}
}

func TestEstimateSpeakerNearThreshold(t *testing.T) {
	// 1.05x dominance is below the 1.1x ratio and must stay ambiguous.
	ch0 := constantChannel(0.21)
	ch1 := constantChannel(0.2)

	got := EstimateSpeaker(ch0, ch1, 0, 100, testSampleRate, true)
	if got != "?" {
		t.Errorf("Expected \"?\" below the dominance ratio, got %q", got)
	}
}

func TestEstimateSpeakerLabelForm(t *testing.T) {
	ch0 := constantChannel(0.4)
	ch1 := constantChannel(0.1)

	got := EstimateSpeaker(ch0, ch1, 0, 100, testSampleRate, false)
	if got != "(speaker 0)" {
		t.Errorf("Expected \"(speaker 0)\", got %q", got)
	}
}

func TestEstimateSpeakerUsesOnlyRequestedSpan(t *testing.T) {
	// Channel 0 is loud only in the first half second, channel 1 only in
	// the second half. Each span must attribute to its own channel.
	ch0 := make([]float32, testSampleRate)
	ch1 := make([]float32, testSampleRate)
	for i := 0; i < testSampleRate/2; i++ {
		ch0[i] = 0.5
	}
	for i := testSampleRate / 2; i < testSampleRate; i++ {
		ch1[i] = 0.5
	}

	if got := EstimateSpeaker(ch0, ch1, 0, 50, testSampleRate, true); got != "0" {
		t.Errorf("Expected speaker \"0\" in first half, got %q", got)
	}

	if got := EstimateSpeaker(ch0, ch1, 50, 100, testSampleRate, true); got != "1" {
		t.Errorf("Expected speaker \"1\" in second half, got %q", got)
	}
}

func TestEstimateSpeakerEmptyChannels(t *testing.T) {
	got := EstimateSpeaker(nil, nil, 0, 100, testSampleRate, true)
	if got != "?" {
		t.Errorf("Expected \"?\" for empty channels, got %q", got)
	}
}
