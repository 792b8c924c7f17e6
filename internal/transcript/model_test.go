package transcript

import "testing"

func TestFormatTimestamp(t *testing.T) {
	cases := []struct {
		t     int64
		comma bool
		want  string
	}{
		{0, false, "00:00:00.000"},
		{0, true, "00:00:00,000"},
		{150, true, "00:00:01,500"},
		{400, true, "00:00:04,000"},
		{125, false, "00:00:01.250"},
		{6000, false, "00:01:00.000"},
		{360000, false, "01:00:00.000"},
		{360000 + 6000 + 150, true, "01:01:01,500"},
	}

	for _, c := range cases {
		got := FormatTimestamp(c.t, c.comma)
		if got != c.want {
			t.Errorf("FormatTimestamp(%d, %v) = %q, want %q", c.t, c.comma, got, c.want)
		}
	}
}

func TestTranscriptAppend(t *testing.T) {
	tr := &Transcript{Language: "en"}

	if tr.Len() != 0 {
		t.Errorf("Expected empty transcript, got %d segments", tr.Len())
	}

	if tr.Duration() != 0 {
		t.Errorf("Expected zero duration for empty transcript, got %d", tr.Duration())
	}

	tr.Append(Segment{T0: 0, T1: 150, Text: " Hello"})
	tr.Append(Segment{T0: 150, T1: 400, Text: " world"})

	if tr.Len() != 2 {
		t.Errorf("Expected 2 segments, got %d", tr.Len())
	}

	if tr.Duration() != 400 {
		t.Errorf("Expected duration 400, got %d", tr.Duration())
	}

	if tr.Segments[0].Text != " Hello" {
		t.Errorf("Unexpected first segment text: %q", tr.Segments[0].Text)
	}
}

func TestTimestampToSampleClamping(t *testing.T) {
	// 16000 samples at 16 kHz is one second of audio.
	if got := timestampToSample(-50, 16000, 16000); got != 0 {
		t.Errorf("Expected negative timestamp to clamp to 0, got %d", got)
	}

	if got := timestampToSample(50, 16000, 16000); got != 8000 {
		t.Errorf("Expected index 8000 at t=50cs, got %d", got)
	}

	if got := timestampToSample(1000, 16000, 16000); got != 15999 {
		t.Errorf("Expected out-of-range timestamp to clamp to 15999, got %d", got)
	}
}
