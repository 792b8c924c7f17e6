package transcript

import "fmt"

// NoTimestamp marks a token without a DTW-refined timestamp.
const NoTimestamp int64 = -1

// Token is a single decoded token with its probability and optional
// DTW-refined timestamps in centiseconds.
type Token struct {
	ID   int     `json:"id"`
	Text string  `json:"text"`
	P    float32 `json:"p"`

	// T0/T1 are DTW-refined token timestamps in centiseconds,
	// NoTimestamp when the engine did not compute them.
	T0 int64 `json:"t0"`
	T1 int64 `json:"t1"`

	// TDTW is the raw DTW timestamp, NoTimestamp when absent.
	TDTW int64 `json:"t_dtw"`

	// Special marks end-of-text and other non-speech control tokens.
	Special bool `json:"special,omitempty"`
}

// Segment is one transcribed span with centisecond start/end timestamps.
type Segment struct {
	T0     int64   `json:"t0"`
	T1     int64   `json:"t1"`
	Text   string  `json:"text"`
	Tokens []Token `json:"tokens,omitempty"`

	// SpeakerTurnNext is set when the engine detected a speaker change
	// immediately after this segment.
	SpeakerTurnNext bool `json:"speaker_turn_next,omitempty"`
}

// Transcript is the ordered result of a single inference run. It is
// append-only while the run produces segments and immutable afterwards;
// exporters and the console reader never mutate it.
type Transcript struct {
	Language string    `json:"language"`
	Segments []Segment `json:"segments"`
}

// Append adds a segment to the transcript.
func (t *Transcript) Append(seg Segment) {
	t.Segments = append(t.Segments, seg)
}

// Len returns the number of segments.
func (t *Transcript) Len() int {
	return len(t.Segments)
}

// Duration returns the end timestamp of the last segment in centiseconds,
// or 0 for an empty transcript.
func (t *Transcript) Duration() int64 {
	if len(t.Segments) == 0 {
		return 0
	}
	return t.Segments[len(t.Segments)-1].T1
}

// FormatTimestamp renders a centisecond timestamp as HH:MM:SS.mmm, or with a
// comma decimal separator (SRT style) when comma is true.
func FormatTimestamp(t int64, comma bool) string {
	msec := t * 10
	hr := msec / (1000 * 60 * 60)
	msec -= hr * (1000 * 60 * 60)
	min := msec / (1000 * 60)
	msec -= min * (1000 * 60)
	sec := msec / 1000
	msec -= sec * 1000

	sep := "."
	if comma {
		sep = ","
	}
	return fmt.Sprintf("%02d:%02d:%02d%s%03d", hr, min, sec, sep, msec)
}
