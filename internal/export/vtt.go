package export

import (
	"bufio"
	"fmt"

	"github.com/soundscribe/live-transcribe/internal/transcript"
)

// vttSink writes WebVTT cues. With two-channel diarization the speaker is
// encoded as a cue-voice tag on the text line.
type vttSink struct{}

func (vttSink) WriteHeader(w *bufio.Writer, c *Context) error {
	_, err := w.WriteString("WEBVTT\n\n")
	return err
}

func (vttSink) WriteSegment(w *bufio.Writer, c *Context, i int, seg transcript.Segment) error {
	speaker := ""
	if c.diarized() {
		speaker = "<v Speaker" + c.speaker(seg.T0, seg.T1, true) + ">"
	}

	_, err := fmt.Fprintf(w, "%s --> %s\n%s%s\n\n",
		transcript.FormatTimestamp(seg.T0, false),
		transcript.FormatTimestamp(seg.T1, false),
		speaker, seg.Text)
	return err
}

func (vttSink) WriteFooter(w *bufio.Writer, c *Context) error { return nil }
