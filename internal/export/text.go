package export

import (
	"bufio"

	"github.com/soundscribe/live-transcribe/internal/transcript"
)

// textSink writes one line per segment: the speaker label (when diarizing)
// followed by the segment text.
type textSink struct{}

func (textSink) WriteHeader(w *bufio.Writer, c *Context) error { return nil }

func (textSink) WriteSegment(w *bufio.Writer, c *Context, i int, seg transcript.Segment) error {
	speaker := c.speaker(seg.T0, seg.T1, false)
	_, err := w.WriteString(speaker + seg.Text + "\n")
	return err
}

func (textSink) WriteFooter(w *bufio.Writer, c *Context) error { return nil }
