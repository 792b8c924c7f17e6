package export

import (
	"bufio"
	"fmt"

	"github.com/soundscribe/live-transcribe/internal/transcript"
)

// lrcSink writes synchronized lyrics: a producer header, then one line per
// segment tagged with the start time as [mm:ss.xx].
type lrcSink struct{}

func (lrcSink) WriteHeader(w *bufio.Writer, c *Context) error {
	_, err := fmt.Fprintf(w, "[by:%s]\n", c.Options.Tool)
	return err
}

func (lrcSink) WriteSegment(w *bufio.Writer, c *Context, i int, seg transcript.Segment) error {
	msec := seg.T0 * 10
	min := msec / (1000 * 60)
	msec -= min * (1000 * 60)
	sec := msec / 1000
	msec -= sec * 1000

	speaker := c.speaker(seg.T0, seg.T1, false)

	_, err := fmt.Fprintf(w, "[%02d:%02d.%02d]%s%s\n", min, sec, msec/10, speaker, seg.Text)
	return err
}

func (lrcSink) WriteFooter(w *bufio.Writer, c *Context) error { return nil }
