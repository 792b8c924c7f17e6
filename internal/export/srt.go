package export

import (
	"bufio"
	"fmt"

	"github.com/soundscribe/live-transcribe/internal/transcript"
)

// srtSink writes SubRip subtitles: a 1-based sequence number shifted by the
// configured offset, comma-decimal timestamps, then the text.
type srtSink struct{}

func (srtSink) WriteHeader(w *bufio.Writer, c *Context) error { return nil }

func (srtSink) WriteSegment(w *bufio.Writer, c *Context, i int, seg transcript.Segment) error {
	speaker := c.speaker(seg.T0, seg.T1, false)

	_, err := fmt.Fprintf(w, "%d\n%s --> %s\n%s%s\n\n",
		i+1+c.Options.OffsetN,
		transcript.FormatTimestamp(seg.T0, true),
		transcript.FormatTimestamp(seg.T1, true),
		speaker, seg.Text)
	return err
}

func (srtSink) WriteFooter(w *bufio.Writer, c *Context) error { return nil }
