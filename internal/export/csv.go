package export

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/soundscribe/live-transcribe/internal/transcript"
)

// csvSink writes one row per segment with millisecond timestamps. The text
// field is always quoted, with embedded double quotes doubled per RFC 4180.
// The speaker column only appears for two-channel diarized runs.
type csvSink struct{}

func (csvSink) WriteHeader(w *bufio.Writer, c *Context) error {
	header := "start,end,text\n"
	if c.diarized() {
		header = "start,end,speaker,text\n"
	}
	_, err := w.WriteString(header)
	return err
}

func (csvSink) WriteSegment(w *bufio.Writer, c *Context, i int, seg transcript.Segment) error {
	// Centiseconds to milliseconds.
	if _, err := fmt.Fprintf(w, "%d,%d,", 10*seg.T0, 10*seg.T1); err != nil {
		return err
	}

	if c.diarized() {
		if _, err := w.WriteString(c.speaker(seg.T0, seg.T1, true) + ","); err != nil {
			return err
		}
	}

	_, err := w.WriteString("\"" + escapeCSV(seg.Text) + "\"\n")
	return err
}

func (csvSink) WriteFooter(w *bufio.Writer, c *Context) error { return nil }

func escapeCSV(s string) string {
	return strings.ReplaceAll(s, "\"", "\"\"")
}
