package export

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/soundscribe/live-transcribe/internal/engine"
	"github.com/soundscribe/live-transcribe/internal/transcript"
)

// Options carries the per-run settings shared by the format sinks.
type Options struct {
	// Diarize enables speaker attribution. It only takes effect when the
	// recording has exactly two channels; otherwise the speaker column or
	// tag is silently omitted.
	Diarize bool

	// TinyDiarize emits the engine's speaker-turn flags where a format
	// supports them.
	TinyDiarize bool

	// OffsetN shifts the 1-based SRT sequence numbers.
	OffsetN int

	// FullJSON adds per-token detail to the JSON artifact.
	FullJSON bool

	// Tool is the producer name written into LRC headers.
	Tool string

	// ModelPath and Language describe the run for the JSON artifact.
	ModelPath string
	Language  string
	Translate bool

	// FontPath is the monospace font required by the karaoke script. The
	// file must exist; a missing font fails the export before any output
	// is produced.
	FontPath string

	// InputPath is the audio file the karaoke script feeds to the
	// video-compositing command.
	InputPath string

	// AudioDuration is the length of the recording in seconds, used for
	// the karaoke background track. When zero it is derived from the
	// transcript.
	AudioDuration float64
}

// Context bundles everything a sink may need: the immutable transcript, the
// raw recording for speaker estimation, and the run options.
type Context struct {
	Transcript *transcript.Transcript
	Audio      [][]float32
	SampleRate int
	Info       engine.Info
	Options    Options
}

// diarized reports whether speaker attribution is active for this run.
func (c *Context) diarized() bool {
	return c.Options.Diarize && len(c.Audio) == 2
}

// speaker returns the speaker label for a segment span, or "" when
// diarization is off or the recording is not exactly two channels.
func (c *Context) speaker(t0, t1 int64, idOnly bool) string {
	if !c.diarized() {
		return ""
	}
	return transcript.EstimateSpeaker(c.Audio[0], c.Audio[1], t0, t1, c.SampleRate, idOnly)
}

// Sink is the capability every output format implements. The driver calls
// WriteHeader once, WriteSegment for each segment in order, then WriteFooter.
type Sink interface {
	WriteHeader(w *bufio.Writer, c *Context) error
	WriteSegment(w *bufio.Writer, c *Context, i int, seg transcript.Segment) error
	WriteFooter(w *bufio.Writer, c *Context) error
}

// validator is implemented by sinks with preconditions that must hold before
// any output is produced.
type validator interface {
	Validate(c *Context) error
}

// Write walks the transcript through a sink into w.
func Write(w io.Writer, s Sink, c *Context) error {
	bw := bufio.NewWriter(w)

	if err := s.WriteHeader(bw, c); err != nil {
		return err
	}
	for i, seg := range c.Transcript.Segments {
		if err := s.WriteSegment(bw, c, i, seg); err != nil {
			return err
		}
	}
	if err := s.WriteFooter(bw, c); err != nil {
		return err
	}

	return bw.Flush()
}

// WriteTo serializes one format into a file at path. On failure the partial
// file is removed so no broken artifact is left behind.
func WriteTo(path string, f Format, c *Context) error {
	reg, ok := sinks[f]
	if !ok {
		return fmt.Errorf("unknown output format %q", f)
	}

	if v, ok := reg.sink.(validator); ok {
		if err := v.Validate(c); err != nil {
			return err
		}
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, reg.mode)
	if err != nil {
		return fmt.Errorf("failed to create %s artifact: %w", f, err)
	}

	if err := Write(file, reg.sink, c); err != nil {
		file.Close()
		os.Remove(path)
		return fmt.Errorf("failed to write %s artifact: %w", f, err)
	}

	return file.Close()
}
