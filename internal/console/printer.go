package console

import (
	"fmt"
	"io"
	"math"
	"os"
	"sync"

	"github.com/mattn/go-isatty"

	"github.com/soundscribe/live-transcribe/internal/transcript"
)

// palette maps confidence buckets to 256-color ANSI codes, red through green.
var palette = []string{
	"\033[38;5;196m", "\033[38;5;202m", "\033[38;5;208m", "\033[38;5;214m", "\033[38;5;220m",
	"\033[38;5;226m", "\033[38;5;190m", "\033[38;5;154m", "\033[38;5;118m", "\033[38;5;82m",
}

const colorReset = "\033[0m"

// Options controls how segments are rendered.
type Options struct {
	// Timestamps prefixes each segment with its start/end timestamps.
	Timestamps bool

	// Colors renders each token in a confidence-bucket color. Disabled
	// automatically when the output is not a terminal.
	Colors bool

	// Special includes control tokens in colored output.
	Special bool

	// Diarize prefixes segments with the estimated speaker when the
	// recording has exactly two channels.
	Diarize bool

	// SpeakerTurn is appended after segments the engine flagged as
	// preceding a speaker change. Empty disables the marker.
	SpeakerTurn string

	// ProgressStep is the minimum percentage increase between progress
	// reports. Zero disables progress output.
	ProgressStep int
}

// Printer writes segments to out and progress lines to errOut.
type Printer struct {
	out        io.Writer
	errOut     io.Writer
	sampleRate int
	opts       Options

	mu           sync.Mutex
	progressPrev int
}

// NewPrinter builds a printer. Colors are switched off when out is not a
// terminal so piped output stays clean.
func NewPrinter(out, errOut io.Writer, sampleRate int, opts Options) *Printer {
	if opts.Colors && !isTerminal(out) {
		opts.Colors = false
	}

	return &Printer{
		out:        out,
		errOut:     errOut,
		sampleRate: sampleRate,
		opts:       opts,
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// BeginRun resets the progress counter for the next inference run and
// separates its output from the previous run's.
func (p *Printer) BeginRun() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.progressPrev = 0
	fmt.Fprintln(p.out)
}

// PrintSegment renders one segment. audio is the raw recording used for
// speaker estimation; anything but exactly two channels omits the speaker.
func (p *Printer) PrintSegment(seg transcript.Segment, audio [][]float32) {
	p.mu.Lock()
	defer p.mu.Unlock()

	speaker := ""
	if p.opts.Diarize && len(audio) == 2 {
		speaker = transcript.EstimateSpeaker(audio[0], audio[1], seg.T0, seg.T1, p.sampleRate, false)
	}

	if p.opts.Timestamps {
		fmt.Fprintf(p.out, "[%s --> %s]  ",
			transcript.FormatTimestamp(seg.T0, false),
			transcript.FormatTimestamp(seg.T1, false))
	}

	if p.opts.Colors && len(seg.Tokens) > 0 {
		for _, tok := range seg.Tokens {
			if !p.opts.Special && tok.Special {
				continue
			}
			fmt.Fprintf(p.out, "%s%s%s%s", speaker, palette[colorIndex(tok.P)], tok.Text, colorReset)
		}
	} else {
		fmt.Fprintf(p.out, "%s%s", speaker, seg.Text)
	}

	if seg.SpeakerTurnNext && p.opts.SpeakerTurn != "" {
		io.WriteString(p.out, p.opts.SpeakerTurn)
	}

	if p.opts.Timestamps || speaker != "" {
		fmt.Fprintln(p.out)
	}
}

// Progress reports a completion percentage, stepped so only every
// ProgressStep percent produces a line.
func (p *Printer) Progress(pct int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.opts.ProgressStep <= 0 {
		return
	}
	if pct < p.progressPrev+p.opts.ProgressStep {
		return
	}
	p.progressPrev += p.opts.ProgressStep
	fmt.Fprintf(p.errOut, "progress = %3d%%\n", pct)
}

// colorIndex buckets a token probability into the palette: confidence cubed,
// scaled to the palette size and clamped.
func colorIndex(p float32) int {
	col := int(math.Pow(float64(p), 3) * float64(len(palette)))
	if col < 0 {
		return 0
	}
	if col > len(palette)-1 {
		return len(palette) - 1
	}
	return col
}
