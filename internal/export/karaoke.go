package export

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/soundscribe/live-transcribe/internal/transcript"
)

// karaokeSink emits a shell script that drives ffmpeg to render a karaoke
// video: for every token a highlighted copy of the segment text plus an
// underline, each time-gated to the token's start/end window. A monospace
// font is required so the per-character offsets line up.
type karaokeSink struct{}

// Validate fails the export before any output when the font is missing.
func (karaokeSink) Validate(c *Context) error {
	if _, err := os.Stat(c.Options.FontPath); err != nil {
		return fmt.Errorf("karaoke font not found at %q: %w", c.Options.FontPath, err)
	}
	return nil
}

func (karaokeSink) WriteHeader(w *bufio.Writer, c *Context) error {
	dur := c.Options.AudioDuration
	if dur == 0 {
		dur = float64(c.Transcript.Duration()) / 100.0
	}

	if _, err := w.WriteString("#!/bin/bash\n\n"); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w,
		"ffmpeg -i %s -f lavfi -i color=size=1200x120:duration=%g:rate=25:color=black -vf \"",
		c.Options.InputPath, dur)
	return err
}

func (karaokeSink) WriteSegment(w *bufio.Writer, c *Context, i int, seg transcript.Segment) error {
	font := c.Options.FontPath

	if i > 0 {
		if _, err := w.WriteString(","); err != nil {
			return err
		}
	}

	// Clears the frame at the segment start.
	_, err := fmt.Fprintf(w,
		"drawtext=fontfile='%s':fontsize=24:fontcolor=gray:x=(w-text_w)/2:y=h/2:text='':enable='between(t,%g,%g)'",
		font, float64(seg.T0)/100.0, float64(seg.T0)/100.0)
	if err != nil {
		return err
	}

	speaker := c.speaker(seg.T0, seg.T1, false)

	first := true
	for j, tok := range seg.Tokens {
		if tok.Special {
			continue
		}

		var bg, fg, ul strings.Builder
		if speaker != "" {
			bg.WriteString(speaker)
			fg.WriteString(speaker)
			ul.WriteString(strings.Repeat("\\ ", 11))
		}
		bg.WriteString("> ")
		fg.WriteString("> ")
		ul.WriteString("\\ \\ ")

		// The full segment text as background; the current token copied
		// through as highlight, every other character blanked out, with
		// a matching underline row.
		for k, other := range seg.Tokens {
			if other.Special {
				continue
			}
			bg.WriteString(other.Text)

			if k == j {
				for l := 0; l < len(other.Text); l++ {
					fg.WriteByte(other.Text[l])
					ul.WriteByte('_')
				}
				fg.WriteString("|")
			} else {
				for l := 0; l < len(other.Text); l++ {
					fg.WriteString("\\ ")
					ul.WriteString("\\ ")
				}
			}
		}

		txtBG := escapeFilterText(bg.String())
		txtFG := escapeFilterText(fg.String())

		if first {
			_, err = fmt.Fprintf(w,
				",drawtext=fontfile='%s':fontsize=24:fontcolor=gray:x=(w-text_w)/2:y=h/2:text='%s':enable='between(t,%g,%g)'",
				font, txtBG, float64(seg.T0)/100.0, float64(seg.T1)/100.0)
			if err != nil {
				return err
			}
			first = false
		}

		_, err = fmt.Fprintf(w,
			",drawtext=fontfile='%s':fontsize=24:fontcolor=lightgreen:x=(w-text_w)/2+8:y=h/2:text='%s':enable='between(t,%g,%g)'",
			font, txtFG, float64(tok.T0)/100.0, float64(tok.T1)/100.0)
		if err != nil {
			return err
		}

		_, err = fmt.Fprintf(w,
			",drawtext=fontfile='%s':fontsize=24:fontcolor=lightgreen:x=(w-text_w)/2+8:y=h/2+16:text='%s':enable='between(t,%g,%g)'",
			font, ul.String(), float64(tok.T0)/100.0, float64(tok.T1)/100.0)
		if err != nil {
			return err
		}
	}

	return nil
}

func (karaokeSink) WriteFooter(w *bufio.Writer, c *Context) error {
	inp := c.Options.InputPath
	_, err := fmt.Fprintf(w,
		"\" -c:v libx264 -pix_fmt yuv420p -y %s.mp4\n\n\necho \"Your video has been saved to %s.mp4\"\n\necho \"  ffplay %s.mp4\"\n\n",
		inp, inp, inp)
	return err
}

// escapeFilterText keeps token text valid inside the generated script's
// single-quoted filter strings: straight single quotes become typographic
// quotes and double quotes are backslash-escaped.
func escapeFilterText(s string) string {
	s = strings.ReplaceAll(s, "'", "’")
	return strings.ReplaceAll(s, "\"", "\\\"")
}
