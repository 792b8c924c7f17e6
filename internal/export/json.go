package export

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/soundscribe/live-transcribe/internal/transcript"
)

// jsonSink builds the JSON artifact by hand so the layout stays stable:
// tab indentation, fields in a fixed order, and explicit trailing-comma
// elision on the last element of every object and array. Token detail is
// only included for full runs.
type jsonSink struct{}

func (jsonSink) WriteHeader(w *bufio.Writer, c *Context) error {
	jw := &jsonWriter{w: w}

	jw.startObj("")
	jw.valueS("systeminfo", c.Info.System, false)
	jw.startObj("model")
	jw.valueS("type", c.Info.Model.Type, false)
	jw.valueB("multilingual", c.Info.Model.Multilingual, false)
	jw.valueI("vocab", int64(c.Info.Model.Vocab), false)
	jw.startObj("audio")
	jw.valueI("ctx", int64(c.Info.Model.AudioCtx), false)
	jw.valueI("state", int64(c.Info.Model.AudioState), false)
	jw.valueI("head", int64(c.Info.Model.AudioHead), false)
	jw.valueI("layer", int64(c.Info.Model.AudioLayer), true)
	jw.endObj(false)
	jw.startObj("text")
	jw.valueI("ctx", int64(c.Info.Model.TextCtx), false)
	jw.valueI("state", int64(c.Info.Model.TextState), false)
	jw.valueI("head", int64(c.Info.Model.TextHead), false)
	jw.valueI("layer", int64(c.Info.Model.TextLayer), true)
	jw.endObj(false)
	jw.valueI("mels", int64(c.Info.Model.Mels), false)
	jw.valueI("ftype", int64(c.Info.Model.FType), true)
	jw.endObj(false)
	jw.startObj("params")
	jw.valueS("model", c.Options.ModelPath, false)
	jw.valueS("language", c.Options.Language, false)
	jw.valueB("translate", c.Options.Translate, true)
	jw.endObj(false)
	jw.startObj("result")
	jw.valueS("language", c.Transcript.Language, true)
	jw.endObj(false)
	jw.startArr("transcription")

	return jw.err
}

func (jsonSink) WriteSegment(w *bufio.Writer, c *Context, i int, seg transcript.Segment) error {
	// Header and footer bracket the transcription array; segments write at
	// a fixed depth inside it.
	jw := &jsonWriter{w: w, indent: 2}
	full := c.Options.FullJSON
	diarized := c.diarized()
	turns := c.Options.TinyDiarize
	last := i == c.Transcript.Len()-1

	jw.startObj("")
	jw.times(seg.T0, seg.T1, false)
	jw.valueS("text", seg.Text, !diarized && !turns && !full)

	if full {
		jw.startArr("tokens")
		for j, tok := range seg.Tokens {
			jw.startObj("")
			jw.valueS("text", tok.Text, false)
			if tok.T0 > transcript.NoTimestamp && tok.T1 > transcript.NoTimestamp {
				jw.times(tok.T0, tok.T1, false)
			}
			jw.valueI("id", int64(tok.ID), false)
			jw.valueF("p", tok.P, false)
			jw.valueI("t_dtw", tok.TDTW, true)
			jw.endObj(j == len(seg.Tokens)-1)
		}
		jw.endArr(!diarized && !turns)
	}

	if diarized {
		jw.valueS("speaker", c.speaker(seg.T0, seg.T1, true), true)
	}
	if turns {
		jw.valueB("speaker_turn_next", seg.SpeakerTurnNext, true)
	}

	jw.endObj(last)
	return jw.err
}

func (jsonSink) WriteFooter(w *bufio.Writer, c *Context) error {
	jw := &jsonWriter{w: w, indent: 2}
	jw.endArr(true)
	jw.endObj(true)
	return jw.err
}

// jsonWriter tracks indentation depth and the first write error. All methods
// are no-ops after an error.
type jsonWriter struct {
	w      *bufio.Writer
	indent int
	err    error
}

func (j *jsonWriter) writeString(s string) {
	if j.err != nil {
		return
	}
	_, j.err = j.w.WriteString(s)
}

func (j *jsonWriter) doIndent() {
	for i := 0; i < j.indent; i++ {
		j.writeString("\t")
	}
}

func (j *jsonWriter) startObj(name string) {
	j.doIndent()
	if name != "" {
		j.writeString("\"" + name + "\": {\n")
	} else {
		j.writeString("{\n")
	}
	j.indent++
}

func (j *jsonWriter) endObj(end bool) {
	j.indent--
	j.doIndent()
	if end {
		j.writeString("}\n")
	} else {
		j.writeString("},\n")
	}
}

func (j *jsonWriter) startArr(name string) {
	j.doIndent()
	j.writeString("\"" + name + "\": [\n")
	j.indent++
}

func (j *jsonWriter) endArr(end bool) {
	j.indent--
	j.doIndent()
	if end {
		j.writeString("]\n")
	} else {
		j.writeString("],\n")
	}
}

func (j *jsonWriter) startValue(name string) {
	j.doIndent()
	j.writeString("\"" + name + "\": ")
}

func (j *jsonWriter) endValue(end bool) {
	if end {
		j.writeString("\n")
	} else {
		j.writeString(",\n")
	}
}

func (j *jsonWriter) valueS(name, val string, end bool) {
	j.startValue(name)
	j.writeString("\"" + escapeJSON(val) + "\"")
	j.endValue(end)
}

func (j *jsonWriter) valueI(name string, val int64, end bool) {
	j.startValue(name)
	j.writeString(strconv.FormatInt(val, 10))
	j.endValue(end)
}

func (j *jsonWriter) valueF(name string, val float32, end bool) {
	j.startValue(name)
	j.writeString(fmt.Sprintf("%g", val))
	j.endValue(end)
}

func (j *jsonWriter) valueB(name string, val bool, end bool) {
	j.startValue(name)
	j.writeString(strconv.FormatBool(val))
	j.endValue(end)
}

// times writes the nested timestamps (formatted) and offsets (millisecond)
// objects shared by segments and tokens.
func (j *jsonWriter) times(t0, t1 int64, end bool) {
	j.startObj("timestamps")
	j.valueS("from", transcript.FormatTimestamp(t0, true), false)
	j.valueS("to", transcript.FormatTimestamp(t1, true), true)
	j.endObj(false)
	j.startObj("offsets")
	j.valueI("from", t0*10, false)
	j.valueI("to", t1*10, true)
	j.endObj(end)
}

// escapeJSON backslash-prefixes embedded double quotes and backslashes.
func escapeJSON(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '"' || s[i] == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
