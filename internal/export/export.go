package export

import (
	"fmt"
	"io/fs"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Format identifies an output format.
type Format string

const (
	FormatText    Format = "txt"
	FormatVTT     Format = "vtt"
	FormatSRT     Format = "srt"
	FormatCSV     Format = "csv"
	FormatJSON    Format = "json"
	FormatLRC     Format = "lrc"
	FormatKaraoke Format = "wts"
)

type registration struct {
	sink Sink
	ext  string
	mode fs.FileMode
}

var sinks = map[Format]registration{
	FormatText:    {sink: textSink{}, ext: ".txt", mode: 0o644},
	FormatVTT:     {sink: vttSink{}, ext: ".vtt", mode: 0o644},
	FormatSRT:     {sink: srtSink{}, ext: ".srt", mode: 0o644},
	FormatCSV:     {sink: csvSink{}, ext: ".csv", mode: 0o644},
	FormatJSON:    {sink: jsonSink{}, ext: ".json", mode: 0o644},
	FormatLRC:     {sink: lrcSink{}, ext: ".lrc", mode: 0o644},
	FormatKaraoke: {sink: karaokeSink{}, ext: ".wts", mode: 0o755},
}

// ParseFormat converts a config string into a Format.
func ParseFormat(s string) (Format, error) {
	f := Format(s)
	if _, ok := sinks[f]; !ok {
		return "", fmt.Errorf("unknown output format %q", s)
	}
	return f, nil
}

// Ext returns the conventional file extension for the format, dot included.
func (f Format) Ext() string {
	return sinks[f].ext
}

// WriteAll writes every requested format to basePath plus the format's
// extension, fanning the formats out concurrently. A failing format does not
// block the others; the returned map holds one entry per failed format and is
// empty on full success.
func WriteAll(basePath string, formats []Format, c *Context) map[Format]error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs = make(map[Format]error)
	)

	for _, f := range formats {
		f := f
		g.Go(func() error {
			if err := WriteTo(basePath+f.Ext(), f, c); err != nil {
				mu.Lock()
				errs[f] = err
				mu.Unlock()
			}
			return nil
		})
	}

	g.Wait()
	return errs
}
