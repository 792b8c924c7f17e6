package capture

import "context"

// Action is the continuation signal a callback returns to the source.
type Action int

const (
	// ActionContinue keeps the stream running.
	ActionContinue Action = iota
	// ActionStop tells the source to cease further callback invocations.
	ActionStop
)

// Callback receives one batch of samples per channel. A nil batch means the
// source produced no data for the interval and must be treated as silence.
// The callback runs on the source's delivery goroutine and must not block.
type Callback func(channels [][]float32) Action

// Device describes a selectable input.
type Device struct {
	Index            int
	Name             string
	MaxInputChannels int
}

// StreamParams configures an opened stream.
type StreamParams struct {
	SampleRate      int
	FramesPerBuffer int
	Channels        int
	DeviceIndex     int
}

// Source enumerates devices and opens streams against one of them.
type Source interface {
	Devices() ([]Device, error)
	Open(ctx context.Context, p StreamParams, cb Callback) (Stream, error)
}

// Stream is a started capture session. Stop halts callback delivery; Close
// releases the underlying resources. Both are idempotent. Time reports the
// stream position in seconds, 0 before Start.
type Stream interface {
	Start() error
	Stop() error
	Close() error
	Time() float64
}

// Feed normalizes a batch before handing it to the callback: a nil batch is
// replaced by zero-filled silence of the stream's shape, so downstream
// cursors keep advancing at the real-time cadence.
func Feed(cb Callback, channels, frames int, batch [][]float32) Action {
	if batch == nil {
		batch = make([][]float32, channels)
		for i := range batch {
			batch[i] = make([]float32, frames)
		}
	}
	return cb(batch)
}
