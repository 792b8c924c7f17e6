package capture

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/soundscribe/live-transcribe/internal/audio"
)

// FileSource replays a WAV file through the capture callback, optionally at
// real-time pacing. It stands in for a live device during development and in
// tests.
type FileSource struct {
	logger   *slog.Logger
	path     string
	realtime bool
}

// NewFileSource creates a playback source for the WAV file at path. With
// realtime set, batches are delivered at the cadence a live stream would
// produce them; otherwise playback runs as fast as the callback allows.
func NewFileSource(logger *slog.Logger, path string, realtime bool) *FileSource {
	return &FileSource{logger: logger, path: path, realtime: realtime}
}

// Devices reports the file as a single pseudo-device.
func (s *FileSource) Devices() ([]Device, error) {
	if _, err := os.Stat(s.path); err != nil {
		return nil, fmt.Errorf("audio file not accessible: %w", err)
	}
	return []Device{{Index: 0, Name: s.path, MaxInputChannels: MaxFrameChannels}}, nil
}

// Open decodes the file and prepares a stream delivering to cb.
func (s *FileSource) Open(ctx context.Context, p StreamParams, cb Callback) (Stream, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio file: %w", err)
	}

	channels, sampleRate, err := audio.DecodeWAV(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode audio file: %w", err)
	}

	if sampleRate != p.SampleRate {
		return nil, fmt.Errorf("sample rate mismatch: file has %d Hz, stream wants %d Hz", sampleRate, p.SampleRate)
	}

	switch {
	case len(channels) == p.Channels:
	case len(channels) == 2 && p.Channels == 1:
		// Downmix stereo to mono.
		mono := make([]float32, len(channels[0]))
		for i := range mono {
			mono[i] = (channels[0][i] + channels[1][i]) / 2
		}
		channels = [][]float32{mono}
	default:
		return nil, fmt.Errorf("channel mismatch: file has %d channels, stream wants %d", len(channels), p.Channels)
	}

	streamCtx, cancel := context.WithCancel(ctx)

	return &fileStream{
		channels: channels,
		params:   p,
		cb:       cb,
		realtime: s.realtime,
		logger:   s.logger,
		ctx:      streamCtx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}, nil
}

type fileStream struct {
	channels [][]float32
	params   StreamParams
	cb       Callback
	realtime bool
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}

	started bool
	closed  bool

	mu        sync.Mutex
	delivered int
}

// Done is closed once the whole file has been delivered.
func (s *fileStream) Done() <-chan struct{} {
	return s.done
}

// Time reports the stream position as delivered samples over the sample
// rate, so non-realtime playback still advances in audio seconds.
func (s *fileStream) Time() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return float64(s.delivered) / float64(s.params.SampleRate)
}

func (s *fileStream) Start() error {
	if s.started {
		return nil
	}
	s.started = true

	s.logger.Info("File playback started",
		slog.Int("samples", len(s.channels[0])),
		slog.Int("channels", len(s.channels)),
		slog.Int("sample_rate", s.params.SampleRate),
		slog.Bool("realtime", s.realtime),
	)

	s.wg.Add(1)
	go s.deliverLoop()
	return nil
}

func (s *fileStream) Stop() error {
	s.cancel()
	s.wg.Wait()
	return nil
}

func (s *fileStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.Stop()
}

func (s *fileStream) deliverLoop() {
	defer s.wg.Done()
	defer close(s.done)

	frames := s.params.FramesPerBuffer
	total := len(s.channels[0])

	interval := time.Duration(frames) * time.Second / time.Duration(s.params.SampleRate)
	var ticker *time.Ticker
	if s.realtime && interval > 0 {
		ticker = time.NewTicker(interval)
		defer ticker.Stop()
	}

	for off := 0; off < total; off += frames {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		if ticker != nil {
			select {
			case <-ticker.C:
			case <-s.ctx.Done():
				return
			}
		}

		end := off + frames
		if end > total {
			end = total
		}

		batch := make([][]float32, len(s.channels))
		for c := range s.channels {
			batch[c] = s.channels[c][off:end]
		}

		if Feed(s.cb, s.params.Channels, end-off, batch) == ActionStop {
			return
		}

		s.mu.Lock()
		s.delivered += end - off
		s.mu.Unlock()
	}
}
