package capture

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"
)

// UDPConfig configures the UDP frame receiver.
type UDPConfig struct {
	BindAddress string
	Port        int
	BufferSize  int
}

// UDPSource receives audio frames over UDP. Senders push interleaved
// float32 frames (see ParseFrame); intervals without any datagram are fed
// to the callback as silence so the chunk cursor keeps real-time cadence.
type UDPSource struct {
	cfg    UDPConfig
	logger *slog.Logger
}

// NewUDPSource creates a UDP capture source.
func NewUDPSource(logger *slog.Logger, cfg UDPConfig) *UDPSource {
	return &UDPSource{cfg: cfg, logger: logger}
}

// Devices reports the single listening endpoint as a pseudo-device.
func (s *UDPSource) Devices() ([]Device, error) {
	return []Device{{
		Index:            0,
		Name:             fmt.Sprintf("udp://%s:%d", s.cfg.BindAddress, s.cfg.Port),
		MaxInputChannels: MaxFrameChannels,
	}}, nil
}

// Open binds the UDP socket and prepares a stream delivering to cb.
func (s *UDPSource) Open(ctx context.Context, p StreamParams, cb Callback) (Stream, error) {
	if p.Channels < 1 || p.Channels > MaxFrameChannels {
		return nil, fmt.Errorf("invalid channel count: %d", p.Channels)
	}

	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", s.cfg.BindAddress, s.cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on UDP: %w", err)
	}

	if s.cfg.BufferSize > 0 {
		if err := conn.SetReadBuffer(s.cfg.BufferSize); err != nil {
			s.logger.Warn("Failed to set UDP read buffer size",
				slog.Int("buffer_size", s.cfg.BufferSize),
				slog.String("error", err.Error()),
			)
		}
	}

	streamCtx, cancel := context.WithCancel(ctx)

	return &udpStream{
		conn:   conn,
		params: p,
		cb:     cb,
		logger: s.logger,
		ctx:    streamCtx,
		cancel: cancel,
	}, nil
}

type udpStream struct {
	conn   *net.UDPConn
	params StreamParams
	cb     Callback
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	started   bool
	closed    bool
	startTime time.Time

	// Statistics
	framesReceived uint64
	framesDropped  uint64
	parseErrors    uint64
	sequenceGaps   uint64
	mu             sync.RWMutex
}

// UDPStreamStats represents receiver statistics.
type UDPStreamStats struct {
	FramesReceived uint64 `json:"frames_received"`
	FramesDropped  uint64 `json:"frames_dropped"`
	ParseErrors    uint64 `json:"parse_errors"`
	SequenceGaps   uint64 `json:"sequence_gaps"`
}

// LocalAddr returns the bound address, useful when listening on port 0.
func (s *udpStream) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// Time reports seconds elapsed since Start. A wall clock is the right
// measure here: silence intervals advance the stream just like audio.
func (s *udpStream) Time() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.startTime.IsZero() {
		return 0
	}
	return time.Since(s.startTime).Seconds()
}

func (s *udpStream) Start() error {
	if s.started {
		return nil
	}
	s.started = true
	s.mu.Lock()
	s.startTime = time.Now()
	s.mu.Unlock()

	s.logger.Info("UDP capture stream started",
		slog.String("address", s.conn.LocalAddr().String()),
		slog.Int("sample_rate", s.params.SampleRate),
		slog.Int("frames_per_buffer", s.params.FramesPerBuffer),
		slog.Int("channels", s.params.Channels),
	)

	s.wg.Add(1)
	go s.receiveLoop()
	return nil
}

func (s *udpStream) Stop() error {
	s.cancel()
	s.wg.Wait()
	return nil
}

func (s *udpStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	s.cancel()
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close UDP connection: %w", err)
	}
	s.wg.Wait()

	stats := s.GetStats()
	s.logger.Info("UDP capture stream closed",
		slog.Uint64("frames_received", stats.FramesReceived),
		slog.Uint64("frames_dropped", stats.FramesDropped),
		slog.Uint64("parse_errors", stats.ParseErrors),
		slog.Uint64("sequence_gaps", stats.SequenceGaps),
	)
	return nil
}

// receiveLoop reads datagrams and forwards batches to the callback. The read
// deadline matches the stream's frame interval: a timeout means the sender
// went quiet for one buffer's worth of time, which is delivered as silence.
func (s *udpStream) receiveLoop() {
	defer s.wg.Done()

	interval := time.Duration(s.params.FramesPerBuffer) * time.Second / time.Duration(s.params.SampleRate)
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}

	buffer := make([]byte, 65536)
	var lastSeq uint32
	var haveSeq bool

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		if err := s.conn.SetReadDeadline(time.Now().Add(interval)); err != nil {
			s.logger.Error("Failed to set read deadline", slog.String("error", err.Error()))
			return
		}

		n, remoteAddr, err := s.conn.ReadFromUDP(buffer)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				// No audio for one buffer interval: feed silence.
				if Feed(s.cb, s.params.Channels, s.params.FramesPerBuffer, nil) == ActionStop {
					return
				}
				continue
			}

			select {
			case <-s.ctx.Done():
				return
			default:
				s.logger.Error("Failed to read UDP frame", slog.String("error", err.Error()))
				continue
			}
		}

		frame, err := ParseFrame(buffer[:n])
		if err != nil {
			s.mu.Lock()
			s.parseErrors++
			s.mu.Unlock()

			s.logger.Warn("Failed to parse audio frame",
				slog.String("remote_addr", remoteAddr.String()),
				slog.Int("frame_size", n),
				slog.String("error", err.Error()),
			)
			continue
		}

		if int(frame.Header.Channels) != s.params.Channels {
			s.mu.Lock()
			s.framesDropped++
			s.mu.Unlock()

			s.logger.Warn("Dropping frame with unexpected channel count",
				slog.Int("got", int(frame.Header.Channels)),
				slog.Int("want", s.params.Channels),
			)
			continue
		}

		s.mu.Lock()
		s.framesReceived++
		if haveSeq && frame.Header.Sequence != lastSeq+1 {
			s.sequenceGaps++
		}
		lastSeq = frame.Header.Sequence
		haveSeq = true
		s.mu.Unlock()

		if Feed(s.cb, s.params.Channels, len(frame.Samples[0]), frame.Samples) == ActionStop {
			return
		}
	}
}

// GetStats returns current receiver statistics.
func (s *udpStream) GetStats() UDPStreamStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return UDPStreamStats{
		FramesReceived: s.framesReceived,
		FramesDropped:  s.framesDropped,
		ParseErrors:    s.parseErrors,
		SequenceGaps:   s.sequenceGaps,
	}
}
