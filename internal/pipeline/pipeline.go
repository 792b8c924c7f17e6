package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/soundscribe/live-transcribe/internal/audio"
	"github.com/soundscribe/live-transcribe/internal/capture"
	"github.com/soundscribe/live-transcribe/internal/config"
	"github.com/soundscribe/live-transcribe/internal/console"
	"github.com/soundscribe/live-transcribe/internal/dispatch"
	"github.com/soundscribe/live-transcribe/internal/engine"
	"github.com/soundscribe/live-transcribe/internal/export"
	"github.com/soundscribe/live-transcribe/internal/metrics"
	"github.com/soundscribe/live-transcribe/internal/transcript"
	"github.com/soundscribe/live-transcribe/internal/vad"
)

// toolName is the producer written into LRC headers.
const toolName = "live-transcribe"

// Pipeline owns every stage between the capture source and the persisted
// artifacts.
type Pipeline struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	source   capture.Source
	engine   engine.Engine
	buffer   *audio.ChunkBuffer
	recorder *audio.Recorder
	gate     *vad.Gate
	printer  *console.Printer

	dispatcher *dispatch.Dispatcher
	formats    []export.Format

	running atomic.Bool

	// Statistics
	chunksFilled  uint64
	chunksDropped uint64
	chunksSkipped uint64
	runs          uint64
	statsMu       sync.RWMutex
}

// ChunkStats counts the fate of filled chunks.
type ChunkStats struct {
	Filled  uint64 `json:"filled"`
	Dropped uint64 `json:"dropped"`
	Skipped uint64 `json:"skipped"`
}

// Stats is the full pipeline snapshot served by the status API.
type Stats struct {
	Capture    audio.RecorderStats `json:"capture"`
	Chunks     ChunkStats          `json:"chunks"`
	Dispatcher dispatch.Stats      `json:"dispatcher"`
	Gate       *vad.Stats          `json:"gate,omitempty"`
	Runs       uint64              `json:"runs"`
}

// New assembles a pipeline from its configuration, capture source and
// inference engine.
func New(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics, source capture.Source, eng engine.Engine) (*Pipeline, error) {
	buffer, err := audio.NewChunkBuffer(cfg.Audio.ChunkCapacity())
	if err != nil {
		return nil, fmt.Errorf("failed to create chunk buffer: %w", err)
	}

	recorder, err := audio.NewRecorder(cfg.Audio.Channels)
	if err != nil {
		return nil, fmt.Errorf("failed to create recorder: %w", err)
	}

	var gate *vad.Gate
	if cfg.VAD.GateEnabled {
		gate, err = vad.NewGate(cfg.VAD.GateThreshold)
		if err != nil {
			return nil, fmt.Errorf("failed to create voice gate: %w", err)
		}
	}

	formats := make([]export.Format, 0, len(cfg.Output.Formats))
	for _, s := range cfg.Output.Formats {
		f, err := export.ParseFormat(s)
		if err != nil {
			return nil, fmt.Errorf("invalid output format: %w", err)
		}
		formats = append(formats, f)
	}

	p := &Pipeline{
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		source:   source,
		engine:   eng,
		buffer:   buffer,
		recorder: recorder,
		gate:     gate,
		formats:  formats,
	}

	p.printer = console.NewPrinter(os.Stdout, os.Stderr, cfg.Audio.SampleRate, console.Options{
		Timestamps:   cfg.Console.Timestamps,
		Colors:       cfg.Console.Colors,
		Special:      cfg.Console.PrintSpecial,
		Diarize:      cfg.Output.Diarize,
		SpeakerTurn:  speakerTurnMarker(cfg.Output.TinyDiarize),
		ProgressStep: cfg.Console.ProgressStep,
	})

	p.dispatcher = dispatch.New(logger, meteredEngine{Engine: eng, m: m}, p.engineParams(), p.onResult)

	return p, nil
}

func speakerTurnMarker(enabled bool) string {
	if enabled {
		return " [SPEAKER_TURN]"
	}
	return ""
}

// engineParams maps the inference config onto per-request parameters and
// hooks the console into the engine callbacks.
func (p *Pipeline) engineParams() engine.Params {
	inf := p.cfg.Inference

	return engine.Params{
		Language:       inf.Language,
		Translate:      inf.Translate,
		DetectLanguage: inf.DetectLanguage,

		WordThreshold:     inf.WordThreshold,
		EntropyThreshold:  inf.EntropyThreshold,
		LogProbThreshold:  inf.LogProbThreshold,
		NoSpeechThreshold: inf.NoSpeechThreshold,

		Temperature:    inf.Temperature,
		TemperatureInc: inf.TemperatureInc,
		MaxContext:     inf.MaxContext,
		MaxLen:         inf.MaxLen,
		SplitOnWord:    inf.SplitOnWord,

		SuppressRegex:     inf.SuppressRegex,
		SuppressNonSpeech: inf.SuppressNonSpeech,

		VAD: engine.VADParams{
			Enabled:              p.cfg.VAD.Enabled,
			ModelPath:            p.cfg.VAD.ModelPath,
			Threshold:            p.cfg.VAD.Threshold,
			MinSpeechDurationMs:  p.cfg.VAD.MinSpeechDurationMs,
			MinSilenceDurationMs: p.cfg.VAD.MinSilenceDurationMs,
			MaxSpeechDurationS:   p.cfg.VAD.MaxSpeechDurationS,
			SpeechPadMs:          p.cfg.VAD.SpeechPadMs,
			SamplesOverlap:       p.cfg.VAD.SamplesOverlap,
		},

		Progress: p.printer.Progress,
		NewSegment: func(seg transcript.Segment) {
			p.printer.PrintSegment(seg, p.recorderChannels())
		},
	}
}

// Run drives the pipeline until the context is cancelled, the configured
// record duration elapses or the source drains. Capture failures are fatal;
// per-chunk inference failures are not.
func (p *Pipeline) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	devices, err := p.source.Devices()
	if err != nil {
		return fmt.Errorf("failed to enumerate capture devices: %w", err)
	}
	for _, d := range devices {
		p.logger.Info("Capture device available",
			slog.Int("index", d.Index),
			slog.String("name", d.Name),
			slog.Int("max_input_channels", d.MaxInputChannels),
		)
	}

	p.running.Store(true)

	stream, err := p.source.Open(runCtx, capture.StreamParams{
		SampleRate:      p.cfg.Audio.SampleRate,
		FramesPerBuffer: p.cfg.Audio.FramesPerBuffer,
		Channels:        p.cfg.Audio.Channels,
		DeviceIndex:     p.cfg.Capture.DeviceIndex,
	}, p.onBatch)
	if err != nil {
		return fmt.Errorf("failed to open capture stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("failed to start capture stream: %w", err)
	}

	p.logger.Info("Pipeline running",
		slog.Int("sample_rate", p.cfg.Audio.SampleRate),
		slog.Int("chunk_capacity", p.buffer.Cap()),
		slog.Int("channels", p.cfg.Audio.Channels),
		slog.Float64("record_duration", p.cfg.Capture.RecordDuration),
	)

	// The record-duration watchdog reads the stream's own clock so file
	// playback is measured in audio seconds, not wall time.
	var durationC <-chan time.Time
	if p.cfg.Capture.RecordDuration > 0 {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		durationC = ticker.C
	}

	var drainedC <-chan struct{}
	if d, ok := stream.(interface{ Done() <-chan struct{} }); ok {
		drainedC = d.Done()
	}

wait:
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Stop signal received")
			break wait
		case <-durationC:
			if stream.Time() >= p.cfg.Capture.RecordDuration {
				p.logger.Info("Record duration reached",
					slog.Float64("stream_time", stream.Time()))
				break wait
			}
		case <-drainedC:
			p.logger.Info("Capture source drained")
			break wait
		}
	}

	p.running.Store(false)

	if err := stream.Stop(); err != nil {
		p.logger.Error("Failed to stop capture stream", slog.String("error", err.Error()))
	}
	if err := stream.Close(); err != nil {
		p.logger.Error("Failed to close capture stream", slog.String("error", err.Error()))
	}

	// Let any in-flight inference finish and export its result.
	p.dispatcher.Close()

	if p.cfg.Audio.SaveRecording {
		if err := p.saveRecording(); err != nil {
			p.logger.Error("Failed to save recording", slog.String("error", err.Error()))
		}
	}

	stats := p.GetStats()
	p.logger.Info("Pipeline stopped",
		slog.Float64("captured_seconds", stats.Capture.Duration),
		slog.Uint64("chunks_filled", stats.Chunks.Filled),
		slog.Uint64("chunks_dropped", stats.Chunks.Dropped),
		slog.Uint64("chunks_skipped", stats.Chunks.Skipped),
		slog.Uint64("runs", stats.Runs),
	)

	return nil
}

// onBatch is the capture callback: it records the raw audio, advances the
// chunk cursor and hands full chunks to the dispatcher. It never blocks.
func (p *Pipeline) onBatch(channels [][]float32) capture.Action {
	if !p.running.Load() {
		return capture.ActionStop
	}

	if err := p.recorder.Append(channels); err != nil {
		p.logger.Warn("Dropping malformed batch", slog.String("error", err.Error()))
		return capture.ActionContinue
	}
	p.metrics.RecordBatch(len(channels[0]))

	mono := channels[0]
	if len(channels) == 2 {
		mono = make([]float32, len(channels[0]))
		for i := range mono {
			mono[i] = (channels[0][i] + channels[1][i]) / 2
		}
	}

	for _, s := range mono {
		if p.buffer.Push(s) {
			p.handleFullChunk()
		}
	}

	return capture.ActionContinue
}

// handleFullChunk snapshots the filled buffer and offers it for inference.
// A rejected offer means a run is still in flight; the chunk is dropped in
// favor of real-time responsiveness.
func (p *Pipeline) handleFullChunk() {
	chunk := p.buffer.SnapshotAndReset()

	p.metrics.RecordChunkFilled()
	p.statsMu.Lock()
	p.chunksFilled++
	p.statsMu.Unlock()

	if p.gate != nil {
		if ok, probability := p.gate.Admit(chunk); !ok {
			p.metrics.RecordChunkSkipped()
			p.statsMu.Lock()
			p.chunksSkipped++
			p.statsMu.Unlock()

			p.logger.Debug("Chunk skipped by voice gate",
				slog.Int("samples", len(chunk)),
				slog.Float64("probability", float64(probability)),
			)
			return
		}
	}

	if p.dispatcher.TrySubmit(chunk) {
		p.printer.BeginRun()
		return
	}

	p.metrics.RecordChunkDropped()
	p.statsMu.Lock()
	p.chunksDropped++
	p.statsMu.Unlock()

	p.logger.Debug("Chunk dropped, inference busy", slog.Int("samples", len(chunk)))
}

// onResult exports one finished run's artifacts. Artifact failures are
// reported per format and never stop the pipeline.
func (p *Pipeline) onResult(tr *transcript.Transcript, chunk []float32, elapsed time.Duration) {
	p.statsMu.Lock()
	p.runs++
	run := p.runs
	p.statsMu.Unlock()

	if len(p.formats) == 0 {
		return
	}

	base := p.cfg.Output.BasePath
	if run > 1 {
		base = fmt.Sprintf("%s.%d", base, run-1)
	}

	ectx := &export.Context{
		Transcript: tr,
		Audio:      p.recorderChannels(),
		SampleRate: p.cfg.Audio.SampleRate,
		Info:       p.engine.Info(),
		Options: export.Options{
			Diarize:       p.cfg.Output.Diarize,
			TinyDiarize:   p.cfg.Output.TinyDiarize,
			OffsetN:       p.cfg.Output.OffsetN,
			FullJSON:      p.cfg.Output.FullJSON,
			Tool:          toolName,
			ModelPath:     p.cfg.Inference.Model,
			Language:      p.cfg.Inference.Language,
			Translate:     p.cfg.Inference.Translate,
			FontPath:      p.cfg.Output.FontPath,
			InputPath:     p.cfg.Audio.RecordingPath,
			AudioDuration: p.recorder.Duration(p.cfg.Audio.SampleRate).Seconds(),
		},
	}

	errs := export.WriteAll(base, p.formats, ectx)
	for _, f := range p.formats {
		err := errs[f]
		p.metrics.RecordExport(string(f), err)
		if err != nil {
			p.logger.Error("Failed to write artifact",
				slog.String("format", string(f)),
				slog.String("error", err.Error()),
			)
			continue
		}
		p.logger.Debug("Artifact written", slog.String("path", base+f.Ext()))
	}
}

// recorderChannels snapshots the raw recording as per-channel slices for
// speaker estimation.
func (p *Pipeline) recorderChannels() [][]float32 {
	channels := make([][]float32, p.recorder.Channels())
	for i := range channels {
		channels[i] = p.recorder.Samples(i)
	}
	return channels
}

// saveRecording persists the session audio as a WAV file.
func (p *Pipeline) saveRecording() error {
	data, err := audio.EncodeWAV(p.recorderChannels(), p.cfg.Audio.SampleRate)
	if err != nil {
		return fmt.Errorf("failed to encode recording: %w", err)
	}

	if err := os.WriteFile(p.cfg.Audio.RecordingPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write recording: %w", err)
	}

	p.logger.Info("Recording saved",
		slog.String("path", p.cfg.Audio.RecordingPath),
		slog.Float64("duration_seconds", p.recorder.Duration(p.cfg.Audio.SampleRate).Seconds()),
	)
	return nil
}

// GetStats returns the current pipeline statistics snapshot.
func (p *Pipeline) GetStats() Stats {
	p.statsMu.RLock()
	chunks := ChunkStats{
		Filled:  p.chunksFilled,
		Dropped: p.chunksDropped,
		Skipped: p.chunksSkipped,
	}
	runs := p.runs
	p.statsMu.RUnlock()

	stats := Stats{
		Capture:    p.recorder.Stats(p.cfg.Audio.SampleRate),
		Chunks:     chunks,
		Dispatcher: p.dispatcher.GetStats(),
		Runs:       runs,
	}
	if p.gate != nil {
		gs := p.gate.GetStats()
		stats.Gate = &gs
	}
	return stats
}

// SetOutput redirects console rendering, used by tests.
func (p *Pipeline) SetOutput(out, errOut io.Writer) {
	p.printer = console.NewPrinter(out, errOut, p.cfg.Audio.SampleRate, console.Options{
		Timestamps:   p.cfg.Console.Timestamps,
		Colors:       p.cfg.Console.Colors,
		Special:      p.cfg.Console.PrintSpecial,
		Diarize:      p.cfg.Output.Diarize,
		SpeakerTurn:  speakerTurnMarker(p.cfg.Output.TinyDiarize),
		ProgressStep: p.cfg.Console.ProgressStep,
	})
}

// meteredEngine decorates an engine with Prometheus instrumentation.
type meteredEngine struct {
	engine.Engine
	m *metrics.Metrics
}

func (e meteredEngine) Transcribe(ctx context.Context, samples []float32, params engine.Params) (*transcript.Transcript, error) {
	e.m.RecordInferenceStart()
	start := time.Now()

	tr, err := e.Engine.Transcribe(ctx, samples, params)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		e.m.RecordInferenceFailure(elapsed)
		return nil, err
	}

	e.m.RecordInferenceSuccess(elapsed, tr.Len())
	return tr, nil
}
