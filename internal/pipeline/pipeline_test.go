package pipeline

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/soundscribe/live-transcribe/internal/audio"
	"github.com/soundscribe/live-transcribe/internal/capture"
	"github.com/soundscribe/live-transcribe/internal/config"
	"github.com/soundscribe/live-transcribe/internal/engine"
	"github.com/soundscribe/live-transcribe/internal/metrics"
	"github.com/soundscribe/live-transcribe/internal/transcript"
)

// Prometheus collectors register globally, so all tests share one instance.
var testMetrics = metrics.NewMetrics()

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeEngine struct {
	mu      sync.Mutex
	calls   int
	block   chan struct{}
	started chan struct{}
}

func (e *fakeEngine) Transcribe(ctx context.Context, samples []float32, p engine.Params) (*transcript.Transcript, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()

	if e.started != nil {
		select {
		case e.started <- struct{}{}:
		default:
		}
	}
	if e.block != nil {
		<-e.block
	}

	tr := &transcript.Transcript{Language: "en"}
	tr.Append(transcript.Segment{T0: 0, T1: 10, Text: " hello"})
	return tr, nil
}

func (e *fakeEngine) Info() engine.Info { return engine.Info{Name: "fake"} }
func (e *fakeEngine) Close() error      { return nil }

func (e *fakeEngine) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func testConfig(dir string) *config.Config {
	return &config.Config{
		Audio: config.AudioConfig{
			SampleRate:      16000,
			Channels:        1,
			WindowSeconds:   0.1, // 1600-sample chunks keep the test fast
			FramesPerBuffer: 400,
		},
		Capture: config.CaptureConfig{Source: "file"},
		Inference: config.InferenceConfig{
			Endpoint: "http://localhost:1/unused",
			Timeout:  1,
			Language: "en",
		},
		Output: config.OutputConfig{
			Formats:  []string{"txt", "srt"},
			BasePath: filepath.Join(dir, "session"),
		},
		Logging: config.LoggingConfig{Level: "info", Format: "text", Output: "stderr"},
	}
}

func writeFixtureWAV(t *testing.T, dir string, samples int) string {
	t.Helper()

	ch := make([]float32, samples)
	for i := range ch {
		ch[i] = 0.25
	}
	data, err := audio.EncodeWAV([][]float32{ch}, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	path := filepath.Join(dir, "in.wav")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("Failed to write WAV fixture: %v", err)
	}
	return path
}

func TestPipelineSingleChunkRun(t *testing.T) {
	dir := t.TempDir()
	wav := writeFixtureWAV(t, dir, 1600)

	cfg := testConfig(dir)
	cfg.Capture.File.Path = wav

	eng := &fakeEngine{}
	src := capture.NewFileSource(testLogger(), wav, false)

	p, err := New(cfg, testLogger(), testMetrics, src, eng)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	var out bytes.Buffer
	p.SetOutput(&out, &out)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := p.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if eng.callCount() != 1 {
		t.Errorf("Expected exactly 1 inference run, got %d", eng.callCount())
	}

	stats := p.GetStats()
	if stats.Chunks.Filled != 1 {
		t.Errorf("Expected 1 filled chunk, got %d", stats.Chunks.Filled)
	}
	if stats.Runs != 1 {
		t.Errorf("Expected 1 completed run, got %d", stats.Runs)
	}
	if stats.Capture.Samples != 1600 {
		t.Errorf("Expected 1600 recorded samples, got %d", stats.Capture.Samples)
	}

	txt, err := os.ReadFile(filepath.Join(dir, "session.txt"))
	if err != nil {
		t.Fatalf("Expected txt artifact: %v", err)
	}
	if string(txt) != " hello\n" {
		t.Errorf("Unexpected txt artifact: %q", txt)
	}

	if _, err := os.Stat(filepath.Join(dir, "session.srt")); err != nil {
		t.Errorf("Expected srt artifact: %v", err)
	}
}

func TestPipelineDropsChunksWhileBusy(t *testing.T) {
	dir := t.TempDir()
	wav := writeFixtureWAV(t, dir, 4800) // three chunks

	cfg := testConfig(dir)
	cfg.Capture.File.Path = wav
	cfg.Output.Formats = nil

	eng := &fakeEngine{
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	src := capture.NewFileSource(testLogger(), wav, false)

	p, err := New(cfg, testLogger(), testMetrics, src, eng)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	var out bytes.Buffer
	p.SetOutput(&out, &out)

	go func() {
		<-eng.started
		// Hold the first run until playback has delivered the rest.
		time.Sleep(100 * time.Millisecond)
		close(eng.block)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := p.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	stats := p.GetStats()
	if stats.Chunks.Filled != 3 {
		t.Errorf("Expected 3 filled chunks, got %d", stats.Chunks.Filled)
	}
	if stats.Chunks.Dropped == 0 {
		t.Error("Expected at least one dropped chunk while inference was busy")
	}
	if eng.callCount() != 1 {
		t.Errorf("Expected exactly 1 inference run, got %d", eng.callCount())
	}
}

func TestPipelineSkipsSilentChunks(t *testing.T) {
	dir := t.TempDir()

	// Silent fixture: the gate should reject every chunk.
	ch := make([]float32, 3200)
	data, err := audio.EncodeWAV([][]float32{ch}, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}
	wav := filepath.Join(dir, "in.wav")
	if err := os.WriteFile(wav, data, 0o644); err != nil {
		t.Fatalf("Failed to write WAV fixture: %v", err)
	}

	cfg := testConfig(dir)
	cfg.Capture.File.Path = wav
	cfg.Output.Formats = nil
	cfg.VAD.GateEnabled = true
	cfg.VAD.GateThreshold = 0.3

	eng := &fakeEngine{}
	src := capture.NewFileSource(testLogger(), wav, false)

	p, err := New(cfg, testLogger(), testMetrics, src, eng)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	var out bytes.Buffer
	p.SetOutput(&out, &out)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := p.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if eng.callCount() != 0 {
		t.Errorf("Expected no inference runs for silence, got %d", eng.callCount())
	}

	stats := p.GetStats()
	if stats.Chunks.Skipped != 2 {
		t.Errorf("Expected 2 skipped chunks, got %d", stats.Chunks.Skipped)
	}
}

func TestPipelineSavesRecording(t *testing.T) {
	dir := t.TempDir()
	wav := writeFixtureWAV(t, dir, 1600)

	cfg := testConfig(dir)
	cfg.Capture.File.Path = wav
	cfg.Output.Formats = nil
	cfg.Audio.SaveRecording = true
	cfg.Audio.RecordingPath = filepath.Join(dir, "recorded.wav")

	eng := &fakeEngine{}
	src := capture.NewFileSource(testLogger(), wav, false)

	p, err := New(cfg, testLogger(), testMetrics, src, eng)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	var out bytes.Buffer
	p.SetOutput(&out, &out)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := p.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	saved, err := os.ReadFile(cfg.Audio.RecordingPath)
	if err != nil {
		t.Fatalf("Expected saved recording: %v", err)
	}

	channels, sampleRate, err := audio.DecodeWAV(saved)
	if err != nil {
		t.Fatalf("Saved recording does not decode: %v", err)
	}
	if sampleRate != 16000 || len(channels) != 1 || len(channels[0]) != 1600 {
		t.Errorf("Unexpected recording shape: rate=%d channels=%d samples=%d",
			sampleRate, len(channels), len(channels[0]))
	}
}

func TestPerRunArtifactNaming(t *testing.T) {
	dir := t.TempDir()
	wav := writeFixtureWAV(t, dir, 1600)

	cfg := testConfig(dir)
	cfg.Capture.File.Path = wav
	cfg.Output.Formats = []string{"txt"}

	eng := &fakeEngine{}
	src := capture.NewFileSource(testLogger(), wav, false)

	p, err := New(cfg, testLogger(), testMetrics, src, eng)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	var out bytes.Buffer
	p.SetOutput(&out, &out)

	tr := &transcript.Transcript{Language: "en"}
	tr.Append(transcript.Segment{T0: 0, T1: 10, Text: " hi"})

	p.onResult(tr, nil, time.Millisecond)
	p.onResult(tr, nil, time.Millisecond)

	if _, err := os.Stat(filepath.Join(dir, "session.txt")); err != nil {
		t.Errorf("Expected first-run artifact session.txt: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "session.1.txt")); err != nil {
		t.Errorf("Expected second-run artifact session.1.txt: %v", err)
	}
}

func TestEngineParamsCarryDecoderThresholds(t *testing.T) {
	dir := t.TempDir()
	wav := writeFixtureWAV(t, dir, 1600)

	cfg := testConfig(dir)
	cfg.Capture.File.Path = wav
	cfg.Inference.WordThreshold = 0.01
	cfg.Inference.EntropyThreshold = 2.4
	cfg.Inference.LogProbThreshold = -1.0
	cfg.Inference.NoSpeechThreshold = 0.6

	p, err := New(cfg, testLogger(), testMetrics, capture.NewFileSource(testLogger(), wav, false), &fakeEngine{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	params := p.engineParams()
	if params.WordThreshold != 0.01 {
		t.Errorf("WordThreshold = %v, want 0.01", params.WordThreshold)
	}
	if params.EntropyThreshold != 2.4 {
		t.Errorf("EntropyThreshold = %v, want 2.4", params.EntropyThreshold)
	}
	if params.LogProbThreshold != -1.0 {
		t.Errorf("LogProbThreshold = %v, want -1.0", params.LogProbThreshold)
	}
	if params.NoSpeechThreshold != 0.6 {
		t.Errorf("NoSpeechThreshold = %v, want 0.6", params.NoSpeechThreshold)
	}
}

func TestPipelineStopsAfterRecordDuration(t *testing.T) {
	dir := t.TempDir()
	wav := writeFixtureWAV(t, dir, 32000) // two seconds of audio

	cfg := testConfig(dir)
	cfg.Capture.File.Path = wav
	cfg.Capture.RecordDuration = 0.2
	cfg.Output.Formats = nil

	eng := &fakeEngine{}
	// Realtime pacing so the stream clock advances slower than playback
	// of the full file would take.
	src := capture.NewFileSource(testLogger(), wav, true)

	p, err := New(cfg, testLogger(), testMetrics, src, eng)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	var out bytes.Buffer
	p.SetOutput(&out, &out)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	start := time.Now()
	if err := p.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if elapsed := time.Since(start); elapsed >= 2*time.Second {
		t.Errorf("Run took %v, expected the record duration to cut playback short", elapsed)
	}

	stats := p.GetStats()
	if stats.Capture.Samples >= 32000 {
		t.Errorf("Expected capture cut short of 32000 samples, got %d", stats.Capture.Samples)
	}
}

func TestPipelineStopsOnContextCancel(t *testing.T) {
	dir := t.TempDir()
	wav := writeFixtureWAV(t, dir, 16000)

	cfg := testConfig(dir)
	cfg.Capture.File.Path = wav
	cfg.Output.Formats = nil

	eng := &fakeEngine{}
	// Realtime playback of 1s of audio; cancellation must cut it short.
	src := capture.NewFileSource(testLogger(), wav, true)

	p, err := New(cfg, testLogger(), testMetrics, src, eng)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	var out bytes.Buffer
	p.SetOutput(&out, &out)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop on cancellation")
	}

	if strings.Contains(out.String(), "\033[") {
		t.Errorf("Unexpected ANSI escapes in buffered output: %q", out.String())
	}
}
