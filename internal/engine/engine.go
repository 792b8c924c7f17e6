package engine

import (
	"context"

	"github.com/soundscribe/live-transcribe/internal/transcript"
)

// VADParams carries the voice-activity-detection sub-configuration forwarded
// to the engine with every request.
type VADParams struct {
	Enabled              bool
	ModelPath            string
	Threshold            float32
	MinSpeechDurationMs  int
	MinSilenceDurationMs int
	MaxSpeechDurationS   float32
	SpeechPadMs          int
	SamplesOverlap       float32
}

// Params configures a single transcription request.
type Params struct {
	Language       string
	Translate      bool
	DetectLanguage bool

	// Decoder thresholds.
	WordThreshold     float32
	EntropyThreshold  float32
	LogProbThreshold  float32
	NoSpeechThreshold float32
	Temperature       float32
	TemperatureInc    float32

	MaxContext  int
	MaxLen      int
	SplitOnWord bool

	// Token suppression.
	SuppressRegex     string
	SuppressNonSpeech bool

	VAD VADParams

	// Progress, when set, receives completion percentages during the run.
	Progress func(pct int)

	// NewSegment, when set, receives each segment as it becomes available,
	// before the full transcript is returned.
	NewSegment func(seg transcript.Segment)
}

// ModelInfo describes the loaded recognition model for the JSON exporter.
type ModelInfo struct {
	Type         string `json:"type"`
	Multilingual bool   `json:"multilingual"`
	Vocab        int    `json:"vocab"`
	AudioCtx     int    `json:"audio_ctx"`
	AudioState   int    `json:"audio_state"`
	AudioHead    int    `json:"audio_head"`
	AudioLayer   int    `json:"audio_layer"`
	TextCtx      int    `json:"text_ctx"`
	TextState    int    `json:"text_state"`
	TextHead     int    `json:"text_head"`
	TextLayer    int    `json:"text_layer"`
	Mels         int    `json:"mels"`
	FType        int    `json:"ftype"`
}

// Info describes the engine and model backing the pipeline.
type Info struct {
	System string    `json:"systeminfo"`
	Name   string    `json:"name"`
	Model  ModelInfo `json:"model"`
}

// Engine is the opaque speech-recognition boundary. Transcribe may take
// arbitrarily long; the dispatcher guarantees at most one concurrent call.
// A non-nil error means the chunk failed to transcribe; the caller logs it
// and continues.
type Engine interface {
	// Transcribe runs inference over a mono chunk of samples in [-1, 1]
	// and returns the resulting transcript.
	Transcribe(ctx context.Context, samples []float32, p Params) (*transcript.Transcript, error)

	// Info returns engine and model metadata.
	Info() Info

	// Close releases engine resources.
	Close() error
}
