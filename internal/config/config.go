package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete transcriber configuration
type Config struct {
	Audio     AudioConfig     `yaml:"audio"`
	Capture   CaptureConfig   `yaml:"capture"`
	Inference InferenceConfig `yaml:"inference"`
	VAD       VADConfig       `yaml:"vad"`
	Output    OutputConfig    `yaml:"output"`
	Console   ConsoleConfig   `yaml:"console"`
	Status    StatusConfig    `yaml:"status"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// AudioConfig contains sampling and buffering parameters
type AudioConfig struct {
	SampleRate      int     `yaml:"sample_rate"`
	Channels        int     `yaml:"channels"`
	WindowSeconds   float64 `yaml:"window_seconds"` // chunk length in seconds
	FramesPerBuffer int     `yaml:"frames_per_buffer"`
	SaveRecording   bool    `yaml:"save_recording"`
	RecordingPath   string  `yaml:"recording_path"`
}

// ChunkCapacity returns the chunk buffer capacity in samples.
func (a *AudioConfig) ChunkCapacity() int {
	return int(float64(a.SampleRate) * a.WindowSeconds)
}

// CaptureConfig selects and configures the audio source
type CaptureConfig struct {
	Source         string  `yaml:"source"` // "udp" or "file"
	DeviceIndex    int     `yaml:"device_index"`
	RecordDuration float64 `yaml:"record_duration"` // seconds, 0 = until interrupted

	UDP  UDPCaptureConfig  `yaml:"udp"`
	File FileCaptureConfig `yaml:"file"`
}

// UDPCaptureConfig configures the UDP frame receiver
type UDPCaptureConfig struct {
	BindAddress string `yaml:"bind_address"`
	Port        int    `yaml:"port"`
	BufferSize  int    `yaml:"buffer_size"`
}

// FileCaptureConfig configures WAV file playback
type FileCaptureConfig struct {
	Path     string `yaml:"path"`
	Realtime bool   `yaml:"realtime"`
}

// InferenceConfig contains the transcription engine settings
type InferenceConfig struct {
	Endpoint   string `yaml:"endpoint"`
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	Timeout    int    `yaml:"timeout"` // seconds
	MaxRetries int    `yaml:"max_retries"`

	Language       string `yaml:"language"`
	Translate      bool   `yaml:"translate"`
	DetectLanguage bool   `yaml:"detect_language"`

	WordThreshold     float32 `yaml:"word_threshold"`
	EntropyThreshold  float32 `yaml:"entropy_threshold"`
	LogProbThreshold  float32 `yaml:"logprob_threshold"`
	NoSpeechThreshold float32 `yaml:"no_speech_threshold"`

	Temperature    float32 `yaml:"temperature"`
	TemperatureInc float32 `yaml:"temperature_inc"`
	MaxContext     int     `yaml:"max_context"`
	MaxLen         int     `yaml:"max_len"`
	SplitOnWord    bool    `yaml:"split_on_word"`

	SuppressRegex     string `yaml:"suppress_regex"`
	SuppressNonSpeech bool   `yaml:"suppress_non_speech"`
}

// RequestTimeout returns the per-request timeout as a duration.
func (i *InferenceConfig) RequestTimeout() time.Duration {
	return time.Duration(i.Timeout) * time.Second
}

// VADConfig contains both the local energy gate and the engine-side
// voice-activity parameters forwarded with each request
type VADConfig struct {
	GateEnabled   bool    `yaml:"gate_enabled"`
	GateThreshold float32 `yaml:"gate_threshold"`

	Enabled              bool    `yaml:"enabled"`
	ModelPath            string  `yaml:"model_path"`
	Threshold            float32 `yaml:"threshold"`
	MinSpeechDurationMs  int     `yaml:"min_speech_duration_ms"`
	MinSilenceDurationMs int     `yaml:"min_silence_duration_ms"`
	MaxSpeechDurationS   float32 `yaml:"max_speech_duration_s"`
	SpeechPadMs          int     `yaml:"speech_pad_ms"`
	SamplesOverlap       float32 `yaml:"samples_overlap"`
}

// OutputConfig selects the artifacts written after each run
type OutputConfig struct {
	Formats  []string `yaml:"formats"`
	BasePath string   `yaml:"base_path"`

	Diarize     bool `yaml:"diarize"`
	TinyDiarize bool `yaml:"tinydiarize"`
	OffsetN     int  `yaml:"offset_n"`
	FullJSON    bool `yaml:"full_json"`

	FontPath string `yaml:"font_path"`
}

// ConsoleConfig controls live console rendering
type ConsoleConfig struct {
	Timestamps   bool `yaml:"timestamps"`
	Colors       bool `yaml:"colors"`
	PrintSpecial bool `yaml:"print_special"`
	ProgressStep int  `yaml:"progress_step"`
}

// StatusConfig contains the optional HTTP status server settings
type StatusConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// Addr returns the listen address for the status server.
func (s *StatusConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Address, s.Port)
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Capture.Validate(); err != nil {
		return fmt.Errorf("capture config: %w", err)
	}

	if err := c.Inference.Validate(); err != nil {
		return fmt.Errorf("inference config: %w", err)
	}

	if err := c.VAD.Validate(); err != nil {
		return fmt.Errorf("vad config: %w", err)
	}

	if err := c.Output.Validate(); err != nil {
		return fmt.Errorf("output config: %w", err)
	}

	if err := c.Console.Validate(); err != nil {
		return fmt.Errorf("console config: %w", err)
	}

	if err := c.Status.Validate(); err != nil {
		return fmt.Errorf("status config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.SampleRate < 8000 {
		return fmt.Errorf("sample_rate must be at least 8000 Hz, got %d", a.SampleRate)
	}

	if a.Channels < 1 || a.Channels > 2 {
		return fmt.Errorf("channels must be 1 or 2, got %d", a.Channels)
	}

	if a.WindowSeconds <= 0 {
		return fmt.Errorf("window_seconds must be positive, got %f", a.WindowSeconds)
	}

	if a.ChunkCapacity() <= 0 {
		return fmt.Errorf("chunk capacity must be positive, got %d", a.ChunkCapacity())
	}

	if a.FramesPerBuffer < 1 {
		return fmt.Errorf("frames_per_buffer must be at least 1, got %d", a.FramesPerBuffer)
	}

	if a.SaveRecording && a.RecordingPath == "" {
		return fmt.Errorf("recording_path cannot be empty when save_recording is enabled")
	}

	return nil
}

// Validate validates capture configuration
func (c *CaptureConfig) Validate() error {
	switch c.Source {
	case "udp":
		if c.UDP.Port < 1 || c.UDP.Port > 65535 {
			return fmt.Errorf("udp port must be between 1 and 65535, got %d", c.UDP.Port)
		}
		if c.UDP.BindAddress == "" {
			return fmt.Errorf("udp bind_address cannot be empty")
		}
	case "file":
		if c.File.Path == "" {
			return fmt.Errorf("file path cannot be empty")
		}
	default:
		return fmt.Errorf("source must be 'udp' or 'file', got '%s'", c.Source)
	}

	if c.RecordDuration < 0 {
		return fmt.Errorf("record_duration cannot be negative, got %f", c.RecordDuration)
	}

	return nil
}

// Validate validates inference configuration
func (i *InferenceConfig) Validate() error {
	if i.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	if i.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", i.Timeout)
	}

	if i.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", i.MaxRetries)
	}

	if i.Language == "" && !i.DetectLanguage {
		return fmt.Errorf("language cannot be empty unless detect_language is enabled")
	}

	if i.WordThreshold < 0 || i.WordThreshold > 1 {
		return fmt.Errorf("word_threshold must be between 0 and 1, got %f", i.WordThreshold)
	}

	if i.EntropyThreshold < 0 {
		return fmt.Errorf("entropy_threshold cannot be negative, got %f", i.EntropyThreshold)
	}

	if i.NoSpeechThreshold < 0 || i.NoSpeechThreshold > 1 {
		return fmt.Errorf("no_speech_threshold must be between 0 and 1, got %f", i.NoSpeechThreshold)
	}

	return nil
}

// Validate validates VAD configuration
func (v *VADConfig) Validate() error {
	if v.GateEnabled {
		if v.GateThreshold < 0 || v.GateThreshold > 1 {
			return fmt.Errorf("gate_threshold must be between 0 and 1, got %f", v.GateThreshold)
		}
	}

	if v.Enabled {
		if v.ModelPath == "" {
			return fmt.Errorf("model_path cannot be empty when engine vad is enabled")
		}
		if v.Threshold < 0 || v.Threshold > 1 {
			return fmt.Errorf("threshold must be between 0 and 1, got %f", v.Threshold)
		}
	}

	return nil
}

// Validate validates output configuration
func (o *OutputConfig) Validate() error {
	if len(o.Formats) > 0 && o.BasePath == "" {
		return fmt.Errorf("base_path cannot be empty when output formats are requested")
	}

	validFormats := map[string]bool{
		"txt": true, "vtt": true, "srt": true, "csv": true,
		"json": true, "lrc": true, "wts": true,
	}
	for _, f := range o.Formats {
		if !validFormats[f] {
			return fmt.Errorf("unknown output format '%s'", f)
		}
		if f == "wts" && o.FontPath == "" {
			return fmt.Errorf("font_path cannot be empty when the wts format is requested")
		}
	}

	return nil
}

// Validate validates console configuration
func (c *ConsoleConfig) Validate() error {
	if c.ProgressStep < 0 || c.ProgressStep > 100 {
		return fmt.Errorf("progress_step must be between 0 and 100, got %d", c.ProgressStep)
	}

	return nil
}

// Validate validates status server configuration
func (s *StatusConfig) Validate() error {
	if s.Enabled {
		if s.Port < 1 || s.Port > 65535 {
			return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
		}
		if s.Address == "" {
			return fmt.Errorf("address cannot be empty when the status server is enabled")
		}
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	validOutputs := map[string]bool{"stdout": true, "stderr": true}
	if !validOutputs[l.Output] {
		return fmt.Errorf("output must be 'stdout' or 'stderr', got '%s'", l.Output)
	}

	return nil
}
