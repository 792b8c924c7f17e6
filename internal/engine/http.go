package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soundscribe/live-transcribe/internal/audio"
	"github.com/soundscribe/live-transcribe/internal/transcript"
)

// Config contains HTTP engine configuration.
type Config struct {
	Endpoint   string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	SampleRate int
}

// HTTPEngine implements Engine against a transcription HTTP service. Chunks
// are uploaded as 16-bit WAV multipart bodies; failed requests are retried
// with exponential backoff.
type HTTPEngine struct {
	config     Config
	httpClient *http.Client

	// Statistics
	totalRequests   uint64
	successRequests uint64
	failedRequests  uint64
	totalRetries    uint64
	avgResponseTime time.Duration

	mu sync.RWMutex
}

// Stats represents engine client statistics.
type Stats struct {
	TotalRequests   uint64        `json:"total_requests"`
	SuccessRequests uint64        `json:"success_requests"`
	FailedRequests  uint64        `json:"failed_requests"`
	SuccessRate     float64       `json:"success_rate"`
	TotalRetries    uint64        `json:"total_retries"`
	AvgResponseTime time.Duration `json:"avg_response_time"`
}

// wire types for the transcription service response. Timestamps are
// centiseconds, matching the transcript model.
type responseToken struct {
	ID      int     `json:"id"`
	Text    string  `json:"text"`
	P       float32 `json:"p"`
	T0      *int64  `json:"t0,omitempty"`
	T1      *int64  `json:"t1,omitempty"`
	TDTW    *int64  `json:"t_dtw,omitempty"`
	Special bool    `json:"special,omitempty"`
}

type responseSegment struct {
	T0              int64           `json:"t0"`
	T1              int64           `json:"t1"`
	Text            string          `json:"text"`
	SpeakerTurnNext bool            `json:"speaker_turn_next,omitempty"`
	Tokens          []responseToken `json:"tokens,omitempty"`
}

type transcribeResponse struct {
	Language string            `json:"language"`
	Segments []responseSegment `json:"segments"`
}

// NewHTTPEngine creates an HTTP-backed engine.
func NewHTTPEngine(config Config) (*HTTPEngine, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}

	if config.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", config.SampleRate)
	}

	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	if config.MaxRetries < 0 {
		config.MaxRetries = 3
	}

	httpClient := &http.Client{
		Timeout: config.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &HTTPEngine{
		config:     config,
		httpClient: httpClient,
	}, nil
}

// Transcribe uploads the chunk and decodes the returned segment stream.
func (e *HTTPEngine) Transcribe(ctx context.Context, samples []float32, p Params) (*transcript.Transcript, error) {
	startTime := time.Now()
	e.incrementTotalRequests()

	var lastErr error

	for attempt := 0; attempt <= e.config.MaxRetries; attempt++ {
		if attempt > 0 {
			e.incrementTotalRetries()

			// Exponential backoff, capped.
			backoffTime := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			if backoffTime > 30*time.Second {
				backoffTime = 30 * time.Second
			}

			select {
			case <-time.After(backoffTime):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		result, err := e.doRequest(ctx, samples, p)
		if err == nil {
			e.incrementSuccessRequests()
			e.updateAvgResponseTime(time.Since(startTime))

			if p.Progress != nil {
				p.Progress(100)
			}
			if p.NewSegment != nil {
				for _, seg := range result.Segments {
					p.NewSegment(seg)
				}
			}

			return result, nil
		}

		lastErr = err

		if !isRetryableError(err) {
			break
		}
	}

	e.incrementFailedRequests()
	return nil, fmt.Errorf("transcription failed after %d attempts: %w", e.config.MaxRetries+1, lastErr)
}

// Info returns static engine metadata from the configuration.
func (e *HTTPEngine) Info() Info {
	return Info{
		System: "remote transcription service " + e.config.Endpoint,
		Name:   "http",
		Model: ModelInfo{
			Type:         e.config.Model,
			Multilingual: true,
		},
	}
}

// Close releases idle connections.
func (e *HTTPEngine) Close() error {
	e.httpClient.CloseIdleConnections()
	return nil
}

// doRequest performs a single HTTP request against the transcription service.
func (e *HTTPEngine) doRequest(ctx context.Context, samples []float32, p Params) (*transcript.Transcript, error) {
	body, contentType, err := e.createMultipartRequest(samples, p)
	if err != nil {
		return nil, fmt.Errorf("failed to create multipart request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.Endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", contentType)
	if e.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+e.config.APIKey)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", "live-transcribe/1.0")

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(respBody))
	}

	var decoded transcribeResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, fmt.Errorf("failed to parse response JSON: %w", err)
	}

	return decoded.toTranscript(), nil
}

// toTranscript converts the wire response into the transcript model,
// applying the NoTimestamp sentinel for absent token timestamps.
func (r *transcribeResponse) toTranscript() *transcript.Transcript {
	result := &transcript.Transcript{Language: r.Language}

	for _, seg := range r.Segments {
		out := transcript.Segment{
			T0:              seg.T0,
			T1:              seg.T1,
			Text:            seg.Text,
			SpeakerTurnNext: seg.SpeakerTurnNext,
		}

		for _, tok := range seg.Tokens {
			out.Tokens = append(out.Tokens, transcript.Token{
				ID:      tok.ID,
				Text:    tok.Text,
				P:       tok.P,
				T0:      timestampOrSentinel(tok.T0),
				T1:      timestampOrSentinel(tok.T1),
				TDTW:    timestampOrSentinel(tok.TDTW),
				Special: tok.Special,
			})
		}

		result.Append(out)
	}

	return result
}

func timestampOrSentinel(t *int64) int64 {
	if t == nil {
		return transcript.NoTimestamp
	}
	return *t
}

// createMultipartRequest builds the multipart/form-data body: the chunk as a
// WAV file plus all transcription parameters as form fields.
func (e *HTTPEngine) createMultipartRequest(samples []float32, p Params) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	wav, err := audio.EncodeWAV([][]float32{samples}, e.config.SampleRate)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode chunk: %w", err)
	}

	requestID := uuid.NewString()

	fileWriter, err := writer.CreateFormFile("file", requestID+".wav")
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := fileWriter.Write(wav); err != nil {
		return nil, "", fmt.Errorf("failed to write audio data: %w", err)
	}

	fields := map[string]string{
		"request_id":          requestID,
		"model":               e.config.Model,
		"language":            p.Language,
		"translate":           fmt.Sprintf("%t", p.Translate),
		"detect_language":     fmt.Sprintf("%t", p.DetectLanguage),
		"word_threshold":      fmt.Sprintf("%.3f", p.WordThreshold),
		"entropy_threshold":   fmt.Sprintf("%.3f", p.EntropyThreshold),
		"logprob_threshold":   fmt.Sprintf("%.3f", p.LogProbThreshold),
		"no_speech_threshold": fmt.Sprintf("%.3f", p.NoSpeechThreshold),
		"temperature":         fmt.Sprintf("%.2f", p.Temperature),
		"temperature_inc":     fmt.Sprintf("%.2f", p.TemperatureInc),
		"max_context":         fmt.Sprintf("%d", p.MaxContext),
		"max_len":             fmt.Sprintf("%d", p.MaxLen),
		"split_on_word":       fmt.Sprintf("%t", p.SplitOnWord),
		"suppress_nst":        fmt.Sprintf("%t", p.SuppressNonSpeech),
	}

	if p.SuppressRegex != "" {
		fields["suppress_regex"] = p.SuppressRegex
	}

	if p.VAD.Enabled {
		fields["vad"] = "true"
		fields["vad_model"] = p.VAD.ModelPath
		fields["vad_threshold"] = fmt.Sprintf("%.3f", p.VAD.Threshold)
		fields["vad_min_speech_duration_ms"] = fmt.Sprintf("%d", p.VAD.MinSpeechDurationMs)
		fields["vad_min_silence_duration_ms"] = fmt.Sprintf("%d", p.VAD.MinSilenceDurationMs)
		fields["vad_max_speech_duration_s"] = fmt.Sprintf("%.2f", p.VAD.MaxSpeechDurationS)
		fields["vad_speech_pad_ms"] = fmt.Sprintf("%d", p.VAD.SpeechPadMs)
		fields["vad_samples_overlap"] = fmt.Sprintf("%.2f", p.VAD.SamplesOverlap)
	}

	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", key, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}

// isRetryableError determines whether a request should be retried.
func isRetryableError(err error) bool {
	if err == context.DeadlineExceeded {
		return true
	}

	errStr := err.Error()

	// 5xx server errors and rate limiting are retryable.
	if strings.Contains(errStr, "HTTP error 5") || strings.Contains(errStr, "HTTP error 429") {
		return true
	}

	// Network-level failures are typically transient.
	if strings.Contains(errStr, "connection") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "refused") {
		return true
	}

	return false
}

// Statistics methods

func (e *HTTPEngine) incrementTotalRequests() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.totalRequests++
}

func (e *HTTPEngine) incrementSuccessRequests() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.successRequests++
}

func (e *HTTPEngine) incrementFailedRequests() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failedRequests++
}

func (e *HTTPEngine) incrementTotalRetries() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.totalRetries++
}

func (e *HTTPEngine) updateAvgResponseTime(responseTime time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.avgResponseTime == 0 {
		e.avgResponseTime = responseTime
	} else {
		e.avgResponseTime = (e.avgResponseTime + responseTime) / 2
	}
}

// GetStats returns current client statistics.
func (e *HTTPEngine) GetStats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	successRate := float64(0)
	if e.totalRequests > 0 {
		successRate = float64(e.successRequests) / float64(e.totalRequests) * 100
	}

	return Stats{
		TotalRequests:   e.totalRequests,
		SuccessRequests: e.successRequests,
		FailedRequests:  e.failedRequests,
		SuccessRate:     successRate,
		TotalRetries:    e.totalRetries,
		AvgResponseTime: e.avgResponseTime,
	}
}
