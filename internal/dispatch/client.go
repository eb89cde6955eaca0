package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/KaatCAIBXL/video-translator-sub000/internal/recorder"
)

// ErrNoTranslationBackend indicates the remote service has no translation
// backend configured. Callers surface this distinctly because every
// subsequent dispatch will fail the same way until the backend is fixed.
var ErrNoTranslationBackend = errors.New("no translation backend configured")

// Config contains dispatcher configuration.
type Config struct {
	Endpoint        string        // translate endpoint URL
	Timeout         time.Duration // per-request timeout
	MaxConcurrent   int           // concurrent dispatch limit
	SourceLanguage  string        // language spoken into the microphone
	TargetLanguage  string        // translation target
	InterpreterLang string        // optional interpreter language hint
	TextOnly        bool          // skip synthesis on the backend
}

// Segment is one backend response mapped to pipeline input. An empty segment
// with SilenceDetected set force-finalizes the pending sentence.
type Segment struct {
	Recognized      string `json:"recognized"`
	Corrected       string `json:"corrected"`
	Translation     string `json:"translation"`
	SilenceDetected bool   `json:"silenceDetected"`
	ForceFinalize   bool   `json:"-"`
}

// Empty reports whether the segment carries no text at all.
func (s *Segment) Empty() bool {
	return strings.TrimSpace(s.Recognized) == "" &&
		strings.TrimSpace(s.Corrected) == "" &&
		strings.TrimSpace(s.Translation) == ""
}

// errorResponse is the backend's structured failure payload.
type errorResponse struct {
	Error     string `json:"error"`
	ErrorCode string `json:"errorCode"`
}

// Stats represents dispatcher statistics.
type Stats struct {
	TotalDispatches  uint64        `json:"total_dispatches"`
	SuccessResponses uint64        `json:"success_responses"`
	FailedDispatches uint64        `json:"failed_dispatches"`
	SilenceResponses uint64        `json:"silence_responses"`
	SuccessRate      float64       `json:"success_rate"`
	AvgResponseTime  time.Duration `json:"avg_response_time"`
	ActiveDispatches int           `json:"active_dispatches"`
}

// Client sends repaired chunks to the translate endpoint.
type Client struct {
	config     Config
	httpClient *http.Client
	semaphore  chan struct{}

	totalDispatches  uint64
	successResponses uint64
	failedDispatches uint64
	silenceResponses uint64
	avgResponseTime  time.Duration

	mu sync.RWMutex
}

// NewClient creates a dispatcher client.
func NewClient(config Config) (*Client, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}

	if config.SourceLanguage == "" {
		return nil, fmt.Errorf("source language cannot be empty")
	}

	if config.TargetLanguage == "" {
		return nil, fmt.Errorf("target language cannot be empty")
	}

	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 4
	}

	httpClient := &http.Client{
		Timeout: config.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
		semaphore:  make(chan struct{}, config.MaxConcurrent),
	}, nil
}

// Dispatch sends one chunk for transcription and translation. There is no
// retry: on failure the chunk is gone and the caller moves on to the next
// one.
func (c *Client) Dispatch(ctx context.Context, chunk *recorder.Chunk) (*Segment, error) {
	select {
	case c.semaphore <- struct{}{}:
		defer func() { <-c.semaphore }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	startTime := time.Now()
	c.incrementTotalDispatches()

	segment, err := c.doRequest(ctx, chunk)
	if err != nil {
		c.incrementFailedDispatches()
		return nil, err
	}

	c.recordSuccess(time.Since(startTime), segment.SilenceDetected)
	return segment, nil
}

// doRequest performs a single round trip to the translate endpoint.
func (c *Client) doRequest(ctx context.Context, chunk *recorder.Chunk) (*Segment, error) {
	body, contentType, err := c.createMultipartRequest(chunk)
	if err != nil {
		return nil, fmt.Errorf("failed to create multipart request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp errorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.ErrorCode == "no_translation_backend" {
			return nil, fmt.Errorf("dispatch rejected: %w", ErrNoTranslationBackend)
		}
		if errResp.Error != "" {
			return nil, fmt.Errorf("HTTP error %d: %s", resp.StatusCode, errResp.Error)
		}
		return nil, fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(respBody))
	}

	var segment Segment
	if err := json.Unmarshal(respBody, &segment); err != nil {
		return nil, fmt.Errorf("failed to parse response JSON: %w", err)
	}

	// The backend falls back to the corrected text when translation comes
	// back empty, but older deployments do not. Mirror the fallback here so
	// the accumulator always sees a translation for corrected speech.
	if strings.TrimSpace(segment.Translation) == "" && strings.TrimSpace(segment.Corrected) != "" {
		segment.Translation = segment.Corrected
	}

	return &segment, nil
}

// createMultipartRequest builds the multipart form body for one chunk.
func (c *Client) createMultipartRequest(chunk *recorder.Chunk) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	filename := fmt.Sprintf("chunk-%d-%s%s", chunk.Seq, uuid.NewString(), extensionFor(chunk.MediaType))
	fileWriter, err := writer.CreateFormFile("audio", filename)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := fileWriter.Write(chunk.Data); err != nil {
		return nil, "", fmt.Errorf("failed to write audio data: %w", err)
	}

	fields := map[string]string{
		"from":     c.config.SourceLanguage,
		"to":       c.config.TargetLanguage,
		"duration": fmt.Sprintf("%.3f", chunk.Duration.Seconds()),
	}

	if c.config.InterpreterLang != "" {
		fields["interpreter_lang"] = c.config.InterpreterLang
	}
	if c.config.TextOnly {
		fields["text_only"] = "true"
	}
	if chunk.Silence {
		fields["silence_flush"] = "true"
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

// extensionFor maps a media type to an upload filename extension.
func extensionFor(mediaType string) string {
	switch {
	case strings.Contains(mediaType, "webm"):
		return ".webm"
	case strings.Contains(mediaType, "mp4"):
		return ".mp4"
	case strings.Contains(mediaType, "ogg"):
		return ".ogg"
	case strings.Contains(mediaType, "wav"):
		return ".wav"
	default:
		return ".bin"
	}
}

func (c *Client) incrementTotalDispatches() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalDispatches++
}

func (c *Client) incrementFailedDispatches() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failedDispatches++
}

func (c *Client) recordSuccess(responseTime time.Duration, silence bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.successResponses++
	if silence {
		c.silenceResponses++
	}

	// Simple moving average
	if c.avgResponseTime == 0 {
		c.avgResponseTime = responseTime
	} else {
		c.avgResponseTime = (c.avgResponseTime + responseTime) / 2
	}
}

// GetStats returns current dispatcher statistics.
func (c *Client) GetStats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	successRate := float64(0)
	if c.totalDispatches > 0 {
		successRate = float64(c.successResponses) / float64(c.totalDispatches) * 100
	}

	return Stats{
		TotalDispatches:  c.totalDispatches,
		SuccessResponses: c.successResponses,
		FailedDispatches: c.failedDispatches,
		SilenceResponses: c.silenceResponses,
		SuccessRate:      successRate,
		AvgResponseTime:  c.avgResponseTime,
		ActiveDispatches: len(c.semaphore),
	}
}

// Close waits for all active dispatches to complete.
func (c *Client) Close() error {
	for i := 0; i < cap(c.semaphore); i++ {
		c.semaphore <- struct{}{}
	}
	return nil
}
