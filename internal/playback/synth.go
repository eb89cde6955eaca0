package playback

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// SynthConfig contains synthesis client configuration.
type SynthConfig struct {
	Endpoint string        // speak endpoint URL
	Language string        // synthesis voice language
	Timeout  time.Duration // per-request timeout
}

// SynthStats represents synthesis client statistics.
type SynthStats struct {
	TotalRequests    uint64        `json:"total_requests"`
	FailedRequests   uint64        `json:"failed_requests"`
	BytesSynthesized uint64        `json:"bytes_synthesized"`
	AvgResponseTime  time.Duration `json:"avg_response_time"`
}

// SynthClient fetches synthesized speech from the backend.
type SynthClient struct {
	config     SynthConfig
	httpClient *http.Client

	totalRequests    uint64
	failedRequests   uint64
	bytesSynthesized uint64
	avgResponseTime  time.Duration

	mu sync.RWMutex
}

// NewSynthClient creates a synthesis client.
func NewSynthClient(config SynthConfig) (*SynthClient, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}

	if config.Language == "" {
		config.Language = "nl"
	}

	if config.Timeout <= 0 {
		config.Timeout = 20 * time.Second
	}

	return &SynthClient{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}, nil
}

// Synthesize fetches an audio payload for the given text.
func (c *SynthClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	c.mu.Lock()
	c.totalRequests++
	c.mu.Unlock()

	startTime := time.Now()

	form := url.Values{}
	form.Set("text", text)
	form.Set("lang", c.config.Language)
	form.Set("speak", "true")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.recordFailure()
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.recordFailure()
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.recordFailure()

		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
			return nil, fmt.Errorf("synthesis failed with HTTP %d: %s", resp.StatusCode, errResp.Error)
		}
		return nil, fmt.Errorf("synthesis failed with HTTP %d", resp.StatusCode)
	}

	if len(body) == 0 {
		c.recordFailure()
		return nil, fmt.Errorf("synthesis returned an empty audio payload")
	}

	c.mu.Lock()
	c.bytesSynthesized += uint64(len(body))
	elapsed := time.Since(startTime)
	if c.avgResponseTime == 0 {
		c.avgResponseTime = elapsed
	} else {
		c.avgResponseTime = (c.avgResponseTime + elapsed) / 2
	}
	c.mu.Unlock()

	return body, nil
}

func (c *SynthClient) recordFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failedRequests++
}

// GetStats returns current synthesis statistics.
func (c *SynthClient) GetStats() SynthStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return SynthStats{
		TotalRequests:    c.totalRequests,
		FailedRequests:   c.failedRequests,
		BytesSynthesized: c.bytesSynthesized,
		AvgResponseTime:  c.avgResponseTime,
	}
}
