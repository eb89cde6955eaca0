package capture

import (
	"errors"
	"fmt"
	"sync"
)

// Capture errors are fatal to session start: no retry, resources released.
var (
	ErrNoDevice         = errors.New("capture: no input device available")
	ErrPermissionDenied = errors.New("capture: device access denied")
)

// Device identifies a selectable audio input.
type Device struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Stream is one open capture stream. PCM accumulates between ReadPCM calls;
// AnalysisWindow exposes the most recent samples for amplitude analysis.
type Stream interface {
	// ReadPCM drains and returns the 16-bit mono samples captured since the
	// previous call.
	ReadPCM() []int16

	// AnalysisWindow fills buf with the most recent time-domain samples
	// normalized to [-1, 1] and returns the number of samples written.
	AnalysisWindow(buf []float64) int

	SampleRate() int
	Close() error
}

// Provider enumerates devices and opens capture streams.
type Provider interface {
	Devices() ([]Device, error)

	// Open starts capturing from the device with the given ID. An empty ID
	// selects the default device.
	Open(deviceID string) (Stream, error)
}

// EncoderSession turns captured PCM into container-framed fragments. The
// first fragment of a session carries the container header; continuations
// are headerless and need repair before independent decoding.
type EncoderSession interface {
	// MediaType returns the negotiated MIME type of the encoded fragments.
	MediaType() string

	// Encode drains the stream and returns the next encoded fragment, which
	// may be empty when no audio arrived since the previous call.
	Encode() ([]byte, error)

	Close() error
}

// pcmBuffer is the shared sample store behind Stream implementations.
type pcmBuffer struct {
	samples    []int16
	recent     []int16 // ring of the latest samples for analysis windows
	recentHead int
	mu         sync.Mutex
}

func newPCMBuffer(analysisWindow int) *pcmBuffer {
	return &pcmBuffer{recent: make([]int16, analysisWindow)}
}

func (b *pcmBuffer) push(samples []int16) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.samples = append(b.samples, samples...)
	for _, s := range samples {
		b.recent[b.recentHead] = s
		b.recentHead = (b.recentHead + 1) % len(b.recent)
	}
}

func (b *pcmBuffer) drain() []int16 {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := b.samples
	b.samples = nil
	return out
}

func (b *pcmBuffer) window(buf []float64) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(buf)
	if n > len(b.recent) {
		n = len(b.recent)
	}

	// Oldest-first starting at the ring head.
	start := b.recentHead
	if n < len(b.recent) {
		start = (b.recentHead - n + len(b.recent)) % len(b.recent)
	}
	for i := 0; i < n; i++ {
		buf[i] = float64(b.recent[(start+i)%len(b.recent)]) / 32768.0
	}
	return n
}

// DecodePCM converts little-endian 16-bit PCM bytes back to samples.
func DecodePCM(data []byte) ([]int16, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("pcm byte length must be even, got %d", len(data))
	}

	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(data[i*2]) | int16(data[i*2+1])<<8
	}
	return samples, nil
}
