package capture

import (
	"math"
	"sync"
)

// SyntheticProvider generates audio in-process. It stands in for a hardware
// capture backend in development and test setups: speech periods produce a
// sine tone, silence periods produce low-level noise.
type SyntheticProvider struct {
	SampleRate int

	mu   sync.Mutex
	last *SyntheticStream
}

// NewSyntheticProvider creates a provider generating 16 kHz mono audio.
func NewSyntheticProvider() *SyntheticProvider {
	return &SyntheticProvider{SampleRate: 16000}
}

// Devices lists the single synthetic device.
func (p *SyntheticProvider) Devices() ([]Device, error) {
	return []Device{{ID: "synthetic", Label: "Synthetic tone generator"}}, nil
}

// Open creates a synthetic stream. Any device ID is accepted; an empty ID
// selects the synthetic device as default.
func (p *SyntheticProvider) Open(deviceID string) (Stream, error) {
	sampleRate := p.SampleRate
	if sampleRate <= 0 {
		sampleRate = 16000
	}

	stream := &SyntheticStream{
		sampleRate: sampleRate,
		buffer:     newPCMBuffer(1024),
		amplitude:  0.2,
		frequency:  440,
	}

	p.mu.Lock()
	p.last = stream
	p.mu.Unlock()

	return stream, nil
}

// Stream returns the most recently opened synthetic stream. Tests use it to
// feed audio into a pipeline that opened the stream itself.
func (p *SyntheticProvider) Stream() *SyntheticStream {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// SyntheticStream produces generated PCM on demand. Tests and the session
// loop drive it by calling GenerateSpeech/GenerateSilence.
type SyntheticStream struct {
	sampleRate int
	buffer     *pcmBuffer
	amplitude  float64
	frequency  float64
	phase      float64
	closed     bool
	mu         sync.Mutex
}

// GenerateSpeech appends a sine tone of the given sample count.
func (s *SyntheticStream) GenerateSpeech(samples int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	pcm := make([]int16, samples)
	step := 2 * math.Pi * s.frequency / float64(s.sampleRate)
	for i := range pcm {
		pcm[i] = int16(s.amplitude * 32767 * math.Sin(s.phase))
		s.phase += step
	}
	s.buffer.push(pcm)
}

// GenerateSilence appends near-zero samples of the given count.
func (s *SyntheticStream) GenerateSilence(samples int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	pcm := make([]int16, samples)
	for i := range pcm {
		// Tiny alternating dither so the signal is quiet but not exactly zero.
		if i%2 == 0 {
			pcm[i] = 3
		} else {
			pcm[i] = -3
		}
	}
	s.buffer.push(pcm)
}

// ReadPCM drains samples generated since the previous call.
func (s *SyntheticStream) ReadPCM() []int16 {
	return s.buffer.drain()
}

// AnalysisWindow fills buf with the most recent normalized samples.
func (s *SyntheticStream) AnalysisWindow(buf []float64) int {
	return s.buffer.window(buf)
}

// SampleRate returns the stream's sample rate in Hz.
func (s *SyntheticStream) SampleRate() int {
	return s.sampleRate
}

// Close stops the stream.
func (s *SyntheticStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}
