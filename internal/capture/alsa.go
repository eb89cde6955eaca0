package capture

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// ALSAProvider captures microphone audio by running arecord and reading
// raw 16-bit mono PCM from its stdout.
type ALSAProvider struct {
	sampleRate int
	windowSize int
}

// NewALSAProvider creates a provider capturing at the given sample rate.
// windowSize is the number of recent samples kept for analysis windows.
func NewALSAProvider(sampleRate, windowSize int) (*ALSAProvider, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	if windowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", windowSize)
	}

	return &ALSAProvider{sampleRate: sampleRate, windowSize: windowSize}, nil
}

// Devices lists the ALSA capture devices known to arecord. When arecord
// is unavailable only the default device is reported.
func (p *ALSAProvider) Devices() ([]Device, error) {
	out, err := exec.Command("arecord", "-L").Output()
	if err != nil {
		return []Device{{ID: "", Label: "Default capture device"}}, nil
	}

	devices := []Device{{ID: "", Label: "Default capture device"}}
	for _, line := range strings.Split(string(out), "\n") {
		if line == "" || line[0] == ' ' || line[0] == '\t' {
			continue
		}
		name := strings.TrimSpace(line)
		devices = append(devices, Device{ID: name, Label: name})
	}
	return devices, nil
}

// Open starts an arecord process for the device and begins draining its
// PCM output.
func (p *ALSAProvider) Open(deviceID string) (Stream, error) {
	args := []string{
		"-q",
		"-f", "S16_LE",
		"-r", strconv.Itoa(p.sampleRate),
		"-c", "1",
		"-t", "raw",
	}
	if deviceID != "" {
		args = append(args, "-D", deviceID)
	}

	cmd := exec.Command("arecord", args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open capture pipe: %w", err)
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, ErrNoDevice
		}
		return nil, fmt.Errorf("failed to start capture: %w", err)
	}

	s := &alsaStream{
		buf:        newPCMBuffer(p.windowSize),
		cmd:        cmd,
		sampleRate: p.sampleRate,
	}
	go s.readLoop(stdout, &stderr)

	return s, nil
}

// alsaStream is one live arecord capture.
type alsaStream struct {
	buf        *pcmBuffer
	cmd        *exec.Cmd
	sampleRate int

	closed  bool
	readErr error
	mu      sync.Mutex
}

func (s *alsaStream) readLoop(stdout io.Reader, stderr *bytes.Buffer) {
	chunk := make([]byte, 4096)
	var carry []byte

	for {
		n, err := stdout.Read(chunk)
		if n > 0 {
			data := append(carry, chunk[:n]...)
			if len(data)%2 != 0 {
				carry = []byte{data[len(data)-1]}
				data = data[:len(data)-1]
			} else {
				carry = nil
			}

			samples, decErr := DecodePCM(data)
			if decErr == nil {
				s.buf.push(samples)
			}
		}
		if err != nil {
			s.mu.Lock()
			if !s.closed {
				s.readErr = captureError(err, stderr.String())
			}
			s.mu.Unlock()
			return
		}
	}
}

func (s *alsaStream) ReadPCM() []int16 {
	return s.buf.drain()
}

func (s *alsaStream) AnalysisWindow(buf []float64) int {
	return s.buf.window(buf)
}

func (s *alsaStream) SampleRate() int {
	return s.sampleRate
}

func (s *alsaStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
	return s.cmd.Wait()
}

// captureError maps arecord failures to the capture error taxonomy.
func captureError(err error, stderr string) error {
	lower := strings.ToLower(stderr)
	switch {
	case strings.Contains(lower, "permission"):
		return ErrPermissionDenied
	case strings.Contains(lower, "no such"), strings.Contains(lower, "not found"):
		return ErrNoDevice
	default:
		return fmt.Errorf("capture stopped: %w", err)
	}
}
