package capture

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"
)

// wavHeaderSize is the size of a canonical PCM WAV header.
const wavHeaderSize = 44

// streamingDataSize is written into the RIFF/data size fields of a streaming
// header, where the final length is unknown. Demuxers treat it as open-ended.
const streamingDataSize = 0xFFFFFFFF

// WAVHeader represents the header structure of a PCM WAV file.
type WAVHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // file size - 8 bytes
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32 // SampleRate * NumChannels * BitsPerSample / 8
	BlockAlign    uint16 // NumChannels * BitsPerSample / 8
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32
}

// EncodeWAV encodes PCM-16 mono samples into a self-contained WAV blob.
func EncodeWAV(samples []int16, sampleRate int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("cannot encode empty audio samples")
	}

	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	dataSize := uint32(len(samples) * 2)
	header := newWAVHeader(sampleRate, 36+dataSize, dataSize)

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+len(samples)*2))
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, samples); err != nil {
		return nil, fmt.Errorf("failed to write audio data: %w", err)
	}

	return buf.Bytes(), nil
}

func newWAVHeader(sampleRate int, chunkSize, dataSize uint32) WAVHeader {
	numChannels := uint16(1)
	bitsPerSample := uint16(16)

	return WAVHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     chunkSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1, // PCM
		NumChannels:   numChannels,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * uint32(numChannels) * uint32(bitsPerSample) / 8,
		BlockAlign:    numChannels * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}
}

// WAVEncoderSession encodes a capture stream as streaming WAV. The first
// Encode emits a header followed by PCM data; every later Encode emits raw
// PCM only, so downstream container repair has realistic headerless
// fragments to fix up.
type WAVEncoderSession struct {
	stream        Stream
	headerEmitted bool
	closed        bool
	mu            sync.Mutex
}

// NewWAVEncoderSession wraps a capture stream in a streaming WAV encoder.
func NewWAVEncoderSession(stream Stream) (*WAVEncoderSession, error) {
	if stream == nil {
		return nil, fmt.Errorf("stream cannot be nil")
	}
	return &WAVEncoderSession{stream: stream}, nil
}

// MediaType returns the negotiated MIME type.
func (e *WAVEncoderSession) MediaType() string {
	return "audio/wav"
}

// Encode drains the stream and returns the next fragment.
func (e *WAVEncoderSession) Encode() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, fmt.Errorf("encoder session closed")
	}

	samples := e.stream.ReadPCM()
	if len(samples) == 0 && e.headerEmitted {
		return nil, nil
	}

	var buf bytes.Buffer
	if !e.headerEmitted {
		header := newWAVHeader(e.stream.SampleRate(), streamingDataSize, streamingDataSize)
		if err := binary.Write(&buf, binary.LittleEndian, header); err != nil {
			return nil, fmt.Errorf("failed to write WAV header: %w", err)
		}
		e.headerEmitted = true
	}

	if len(samples) > 0 {
		if err := binary.Write(&buf, binary.LittleEndian, samples); err != nil {
			return nil, fmt.Errorf("failed to write audio data: %w", err)
		}
	}

	return buf.Bytes(), nil
}

// Close marks the session finished. The underlying stream stays open so a
// restarted session can reuse the same device stream.
func (e *WAVEncoderSession) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	return nil
}
