package capture

import (
	"encoding/binary"
	"testing"
)

func TestEncodeWAV(t *testing.T) {
	samples := make([]int16, 160)
	for i := range samples {
		samples[i] = int16(i * 100)
	}

	data, err := EncodeWAV(samples, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	if len(data) != 44+len(samples)*2 {
		t.Errorf("Encoded size = %d, expected %d", len(data), 44+len(samples)*2)
	}

	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Error("Missing RIFF/WAVE markers")
	}

	sampleRate := binary.LittleEndian.Uint32(data[24:28])
	if sampleRate != 16000 {
		t.Errorf("Sample rate = %d, expected 16000", sampleRate)
	}

	dataSize := binary.LittleEndian.Uint32(data[40:44])
	if int(dataSize) != len(samples)*2 {
		t.Errorf("Data size = %d, expected %d", dataSize, len(samples)*2)
	}

	// First sample round-trips.
	decoded, err := DecodePCM(data[44:])
	if err != nil {
		t.Fatalf("DecodePCM failed: %v", err)
	}
	for i, s := range samples {
		if decoded[i] != s {
			t.Fatalf("Sample %d = %d, expected %d", i, decoded[i], s)
		}
	}
}

func TestEncodeWAVValidation(t *testing.T) {
	if _, err := EncodeWAV(nil, 16000); err == nil {
		t.Error("Expected error for empty samples")
	}
	if _, err := EncodeWAV([]int16{1, 2, 3}, 0); err == nil {
		t.Error("Expected error for zero sample rate")
	}
}

func TestWAVEncoderSessionFragments(t *testing.T) {
	provider := NewSyntheticProvider()
	stream, err := provider.Open("")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer stream.Close()

	synthetic := stream.(*SyntheticStream)
	session, err := NewWAVEncoderSession(stream)
	if err != nil {
		t.Fatalf("NewWAVEncoderSession failed: %v", err)
	}

	if session.MediaType() != "audio/wav" {
		t.Errorf("MediaType = %q, expected audio/wav", session.MediaType())
	}

	// First fragment: header plus data.
	synthetic.GenerateSpeech(1600)
	first, err := session.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if string(first[0:4]) != "RIFF" {
		t.Error("First fragment must carry the WAV header")
	}
	if len(first) != 44+1600*2 {
		t.Errorf("First fragment = %d bytes, expected %d", len(first), 44+1600*2)
	}

	// Continuation fragment: raw PCM, headerless.
	synthetic.GenerateSpeech(800)
	second, err := session.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if len(second) != 800*2 {
		t.Errorf("Continuation fragment = %d bytes, expected %d", len(second), 800*2)
	}
	if string(second[0:4]) == "RIFF" {
		t.Error("Continuation fragments must be headerless")
	}

	// No audio since last call: empty fragment.
	third, err := session.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if len(third) != 0 {
		t.Errorf("Expected empty fragment, got %d bytes", len(third))
	}
}

func TestWAVEncoderSessionClosed(t *testing.T) {
	provider := NewSyntheticProvider()
	stream, _ := provider.Open("")
	defer stream.Close()

	session, _ := NewWAVEncoderSession(stream)
	session.Close()

	if _, err := session.Encode(); err == nil {
		t.Error("Expected error after Close")
	}
}

func TestAnalysisWindowNormalization(t *testing.T) {
	provider := NewSyntheticProvider()
	stream, _ := provider.Open("")
	defer stream.Close()

	synthetic := stream.(*SyntheticStream)
	synthetic.GenerateSpeech(2048)

	window := make([]float64, 1024)
	n := stream.AnalysisWindow(window)
	if n != 1024 {
		t.Fatalf("AnalysisWindow returned %d samples, expected 1024", n)
	}

	var peak float64
	for _, s := range window {
		if s > peak {
			peak = s
		}
		if s < -1 || s > 1 {
			t.Fatalf("Sample %f out of [-1, 1]", s)
		}
	}
	if peak < 0.1 {
		t.Errorf("Expected tone peak above 0.1, got %f", peak)
	}
}

func TestDecodePCMOddLength(t *testing.T) {
	if _, err := DecodePCM([]byte{0x01, 0x02, 0x03}); err == nil {
		t.Error("Expected error for odd byte length")
	}
}
