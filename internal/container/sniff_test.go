package container

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// mp4Box builds a box with a 32-bit size header.
func mp4Box(boxType string, payload []byte) []byte {
	box := make([]byte, 8+len(payload))
	binary.BigEndian.PutUint32(box[0:4], uint32(8+len(payload)))
	copy(box[4:8], boxType)
	copy(box[8:], payload)
	return box
}

func webmHeader() []byte {
	header := append([]byte{}, ebmlMagic...)
	header = append(header, 0x9F, 0x42, 0x86, 0x81, 0x01) // EBML element body
	header = append(header, 0x18, 0x53, 0x80, 0x67)       // Segment ID
	header = append(header, 0x01, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF) // unknown size
	header = append(header, 0x15, 0x49, 0xA9, 0x66, 0x82, 0xAB, 0xCD)       // Info element
	return header
}

func webmFragment(header []byte, clusterPayload []byte) []byte {
	data := append([]byte{}, header...)
	data = append(data, webmClusterID...)
	data = append(data, clusterPayload...)
	return data
}

func wavFile(samples int) []byte {
	dataSize := samples * 2
	buf := make([]byte, 44+dataSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1)
	binary.LittleEndian.PutUint16(buf[22:24], 1)
	binary.LittleEndian.PutUint32(buf[24:28], 16000)
	binary.LittleEndian.PutUint32(buf[28:32], 32000)
	binary.LittleEndian.PutUint16(buf[32:34], 2)
	binary.LittleEndian.PutUint16(buf[34:36], 16)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	return buf
}

func TestSniff(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected Format
	}{
		{"webm ebml magic", webmHeader(), FormatWebM},
		{"mp4 ftyp atom", mp4Box("ftyp", []byte("isom0000")), FormatMP4},
		{"ogg page", append([]byte("OggS"), make([]byte, 24)...), FormatOgg},
		{"wav riff", wavFile(16), FormatWAV},
		{"headerless fragment", []byte{0xA3, 0x42, 0x10, 0x05, 0x99, 0x88, 0x77, 0x66, 0x55, 0x44, 0x33, 0x22}, FormatUnknown},
		{"riff without wave", append([]byte("RIFF\x00\x00\x00\x00AVI "), make([]byte, 8)...), FormatUnknown},
		{"empty", nil, FormatUnknown},
		{"too short", []byte{0x1A, 0x45}, FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sniff(tt.data); got != tt.expected {
				t.Errorf("Sniff = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestFormatForMediaType(t *testing.T) {
	tests := []struct {
		mediaType string
		expected  Format
	}{
		{"audio/webm;codecs=opus", FormatWebM},
		{"audio/mp4", FormatMP4},
		{"audio/x-m4a", FormatMP4},
		{"audio/ogg; codecs=opus", FormatOgg},
		{"audio/wav", FormatWAV},
		{"audio/mpeg", FormatUnknown},
		{"", FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.mediaType, func(t *testing.T) {
			if got := FormatForMediaType(tt.mediaType); got != tt.expected {
				t.Errorf("FormatForMediaType(%q) = %v, expected %v", tt.mediaType, got, tt.expected)
			}
		})
	}
}

func TestRequiresRestart(t *testing.T) {
	if !RequiresRestart("audio/mp4") {
		t.Error("mp4 should require recorder restart")
	}
	if !RequiresRestart("audio/x-m4a") {
		t.Error("m4a should require recorder restart")
	}
	if RequiresRestart("audio/webm;codecs=opus") {
		t.Error("webm should not require recorder restart")
	}
}

func TestExtractMP4Init(t *testing.T) {
	ftyp := mp4Box("ftyp", []byte("isom0000"))
	moov := mp4Box("moov", bytes.Repeat([]byte{0x01}, 32))
	free := mp4Box("free", nil)
	mdat := mp4Box("mdat", bytes.Repeat([]byte{0x02}, 64))

	t.Run("stops at mdat", func(t *testing.T) {
		data := bytes.Join([][]byte{ftyp, moov, free, mdat}, nil)
		init, err := extractMP4Init(data)
		if err != nil {
			t.Fatalf("extractMP4Init failed: %v", err)
		}

		expected := len(ftyp) + len(moov) + len(free)
		if len(init) != expected {
			t.Errorf("Init segment length = %d, expected %d", len(init), expected)
		}
	})

	t.Run("stops at moof", func(t *testing.T) {
		moof := mp4Box("moof", bytes.Repeat([]byte{0x03}, 16))
		data := bytes.Join([][]byte{ftyp, moov, moof}, nil)
		init, err := extractMP4Init(data)
		if err != nil {
			t.Fatalf("extractMP4Init failed: %v", err)
		}
		if len(init) != len(ftyp)+len(moov) {
			t.Errorf("Init segment length = %d, expected %d", len(init), len(ftyp)+len(moov))
		}
	})

	t.Run("header only", func(t *testing.T) {
		data := bytes.Join([][]byte{ftyp, moov}, nil)
		init, err := extractMP4Init(data)
		if err != nil {
			t.Fatalf("extractMP4Init failed: %v", err)
		}
		if !bytes.Equal(init, data) {
			t.Error("Header-only fragment should be returned whole")
		}
	})

	t.Run("starts with mdat", func(t *testing.T) {
		if _, err := extractMP4Init(mdat); err == nil {
			t.Error("Expected error for fragment starting with mdat")
		}
	})

	t.Run("64-bit box size", func(t *testing.T) {
		payload := bytes.Repeat([]byte{0x04}, 24)
		large := make([]byte, 16+len(payload))
		binary.BigEndian.PutUint32(large[0:4], 1)
		copy(large[4:8], "moov")
		binary.BigEndian.PutUint64(large[8:16], uint64(16+len(payload)))
		copy(large[16:], payload)

		data := bytes.Join([][]byte{ftyp, large, mdat}, nil)
		init, err := extractMP4Init(data)
		if err != nil {
			t.Fatalf("extractMP4Init failed: %v", err)
		}
		if len(init) != len(ftyp)+len(large) {
			t.Errorf("Init segment length = %d, expected %d", len(init), len(ftyp)+len(large))
		}
	})
}

func TestExtractWebMInit(t *testing.T) {
	header := webmHeader()

	t.Run("prefix before first cluster", func(t *testing.T) {
		data := webmFragment(header, bytes.Repeat([]byte{0x10}, 40))
		init, err := extractWebMInit(data)
		if err != nil {
			t.Fatalf("extractWebMInit failed: %v", err)
		}
		if !bytes.Equal(init, header) {
			t.Errorf("Init segment = %d bytes, expected the %d-byte header", len(init), len(header))
		}
	})

	t.Run("no cluster yet", func(t *testing.T) {
		init, err := extractWebMInit(header)
		if err != nil {
			t.Fatalf("extractWebMInit failed: %v", err)
		}
		if !bytes.Equal(init, header) {
			t.Error("Cluster-less fragment should be returned whole")
		}
	})

	t.Run("starts with cluster", func(t *testing.T) {
		data := append(append([]byte{}, webmClusterID...), 0x01, 0x02)
		if _, err := extractWebMInit(data); err == nil {
			t.Error("Expected error for fragment starting with a cluster")
		}
	})
}

func TestExtractWAVInit(t *testing.T) {
	data := wavFile(128)
	init, err := extractWAVInit(data)
	if err != nil {
		t.Fatalf("extractWAVInit failed: %v", err)
	}
	if len(init) != 44 {
		t.Errorf("WAV init segment = %d bytes, expected 44", len(init))
	}
	if !bytes.Equal(init[36:40], []byte("data")) {
		t.Error("WAV init segment must end with the data chunk header")
	}
}
