package container

import (
	"bytes"
	"errors"
	"testing"
)

func TestRepairPassesIntactFragments(t *testing.T) {
	r := NewRepairer()

	header := webmHeader()
	fragment := webmFragment(header, bytes.Repeat([]byte{0x20}, 30))

	repaired, format, err := r.Repair(fragment, "audio/webm")
	if err != nil {
		t.Fatalf("Repair failed: %v", err)
	}
	if format != FormatWebM {
		t.Errorf("Format = %v, expected webm", format)
	}
	if !bytes.Equal(repaired, fragment) {
		t.Error("Intact fragment must pass through unmodified")
	}
	if !bytes.Equal(r.Header(), header) {
		t.Error("Init segment of the first fragment must be cached")
	}
}

func TestRepairPrependsCachedHeader(t *testing.T) {
	r := NewRepairer()

	header := webmHeader()
	first := webmFragment(header, bytes.Repeat([]byte{0x20}, 30))
	if _, _, err := r.Repair(first, "audio/webm"); err != nil {
		t.Fatalf("Repair failed: %v", err)
	}

	// Continuation fragment: raw cluster bytes, no EBML magic.
	continuation := append(append([]byte{}, webmClusterID...), bytes.Repeat([]byte{0x30}, 20)...)

	repaired, format, err := r.Repair(continuation, "audio/webm")
	if err != nil {
		t.Fatalf("Repair failed: %v", err)
	}
	if format != FormatWebM {
		t.Errorf("Format = %v, expected webm", format)
	}

	expected := append(append([]byte{}, header...), continuation...)
	if !bytes.Equal(repaired, expected) {
		t.Error("Repaired fragment must be cached header + fragment bytes")
	}

	// The repaired fragment now sniffs as a genuine webm blob.
	if Sniff(repaired) != FormatWebM {
		t.Error("Repaired fragment should carry a valid webm header")
	}
}

func TestRepairWithoutHeader(t *testing.T) {
	r := NewRepairer()

	fragment := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x01, 0x02, 0x03, 0x04}
	_, _, err := r.Repair(fragment, "audio/webm")
	if err == nil {
		t.Fatal("Expected error for headerless fragment with no cached header")
	}
	if !errors.Is(err, ErrNoHeader) {
		t.Errorf("Expected ErrNoHeader, got %v", err)
	}
}

func TestRepairEmptyFragment(t *testing.T) {
	r := NewRepairer()

	if _, _, err := r.Repair(nil, "audio/webm"); err == nil {
		t.Error("Expected error for empty fragment")
	}
}

func TestRepairKeepsFirstHeader(t *testing.T) {
	r := NewRepairer()

	first := webmFragment(webmHeader(), []byte{0x01})
	if _, _, err := r.Repair(first, "audio/webm"); err != nil {
		t.Fatalf("Repair failed: %v", err)
	}
	cached := r.Header()

	// A second complete fragment must not replace the cached header.
	other := webmFragment(append(webmHeader(), 0x15, 0x49, 0xA9, 0x66, 0x80), []byte{0x02})
	if _, _, err := r.Repair(other, "audio/webm"); err != nil {
		t.Fatalf("Repair failed: %v", err)
	}

	if !bytes.Equal(r.Header(), cached) {
		t.Error("Cached header must not change after the first complete fragment")
	}
}

func TestRepairHeaderSizeCap(t *testing.T) {
	r := NewRepairer()

	// A webm blob whose header region exceeds the cache cap.
	huge := append(append([]byte{}, ebmlMagic...), bytes.Repeat([]byte{0x00}, MaxHeaderSize+1024)...)
	huge = append(huge, webmClusterID...)
	huge = append(huge, 0x01, 0x02)

	if _, _, err := r.Repair(huge, "audio/webm"); err != nil {
		t.Fatalf("Repair failed: %v", err)
	}
	if r.Header() != nil {
		t.Error("Oversized header must not be cached")
	}
}

func TestRepairReset(t *testing.T) {
	r := NewRepairer()

	first := webmFragment(webmHeader(), []byte{0x01})
	if _, _, err := r.Repair(first, "audio/webm"); err != nil {
		t.Fatalf("Repair failed: %v", err)
	}

	r.Reset()

	if r.Header() != nil {
		t.Error("Reset must discard the cached header")
	}
	if r.Format() != FormatUnknown {
		t.Error("Reset must clear the cached format")
	}
}

func TestRepairMP4RoundTrip(t *testing.T) {
	r := NewRepairer()

	ftyp := mp4Box("ftyp", []byte("isom0000"))
	moov := mp4Box("moov", bytes.Repeat([]byte{0x01}, 32))
	mdat := mp4Box("mdat", bytes.Repeat([]byte{0x02}, 64))

	first := bytes.Join([][]byte{ftyp, moov, mdat}, nil)
	if _, _, err := r.Repair(first, "audio/mp4"); err != nil {
		t.Fatalf("Repair failed: %v", err)
	}

	expected := len(ftyp) + len(moov)
	if len(r.Header()) != expected {
		t.Fatalf("Cached mp4 init segment = %d bytes, expected %d", len(r.Header()), expected)
	}

	tail := mp4Box("mdat", bytes.Repeat([]byte{0x05}, 16))
	repaired, format, err := r.Repair(tail, "audio/mp4")
	if err != nil {
		t.Fatalf("Repair failed: %v", err)
	}
	if format != FormatMP4 {
		t.Errorf("Format = %v, expected mp4", format)
	}
	if Sniff(repaired) != FormatMP4 {
		t.Error("Repaired mp4 fragment should sniff as mp4")
	}

	stats := r.GetStats()
	if stats.FragmentsIntact != 1 || stats.FragmentsRepaired != 1 {
		t.Errorf("Stats = %+v, expected 1 intact and 1 repaired", stats)
	}
}
