package container

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
)

// Format identifies a media container format detected from magic bytes.
type Format int

const (
	FormatUnknown Format = iota
	FormatWebM
	FormatMP4
	FormatOgg
	FormatWAV
)

// String returns the conventional short name of the format.
func (f Format) String() string {
	switch f {
	case FormatWebM:
		return "webm"
	case FormatMP4:
		return "mp4"
	case FormatOgg:
		return "ogg"
	case FormatWAV:
		return "wav"
	default:
		return "unknown"
	}
}

var (
	ebmlMagic     = []byte{0x1A, 0x45, 0xDF, 0xA3}
	ftypAtom      = []byte("ftyp")
	oggMagic      = []byte("OggS")
	riffMagic     = []byte("RIFF")
	waveMagic     = []byte("WAVE")
	webmClusterID = []byte{0x1F, 0x43, 0xB6, 0x75}
)

// Sniff detects the container format from the leading bytes of a fragment.
// A fragment that starts mid-stream (no recognizable header) sniffs as
// FormatUnknown; the declared media type is never trusted over the bytes.
func Sniff(data []byte) Format {
	if len(data) >= 4 && bytes.Equal(data[:4], ebmlMagic) {
		return FormatWebM
	}

	if len(data) >= 12 && bytes.Equal(data[4:8], ftypAtom) {
		return FormatMP4
	}

	if len(data) >= 4 && bytes.Equal(data[:4], oggMagic) {
		return FormatOgg
	}

	if len(data) >= 12 && bytes.Equal(data[:4], riffMagic) && bytes.Equal(data[8:12], waveMagic) {
		return FormatWAV
	}

	return FormatUnknown
}

// FormatForMediaType maps a declared MIME type to the expected container
// format. Used only as a hint; Sniff is authoritative.
func FormatForMediaType(mediaType string) Format {
	mt := strings.ToLower(mediaType)
	if idx := strings.IndexByte(mt, ';'); idx >= 0 {
		mt = mt[:idx]
	}
	mt = strings.TrimSpace(mt)

	switch {
	case strings.Contains(mt, "webm"):
		return FormatWebM
	case strings.Contains(mt, "mp4"), strings.Contains(mt, "m4a"), strings.Contains(mt, "aac"):
		return FormatMP4
	case strings.Contains(mt, "ogg"), strings.Contains(mt, "opus"):
		return FormatOgg
	case strings.Contains(mt, "wav"), strings.Contains(mt, "wave"):
		return FormatWAV
	default:
		return FormatUnknown
	}
}

// RequiresRestart reports whether the media type cannot keep fragmenting
// after an upload without producing undecodable tails, forcing a recorder
// restart after every dispatch.
func RequiresRestart(mediaType string) bool {
	return FormatForMediaType(mediaType) == FormatMP4
}

// ExtractInitSegment returns the header prefix of a complete fragment that
// later headerless fragments need in order to decode independently.
func ExtractInitSegment(data []byte, format Format) ([]byte, error) {
	switch format {
	case FormatMP4:
		return extractMP4Init(data)
	case FormatWebM:
		return extractWebMInit(data)
	case FormatWAV:
		return extractWAVInit(data)
	case FormatOgg:
		// Ogg pages are self-describing; repair is not supported and no
		// init segment is cached.
		return nil, fmt.Errorf("ogg fragments cannot be repaired")
	default:
		return nil, fmt.Errorf("unknown container format")
	}
}

// extractMP4Init walks top-level box headers and keeps everything up to the
// first media-data box. ftyp, moov, free and skip boxes are retained; the
// walk stops at the first mdat or moof.
func extractMP4Init(data []byte) ([]byte, error) {
	offset := 0

	for offset+8 <= len(data) {
		size := int(binary.BigEndian.Uint32(data[offset : offset+4]))
		boxType := string(data[offset+4 : offset+8])

		switch boxType {
		case "mdat", "moof":
			if offset == 0 {
				return nil, fmt.Errorf("fragment starts with %s box, no init segment", boxType)
			}
			return data[:offset], nil
		case "ftyp", "moov", "free", "skip":
			// Retained in the init segment.
		default:
			return nil, fmt.Errorf("unexpected box type %q at offset %d", boxType, offset)
		}

		switch size {
		case 0:
			// Box extends to end of data.
			return data, nil
		case 1:
			if offset+16 > len(data) {
				return nil, fmt.Errorf("truncated 64-bit box size at offset %d", offset)
			}
			large := binary.BigEndian.Uint64(data[offset+8 : offset+16])
			if large < 16 || large > uint64(len(data)-offset) {
				return nil, fmt.Errorf("invalid 64-bit box size %d at offset %d", large, offset)
			}
			offset += int(large)
		default:
			if size < 8 {
				return nil, fmt.Errorf("invalid box size %d at offset %d", size, offset)
			}
			if offset+size > len(data) {
				// Header boxes truncated mid-fragment: keep what is complete.
				return data[:offset], nil
			}
			offset += size
		}
	}

	// No media box encountered: the entire fragment is header data.
	return data, nil
}

// extractWebMInit returns the prefix up to (not including) the first Cluster
// element. Everything before the first Cluster is EBML header plus Segment
// metadata and suffices as an init segment.
func extractWebMInit(data []byte) ([]byte, error) {
	idx := bytes.Index(data, webmClusterID)
	if idx < 0 {
		// No cluster yet: the whole fragment is header.
		return data, nil
	}
	if idx == 0 {
		return nil, fmt.Errorf("fragment starts with a cluster, no init segment")
	}
	return data[:idx], nil
}

// extractWAVInit returns the RIFF chunk headers up to and including the
// 8-byte "data" chunk header, so raw PCM continuations can be prepended.
func extractWAVInit(data []byte) ([]byte, error) {
	if len(data) < 12 {
		return nil, fmt.Errorf("wav fragment too short: %d bytes", len(data))
	}

	offset := 12 // past RIFF size and WAVE tag
	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))

		if chunkID == "data" {
			return data[:offset+8], nil
		}

		offset += 8 + chunkSize
		if chunkSize%2 == 1 {
			offset++ // RIFF chunks are word-aligned
		}
	}

	return nil, fmt.Errorf("wav fragment has no data chunk")
}
