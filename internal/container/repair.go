package container

import (
	"errors"
	"fmt"
	"sync"
)

// MaxHeaderSize caps the cached header/init segment at 128 KB. A header
// larger than that is almost certainly a sniffing mistake.
const MaxHeaderSize = 128 * 1024

// ErrNoHeader is returned when a headerless fragment arrives before any
// complete fragment has been observed in the session.
var ErrNoHeader = errors.New("container: no cached header for fragment")

// Stats represents repairer statistics.
type Stats struct {
	Format            string `json:"format"`
	HeaderCached      bool   `json:"header_cached"`
	HeaderSize        int    `json:"header_size_bytes"`
	FragmentsIntact   uint64 `json:"fragments_intact"`
	FragmentsRepaired uint64 `json:"fragments_repaired"`
	FragmentsDropped  uint64 `json:"fragments_dropped"`
}

// Repairer makes every outbound fragment independently decodable. The first
// fragment carrying a genuine container header has its init segment cached;
// later headerless fragments get that header prepended.
type Repairer struct {
	format Format
	header []byte

	fragmentsIntact   uint64
	fragmentsRepaired uint64
	fragmentsDropped  uint64

	mu sync.Mutex
}

// NewRepairer creates an empty repairer for one recorder session.
func NewRepairer() *Repairer {
	return &Repairer{}
}

// Repair returns bytes that carry a valid container header. The declared
// media type is only a hint; the fragment is sniffed structurally.
func (r *Repairer) Repair(fragment []byte, declaredType string) ([]byte, Format, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(fragment) == 0 {
		return nil, FormatUnknown, fmt.Errorf("empty fragment")
	}

	sniffed := Sniff(fragment)
	if sniffed != FormatUnknown {
		// Genuine header present. Cache the init segment of the first one
		// observed for the session.
		if r.header == nil {
			init, err := ExtractInitSegment(fragment, sniffed)
			if err == nil && len(init) > 0 && len(init) <= MaxHeaderSize {
				r.format = sniffed
				r.header = make([]byte, len(init))
				copy(r.header, init)
			}
		}
		r.fragmentsIntact++
		return fragment, sniffed, nil
	}

	if r.header == nil {
		r.fragmentsDropped++
		return nil, FormatUnknown, fmt.Errorf("%w (declared type %q)", ErrNoHeader, declaredType)
	}

	repaired := make([]byte, 0, len(r.header)+len(fragment))
	repaired = append(repaired, r.header...)
	repaired = append(repaired, fragment...)
	r.fragmentsRepaired++

	return repaired, r.format, nil
}

// Header returns a copy of the cached init segment, or nil if none has been
// observed yet.
func (r *Repairer) Header() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.header == nil {
		return nil
	}
	header := make([]byte, len(r.header))
	copy(header, r.header)
	return header
}

// Format returns the format of the cached header.
func (r *Repairer) Format() Format {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.format
}

// Reset discards the cached header. Called when a new encoder session is
// negotiated, since its header may differ.
func (r *Repairer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.format = FormatUnknown
	r.header = nil
}

// GetStats returns current repairer statistics.
func (r *Repairer) GetStats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	return Stats{
		Format:            r.format.String(),
		HeaderCached:      r.header != nil,
		HeaderSize:        len(r.header),
		FragmentsIntact:   r.fragmentsIntact,
		FragmentsRepaired: r.fragmentsRepaired,
		FragmentsDropped:  r.fragmentsDropped,
	}
}
