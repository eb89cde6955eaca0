package sentence

import (
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/KaatCAIBXL/video-translator-sub000/internal/dispatch"
)

// substringDedupMinLen is the minimum normalized length, in runes, for the
// substring duplicate rule. Shorter fragments match too aggressively.
const substringDedupMinLen = 10

// Record is one finalized sentence. Never mutated after creation.
type Record struct {
	Recognized  string `json:"recognized"`
	Corrected   string `json:"corrected"`
	Translation string `json:"translation"`
}

// Outcome describes what applying one segment did.
type Outcome struct {
	Duplicate    bool    // recognized/corrected text was suppressed
	PlaybackText string  // new translation text to synthesize, empty if none
	Finalized    *Record // non-nil when the pending sentence closed
}

// Stats represents accumulator statistics.
type Stats struct {
	SegmentsApplied      uint64 `json:"segments_applied"`
	DuplicatesSuppressed uint64 `json:"duplicates_suppressed"`
	RecordsFinalized     uint64 `json:"records_finalized"`
	SeenEntries          int    `json:"seen_entries"`
	PendingTranslation   string `json:"pending_translation"`
}

// Accumulator merges dispatcher segments into at most one pending sentence
// and finalizes it into immutable records. All state is scoped to one
// session; a new session gets a fresh accumulator.
type Accumulator struct {
	logger *slog.Logger

	recognized  string
	corrected   string
	translation string

	seen     map[string]struct{}
	seenList []string
	records  []Record

	segmentsApplied      uint64
	duplicatesSuppressed uint64
	recordsFinalized     uint64

	mu sync.Mutex
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator(logger *slog.Logger) *Accumulator {
	if logger == nil {
		logger = slog.Default()
	}

	return &Accumulator{
		logger: logger,
		seen:   make(map[string]struct{}),
	}
}

// Apply merges one segment into the pending sentence. Segments must be
// applied one at a time; the dispatcher's arrival order is the merge order.
func (a *Accumulator) Apply(segment *dispatch.Segment) Outcome {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.segmentsApplied++

	if segment.Empty() {
		if segment.SilenceDetected || segment.ForceFinalize {
			return Outcome{Finalized: a.finalizeLocked()}
		}
		return Outcome{}
	}

	outcome := Outcome{}

	recognized := strings.TrimSpace(segment.Recognized)
	corrected := strings.TrimSpace(segment.Corrected)
	translation := strings.TrimSpace(segment.Translation)

	normRecognized := Normalize(recognized)
	normCorrected := Normalize(corrected)

	if a.isDuplicateLocked(normRecognized) || a.isDuplicateLocked(normCorrected) {
		// The transcription repeats an earlier audio window, but its
		// translation can still carry a new increment. Keep that.
		outcome.Duplicate = true
		a.duplicatesSuppressed++
		recognized = ""
		corrected = ""
	} else {
		if normRecognized != "" {
			a.seen[normRecognized] = struct{}{}
			a.seenList = append(a.seenList, normRecognized)
		}
		if normCorrected != "" && normCorrected != normRecognized {
			a.seen[normCorrected] = struct{}{}
			a.seenList = append(a.seenList, normCorrected)
		}
	}

	a.recognized = JoinText(a.recognized, recognized)
	a.corrected = JoinText(a.corrected, corrected)
	a.translation = JoinText(a.translation, translation)

	if translation != "" {
		outcome.PlaybackText = translation
	}

	if segment.ForceFinalize || EndsSentence(a.corrected) || EndsSentence(a.translation) {
		outcome.Finalized = a.finalizeLocked()
	}

	return outcome
}

// Finalize force-closes the pending sentence, returning the record or nil
// when there was nothing pending. Used on silence and on session stop.
func (a *Accumulator) Finalize() *Record {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.finalizeLocked()
}

func (a *Accumulator) finalizeLocked() *Record {
	recognized := strings.TrimSpace(a.recognized)
	corrected := strings.TrimSpace(a.corrected)
	translation := strings.TrimSpace(a.translation)

	a.recognized = ""
	a.corrected = ""
	a.translation = ""

	if recognized == "" && corrected == "" && translation == "" {
		return nil
	}

	record := Record{
		Recognized:  recognized,
		Corrected:   corrected,
		Translation: translation,
	}
	a.records = append(a.records, record)
	a.recordsFinalized++

	a.logger.Debug("Sentence finalized",
		slog.Int("index", len(a.records)),
		slog.String("translation", translation),
	)

	return &record
}

// isDuplicateLocked checks a normalized form against the seen set: exact
// match, or a long-enough substring of any earlier entry.
func (a *Accumulator) isDuplicateLocked(norm string) bool {
	if norm == "" {
		return false
	}

	if _, ok := a.seen[norm]; ok {
		return true
	}

	if utf8.RuneCountInString(norm) > substringDedupMinLen {
		for _, earlier := range a.seenList {
			if strings.Contains(earlier, norm) {
				return true
			}
		}
	}

	return false
}

// Records returns a copy of all finalized records in order.
func (a *Accumulator) Records() []Record {
	a.mu.Lock()
	defer a.mu.Unlock()

	records := make([]Record, len(a.records))
	copy(records, a.records)
	return records
}

// PendingTranslation returns the translation text accumulated so far for
// the open sentence.
func (a *Accumulator) PendingTranslation() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return strings.TrimSpace(a.translation)
}

// GetStats returns current accumulator statistics.
func (a *Accumulator) GetStats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	return Stats{
		SegmentsApplied:      a.segmentsApplied,
		DuplicatesSuppressed: a.duplicatesSuppressed,
		RecordsFinalized:     a.recordsFinalized,
		SeenEntries:          len(a.seen),
		PendingTranslation:   strings.TrimSpace(a.translation),
	}
}
