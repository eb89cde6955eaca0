package transcript

import (
	"fmt"
	"strings"
	"time"

	"github.com/KaatCAIBXL/video-translator-sub000/internal/sentence"
)

// Render formats finalized records as the plain-text export document: one
// numbered block per sentence.
func Render(records []sentence.Record) string {
	var b strings.Builder

	for i, record := range records {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Deel %d\n", i+1)
		fmt.Fprintf(&b, "Herkenning: %s\n", record.Recognized)
		fmt.Fprintf(&b, "Correctie: %s\n", record.Corrected)
		fmt.Fprintf(&b, "Vertaling: %s\n", record.Translation)
	}

	return b.String()
}

// Sanitize replaces filesystem-reserved characters in a filename component.
func Sanitize(name string) string {
	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "*", "_",
		"?", "_", "\"", "_", "<", "_", ">", "_", "|", "_",
	)
	return strings.TrimSpace(replacer.Replace(name))
}

// Filename builds a timestamped export filename for a session.
func Filename(prefix string, at time.Time) string {
	if prefix == "" {
		prefix = "transcript"
	}
	return fmt.Sprintf("%s-%s.txt", Sanitize(prefix), at.Format("2006-01-02_15-04-05"))
}
