package transcript

import (
	"strings"
	"testing"
	"time"

	"github.com/KaatCAIBXL/video-translator-sub000/internal/sentence"
)

func TestRender(t *testing.T) {
	records := []sentence.Record{
		{Recognized: "bonjour le monde", Corrected: "Bonjour le monde.", Translation: "Hallo wereld."},
		{Recognized: "ça va", Corrected: "Ça va?", Translation: "Hoe gaat het?"},
	}

	got := Render(records)
	want := "Deel 1\n" +
		"Herkenning: bonjour le monde\n" +
		"Correctie: Bonjour le monde.\n" +
		"Vertaling: Hallo wereld.\n" +
		"\n" +
		"Deel 2\n" +
		"Herkenning: ça va\n" +
		"Correctie: Ça va?\n" +
		"Vertaling: Hoe gaat het?\n"

	if got != want {
		t.Errorf("Render mismatch:\ngot:\n%s\nexpected:\n%s", got, want)
	}
}

func TestRenderEmpty(t *testing.T) {
	if got := Render(nil); got != "" {
		t.Errorf("Render(nil) = %q, expected empty", got)
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"sessie 12:30", "sessie 12_30"},
		{"a/b\\c", "a_b_c"},
		{"wat?*", "wat__"},
		{"<live> | \"opname\"", "_live_ _ _opname_"},
		{"gewoon", "gewoon"},
	}

	for _, tt := range tests {
		if got := Sanitize(tt.input); got != tt.want {
			t.Errorf("Sanitize(%q) = %q, expected %q", tt.input, got, tt.want)
		}
	}
}

func TestFilename(t *testing.T) {
	at := time.Date(2025, 6, 1, 14, 5, 33, 0, time.UTC)

	got := Filename("sessie:live", at)
	if got != "sessie_live-2025-06-01_14-05-33.txt" {
		t.Errorf("Filename = %q", got)
	}

	if got := Filename("", at); !strings.HasPrefix(got, "transcript-") {
		t.Errorf("Default prefix missing: %q", got)
	}
}
