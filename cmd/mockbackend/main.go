// Command mockbackend emulates the translation backend for local testing:
// it accepts audio chunks on /api/translate and synthesis requests on
// /api/speak, returning canned Dutch translations and a short tone clip.
package main

import (
	"encoding/json"
	"flag"
	"io"
	"log/slog"
	"math"
	"net/http"
	"os"
	"strings"
	"sync/atomic"

	"github.com/KaatCAIBXL/video-translator-sub000/internal/capture"
)

var phrases = []string{
	"Goedemorgen allemaal.",
	"Welkom bij deze dienst.",
	"Laten we samen beginnen.",
	"Dank u voor uw aandacht.",
}

type translateResponse struct {
	Recognized      string `json:"recognized"`
	Corrected       string `json:"corrected"`
	Translation     string `json:"translation"`
	SilenceDetected bool   `json:"silenceDetected"`
}

type backend struct {
	logger   *slog.Logger
	requests atomic.Uint64
}

func (b *backend) handleTranslate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		http.Error(w, "Missing audio file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Error reading audio", http.StatusInternalServerError)
		return
	}

	silence := r.FormValue("silence_flush") == "true"

	n := b.requests.Add(1)
	phrase := phrases[int(n-1)%len(phrases)]

	resp := translateResponse{
		Recognized:      strings.ToLower(strings.TrimSuffix(phrase, ".")),
		Corrected:       phrase,
		Translation:     phrase,
		SilenceDetected: silence,
	}

	b.logger.Info("Translate request",
		slog.String("filename", header.Filename),
		slog.Int("audio_bytes", len(audio)),
		slog.String("from", r.FormValue("from")),
		slog.String("to", r.FormValue("to")),
		slog.String("duration", r.FormValue("duration")),
		slog.Bool("silence_flush", silence),
		slog.String("translation", resp.Translation),
	)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (b *backend) handleSpeak(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	text := r.FormValue("text")
	if text == "" {
		http.Error(w, "Missing text", http.StatusBadRequest)
		return
	}

	// 200 ms per word of a 440 Hz tone stands in for real synthesis.
	words := len(strings.Fields(text))
	clip, err := toneClip(words*200, 16000)
	if err != nil {
		http.Error(w, "Synthesis failed", http.StatusInternalServerError)
		return
	}

	b.logger.Info("Speak request",
		slog.String("lang", r.FormValue("lang")),
		slog.Int("words", words),
		slog.Int("clip_bytes", len(clip)),
	)

	w.Header().Set("Content-Type", "audio/wav")
	w.Write(clip)
}

func toneClip(durationMs, sampleRate int) ([]byte, error) {
	samples := make([]int16, sampleRate*durationMs/1000)
	for i := range samples {
		samples[i] = int16(8000 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
	}
	return capture.EncodeWAV(samples, sampleRate)
}

func main() {
	addr := flag.String("addr", ":8080", "Listen address")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	b := &backend{logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/translate", b.handleTranslate)
	mux.HandleFunc("/api/speak", b.handleSpeak)

	logger.Info("Mock translation backend starting", slog.String("addr", *addr))
	if err := http.ListenAndServe(*addr, mux); err != nil {
		logger.Error("Server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
