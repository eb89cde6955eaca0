package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/KaatCAIBXL/video-translator-sub000/internal/recorder"
)

func testChunk() *recorder.Chunk {
	return &recorder.Chunk{
		Seq:       1,
		Data:      []byte("fake audio payload"),
		MediaType: "audio/webm",
		Duration:  1500 * time.Millisecond,
	}
}

func newTestClient(t *testing.T, endpoint string) *Client {
	t.Helper()

	client, err := NewClient(Config{
		Endpoint:        endpoint,
		SourceLanguage:  "fr",
		TargetLanguage:  "nl",
		InterpreterLang: "fr",
		Timeout:         5 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client
}

func TestNewClientValidation(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{"empty endpoint", Config{SourceLanguage: "fr", TargetLanguage: "nl"}},
		{"empty source language", Config{Endpoint: "http://x", TargetLanguage: "nl"}},
		{"empty target language", Config{Endpoint: "http://x", SourceLanguage: "fr"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewClient(tt.config); err == nil {
				t.Error("Expected validation error, got nil")
			}
		})
	}
}

func TestDispatchSuccess(t *testing.T) {
	var gotFields map[string]string
	var gotFilename string
	var gotAudio []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm failed: %v", err)
		}

		gotFields = map[string]string{}
		for key, values := range r.MultipartForm.Value {
			gotFields[key] = values[0]
		}

		file, header, err := r.FormFile("audio")
		if err != nil {
			t.Errorf("Missing audio file part: %v", err)
		} else {
			gotFilename = header.Filename
			buf := make([]byte, header.Size)
			file.Read(buf)
			gotAudio = buf
			file.Close()
		}

		json.NewEncoder(w).Encode(Segment{
			Recognized:  "bonjour le monde",
			Corrected:   "Bonjour le monde.",
			Translation: "Hallo wereld.",
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	segment, err := client.Dispatch(context.Background(), testChunk())
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	if segment.Corrected != "Bonjour le monde." {
		t.Errorf("Corrected = %q", segment.Corrected)
	}
	if segment.Translation != "Hallo wereld." {
		t.Errorf("Translation = %q", segment.Translation)
	}

	if gotFields["from"] != "fr" || gotFields["to"] != "nl" {
		t.Errorf("Language fields = from:%q to:%q", gotFields["from"], gotFields["to"])
	}
	if gotFields["interpreter_lang"] != "fr" {
		t.Errorf("interpreter_lang = %q, expected fr", gotFields["interpreter_lang"])
	}
	if string(gotAudio) != "fake audio payload" {
		t.Error("Audio payload did not round-trip")
	}
	if gotFilename == "" {
		t.Error("Upload filename must not be empty")
	}

	stats := client.GetStats()
	if stats.SuccessResponses != 1 || stats.TotalDispatches != 1 {
		t.Errorf("Stats = %+v, expected one success", stats)
	}
}

func TestDispatchTranslationFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Segment{
			Recognized: "bonjour",
			Corrected:  "Bonjour.",
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	segment, err := client.Dispatch(context.Background(), testChunk())
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	if segment.Translation != "Bonjour." {
		t.Errorf("Translation = %q, expected fallback to corrected text", segment.Translation)
	}
}

func TestDispatchSilenceResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Segment{SilenceDetected: true})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	segment, err := client.Dispatch(context.Background(), testChunk())
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	if !segment.SilenceDetected {
		t.Error("SilenceDetected flag lost")
	}
	if !segment.Empty() {
		t.Error("Silence segment must be empty")
	}
	if stats := client.GetStats(); stats.SilenceResponses != 1 {
		t.Errorf("SilenceResponses = %d, expected 1", stats.SilenceResponses)
	}
}

func TestDispatchNoTranslationBackend(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error":     "Translation error: no backend",
			"errorCode": "no_translation_backend",
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Dispatch(context.Background(), testChunk())
	if !errors.Is(err, ErrNoTranslationBackend) {
		t.Errorf("Expected ErrNoTranslationBackend, got %v", err)
	}
}

func TestDispatchHTTPErrorNoRetry(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		http.Error(w, "backend exploded", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	if _, err := client.Dispatch(context.Background(), testChunk()); err == nil {
		t.Fatal("Expected error for 500 response")
	}

	if requests != 1 {
		t.Errorf("Backend saw %d requests, expected exactly 1 (chunks are never retried)", requests)
	}
	if stats := client.GetStats(); stats.FailedDispatches != 1 {
		t.Errorf("FailedDispatches = %d, expected 1", stats.FailedDispatches)
	}
}

func TestDispatchContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := client.Dispatch(ctx, testChunk()); err == nil {
		t.Error("Expected error for cancelled context")
	}
}

func TestExtensionFor(t *testing.T) {
	tests := []struct {
		mediaType string
		want      string
	}{
		{"audio/webm;codecs=opus", ".webm"},
		{"audio/mp4", ".mp4"},
		{"audio/ogg", ".ogg"},
		{"audio/wav", ".wav"},
		{"application/octet-stream", ".bin"},
	}

	for _, tt := range tests {
		if got := extensionFor(tt.mediaType); got != tt.want {
			t.Errorf("extensionFor(%q) = %q, expected %q", tt.mediaType, got, tt.want)
		}
	}
}
