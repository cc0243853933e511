package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrWong99/pulpit/pkg/provider/stt/openai"
)

func TestNew_EmptyAPIKey(t *testing.T) {
	t.Parallel()

	if _, err := openai.New("", ""); err == nil {
		t.Fatal("expected error for empty API key")
	}
}

func TestTranscribe(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.FormValue("model") != "whisper-1" || r.FormValue("language") != "en" || r.FormValue("prompt") != "Psalms, Proverbs" {
			http.Error(w, "unexpected fields", http.StatusBadRequest)
			return
		}
		if _, _, err := r.FormFile("file"); err != nil {
			http.Error(w, "missing file", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"text": " The Lord is my shepherd. "})
	}))
	t.Cleanup(srv.Close)

	p, err := openai.New("sk-test", "", openai.WithBaseURL(srv.URL), openai.WithPrompt("Psalms, Proverbs"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tr, err := p.Transcribe(context.Background(), make([]float32, 1600))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if tr.Text != "The Lord is my shepherd." {
		t.Errorf("Text = %q", tr.Text)
	}
}

func TestTranscribe_Empty(t *testing.T) {
	t.Parallel()

	p, _ := openai.New("sk-test", "", openai.WithBaseURL("http://127.0.0.1:1"))
	tr, err := p.Transcribe(context.Background(), nil)
	if err != nil || tr.Text != "" {
		t.Errorf("Transcribe(nil) = %+v, %v", tr, err)
	}
}
