package whisper_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrWong99/pulpit/pkg/audio"
	"github.com/MrWong99/pulpit/pkg/provider/stt"
	"github.com/MrWong99/pulpit/pkg/provider/stt/whisper"
)

// newMockServer creates a test server that responds to POST /inference with a
// JSON body containing responseText. It checks the multipart upload and
// increments *callCount on every matched request.
func newMockServer(t *testing.T, responseText string, callCount *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/inference" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if callCount != nil {
			callCount.Add(1)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if got := r.FormValue("language"); got != "en" {
			http.Error(w, "language = "+got, http.StatusBadRequest)
			return
		}
		f, hdr, err := r.FormFile("file")
		if err != nil || hdr.Filename != "audio.wav" {
			http.Error(w, "missing file", http.StatusBadRequest)
			return
		}
		defer f.Close()
		_, format, err := audio.DecodeWAV(f)
		if err != nil || format != audio.Speech {
			http.Error(w, "bad wav", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"text": responseText})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNew_EmptyServerURL_ReturnsError(t *testing.T) {
	_, err := whisper.New("")
	if err == nil {
		t.Fatal("expected error for empty serverURL, got nil")
	}
}

func TestTranscribe_ReturnsTrimmedText(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := newMockServer(t, "  For God so loved the world \n", &calls)
	p, err := whisper.New(srv.URL+"/", whisper.WithModel("base.en"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tr, err := p.Transcribe(context.Background(), make([]float32, 8000))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if tr.Text != "For God so loved the world" {
		t.Errorf("Text = %q, want trimmed text", tr.Text)
	}
	if tr.Duration != 500*time.Millisecond {
		t.Errorf("Duration = %v, want 500ms", tr.Duration)
	}
	if calls.Load() != 1 {
		t.Errorf("server calls = %d, want 1", calls.Load())
	}
}

func TestTranscribe_EmptyWindowSkipsServer(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := newMockServer(t, "unused", &calls)
	p, _ := whisper.New(srv.URL)

	tr, err := p.Transcribe(context.Background(), nil)
	if err != nil || tr.Text != "" {
		t.Errorf("Transcribe(nil) = %+v, %v; want empty transcript", tr, err)
	}
	if calls.Load() != 0 {
		t.Errorf("server calls = %d, want 0", calls.Load())
	}
}

func TestTranscribe_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, "model not loaded")
	}))
	t.Cleanup(srv.Close)

	p, _ := whisper.New(srv.URL)
	if _, err := p.Transcribe(context.Background(), make([]float32, 160)); err == nil {
		t.Fatal("expected error for HTTP 500, got nil")
	}
}

func TestTranscribe_ContextCancelled(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(block)
		srv.Close()
	})

	p, _ := whisper.New(srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := p.Transcribe(ctx, make([]float32, 160)); err == nil {
		t.Fatal("expected error for cancelled context, got nil")
	}
}

func TestProvider_Serialized(t *testing.T) {
	t.Parallel()

	srv := newMockServer(t, "amen", nil)
	p, _ := whisper.New(srv.URL)
	var sp stt.Provider = stt.Serialize(p)
	tr, err := sp.Transcribe(context.Background(), make([]float32, 160))
	if err != nil || tr.Text != "amen" {
		t.Errorf("serialized Transcribe = %+v, %v; want amen", tr, err)
	}
}
