package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/MrWong99/pulpit/internal/fusion"
	"github.com/MrWong99/pulpit/internal/observe"
	"github.com/MrWong99/pulpit/internal/scripture"
	"github.com/MrWong99/pulpit/internal/semantic"
	"github.com/MrWong99/pulpit/pkg/audio"
	"github.com/MrWong99/pulpit/pkg/bible"
)

// transcriptionResponse is the body of POST /api/speech/transcribe.
type transcriptionResponse struct {
	Text                string         `json:"text"`
	DetectedReferences  []string       `json:"detected_references"`
	DetectedParaphrases []string       `json:"detected_paraphrases"`
	Verses              []fusion.Match `json:"verses"`
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if s.cfg.STT == nil {
		writeError(w, http.StatusServiceUnavailable, "Speech recognition not available")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	file, _, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "missing audio file: "+err.Error())
		return
	}
	defer file.Close()

	pcm, format, err := audio.DecodeWAV(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable audio: "+err.Error())
		return
	}
	samples := audio.PCM16ToFloat32(audio.Convert(pcm, format, audio.Speech))

	ctx := r.Context()
	tr, err := s.cfg.STT.Transcribe(ctx, samples)
	if err != nil {
		observe.Logger(ctx).Error("transcribe upload", "format", format, "err", err)
		writeError(w, http.StatusInternalServerError, "Transcription failed: "+err.Error())
		return
	}
	res := s.cfg.Resolver.Resolve(ctx, tr.Text)
	writeJSON(w, http.StatusOK, transcriptionResponse{
		Text:                res.Text,
		DetectedReferences:  res.References,
		DetectedParaphrases: res.Paraphrases,
		Verses:              res.Verses,
	})
}

type speechStatus struct {
	WhisperAvailable  bool    `json:"whisper_available"`
	SemanticAvailable bool    `json:"semantic_available"`
	Model             *string `json:"model"`
}

func (s *Server) handleSpeechStatus(w http.ResponseWriter, _ *http.Request) {
	st := speechStatus{
		WhisperAvailable:  s.cfg.STT != nil,
		SemanticAvailable: s.cfg.Resolver.SemanticReady(),
	}
	if st.WhisperAvailable && s.cfg.STTModel != "" {
		st.Model = &s.cfg.STTModel
	}
	writeJSON(w, http.StatusOK, st)
}

type directSearchRequest struct {
	Reference string `json:"reference"`
}

func (s *Server) handleDirectSearch(w http.ResponseWriter, r *http.Request) {
	var req directSearchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p, err := s.cfg.Resolver.Lookup(r.Context(), req.Reference)
	switch {
	case errors.Is(err, scripture.ErrInvalidReference),
		errors.Is(err, scripture.ErrUnknownBook),
		errors.Is(err, bible.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Search failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p.Verses)
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func (s *Server) handleSemanticSearch(w http.ResponseWriter, r *http.Request) {
	req := searchRequest{Limit: 10}
	if !decodeBody(w, r, &req) {
		return
	}
	matches, err := s.cfg.Resolver.Search(r.Context(), req.Query, req.Limit)
	switch {
	case errors.Is(err, semantic.ErrNoIndex):
		writeError(w, http.StatusServiceUnavailable, "Semantic index not initialized")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Search failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

func (s *Server) handleKeywordSearch(w http.ResponseWriter, r *http.Request) {
	req := searchRequest{Limit: bible.DefaultSearchLimit}
	if !decodeBody(w, r, &req) {
		return
	}
	limit := max(1, min(req.Limit, bible.DefaultSearchLimit))

	var (
		verses []bible.Verse
		err    error
	)
	if searcher, ok := s.cfg.Store.(bible.Searcher); ok {
		verses, err = searcher.Search(r.Context(), req.Query, limit)
	} else {
		var all []bible.Verse
		if all, err = s.cfg.Store.All(r.Context()); err == nil {
			verses = bible.KeywordSearch(all, req.Query, limit)
		}
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Search failed: "+err.Error())
		return
	}
	out := make([]fusion.Match, 0, len(verses))
	for _, v := range verses {
		out = append(out, fusion.FromVerse(v))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleBooks(w http.ResponseWriter, r *http.Request) {
	books, err := s.cfg.Store.Books(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"books": books, "count": len(books)})
}

// pathBook resolves the {book} path value through the reference normalizer
// so that "1cor" and "1 Corinthians" address the same book.
func pathBook(r *http.Request) (string, bool) {
	raw := strings.TrimSpace(r.PathValue("book"))
	if book, ok := scripture.Normalize(raw); ok {
		return book, true
	}
	return bible.CanonicalName(raw)
}

func (s *Server) handleChapters(w http.ResponseWriter, r *http.Request) {
	book, ok := pathBook(r)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown book %q", r.PathValue("book")))
		return
	}
	chapters, err := s.cfg.Store.Chapters(r.Context(), book)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(chapters) == 0 {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no chapters for %s", book))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"book": book, "chapters": chapters})
}

func (s *Server) handleVerses(w http.ResponseWriter, r *http.Request) {
	book, ok := pathBook(r)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown book %q", r.PathValue("book")))
		return
	}
	chapter, err := strconv.Atoi(r.PathValue("chapter"))
	if err != nil || chapter <= 0 {
		writeError(w, http.StatusBadRequest, "chapter must be a positive integer")
		return
	}
	verses, err := s.cfg.Store.Verses(r.Context(), book, chapter, 0, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(verses) == 0 {
		writeError(w, http.StatusNotFound, fmt.Sprintf("%s %d not found", book, chapter))
		return
	}
	out := make([]fusion.Match, 0, len(verses))
	for _, v := range verses {
		out = append(out, fusion.FromVerse(v))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRebuildIndex(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Rebuild == nil {
		writeError(w, http.StatusServiceUnavailable, "no embeddings provider configured")
		return
	}
	n, err := s.cfg.Rebuild(r.Context())
	if errors.Is(err, ErrRebuildBusy) {
		writeError(w, http.StatusConflict, "An index rebuild is already running")
		return
	}
	if err != nil {
		observe.Logger(r.Context()).Error("rebuild index", "err", err)
		writeError(w, http.StatusInternalServerError, "Rebuild failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "verses_indexed": n})
}
