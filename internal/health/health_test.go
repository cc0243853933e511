package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func readyz(t *testing.T, h *Handler, ctx context.Context) (int, result) {
	t.Helper()
	req := httptest.NewRequest("GET", "/readyz", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return rec.Code, body
}

func ok(context.Context) error { return nil }

func TestHealthz_AlwaysReturns200(t *testing.T) {
	t.Parallel()
	h := New(Checker{Name: "bible", Check: func(context.Context) error { return errors.New("down") }})

	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	h.Healthz(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want %q", body.Status, "ok")
	}
}

func TestReadyz(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		checkers   []Checker
		wantCode   int
		wantStatus string
		wantChecks map[string]string
	}{
		{
			name:       "no checkers",
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
		{
			name: "all pass",
			checkers: []Checker{
				{Name: "bible", Check: ok},
				{Name: "postgres", Check: ok},
			},
			wantCode:   http.StatusOK,
			wantStatus: "ok",
			wantChecks: map[string]string{"bible": "ok", "postgres": "ok"},
		},
		{
			name: "required fails",
			checkers: []Checker{
				{Name: "postgres", Check: func(context.Context) error { return errors.New("connection refused") }},
				{Name: "bible", Check: ok},
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "fail",
			wantChecks: map[string]string{"postgres": "fail: connection refused", "bible": "ok"},
		},
		{
			name: "optional fails",
			checkers: []Checker{
				{Name: "bible", Check: ok},
				{Name: "speech", Optional: true, Check: func(context.Context) error { return errors.New("no model") }},
			},
			wantCode:   http.StatusOK,
			wantStatus: "degraded",
			wantChecks: map[string]string{"bible": "ok", "speech": "unavailable: no model"},
		},
		{
			name: "required failure wins over optional",
			checkers: []Checker{
				{Name: "bible", Check: func(context.Context) error { return errors.New("empty") }},
				{Name: "speech", Optional: true, Check: func(context.Context) error { return errors.New("no model") }},
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "fail",
		},
		{
			name:       "nil check ignored",
			checkers:   []Checker{{Name: "nothing"}},
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			code, body := readyz(t, New(tt.checkers...), context.Background())
			if code != tt.wantCode {
				t.Errorf("code = %d, want %d", code, tt.wantCode)
			}
			if body.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", body.Status, tt.wantStatus)
			}
			for name, want := range tt.wantChecks {
				if got := body.Checks[name]; got != want {
					t.Errorf("check %q = %q, want %q", name, got, want)
				}
			}
		})
	}
}

func TestReadyz_RespectsContextCancellation(t *testing.T) {
	t.Parallel()
	h := New(Checker{Name: "slow", Check: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	code, _ := readyz(t, h, ctx)
	if code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", code, http.StatusServiceUnavailable)
	}
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type fakeCounter struct {
	n   int
	err error
}

func (c fakeCounter) Count(context.Context) (int, error) { return c.n, c.err }

func TestHelpers(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		checker  Checker
		wantErr  bool
		optional bool
	}{
		{"ping ok", Ping("postgres", fakePinger{}), false, false},
		{"ping fails", Ping("postgres", fakePinger{err: errors.New("refused")}), true, false},
		{"non-empty", NonEmpty("bible", fakeCounter{n: 31102}), false, false},
		{"empty", NonEmpty("bible", fakeCounter{}), true, false},
		{"count error", NonEmpty("bible", fakeCounter{err: errors.New("boom")}), true, false},
		{"ready", Ready("semantic", func() bool { return true }), false, true},
		{"not ready", Ready("semantic", func() bool { return false }), true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.checker.Check(context.Background())
			if (err != nil) != tt.wantErr {
				t.Errorf("Check() err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.checker.Optional != tt.optional {
				t.Errorf("Optional = %v, want %v", tt.checker.Optional, tt.optional)
			}
		})
	}
}

func TestRegister_RoutesWork(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	New(Checker{Name: "bible", Check: ok}).Register(mux)

	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest("GET", path, nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d, want %d", path, rec.Code, http.StatusOK)
		}
	}
}
