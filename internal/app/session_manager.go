package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/MrWong99/pulpit/internal/announce"
	"github.com/MrWong99/pulpit/internal/observe"
	"github.com/MrWong99/pulpit/internal/resolve"
	"github.com/MrWong99/pulpit/internal/stream"
	"github.com/MrWong99/pulpit/internal/transcript"
	"github.com/MrWong99/pulpit/pkg/provider/stt"
)

// ErrSessionsClosed is returned by [SessionManager.StartSession] after
// [SessionManager.CloseAll].
var ErrSessionsClosed = errors.New("app: session manager closed")

// announceQueue bounds results waiting for the announcement sinks.
const announceQueue = 64

// SessionManagerConfig holds all dependencies for a [SessionManager].
type SessionManagerConfig struct {
	// STT is the shared recogniser. Nil disables live sessions.
	STT stt.Provider

	Resolver stream.Resolver

	// Announcer receives every result that carries verses. May be nil.
	Announcer *announce.Announcer

	// Window is the initial window configuration for new sessions.
	Window stream.WindowConfig

	// MinChars is the initial minimum transcript length.
	MinChars int

	Metrics *observe.Metrics
}

// SessionManager starts live transcription sessions and keeps track of
// them so that reloaded settings reach every open session. Results with
// verses are forwarded to the announcer on a dedicated goroutine so that a
// slow sink never stalls a session.
//
// All exported methods are safe for concurrent use.
type SessionManager struct {
	stt       stt.Provider
	resolver  stream.Resolver
	announcer *announce.Announcer
	metrics   *observe.Metrics
	sampleHz  int
	keep      int

	mu       sync.Mutex
	settings stream.Settings
	sessions map[*stream.Controller]string
	closed   bool

	results  chan resolve.Result
	stopOnce sync.Once
	done     chan struct{}
}

// NewSessionManager creates a SessionManager and starts its announcement
// worker. Call CloseAll to stop it.
func NewSessionManager(cfg SessionManagerConfig) *SessionManager {
	win := cfg.Window
	if win.WindowSize == 0 {
		win = stream.DefaultWindowConfig()
	}
	sm := &SessionManager{
		stt:       cfg.STT,
		resolver:  cfg.Resolver,
		announcer: cfg.Announcer,
		metrics:   cfg.Metrics,
		sampleHz:  win.SampleRate,
		keep:      win.PausedKeep,
		settings: stream.Settings{
			WindowSize: win.WindowSize,
			Overlap:    win.Overlap,
			MinChars:   cfg.MinChars,
		},
		sessions: make(map[*stream.Controller]string),
		results:  make(chan resolve.Result, announceQueue),
		done:     make(chan struct{}),
	}
	go sm.announce()
	return sm
}

// StartSession implements server.SessionStarter and pipe.SessionStarter.
// Every message is passed to emit; results with verses are also announced.
func (sm *SessionManager) StartSession(transport string, emit stream.Emitter) (*stream.Controller, error) {
	if sm.stt == nil {
		return nil, stt.ErrNotAvailable
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.closed {
		return nil, ErrSessionsClosed
	}

	s := sm.settings
	opts := []transcript.Option{}
	if s.MinChars > 0 {
		opts = append(opts, transcript.WithMinChars(s.MinChars))
	}

	var ctl *stream.Controller
	ctl = stream.NewController(stream.ControllerConfig{
		STT:      sm.stt,
		Resolver: sm.resolver,
		Emitter:  sm.tee(emit),
		Window: stream.WindowConfig{
			SampleRate: sm.sampleHz,
			WindowSize: s.WindowSize,
			Overlap:    s.Overlap,
			PausedKeep: sm.keep,
		},
		Cleaner:   transcript.NewCleaner(opts...),
		Transport: transport,
		Metrics:   sm.metrics,
		Logger:    slog.Default().With("transport", transport),
		OnClose:   func() { sm.forget(ctl) },
	})
	sm.sessions[ctl] = transport
	slog.Info("session started", "transport", transport, "active", len(sm.sessions))
	return ctl, nil
}

// Active returns the number of open sessions.
func (sm *SessionManager) Active() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.sessions)
}

// Settings returns the settings new sessions start with.
func (sm *SessionManager) Settings() stream.Settings {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.settings
}

// Apply stores s for future sessions and pushes it to every open one.
// Sessions that close concurrently are skipped.
func (sm *SessionManager) Apply(ctx context.Context, s stream.Settings) {
	sm.mu.Lock()
	sm.settings = s
	open := make([]*stream.Controller, 0, len(sm.sessions))
	for ctl := range sm.sessions {
		open = append(open, ctl)
	}
	sm.mu.Unlock()

	for _, ctl := range open {
		if err := ctl.Apply(ctx, s); err != nil && !errors.Is(err, stream.ErrClosed) {
			slog.Warn("apply settings to session", "err", err)
		}
	}
	slog.Info("stream settings applied", "sessions", len(open),
		"window_size", s.WindowSize, "overlap", s.Overlap, "min_chars", s.MinChars)
}

// CloseAll closes every open session and stops the announcement worker.
// Later StartSession calls fail with [ErrSessionsClosed].
func (sm *SessionManager) CloseAll() {
	sm.mu.Lock()
	sm.closed = true
	open := make([]*stream.Controller, 0, len(sm.sessions))
	for ctl := range sm.sessions {
		open = append(open, ctl)
	}
	sm.mu.Unlock()

	for _, ctl := range open {
		_ = ctl.Close()
	}
	sm.stopOnce.Do(func() { close(sm.results) })
	<-sm.done
}

func (sm *SessionManager) forget(ctl *stream.Controller) {
	sm.mu.Lock()
	transport := sm.sessions[ctl]
	delete(sm.sessions, ctl)
	n := len(sm.sessions)
	sm.mu.Unlock()
	slog.Info("session ended", "transport", transport, "active", n)
}

// tee wraps emit so that results with verses are queued for announcement.
func (sm *SessionManager) tee(emit stream.Emitter) stream.Emitter {
	if sm.announcer == nil || sm.announcer.Len() == 0 {
		return emit
	}
	return stream.EmitterFunc(func(ctx context.Context, msg stream.Message) error {
		err := emit.Emit(ctx, msg)
		if msg.Result != nil && len(msg.Result.Verses) > 0 {
			sm.queue(*msg.Result)
		}
		return err
	})
}

func (sm *SessionManager) queue(res resolve.Result) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.closed {
		return
	}
	select {
	case sm.results <- res:
	default:
		slog.Warn("announcement queue full, dropping result", "references", res.References)
	}
}

func (sm *SessionManager) announce() {
	defer close(sm.done)
	for res := range sm.results {
		sm.announcer.Announce(context.Background(), res)
	}
}
