// Package app wires all pulpit subsystems into a running application.
//
// The App struct owns the full lifecycle: New opens the verse store, loads
// the semantic index and assembles the resolver, live sessions and HTTP
// server; Run serves until the context is cancelled; Shutdown tears
// everything down in order.
//
// For testing, inject doubles via functional options (WithStore,
// WithDiscordSender, etc.). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/pulpit/internal/announce"
	"github.com/MrWong99/pulpit/internal/config"
	"github.com/MrWong99/pulpit/internal/health"
	"github.com/MrWong99/pulpit/internal/mcptools"
	"github.com/MrWong99/pulpit/internal/observe"
	"github.com/MrWong99/pulpit/internal/resolve"
	"github.com/MrWong99/pulpit/internal/scripture"
	"github.com/MrWong99/pulpit/internal/semantic"
	"github.com/MrWong99/pulpit/internal/server"
	"github.com/MrWong99/pulpit/internal/stream"
	"github.com/MrWong99/pulpit/internal/transcript/phonetic"
	"github.com/MrWong99/pulpit/pkg/bible"
	"github.com/MrWong99/pulpit/pkg/bible/memory"
	"github.com/MrWong99/pulpit/pkg/bible/postgres"
)

var (
	_ semantic.Backend = (*postgres.Store)(nil)
	_ semantic.Sink    = (*postgres.Store)(nil)
)

// ErrRebuildInProgress is returned by [App.RebuildIndex] while another
// rebuild is running.
var ErrRebuildInProgress = server.ErrRebuildBusy

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers
	version   string
	metrics   *observe.Metrics
	level     *slog.LevelVar

	// Subsystems, initialised in New and torn down in Shutdown.
	store     bible.Store
	pg        *postgres.Store
	matcher   *semantic.Matcher
	resolver  *resolve.Resolver
	hub       *announce.Hub
	announcer *announce.Announcer
	sessions  *SessionManager
	tools     *mcptools.Tools
	server    *server.Server

	discordSender announce.MessageSender
	rebuildMu     sync.Mutex

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a verse store instead of opening the configured one.
func WithStore(s bible.Store) Option {
	return func(a *App) { a.store = s }
}

// WithMetrics records on m instead of the global metrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLevelVar lets ApplyConfig change the log level of the logger built
// around lv.
func WithLevelVar(lv *slog.LevelVar) Option {
	return func(a *App) { a.level = lv }
}

// WithVersion sets the version reported by the MCP server.
func WithVersion(v string) Option {
	return func(a *App) { a.version = v }
}

// WithDiscordSender posts Discord announcements through s instead of
// dialling a bot session with the configured token.
func WithDiscordSender(s announce.MessageSender) Option {
	return func(a *App) { a.discordSender = s }
}

// New creates an App by wiring all subsystems together. The providers come
// from [BuildProviders]; nil means no speech or embedding backend.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
		version:   "dev",
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.level == nil {
		a.level = new(slog.LevelVar)
	}

	if err := a.initStore(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init store: %w", err)
	}
	if err := a.initSemantic(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init semantic: %w", err)
	}
	a.initResolver()
	if err := a.initAnnounce(); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init announce: %w", err)
	}

	a.sessions = NewSessionManager(SessionManagerConfig{
		STT:       providers.STT,
		Resolver:  a.resolver,
		Announcer: a.announcer,
		Window: stream.WindowConfig{
			SampleRate: cfg.Stream.SampleRate,
			WindowSize: cfg.Stream.WindowSize,
			Overlap:    cfg.Stream.OverlapSamples(),
			PausedKeep: cfg.Stream.PausedKeep,
		},
		MinChars: cfg.Stream.MinTranscriptChars,
		Metrics:  a.metrics,
	})
	a.closers = append(a.closers, func() error { a.sessions.CloseAll(); return nil })

	a.tools = mcptools.New(a.resolver, a.metrics)
	a.initServer()

	slog.Info("app initialised",
		"store", cfg.Bible.Store,
		"semantic", a.resolver.SemanticReady(),
		"speech", providers.STT != nil,
		"announce_sinks", a.announcer.Len(),
	)
	return a, nil
}

func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}
	bc := a.cfg.Bible
	switch bc.Store {
	case config.BibleStorePostgres:
		var opts []postgres.Option
		if p := a.providers.Embeddings; p != nil && p.Dimensions() > 0 {
			opts = append(opts, postgres.WithDimensions(p.Dimensions()))
		}
		if len(bc.Versions) > 0 {
			opts = append(opts, postgres.WithVersions(bc.Versions...))
		}
		if bc.DefaultVersion != "" {
			opts = append(opts, postgres.WithDefaultVersion(bc.DefaultVersion))
		}
		pg, err := postgres.NewStore(ctx, bc.PostgresDSN, opts...)
		if err != nil {
			return err
		}
		a.pg = pg
		a.store = pg
		a.closers = append(a.closers, func() error { pg.Close(); return nil })
	default:
		versions := bc.Versions
		if len(versions) == 0 {
			versions = slices.Sorted(maps.Keys(bc.Sources))
		}
		var opts []memory.Option
		if bc.DefaultVersion != "" {
			opts = append(opts, memory.WithDefaultVersion(bc.DefaultVersion))
		}
		st, err := memory.Load(bc.Sources, versions, opts...)
		if err != nil {
			return err
		}
		a.store = st
	}
	n, err := a.store.Count(ctx)
	if err != nil {
		return fmt.Errorf("count verses: %w", err)
	}
	if n == 0 {
		slog.Warn("verse store is empty; lookups will return nothing")
	}
	slog.Info("verse store ready", "store", bc.Store, "verses", n)
	return nil
}

func (a *App) initSemantic(ctx context.Context) error {
	if a.providers.Embeddings == nil {
		slog.Info("semantic matching disabled: no embeddings provider configured")
		return nil
	}
	sc := a.cfg.Semantic
	var backend semantic.Backend
	switch sc.Backend {
	case config.SemanticPgvector:
		if a.pg == nil {
			return errors.New("pgvector backend requires the postgres bible store")
		}
		backend = a.pg
	default:
		if sc.EmbeddingsPath == "" || sc.IndexPath == "" {
			slog.Info("no verse index configured; build one with POST /api/rebuild-index")
			break
		}
		ix, err := semantic.Load(ctx, a.store, sc.EmbeddingsPath, sc.IndexPath)
		switch {
		case err == nil:
			backend = ix
			slog.Info("verse index loaded", "verses", ix.Len(), "dimensions", ix.Dimensions())
		case errors.Is(err, semantic.ErrNoIndex), errors.Is(err, semantic.ErrIndexMismatch):
			slog.Warn("verse index unavailable; rebuild it to enable semantic matching", "err", err)
		default:
			return err
		}
	}
	a.matcher = semantic.NewMatcher(a.providers.Embeddings, backend, semantic.WithMetrics(a.metrics))
	return nil
}

func (a *App) initResolver() {
	var popts []scripture.ParserOption
	if pc := a.cfg.Phonetic; pc.Enabled {
		popts = append(popts, scripture.WithBookMatcher(phonetic.New(
			phonetic.WithPhoneticThreshold(pc.PhoneticThreshold),
			phonetic.WithFuzzyThreshold(pc.FuzzyThreshold),
		)))
	}
	ropts := []resolve.Option{
		resolve.WithParser(scripture.NewParser(popts...)),
		resolve.WithMetrics(a.metrics),
		resolve.WithConfig(resolveConfig(a.cfg)),
	}
	if a.matcher != nil {
		ropts = append(ropts, resolve.WithMatcher(a.matcher))
	}
	a.resolver = resolve.New(a.store, ropts...)
}

func (a *App) initAnnounce() error {
	var sinks []announce.Sink
	ac := a.cfg.Announce
	if !ac.Remote.Disabled {
		a.hub = announce.NewHub(announce.WithHubMetrics(a.metrics))
		sinks = append(sinks, a.hub)
	}

	dc := announce.DiscordConfig{ChannelID: ac.Discord.ChannelID, RepeatWindow: ac.Discord.RepeatWindow}
	switch {
	case a.discordSender != nil:
		dc.Sender = a.discordSender
		sinks = append(sinks, announce.NewDiscord(dc))
	case ac.Discord.Token != "":
		d, closeFn, err := announce.DialDiscord(ac.Discord.Token, dc)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, closeFn)
		sinks = append(sinks, d)
		slog.Info("discord announcements enabled", "channel", ac.Discord.ChannelID)
	}

	a.announcer = announce.New(sinks...)
	return nil
}

func (a *App) initServer() {
	checks := []health.Checker{health.NonEmpty("bible", a.store)}
	if a.pg != nil {
		checks = append(checks, health.Ping("postgres", a.pg))
	}
	checks = append(checks,
		health.Ready("semantic", a.resolver.SemanticReady),
		health.Ready("speech", func() bool { return a.providers.STT != nil }),
	)

	sc := server.Config{
		Store:          a.store,
		Resolver:       a.resolver,
		Sessions:       a.sessions,
		STT:            a.providers.STT,
		STTModel:       a.providers.STTModel,
		Hub:            a.hub,
		RemotePIN:      a.cfg.Announce.Remote.PIN,
		Health:         checks,
		MaxUploadBytes: a.cfg.Server.MaxUploadBytes,
		Metrics:        a.metrics,
	}
	if a.matcher != nil {
		sc.Rebuild = a.RebuildIndex
	}
	if a.cfg.Server.MCP {
		sc.MCP = a.tools.HTTPHandler(a.version)
	}
	if tls := a.cfg.Server.TLS; tls != nil {
		sc.CertFile, sc.KeyFile = tls.CertFile, tls.KeyFile
	}
	a.server = server.New(sc)
}

// Resolver returns the shared resolver.
func (a *App) Resolver() *resolve.Resolver { return a.resolver }

// Store returns the verse store.
func (a *App) Store() bible.Store { return a.store }

// Sessions returns the live session manager.
func (a *App) Sessions() *SessionManager { return a.sessions }

// Tools returns the MCP tool set.
func (a *App) Tools() *mcptools.Tools { return a.tools }

// Server returns the HTTP server.
func (a *App) Server() *server.Server { return a.server }

// RebuildIndex embeds every verse and swaps the new index in. With the
// pgvector backend the vectors are written to the database; otherwise the
// index is saved to the configured paths, if any.
func (a *App) RebuildIndex(ctx context.Context) (int, error) {
	if a.matcher == nil {
		return 0, errors.New("app: rebuild index: no embeddings provider configured")
	}
	if !a.rebuildMu.TryLock() {
		return 0, ErrRebuildInProgress
	}
	defer a.rebuildMu.Unlock()

	opts := semantic.BuildOptions{
		Progress: func(done, total int) {
			slog.Debug("indexing verses", "done", done, "total", total)
		},
	}
	pgvector := a.cfg.Semantic.Backend == config.SemanticPgvector && a.pg != nil
	if pgvector {
		opts.Sink = a.pg
	}
	ix, err := semantic.Build(ctx, a.store, a.providers.Embeddings, opts)
	if err != nil {
		return 0, fmt.Errorf("app: rebuild index: %w", err)
	}

	if pgvector {
		a.matcher.SetBackend(a.pg)
	} else {
		if sc := a.cfg.Semantic; sc.EmbeddingsPath != "" && sc.IndexPath != "" {
			if err := ix.Save(sc.EmbeddingsPath, sc.IndexPath); err != nil {
				return 0, fmt.Errorf("app: rebuild index: %w", err)
			}
		}
		a.matcher.SetBackend(ix)
	}
	slog.Info("verse index rebuilt", "verses", ix.Len(), "model", a.providers.Embeddings.ModelID())
	return ix.Len(), nil
}

// Run serves HTTP until ctx is cancelled. Open live sessions are closed as
// soon as ctx is done so that their connections wind down with the server.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.server.ListenAndServe(gctx, a.cfg.Server.ListenAddr, a.cfg.Server.ShutdownTimeout)
	})
	g.Go(func() error {
		<-gctx.Done()
		a.sessions.CloseAll()
		return nil
	})
	return g.Wait()
}

// ApplyConfig applies the hot-reloadable differences between old and new.
// Sections that need a restart are logged and otherwise ignored.
func (a *App) ApplyConfig(ctx context.Context, old, new *config.Config) {
	d := config.Diff(old, new)
	if d.LogLevelChanged {
		if lvl, err := observe.ParseLevel(string(d.NewLogLevel)); err == nil {
			a.level.Set(lvl)
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
	}
	if d.ResolveChanged {
		a.resolver.SetConfig(resolveConfig(new))
		slog.Info("resolver settings reloaded",
			"top_k", new.Semantic.TopK, "threshold", new.Semantic.Threshold)
	}
	if d.StreamChanged {
		a.sessions.Apply(ctx, stream.Settings{
			WindowSize: new.Stream.WindowSize,
			Overlap:    new.Stream.OverlapSamples(),
			MinChars:   new.Stream.MinTranscriptChars,
		})
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes require a restart", "sections", d.RestartRequired)
	}
}

// Shutdown tears down all subsystems in reverse init order. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// closeAll releases what New opened before it failed.
func (a *App) closeAll() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
	a.closers = nil
}

func resolveConfig(cfg *config.Config) resolve.Config {
	return resolve.Config{
		TopK:              cfg.Semantic.TopK,
		Threshold:         cfg.Semantic.Threshold,
		FallbackFullText:  cfg.Semantic.FallbackFullText,
		FallbackThreshold: cfg.Semantic.FallbackThreshold,
		Paraphrase: scripture.ParaphraseConfig{
			MinQuoteChars:    cfg.Paraphrase.MinQuoteChars,
			MinSentenceChars: cfg.Paraphrase.MinSentenceChars,
			MinWords:         cfg.Paraphrase.MinWords,
		},
	}
}
