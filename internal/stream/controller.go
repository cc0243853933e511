package stream

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/MrWong99/pulpit/internal/observe"
	"github.com/MrWong99/pulpit/internal/resolve"
	"github.com/MrWong99/pulpit/internal/transcript"
	"github.com/MrWong99/pulpit/pkg/provider/stt"
)

// ErrClosed is returned by Controller methods called after Close.
var ErrClosed = errors.New("stream: session closed")

// State is the Controller's position in the accumulate/transcribe cycle.
type State int32

const (
	// StateIdle means nothing is buffered.
	StateIdle State = iota
	// StateAccumulating means audio is buffered below the window size.
	StateAccumulating
	// StateTriggered means a window is being transcribed and resolved.
	StateTriggered
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAccumulating:
		return "accumulating"
	case StateTriggered:
		return "triggered"
	default:
		return "unknown"
	}
}

// Resolver turns transcript text into a Scripture result.
type Resolver interface {
	Resolve(ctx context.Context, text string) resolve.Result
}

// Message is one outbound event of a session: either a resolved
// transcription or an error.
type Message struct {
	Result *resolve.Result
	Err    error
}

// MarshalJSON renders the wire form: {"type":"transcription",...} for a
// result and {"error":"..."} for an error.
func (m Message) MarshalJSON() ([]byte, error) {
	if m.Err != nil {
		return json.Marshal(struct {
			Error string `json:"error"`
		}{m.Err.Error()})
	}
	res := resolve.Result{}
	if m.Result != nil {
		res = *m.Result
	}
	return json.Marshal(struct {
		Type string `json:"type"`
		resolve.Result
	}{"transcription", res})
}

// Emitter delivers session messages to a client.
type Emitter interface {
	Emit(ctx context.Context, msg Message) error
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(ctx context.Context, msg Message) error

// Emit calls f.
func (f EmitterFunc) Emit(ctx context.Context, msg Message) error { return f(ctx, msg) }

// Settings are the hot-reloadable parameters of a running session.
type Settings struct {
	WindowSize int
	Overlap    int
	MinChars   int
}

// ControllerConfig holds the dependencies of a [Controller].
type ControllerConfig struct {
	// STT is the shared, serialised speech recogniser.
	STT stt.Provider

	// Resolver turns each transcript into references and verses.
	Resolver Resolver

	// Emitter receives every result and error of the session.
	Emitter Emitter

	// Window sizes the audio buffer.
	Window WindowConfig

	// Cleaner filters recogniser output. Defaults to transcript.NewCleaner().
	Cleaner *transcript.Cleaner

	// Transport labels the active-session gauge ("ws", "pipe").
	Transport string

	// Queue is the event queue length. Defaults to 64.
	Queue int

	Metrics *observe.Metrics
	Logger  *slog.Logger

	// OnClose, if set, runs once after the session has stopped.
	OnClose func()
}

type eventKind int

const (
	evAudio eventKind = iota
	evProcess
	evPause
	evResume
	evResize
	evApply
)

type event struct {
	kind     eventKind
	pcm      []byte
	size     int
	settings Settings
	done     chan struct{}
}

// Controller runs one streaming session. Events are handled in arrival order
// on a single goroutine; all exported methods are safe for concurrent use.
type Controller struct {
	bridge    *Bridge
	resolver  Resolver
	emitter   Emitter
	metrics   *observe.Metrics
	log       *slog.Logger
	transport string
	onClose   func()

	events chan event
	ctx    context.Context
	cancel context.CancelFunc
	exited chan struct{}
	state  atomic.Int32

	emitMu sync.Mutex
	closed bool
	once   sync.Once
}

// NewController starts a session. The caller must call Close when the
// client goes away.
func NewController(cfg ControllerConfig) *Controller {
	if cfg.Queue <= 0 {
		cfg.Queue = 64
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Cleaner == nil {
		cfg.Cleaner = transcript.NewCleaner()
	}
	opts := []BridgeOption{WithCleaner(cfg.Cleaner)}
	if cfg.Metrics != nil {
		opts = append(opts, WithBridgeMetrics(cfg.Metrics))
	}
	ctx, cancel := context.WithCancel(observe.WithTransport(context.Background(), cfg.Transport))
	c := &Controller{
		bridge:    NewBridge(cfg.STT, NewWindow(cfg.Window), opts...),
		resolver:  cfg.Resolver,
		emitter:   cfg.Emitter,
		metrics:   cfg.Metrics,
		log:       cfg.Logger,
		transport: cfg.Transport,
		onClose:   cfg.OnClose,
		events:    make(chan event, cfg.Queue),
		ctx:       ctx,
		cancel:    cancel,
		exited:    make(chan struct{}),
	}
	if c.metrics != nil {
		c.metrics.SessionStarted(ctx, c.transport)
	}
	go c.loop()
	return c
}

// State returns the current state.
func (c *Controller) State() State { return State(c.state.Load()) }

// Audio queues a PCM16LE chunk. It returns once the chunk is queued, not
// when it has been transcribed.
func (c *Controller) Audio(ctx context.Context, pcm []byte) error {
	return c.send(ctx, event{kind: evAudio, pcm: pcm}, false)
}

// Process transcribes everything buffered and resets the buffer. It returns
// after the result, if any, has been emitted.
func (c *Controller) Process(ctx context.Context) error {
	return c.send(ctx, event{kind: evProcess}, true)
}

// Pause stops transcription until Resume.
func (c *Controller) Pause(ctx context.Context) error {
	return c.send(ctx, event{kind: evPause}, true)
}

// Resume re-enables transcription.
func (c *Controller) Resume(ctx context.Context) error {
	return c.send(ctx, event{kind: evResume}, true)
}

// Configure changes the window size, clamped to [MinWindowSize, MaxWindowSize].
func (c *Controller) Configure(ctx context.Context, windowSize int) error {
	return c.send(ctx, event{kind: evResize, size: windowSize}, true)
}

// Apply updates the session with reloaded settings. Zero fields are left
// unchanged except Overlap, which is always applied.
func (c *Controller) Apply(ctx context.Context, s Settings) error {
	return c.send(ctx, event{kind: evApply, settings: s}, true)
}

// Close stops the session. Queued events are discarded and no message is
// emitted once Close returns. Close is idempotent.
func (c *Controller) Close() error {
	c.once.Do(func() {
		c.cancel()
		c.emitMu.Lock()
		c.closed = true
		c.emitMu.Unlock()
		<-c.exited
		if c.metrics != nil {
			c.metrics.SessionEnded(context.Background(), c.transport)
		}
		if c.onClose != nil {
			c.onClose()
		}
	})
	return nil
}

func (c *Controller) send(ctx context.Context, ev event, wait bool) error {
	if c.ctx.Err() != nil {
		return ErrClosed
	}
	if wait {
		ev.done = make(chan struct{})
	}
	select {
	case c.events <- ev:
	case <-c.ctx.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	if !wait {
		return nil
	}
	select {
	case <-ev.done:
		return nil
	case <-c.ctx.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) loop() {
	defer close(c.exited)
	for {
		select {
		case <-c.ctx.Done():
			return
		case ev := <-c.events:
			c.handle(ev)
			if ev.done != nil {
				close(ev.done)
			}
		}
	}
}

func (c *Controller) handle(ev event) {
	switch ev.kind {
	case evAudio:
		if len(ev.pcm) == 0 {
			return
		}
		c.state.Store(int32(StateAccumulating))
		if !c.bridge.Paused() && c.bridge.Window().Len()+len(ev.pcm)/2 >= c.bridge.Window().Config().WindowSize {
			c.state.Store(int32(StateTriggered))
		}
		text, triggered, err := c.bridge.Ingest(c.ctx, ev.pcm)
		if triggered {
			c.deliver(text, err)
		}
	case evProcess:
		c.state.Store(int32(StateTriggered))
		text, triggered, err := c.bridge.Flush(c.ctx)
		if triggered {
			c.deliver(text, err)
		}
	case evPause:
		c.bridge.Pause()
	case evResume:
		c.bridge.Resume()
	case evResize:
		applied := c.bridge.Window().Resize(ev.size)
		c.log.Debug("stream: window resized", "requested", ev.size, "applied", applied)
	case evApply:
		s := ev.settings
		if s.WindowSize > 0 {
			c.bridge.Window().Resize(s.WindowSize)
		}
		c.bridge.Window().SetOverlap(s.Overlap)
		if s.MinChars > 0 {
			c.bridge.cleaner = c.bridge.cleaner.WithMinChars(s.MinChars)
		}
	}
	c.settle()
}

func (c *Controller) settle() {
	if c.bridge.Window().Len() > 0 {
		c.state.Store(int32(StateAccumulating))
	} else {
		c.state.Store(int32(StateIdle))
	}
}

// deliver resolves a transcript and emits the outcome. Empty text means the
// window held no usable speech and nothing is emitted.
func (c *Controller) deliver(text string, err error) {
	if err != nil {
		if c.ctx.Err() != nil {
			return
		}
		c.log.Warn("stream: transcription failed", "err", err)
		c.emit(Message{Err: errors.New("transcription failed")})
		return
	}
	if text == "" {
		return
	}
	res := c.resolver.Resolve(c.ctx, text)
	c.emit(Message{Result: &res})
}

func (c *Controller) emit(msg Message) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	if c.closed || c.ctx.Err() != nil {
		return
	}
	if err := c.emitter.Emit(c.ctx, msg); err != nil {
		c.log.Debug("stream: emit failed", "err", err)
	}
}
