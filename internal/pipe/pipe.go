// Package pipe speaks the line protocol used when pulpit runs as a child
// process of a desktop presenter.
//
// Input on stdin is a sequence of lines. A line "AUDIO:<N>" is followed by
// exactly N bytes of 16 kHz mono PCM16LE audio. Any other line is a JSON
// command:
//
//	{"action":"search","reference":"John 3:16"}
//	{"action":"process"}
//	{"action":"pause"}
//	{"action":"resume"}
//
// Output on stdout is one JSON object per line: transcription messages as
// sent on the streaming WebSocket, and {"type":"search_result","data":...}
// replies. Malformed lines are skipped. Logs never go to stdout.
//
// When no speech recogniser is available the audio session ends before it
// starts: a single {"error":"speech recognition not available"} line is
// written, AUDIO payloads are read and discarded, and process, pause and
// resume do nothing. The process keeps answering search commands, since a
// presenter uses the same pipe for manual lookups.
package pipe

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/MrWong99/pulpit/internal/resolve"
	"github.com/MrWong99/pulpit/internal/stream"
)

// DefaultMaxChunk bounds a single AUDIO payload.
const DefaultMaxChunk = 16 << 20

const audioPrefix = "AUDIO:"

// SessionStarter creates the streaming session that receives audio.
type SessionStarter interface {
	StartSession(transport string, emit stream.Emitter) (*stream.Controller, error)
}

// Config holds the dependencies of [Run].
type Config struct {
	Sessions SessionStarter
	Resolver *resolve.Resolver

	// MaxChunk bounds AUDIO payloads. Default: 16 MiB.
	MaxChunk int
}

type command struct {
	Action    string `json:"action"`
	Reference string `json:"reference"`
}

type searchResult struct {
	Type string           `json:"type"`
	Data *resolve.Passage `json:"data"`
}

// writer serialises JSON lines from the read loop and the session.
type writer struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func (w *writer) write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(v)
}

func (w *writer) Emit(_ context.Context, msg stream.Message) error { return w.write(msg) }

// Run serves the protocol until in is exhausted or ctx is cancelled. At end
// of input the buffered audio is flushed through one last transcription.
func Run(ctx context.Context, in io.Reader, out io.Writer, cfg Config) error {
	if cfg.MaxChunk <= 0 {
		cfg.MaxChunk = DefaultMaxChunk
	}
	w := &writer{enc: json.NewEncoder(out)}

	var ctl *stream.Controller
	if cfg.Sessions != nil {
		var err error
		if ctl, err = cfg.Sessions.StartSession("pipe", w); err != nil {
			slog.Warn("pipe: audio disabled", "err", err)
			ctl = nil
		}
	}
	if ctl == nil {
		if err := w.write(stream.Message{Err: errors.New("speech recognition not available")}); err != nil {
			return fmt.Errorf("pipe: write: %w", err)
		}
	} else {
		defer ctl.Close()
	}

	r := bufio.NewReader(in)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := r.ReadString('\n')
		if errors.Is(err, io.EOF) {
			if line == "" {
				break
			}
		} else if err != nil {
			return fmt.Errorf("pipe: read: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")

		if rest, ok := strings.CutPrefix(line, audioPrefix); ok {
			if err := readAudio(ctx, r, rest, cfg.MaxChunk, ctl); err != nil {
				return err
			}
			continue
		}
		if err := handleCommand(ctx, line, cfg.Resolver, ctl, w); err != nil {
			return err
		}
	}

	if ctl != nil {
		if err := ctl.Process(ctx); err != nil && !errors.Is(err, stream.ErrClosed) {
			return err
		}
	}
	return nil
}

// readAudio consumes the payload announced by an AUDIO line. A malformed
// length skips the line; a truncated payload ends the stream.
func readAudio(ctx context.Context, r *bufio.Reader, size string, maxChunk int, ctl *stream.Controller) error {
	n, err := strconv.Atoi(strings.TrimSpace(size))
	if err != nil || n < 0 || n > maxChunk {
		slog.Warn("pipe: bad audio header", "size", size)
		return nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return fmt.Errorf("pipe: read %d audio bytes: %w", n, err)
	}
	if ctl == nil {
		return nil
	}
	if err := ctl.Audio(ctx, buf); err != nil && !errors.Is(err, stream.ErrClosed) {
		return err
	}
	return nil
}

func handleCommand(ctx context.Context, line string, res *resolve.Resolver, ctl *stream.Controller, w *writer) error {
	var cmd command
	if strings.TrimSpace(line) == "" || json.Unmarshal([]byte(line), &cmd) != nil {
		return nil
	}
	var err error
	switch cmd.Action {
	case "search":
		reply := searchResult{Type: "search_result"}
		if res != nil {
			if p, lerr := res.Lookup(ctx, cmd.Reference); lerr == nil {
				reply.Data = &p
			} else {
				slog.Debug("pipe: search miss", "reference", cmd.Reference, "err", lerr)
			}
		}
		if err := w.write(reply); err != nil {
			return fmt.Errorf("pipe: write: %w", err)
		}
		return nil
	case "process":
		if ctl != nil {
			err = ctl.Process(ctx)
		}
	case "pause":
		if ctl != nil {
			err = ctl.Pause(ctx)
		}
	case "resume":
		if ctl != nil {
			err = ctl.Resume(ctx)
		}
	}
	if errors.Is(err, stream.ErrClosed) {
		return nil
	}
	return err
}
