package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/pulpit/internal/observe"
	"github.com/MrWong99/pulpit/internal/stream"
	"github.com/MrWong99/pulpit/pkg/audio"
)

// writeTimeout bounds a single WebSocket write.
const writeTimeout = 10 * time.Second

// clientMessage is an inbound message on /ws/live-transcription.
type clientMessage struct {
	Type       string `json:"type"`
	Audio      string `json:"audio"`
	Codec      string `json:"codec"`
	WindowSize int    `json:"window_size"`
}

// wsEmitter writes session messages to a WebSocket.
type wsEmitter struct {
	conn *websocket.Conn
}

func (e wsEmitter) Emit(ctx context.Context, msg stream.Message) error {
	return writeWS(ctx, e.conn, msg)
}

func writeWS(ctx context.Context, conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}

func acceptWS(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	return websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
}

// handleLive serves GET /ws/live-transcription. Text frames carry JSON
// messages; binary frames are taken as raw 16 kHz mono PCM16LE audio.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := acceptWS(w, r)
	if err != nil {
		slog.Debug("live: websocket accept", "err", err)
		return
	}
	defer conn.CloseNow()
	ctx := r.Context()
	log := observe.Logger(ctx)

	var ctl *stream.Controller
	if s.cfg.Sessions != nil {
		ctl, err = s.cfg.Sessions.StartSession("ws", wsEmitter{conn: conn})
	} else {
		err = ErrSpeechUnavailable
	}
	if err != nil {
		log.Warn("live: session unavailable", "err", err)
		_ = writeWS(ctx, conn, stream.Message{Err: ErrSpeechUnavailable})
		conn.Close(websocket.StatusNormalClosure, "speech recognition not available")
		return
	}
	defer ctl.Close()
	log.Info("live: session started")

	var opus *audio.OpusDecoder
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				log.Debug("live: read", "err", err)
			}
			log.Info("live: session ended")
			return
		}
		if typ == websocket.MessageBinary {
			err = ctl.Audio(ctx, data)
		} else {
			err = s.dispatch(ctx, ctl, data, &opus)
		}
		if errors.Is(err, stream.ErrClosed) {
			return
		}
	}
}

// dispatch applies one JSON message. Malformed and unknown messages are
// ignored.
func (s *Server) dispatch(ctx context.Context, ctl *stream.Controller, data []byte, opus **audio.OpusDecoder) error {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil
	}
	switch msg.Type {
	case "audio_chunk":
		pcm, err := base64.StdEncoding.DecodeString(msg.Audio)
		if err != nil {
			return nil
		}
		if msg.Codec == "opus" {
			if *opus == nil {
				if *opus, err = audio.NewOpusDecoder(1); err != nil {
					observe.Logger(ctx).Warn("live: opus decoder", "err", err)
					return nil
				}
			}
			if pcm, err = (*opus).Decode(pcm); err != nil {
				observe.Logger(ctx).Debug("live: dropping opus packet", "err", err)
				return nil
			}
		}
		return ctl.Audio(ctx, pcm)
	case "process":
		return ctl.Process(ctx)
	case "pause":
		return ctl.Pause(ctx)
	case "resume":
		return ctl.Resume(ctx)
	case "configure":
		if msg.WindowSize <= 0 {
			return nil
		}
		return ctl.Configure(ctx, msg.WindowSize)
	}
	return nil
}
