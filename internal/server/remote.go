package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/pulpit/internal/observe"
)

// authTimeout bounds how long a remote viewer has to authenticate.
const authTimeout = 30 * time.Second

type authMessage struct {
	Cmd string `json:"cmd"`
	PIN string `json:"pin"`
}

type typeMessage struct {
	Type string `json:"type"`
}

// handleRemote serves GET /ws/remote, a read-only feed of every
// transcription of every session. When a PIN is configured the first
// message must be {"cmd":"auth","pin":"..."}.
func (s *Server) handleRemote(w http.ResponseWriter, r *http.Request) {
	conn, err := acceptWS(w, r)
	if err != nil {
		return
	}
	defer conn.CloseNow()
	ctx := r.Context()

	if s.cfg.Hub == nil {
		conn.Close(websocket.StatusPolicyViolation, "remote viewing disabled")
		return
	}
	if s.cfg.RemotePIN != "" {
		if !s.authenticate(ctx, conn) {
			_ = writeWS(ctx, conn, typeMessage{Type: "auth_fail"})
			conn.Close(websocket.StatusPolicyViolation, "authentication failed")
			return
		}
		if err := writeWS(ctx, conn, typeMessage{Type: "auth_ok"}); err != nil {
			return
		}
	}

	v := s.cfg.Hub.Join()
	defer v.Leave()
	observe.Logger(ctx).Info("remote: viewer joined", "viewers", s.cfg.Hub.Viewers())

	ctx = conn.CloseRead(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-v.Messages():
			if !ok {
				return
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(wctx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (s *Server) authenticate(ctx context.Context, conn *websocket.Conn) bool {
	ctx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return false
		}
		if typ != websocket.MessageText {
			continue
		}
		var msg authMessage
		if json.Unmarshal(data, &msg) != nil || msg.Cmd != "auth" {
			continue
		}
		return subtle.ConstantTimeCompare([]byte(msg.PIN), []byte(s.cfg.RemotePIN)) == 1
	}
}
