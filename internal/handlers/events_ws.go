package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/sbjang123456/electron-ssh/internal/logutil"
)

const eventWriteTimeout = 10 * time.Second

// clientMessage is an inbound frame on the event websocket. Input comes
// either as keystroke text in data, which JSON limits to valid UTF-8, or
// base64-encoded in data_b64 for arbitrary bytes. data_b64 wins when both
// are set; either way the bytes are forwarded unmodified.
type clientMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Data      string `json:"data,omitempty"`
	DataB64   []byte `json:"data_b64,omitempty"`
	Cols      int    `json:"cols,omitempty"`
	Rows      int    `json:"rows,omitempty"`
}

func (m clientMessage) input() []byte {
	if len(m.DataB64) > 0 {
		return m.DataB64
	}
	return []byte(m.Data)
}

// EventsWS streams every session notification to the client and accepts
// input and resize frames in the other direction.
//
// Outbound frames are sshsession.Notification values:
//
//	{"type":"data","session_id":"...","data":"<base64>"}
//	{"type":"closed","session_id":"..."}
//	{"type":"error","session_id":"...","message":"..."}
//
// A client that cannot keep up is disconnected with status 1013 and is
// expected to reconnect and repaint from the scrollback endpoint.
func (a *API) EventsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: a.OriginPatterns,
	})
	if err != nil {
		log.Printf("[ws] accept failed: %v", err)
		return
	}
	defer conn.CloseNow()

	// JSON escaping can double a payload.
	conn.SetReadLimit(2*MaxInputMessageSize + 1024)

	sub := a.Hub.Subscribe()
	defer a.Hub.Unsubscribe(sub)
	log.Printf("[ws] event client connected from %s (subscribers=%d)", logutil.SanitizeForLog(r.RemoteAddr), a.Hub.Len())

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go func() {
		defer cancel()
		a.readClientMessages(ctx, conn)
	}()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case n, ok := <-sub.C():
			if !ok {
				if sub.Dropped() {
					log.Printf("[ws] event client %s fell behind, closing", logutil.SanitizeForLog(r.RemoteAddr))
					conn.Close(websocket.StatusTryAgainLater, "event stream fell behind")
				} else {
					conn.Close(websocket.StatusGoingAway, "server shutting down")
				}
				return
			}
			payload, err := json.Marshal(n)
			if err != nil {
				log.Printf("[ws] marshal notification: %v", err)
				continue
			}
			writeCtx, writeCancel := context.WithTimeout(ctx, eventWriteTimeout)
			err = conn.Write(writeCtx, websocket.MessageText, payload)
			writeCancel()
			if err != nil {
				return
			}
		}
	}
}

func (a *API) readClientMessages(ctx context.Context, conn *websocket.Conn) {
	limiter := newTokenBucket(inputRateBurst, inputRateLimit)
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		if !limiter.allow() {
			continue
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		switch msg.Type {
		case "input":
			data := msg.input()
			if len(data) == 0 {
				continue
			}
			if len(data) > MaxInputMessageSize {
				log.Printf("[ws] input for session %s too large: %d bytes", logutil.SanitizeForLog(msg.SessionID), len(data))
				continue
			}
			a.Sessions.Send(msg.SessionID, data)
		case "resize":
			if cols, rows, ok := clampTermSize(msg.Cols, msg.Rows); ok {
				a.Sessions.Resize(msg.SessionID, cols, rows)
			}
		}
	}
}
