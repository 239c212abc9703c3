// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/proxtag/internal/domain/model"
	"github.com/okian/proxtag/internal/game"
	"github.com/okian/proxtag/pkg/logger"
)

// Websocket timing constants.
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// SubscribeDependencies defines the interface for snapshot streaming.
type SubscribeDependencies interface {
	RoomState(ctx context.Context, roomID string) (*model.RoomSnapshot, error)
	Subscribe(ctx context.Context, roomID string) (*game.Subscription, error)
}

// SubscribeHandler upgrades GET /rooms/{id}/subscribe to a websocket and
// streams room snapshots until the client disconnects.
type SubscribeHandler struct {
	deps     SubscribeDependencies
	upgrader websocket.Upgrader
	log      logger.Logger
}

// NewSubscribeHandler creates a new subscribe handler.
func NewSubscribeHandler(deps SubscribeDependencies) *SubscribeHandler {
	return &SubscribeHandler{
		deps: deps,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Companion apps connect from app-local origins.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: logger.Get().Named("subscribe"),
	}
}

// HandleSubscribe handles GET /rooms/{id}/subscribe requests.
func (h *SubscribeHandler) HandleSubscribe(w http.ResponseWriter, r *http.Request, roomID string) {
	const op = "api.subscribe"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	// Resolve the subscription before upgrading so an unknown room still
	// gets a proper HTTP error.
	sub, err := h.deps.Subscribe(r.Context(), roomID)
	if err != nil {
		writeGameError(w, op, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		sub.Close()
		// Upgrade already wrote an HTTP error to the client.
		h.log.Warn(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}

	// The stream runs in the handler goroutine; returning would cancel the
	// request context and tear the hijacked connection down.
	h.stream(r.Context(), conn, sub, roomID)
}

// stream owns the connection: it is the only goroutine writing to conn.
func (h *SubscribeHandler) stream(ctx context.Context, conn *websocket.Conn, sub *game.Subscription, roomID string) {
	defer func() {
		sub.Close()
		_ = conn.Close()
	}()

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Reader loop exists only to process control frames and detect close.
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Initial full snapshot so late joiners need no history.
	if snap, err := h.deps.RoomState(ctx, roomID); err == nil {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(snap); err != nil {
			return
		}
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-readerDone:
			return
		case snap, ok := <-sub.C:
			if !ok {
				// Room deleted; tell the client before closing.
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "room closed"))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(snap); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
