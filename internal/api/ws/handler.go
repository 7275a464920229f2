package ws

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mcoot/wordbomb/internal/api/response"
	"github.com/mcoot/wordbomb/internal/broadcast"
	"github.com/mcoot/wordbomb/internal/model"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum inbound message size
	maxMessageSize = 4096

	// Buffer size for replies to the caller
	sendBufferSize = 16

	// Bound on a single command sent to the session
	commandTimeout = 5 * time.Second
)

// Session is the part of the session runner a websocket connection drives
type Session interface {
	Join(ctx context.Context, name string) (model.Player, error)
	Assign(ctx context.Context, id model.PlayerID, target string) error
	Leave(ctx context.Context, id model.PlayerID) error
	Submit(ctx context.Context, id model.PlayerID, team, word string) (model.Outcome, error)
	Snapshot(ctx context.Context) (model.Snapshot, error)
	Subscribe(ctx context.Context, id, kind string) (model.Snapshot, *broadcast.Subscription, error)
	Unsubscribe(sub *broadcast.Subscription)
}

// Handler upgrades requests to websocket connections bound to one session
type Handler struct {
	session  Session
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a websocket handler
func NewHandler(session Session, logger *slog.Logger) *Handler {
	return &Handler{
		session: session,
		logger:  logger.With(slog.String("component", "ws")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// ServeHTTP handles GET /ws
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error
		h.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}

	c := &client{
		id:      uuid.NewString(),
		conn:    conn,
		session: h.session,
		send:    make(chan []byte, sendBufferSize),
		done:    make(chan struct{}),
	}
	c.logger = h.logger.With(slog.String("conn_id", c.id))

	ctx := context.WithoutCancel(r.Context())
	snap, sub, err := h.session.Subscribe(ctx, c.id, "ws")
	if err != nil {
		c.logger.Warn("subscribe failed", slog.Any("error", err))
		if frame, ferr := response.ErrorFrame(err); ferr == nil {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.TextMessage, frame)
		}
		_ = conn.Close()
		return
	}
	c.sub = sub

	// The snapshot goes out before the writer starts so it precedes every event
	frame, err := response.SnapshotFrame(snap)
	if err == nil {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		err = conn.WriteMessage(websocket.TextMessage, frame)
	}
	if err != nil {
		c.logger.Warn("failed to send snapshot", slog.Any("error", err))
		h.session.Unsubscribe(sub)
		_ = conn.Close()
		return
	}

	c.logger.Info("websocket connected", slog.Uint64("revision", snap.Revision))
	start := time.Now()

	go c.writePump()
	c.readPump(ctx)

	c.logger.Info("websocket disconnected", slog.Duration("connection_duration", time.Since(start)))
}
