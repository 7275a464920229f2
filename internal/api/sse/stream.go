package sse

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mcoot/wordbomb/internal/api/apierr"
	"github.com/mcoot/wordbomb/internal/api/response"
	"github.com/mcoot/wordbomb/internal/broadcast"
	"github.com/mcoot/wordbomb/internal/model"
)

// Time between keepalive comments
const pingPeriod = 15 * time.Second

// Session is the part of the session runner a read-only stream needs
type Session interface {
	Subscribe(ctx context.Context, id, kind string) (model.Snapshot, *broadcast.Subscription, error)
	Unsubscribe(sub *broadcast.Subscription)
}

// Handler streams session events as server-sent events
type Handler struct {
	session Session
	logger  *slog.Logger
}

// NewHandler creates an SSE handler
func NewHandler(session Session, logger *slog.Logger) *Handler {
	return &Handler{
		session: session,
		logger:  logger.With(slog.String("component", "sse")),
	}
}

// ServeHTTP handles GET /events. The first message is a snapshot; every later one is an
// event with a greater revision, carried as the SSE id.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Check if SSE is supported
	flusher, ok := w.(http.Flusher)
	if !ok {
		apierr.WriteError(w, apierr.NewInternalError())
		return
	}

	id := uuid.NewString()
	snap, sub, err := h.session.Subscribe(r.Context(), id, "sse")
	if err != nil {
		apierr.WriteError(w, err)
		return
	}
	defer h.session.Unsubscribe(sub)

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	logger := h.logger.With(slog.String("conn_id", id))
	logger.Info("sse client connected", slog.Uint64("revision", snap.Revision))
	start := time.Now()
	defer func() {
		logger.Info("sse client disconnected", slog.Duration("connection_duration", time.Since(start)))
	}()

	frame, err := response.SnapshotFrame(snap)
	if err != nil {
		logger.Error("failed to encode snapshot", slog.Any("error", err))
		return
	}
	if _, err := w.Write(formatSSEMessage(response.FrameSnapshot, snap.Revision, frame)); err != nil {
		return
	}
	flusher.Flush()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-sub.C:
			if !ok {
				// Dropped for falling behind, or the session closed
				return
			}
			data, err := response.EventFrame(e)
			if err != nil {
				logger.Error("failed to encode event", slog.String("type", string(e.Type)), slog.Any("error", err))
				continue
			}
			if _, err := w.Write(formatSSEMessage(string(e.Type), e.Revision, data)); err != nil {
				return
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// formatSSEMessage formats an SSE message with event name, id and data.
// Multi-line data gets a "data: " prefix on each line.
func formatSSEMessage(eventName string, revision uint64, data []byte) []byte {
	var b strings.Builder
	b.WriteString("event: " + eventName + "\n")
	if revision > 0 {
		b.WriteString("id: " + strconv.FormatUint(revision, 10) + "\n")
	}
	for _, line := range splitLines(string(data)) {
		b.WriteString("data: " + line + "\n")
	}
	b.WriteString("\n")
	return []byte(b.String())
}

// splitLines splits a string into lines, dropping carriage returns
func splitLines(s string) []string {
	lines := strings.Split(strings.ReplaceAll(s, "\r", ""), "\n")
	if len(lines) > 1 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
