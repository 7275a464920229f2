package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcoot/wordbomb/internal/api/apierr"
	"github.com/mcoot/wordbomb/internal/api/request"
	"github.com/mcoot/wordbomb/internal/api/response"
	"github.com/mcoot/wordbomb/internal/broadcast"
	"github.com/mcoot/wordbomb/internal/model"
	"github.com/mcoot/wordbomb/internal/services/session"
)

// client is one websocket connection. At most one player is bound to it;
// player is only touched by the read goroutine.
type client struct {
	id      string
	conn    *websocket.Conn
	session Session
	sub     *broadcast.Subscription
	send    chan []byte
	done    chan struct{}
	logger  *slog.Logger
	player  *model.Player
}

func (c *client) readPump(ctx context.Context) {
	defer func() {
		close(c.done)
		c.session.Unsubscribe(c.sub)
		c.leaveOnDisconnect(ctx)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read failed", slog.Any("error", err))
			}
			return
		}

		var msg request.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.replyError(apierr.NewInvalidRequestError("malformed message"))
			continue
		}
		c.handle(ctx, msg)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			if err := c.write(websocket.TextMessage, frame); err != nil {
				return
			}

		case e, ok := <-c.sub.C:
			if !ok {
				// Dropped for falling behind, or the session closed
				_ = c.write(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "resubscribe for a new snapshot"))
				return
			}
			frame, err := response.EventFrame(e)
			if err != nil {
				c.logger.Error("failed to encode event", slog.String("type", string(e.Type)), slog.Any("error", err))
				continue
			}
			if err := c.write(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}

func (c *client) write(messageType int, data []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, data)
}

func (c *client) handle(ctx context.Context, msg request.Message) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	var err error
	switch msg.Type {
	case request.TypeJoinGame:
		err = c.joinGame(ctx, msg.Data)
	case request.TypeJoinTeam:
		err = c.joinTeam(ctx, msg.Data)
	case request.TypeLeaveGame:
		err = c.leaveGame(ctx, msg.Data)
	case request.TypeSubmitWord:
		err = c.submitWord(ctx, msg.Data)
	case request.TypeGetState:
		err = c.getState(ctx)
	default:
		err = apierr.NewInvalidRequestError("unknown message type: " + msg.Type)
	}
	if err == nil {
		return
	}

	if session.IsProtocolError(err) {
		c.logger.Debug("request rejected", slog.String("type", msg.Type), slog.Any("error", err))
	} else {
		c.logger.Warn("request failed", slog.String("type", msg.Type), slog.Any("error", err))
	}
	c.replyError(err)
}

func (c *client) joinGame(ctx context.Context, raw json.RawMessage) error {
	req, err := decode[request.JoinGameRequest](raw)
	if err != nil {
		return err
	}
	if c.player != nil {
		return apierr.NewInvalidRequestError("connection has already joined as " + c.player.Name)
	}

	p, err := c.session.Join(ctx, req.Name)
	if err != nil {
		return err
	}
	c.player = &p
	c.logger.Info("player joined", slog.String("player_id", string(p.ID)), slog.String("name", p.Name))
	return c.replyFrame(response.JoinedFrame(p))
}

func (c *client) joinTeam(ctx context.Context, raw json.RawMessage) error {
	req, err := decode[request.JoinTeamRequest](raw)
	if err != nil {
		return err
	}
	p, err := c.bound(req.Name)
	if err != nil {
		return err
	}
	return c.session.Assign(ctx, p.ID, req.Team)
}

func (c *client) leaveGame(ctx context.Context, raw json.RawMessage) error {
	req, err := decode[request.LeaveGameRequest](raw)
	if err != nil {
		return err
	}
	p, err := c.bound(req.Name)
	if err != nil {
		return err
	}
	if err := c.session.Leave(ctx, p.ID); err != nil {
		return err
	}
	c.player = nil
	return nil
}

func (c *client) submitWord(ctx context.Context, raw json.RawMessage) error {
	req, err := decode[request.SubmitWordRequest](raw)
	if err != nil {
		return err
	}
	p, err := c.bound(req.Player)
	if err != nil {
		return err
	}
	// The outcome reaches everyone, this caller included, as a valid_word or invalid_word event
	_, err = c.session.Submit(ctx, p.ID, req.Team, req.Word)
	return err
}

func (c *client) getState(ctx context.Context) error {
	snap, err := c.session.Snapshot(ctx)
	if err != nil {
		return err
	}
	return c.replyFrame(response.SnapshotFrame(snap))
}

// bound returns the connection's player, checking name against it when set
func (c *client) bound(name string) (*model.Player, error) {
	if c.player == nil {
		return nil, model.ErrNotJoined
	}
	if name = strings.TrimSpace(name); name != "" && !strings.EqualFold(name, c.player.Name) {
		return nil, model.ErrPlayerMismatch
	}
	return c.player, nil
}

func (c *client) leaveOnDisconnect(ctx context.Context) {
	if c.player == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	err := c.session.Leave(ctx, c.player.ID)
	switch {
	case err == nil:
		c.logger.Info("player left on disconnect", slog.String("name", c.player.Name))
	case errors.Is(err, model.ErrPlayerNotFound), errors.Is(err, model.ErrSessionClosed):
	default:
		c.logger.Warn("failed to remove player on disconnect", slog.String("name", c.player.Name), slog.Any("error", err))
	}
	c.player = nil
}

func (c *client) replyError(err error) {
	_ = c.replyFrame(response.ErrorFrame(err))
}

// replyFrame queues a frame for this caller only
func (c *client) replyFrame(frame []byte, err error) error {
	if err != nil {
		return err
	}
	select {
	case c.send <- frame:
	default:
		c.logger.Warn("reply dropped - client buffer full")
	}
	return nil
}

func decode[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, apierr.NewInvalidRequestError("missing data")
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, apierr.NewInvalidRequestError("malformed data")
	}
	return v, nil
}
