package hub

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/OCAP2/helmsync/internal/channel"
	"github.com/OCAP2/helmsync/internal/config"
	"github.com/OCAP2/helmsync/internal/dispatcher"
	"github.com/OCAP2/helmsync/internal/handlers"
	"github.com/OCAP2/helmsync/internal/logging"
	"github.com/OCAP2/helmsync/internal/parser"
	"github.com/OCAP2/helmsync/pkg/core"
	"github.com/OCAP2/helmsync/pkg/streaming"
)

// conn is one websocket. The read loop runs on the HTTP handler goroutine,
// all writes happen on writeLoop.
type conn struct {
	id      string
	actor   core.Actor
	codec   streaming.Codec
	socket  *ws.Conn
	out     *channel.Buffered[[]byte]
	limiter *rate.Limiter
	// logCtx tags log records with the connection's identity.
	logCtx context.Context

	done      chan struct{}
	closeOnce sync.Once
	closeCode int
	closeMsg  string
}

func newConn(socket *ws.Conn, actor core.Actor, codec streaming.Codec, cfg config.ServerConfig) *conn {
	id := uuid.NewString()
	logCtx := logging.ContextWith(context.Background(),
		slog.String("space", actor.SpaceID), slog.String("user", actor.UserID), slog.String("conn", id))
	return &conn{
		id:      id,
		actor:   actor,
		codec:   codec,
		socket:  socket,
		out:     channel.NewBuffered[[]byte](cfg.OutboxSize),
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		logCtx:  logCtx,
		done:    make(chan struct{}),
	}
}

// push queues a frame without blocking. It reports false when the outbox
// is full.
func (c *conn) push(data []byte) bool {
	if data == nil {
		return true
	}
	select {
	case <-c.done:
		return true
	default:
	}
	return c.out.TrySend(data)
}

// shutdown asks writeLoop to send a close frame and drop the socket.
func (c *conn) shutdown(code int, reason string) {
	c.closeOnce.Do(func() {
		c.closeCode = code
		c.closeMsg = reason
		close(c.done)
	})
}

func (c *conn) messageType() int {
	if c.codec.Binary() {
		return ws.BinaryMessage
	}
	return ws.TextMessage
}

func (h *Hub) writeLoop(c *conn) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.socket.Close()
	}()

	for {
		select {
		case <-c.done:
			msg := ws.FormatCloseMessage(c.closeCode, c.closeMsg)
			_ = c.socket.WriteControl(ws.CloseMessage, msg, time.Now().Add(h.cfg.WriteWait))
			return
		case data := <-c.out.Receive():
			if err := c.socket.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait)); err != nil {
				c.shutdown(ws.CloseAbnormalClosure, "")
				return
			}
			if err := c.socket.WriteMessage(c.messageType(), data); err != nil {
				h.logger().DebugContext(c.logCtx, "Websocket write failed", "error", err)
				c.shutdown(ws.CloseAbnormalClosure, "")
				return
			}
		case <-ticker.C:
			if err := c.socket.WriteControl(ws.PingMessage, nil, time.Now().Add(h.cfg.WriteWait)); err != nil {
				c.shutdown(ws.CloseAbnormalClosure, "")
				return
			}
		}
	}
}

func (h *Hub) readLoop(c *conn) {
	c.socket.SetReadLimit(h.cfg.ReadLimit)
	_ = c.socket.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	c.socket.SetPongHandler(func(string) error {
		return c.socket.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})

	for {
		_, data, err := c.socket.ReadMessage()
		if err != nil {
			if ws.IsUnexpectedCloseError(err, ws.CloseGoingAway, ws.CloseNormalClosure, ws.CloseNoStatusReceived) {
				h.logger().DebugContext(c.logCtx, "Websocket read failed", "error", err)
			}
			return
		}
		_ = c.socket.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
		h.handle(c, data)
	}
}

// handle dispatches one inbound frame and answers the sender directly.
func (h *Hub) handle(c *conn, data []byte) {
	env, err := c.codec.Decode(data)
	if err != nil {
		h.reply(c, streaming.Outbound{
			Type:    streaming.TypeError,
			Payload: handlers.ErrorPayload(fmt.Errorf("%w: %v", parser.ErrBadPayload, err), ""),
		})
		return
	}
	if !c.limiter.Allow() {
		h.reply(c, streaming.Outbound{
			Type: streaming.TypeError,
			Payload: streaming.ErrorPayload{
				Message: "rate limit exceeded",
				Code:    streaming.CodeRateLimit,
				For:     env.Type,
			},
		})
		return
	}

	result, err := h.deps.Dispatcher.Dispatch(dispatcher.Event{
		Type:      env.Type,
		Payload:   env.Payload,
		Actor:     c.actor,
		ConnID:    c.id,
		Timestamp: time.Now(),
		Unmarshal: c.codec.Unmarshal,
	})
	if err != nil {
		h.reply(c, streaming.Outbound{Type: streaming.TypeError, Payload: handlers.ErrorPayload(err, env.Type)})
		return
	}
	if out, ok := result.(streaming.Outbound); ok {
		h.reply(c, out)
	}
}

func (h *Hub) reply(c *conn, msg streaming.Outbound) {
	if !c.push(h.encode(c, msg)) {
		h.logger().DebugContext(c.logCtx, "Outbox full, dropping reply", "type", msg.Type)
	}
}
