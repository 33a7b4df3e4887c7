// Package client is the participant side of the websocket. It keeps one
// connection to the authority server alive and carries pose, control and
// claim messages upstream.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/OCAP2/helmsync/internal/clientloop"
	"github.com/OCAP2/helmsync/pkg/core"
	"github.com/OCAP2/helmsync/pkg/streaming"
)

const (
	sendChSize = 1024
	writeWait  = 10 * time.Second
	dialWait   = 10 * time.Second
)

var (
	// ErrSendBufferFull is returned when the outbound queue cannot take more.
	ErrSendBufferFull = errors.New("send buffer full")
	// ErrKicked is returned by Run when the server closed the connection
	// with a policy violation. Run does not reconnect after it.
	ErrKicked = errors.New("kicked by server")
)

// Config holds connection settings.
type Config struct {
	URL          string
	UserID       string
	Roles        string
	Space        string
	Codec        string
	UserHeader   string
	RolesHeader  string
	ReconnectMin time.Duration
	ReconnectMax time.Duration
}

// Message is one inbound envelope.
type Message struct {
	Type    string
	Payload []byte
	codec   streaming.Codec
}

// Decode unmarshals the payload with the connection's codec.
func (m Message) Decode(v any) error {
	return m.codec.Unmarshal(m.Payload, v)
}

// Handler receives inbound messages on the read goroutine.
type Handler func(Message)

// Client is a reconnecting websocket connection.
type Client struct {
	cfg     Config
	codec   streaming.Codec
	handler Handler
	logger  *slog.Logger
	sendCh  chan []byte

	mu        sync.Mutex
	connected bool
}

var _ clientloop.Uplink = (*Client)(nil)

// New validates cfg and returns an idle client. Call Run to connect.
func New(cfg Config, handler Handler, logger *slog.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("server url is required")
	}
	if cfg.UserID == "" {
		return nil, errors.New("user id is required")
	}
	codec, err := streaming.CodecFor(cfg.Codec)
	if err != nil {
		return nil, err
	}
	if cfg.UserHeader == "" {
		cfg.UserHeader = "X-User-Id"
	}
	if cfg.RolesHeader == "" {
		cfg.RolesHeader = "X-User-Roles"
	}
	if cfg.ReconnectMin <= 0 {
		cfg.ReconnectMin = time.Second
	}
	if cfg.ReconnectMax < cfg.ReconnectMin {
		cfg.ReconnectMax = 30 * time.Second
	}
	if handler == nil {
		handler = func(Message) {}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:     cfg,
		codec:   codec,
		handler: handler,
		logger:  logger.With("component", "client"),
		sendCh:  make(chan []byte, sendChSize),
	}, nil
}

// Connected reports whether a socket is currently open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

// Send queues an envelope. It never blocks; queued messages survive a
// reconnect.
func (c *Client) Send(msgType string, payload any) error {
	data, err := c.codec.Encode(streaming.Outbound{Type: msgType, Payload: payload})
	if err != nil {
		return fmt.Errorf("encode %s: %w", msgType, err)
	}
	select {
	case c.sendCh <- data:
		return nil
	default:
		return fmt.Errorf("%s: %w", msgType, ErrSendBufferFull)
	}
}

// SendPose pushes the local pose as a vessel:update.
func (c *Client) SendPose(_ context.Context, pose core.PoseUpdate) error {
	return c.Send(streaming.TypeVesselUpdate, pose)
}

// SendControl sends a control intent.
func (c *Client) SendControl(p streaming.ControlPayload) error {
	return c.Send(streaming.TypeVesselControl, p)
}

// Claim claims or releases a station.
func (c *Client) Claim(st core.Station, action string) error {
	return c.Send(streaming.TypeVesselStation, streaming.StationPayload{Station: st, Action: action})
}

// Run connects and keeps reconnecting with exponential backoff until ctx is
// done or the server kicks the user.
func (c *Client) Run(ctx context.Context) error {
	backoff := c.cfg.ReconnectMin
	for attempt := 1; ; attempt++ {
		conn, err := c.dial(ctx)
		if err == nil {
			backoff = c.cfg.ReconnectMin
			attempt = 0
			err = c.serve(ctx, conn)
			if errors.Is(err, ErrKicked) {
				return err
			}
		}
		if ctx.Err() != nil {
			return nil
		}
		c.logger.Warn("Websocket connection lost, reconnecting", "attempt", attempt, "backoff", backoff, "error", err)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > c.cfg.ReconnectMax {
			backoff = c.cfg.ReconnectMax
		}
	}
}

func (c *Client) dial(ctx context.Context) (*ws.Conn, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	q := u.Query()
	if c.cfg.Space != "" {
		q.Set("space", c.cfg.Space)
	}
	q.Set("codec", c.codec.Name())
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set(c.cfg.UserHeader, c.cfg.UserID)
	if c.cfg.Roles != "" {
		header.Set(c.cfg.RolesHeader, c.cfg.Roles)
	}

	dialer := ws.Dialer{HandshakeTimeout: dialWait}
	conn, resp, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// serve runs one connection until it breaks or ctx is done.
func (c *Client) serve(ctx context.Context, conn *ws.Conn) error {
	c.setConnected(true)
	defer c.setConnected(false)
	c.logger.Info("Websocket connected", "url", c.cfg.URL, "space", c.cfg.Space)

	connCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.writeLoop(connCtx, conn)
	}()
	go func() {
		defer wg.Done()
		<-connCtx.Done()
		if ctx.Err() != nil {
			msg := ws.FormatCloseMessage(ws.CloseNormalClosure, "")
			_ = conn.WriteControl(ws.CloseMessage, msg, time.Now().Add(writeWait))
		}
		_ = conn.Close()
	}()

	err := c.readLoop(conn)
	cancel()
	wg.Wait()
	return err
}

func (c *Client) writeLoop(ctx context.Context, conn *ws.Conn) {
	kind := ws.TextMessage
	if c.codec.Binary() {
		kind = ws.BinaryMessage
	}
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-c.sendCh:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("WebSocket SetWriteDeadline error", "error", err)
				_ = conn.Close()
				return
			}
			if err := conn.WriteMessage(kind, data); err != nil {
				c.logger.Warn("WebSocket write error", "error", err)
				_ = conn.Close()
				return
			}
		}
	}
}

func (c *Client) readLoop(conn *ws.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			var closeErr *ws.CloseError
			if errors.As(err, &closeErr) && closeErr.Code == ws.ClosePolicyViolation {
				c.logger.Warn("Kicked by server", "reason", closeErr.Text)
				return fmt.Errorf("%w: %s", ErrKicked, closeErr.Text)
			}
			return err
		}
		env, err := c.codec.Decode(data)
		if err != nil {
			c.logger.Debug("Undecodable message", "error", err)
			continue
		}
		c.handler(Message{Type: env.Type, Payload: env.Payload, codec: c.codec})
	}
}
