// Package hub is the websocket transport of the authority server. It
// authenticates connections, feeds inbound envelopes to the dispatcher and
// fans outbound messages out to the members of a space.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/OCAP2/helmsync/internal/cache"
	"github.com/OCAP2/helmsync/internal/config"
	"github.com/OCAP2/helmsync/internal/dispatcher"
	"github.com/OCAP2/helmsync/internal/handlers"
	"github.com/OCAP2/helmsync/internal/logging"
	"github.com/OCAP2/helmsync/internal/mission"
	"github.com/OCAP2/helmsync/pkg/core"
	"github.com/OCAP2/helmsync/pkg/streaming"
)

const instrumentationName = "github.com/OCAP2/helmsync/internal/hub"

// DefaultSpace is joined when the connection names none.
const DefaultSpace = "default"

// ErrUnauthenticated is returned when the session headers carry no user.
var ErrUnauthenticated = errors.New("missing user identity")

// Dispatcher routes decoded events. *dispatcher.Dispatcher implements it.
type Dispatcher interface {
	Dispatch(e dispatcher.Event) (any, error)
}

// Session is the per-space state the hub reports joins and leaves to.
// *handlers.Service implements it.
type Session interface {
	Snapshot(spaceID string) streaming.Outbound
	Disconnect(spaceID, userID string)
}

// Profiles reads economy profiles at join time.
type Profiles interface {
	Profile(ctx context.Context, userID string) (core.EconomyProfile, error)
}

// Dependencies holds everything the hub needs.
type Dependencies struct {
	Dispatcher   Dispatcher
	Session      Session
	Economy      Profiles
	ProfileCache *cache.ProfileCache
	Connections  *cache.SafeCounter
	LogManager   *logging.SlogManager
	Config       config.ServerConfig
}

// Hub owns every live connection, grouped by space.
type Hub struct {
	deps     Dependencies
	cfg      config.ServerConfig
	upgrader ws.Upgrader

	dropped metric.Int64Counter

	mu     sync.RWMutex
	spaces map[string]map[string]*conn // space -> conn id -> conn
}

var (
	_ handlers.Broadcaster = (*Hub)(nil)
	_ mission.Notifier     = (*Hub)(nil)
)

// New creates a hub. Zero config values fall back to the defaults.
func New(deps Dependencies) (*Hub, error) {
	if deps.ProfileCache == nil {
		deps.ProfileCache = cache.NewProfileCache()
	}
	if deps.Connections == nil {
		deps.Connections = &cache.SafeCounter{}
	}

	h := &Hub{
		deps:   deps,
		cfg:    withDefaults(deps.Config),
		spaces: make(map[string]map[string]*conn),
	}
	h.upgrader = ws.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}

	var err error
	h.dropped, err = otel.Meter(instrumentationName).Int64Counter(
		"hub.messages.dropped",
		metric.WithDescription("Outbound messages dropped because a connection outbox was full"),
	)
	if err != nil {
		return nil, err
	}
	return h, nil
}

func withDefaults(c config.ServerConfig) config.ServerConfig {
	if c.ReadLimit <= 0 {
		c.ReadLimit = 64 * 1024
	}
	if c.OutboxSize <= 0 {
		c.OutboxSize = 256
	}
	if c.RateLimit <= 0 {
		c.RateLimit = 40
	}
	if c.RateBurst <= 0 {
		c.RateBurst = int(c.RateLimit * 2)
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.PingInterval <= 0 || c.PingInterval >= c.PongWait {
		c.PingInterval = c.PongWait * 9 / 10
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.UserHeader == "" {
		c.UserHeader = "X-User-Id"
	}
	if c.RolesHeader == "" {
		c.RolesHeader = "X-User-Roles"
	}
	return c
}

func (h *Hub) logger() *slog.Logger {
	return h.deps.LogManager.Logger()
}

// Routes returns the HTTP surface of the server.
func (h *Hub) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthcheck", h.handleHealth)
	mux.HandleFunc("GET /api/v1/spaces/{space}/snapshot", h.handleSnapshot)
	mux.HandleFunc("GET /ws", h.ServeWS)
	return mux
}

func (h *Hub) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"connections": h.deps.Connections.Value(),
	})
}

func (h *Hub) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	space := r.PathValue("space")
	writeJSON(w, http.StatusOK, h.deps.Session.Snapshot(space).Payload)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// checkOrigin accepts non-browser clients, same-host pages and the
// configured origins. "*" allows any origin.
func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(strings.TrimSuffix(allowed, "/"), origin) {
			return true
		}
	}
	h.logger().Warn("Rejected websocket origin", "origin", origin)
	return false
}

// authenticate builds the actor from the headers set by the session issuer.
func (h *Hub) authenticate(r *http.Request) (core.Actor, error) {
	user := strings.TrimSpace(r.Header.Get(h.cfg.UserHeader))
	if user == "" {
		return core.Actor{}, ErrUnauthenticated
	}
	space := strings.TrimSpace(r.URL.Query().Get("space"))
	if space == "" {
		space = DefaultSpace
	}
	return core.Actor{UserID: user, SpaceID: space, Roles: ParseRoles(r.Header.Get(h.cfg.RolesHeader))}, nil
}

// ParseRoles splits a comma separated role header. An empty header is a guest.
func ParseRoles(header string) []string {
	var roles []string
	for _, part := range strings.Split(header, ",") {
		role := strings.ToLower(strings.TrimSpace(part))
		if role != "" {
			roles = append(roles, role)
		}
	}
	if len(roles) == 0 {
		roles = []string{core.RoleGuest}
	}
	return roles
}

// ServeWS upgrades the request and runs the connection until it closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	actor, err := h.authenticate(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	codec, err := streaming.CodecFor(r.URL.Query().Get("codec"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if p, err := h.deps.Economy.Profile(r.Context(), actor.UserID); err != nil {
		h.logger().Warn("Failed to load profile at join", "user", actor.UserID, "error", err)
	} else {
		h.deps.ProfileCache.Set(p)
		actor.Rank = p.Rank
	}

	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger().Debug("Websocket upgrade failed", "error", err)
		return
	}

	c := newConn(socket, actor, codec, h.cfg)
	h.register(c)
	c.push(h.encode(c, h.deps.Session.Snapshot(actor.SpaceID)))

	go h.writeLoop(c)
	h.readLoop(c)
	h.unregister(c)
}

func (h *Hub) register(c *conn) {
	h.mu.Lock()
	members, ok := h.spaces[c.actor.SpaceID]
	if !ok {
		members = make(map[string]*conn)
		h.spaces[c.actor.SpaceID] = members
	}
	members[c.id] = c
	h.mu.Unlock()

	h.deps.Connections.Inc()
	h.logger().InfoContext(c.logCtx, "Connection joined", "codec", c.codec.Name())
}

// unregister removes c and tears down the user's session state once their
// last connection in the space is gone.
func (h *Hub) unregister(c *conn) {
	c.shutdown(ws.CloseNormalClosure, "")

	h.mu.Lock()
	members := h.spaces[c.actor.SpaceID]
	delete(members, c.id)
	last := true
	for _, other := range members {
		if other.actor.UserID == c.actor.UserID {
			last = false
			break
		}
	}
	if len(members) == 0 {
		delete(h.spaces, c.actor.SpaceID)
	}
	h.mu.Unlock()

	h.deps.Connections.Dec()
	h.logger().InfoContext(c.logCtx, "Connection left")
	if last {
		h.deps.Session.Disconnect(c.actor.SpaceID, c.actor.UserID)
	}
}

func (h *Hub) members(spaceID string, keep func(*conn) bool) []*conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*conn, 0, len(h.spaces[spaceID]))
	for _, c := range h.spaces[spaceID] {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

// Broadcast sends msg to every connection in spaceID except exceptConn.
func (h *Hub) Broadcast(spaceID string, msg streaming.Outbound, exceptConn string) {
	h.deliver(h.members(spaceID, func(c *conn) bool { return c.id != exceptConn }), msg)
}

// SendUser sends msg to every connection userID has in spaceID.
func (h *Hub) SendUser(spaceID, userID string, msg streaming.Outbound) {
	h.deliver(h.members(spaceID, func(c *conn) bool { return c.actor.UserID == userID }), msg)
}

// Kick closes every connection userID has in spaceID and returns how many
// were closed.
func (h *Hub) Kick(spaceID, userID, reason string) int {
	targets := h.members(spaceID, func(c *conn) bool { return c.actor.UserID == userID })
	for _, c := range targets {
		c.shutdown(ws.ClosePolicyViolation, reason)
	}
	return len(targets)
}

// MissionUpdate forwards an assignment transition to its user.
func (h *Hub) MissionUpdate(a core.MissionAssignment, m core.Mission) {
	h.SendUser(a.SpaceID, a.UserID, streaming.Outbound{
		Type:    streaming.TypeMissionUpdate,
		Payload: streaming.MissionUpdatePayload{Assignment: a, Mission: &m},
	})
}

// EconomyUpdate refreshes the cached profile and tells its user.
func (h *Hub) EconomyUpdate(spaceID string, p core.EconomyProfile, adj core.Adjustment) {
	h.deps.ProfileCache.Set(p)
	h.SendUser(spaceID, p.UserID, streaming.Outbound{
		Type:    streaming.TypeEconomyUpdate,
		Payload: streaming.EconomyUpdatePayload{Profile: p, Adjustment: &adj},
	})
}

// Connections returns the number of live connections in spaceID.
func (h *Hub) Connections(spaceID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.spaces[spaceID])
}

// deliver encodes msg once per codec and queues it on every target.
func (h *Hub) deliver(targets []*conn, msg streaming.Outbound) {
	frames := make(map[string][]byte, 2)
	for _, c := range targets {
		data, ok := frames[c.codec.Name()]
		if !ok {
			data = h.encode(c, msg)
			frames[c.codec.Name()] = data
		}
		if data != nil && !c.push(data) {
			h.dropped.Add(context.Background(), 1, metric.WithAttributes(attribute.String("type", msg.Type)))
			h.logger().DebugContext(c.logCtx, "Outbox full, dropping message", "type", msg.Type)
		}
	}
}

func (h *Hub) encode(c *conn, msg streaming.Outbound) []byte {
	data, err := c.codec.Encode(msg)
	if err != nil {
		h.logger().Error("Failed to encode outbound message", "type", msg.Type, "codec", c.codec.Name(), "error", err)
		return nil
	}
	return data
}

// Close shuts every connection down. ServeWS goroutines finish on their own.
func (h *Hub) Close() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, members := range h.spaces {
		for _, c := range members {
			c.shutdown(ws.CloseGoingAway, "server shutting down")
		}
	}
}
