// Package handlers implements the authority server's inbound message
// handlers. Every handler resolves the actor's vessel, checks permissions
// and mutates the record inside the registry's per-vessel critical section.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/OCAP2/helmsync/internal/cache"
	"github.com/OCAP2/helmsync/internal/config"
	"github.com/OCAP2/helmsync/internal/controls"
	"github.com/OCAP2/helmsync/internal/dispatcher"
	"github.com/OCAP2/helmsync/internal/journal"
	"github.com/OCAP2/helmsync/internal/logging"
	"github.com/OCAP2/helmsync/internal/parser"
	"github.com/OCAP2/helmsync/internal/reconcile"
	"github.com/OCAP2/helmsync/internal/registry"
	"github.com/OCAP2/helmsync/pkg/core"
	"github.com/OCAP2/helmsync/pkg/streaming"
)

var (
	// ErrNoVessel is returned when the actor crews no vessel in the space.
	ErrNoVessel     = errors.New("no vessel for user")
	ErrNotConnected = errors.New("user not connected")
)

// Broadcaster delivers outbound messages. The hub implements it.
type Broadcaster interface {
	// Broadcast sends msg to every connection in spaceID except exceptConn.
	Broadcast(spaceID string, msg streaming.Outbound, exceptConn string)
	SendUser(spaceID, userID string, msg streaming.Outbound)
	// Kick closes every connection userID has in spaceID.
	Kick(spaceID, userID, reason string) int
}

// Persister writes vessel records. worker.Manager implements it.
type Persister interface {
	MarkDirty(v *core.Vessel)
	PersistNow(ctx context.Context, v *core.Vessel) error
	Forget(ctx context.Context, vesselID string) error
}

// Journal records admin actions.
type Journal interface {
	Record(e journal.Entry) error
}

// Ports resolves positions to registered ports.
type Ports interface {
	PortAt(pos core.Position) (core.Port, bool)
}

// Profiles reads economy profiles.
type Profiles interface {
	Profile(ctx context.Context, userID string) (core.EconomyProfile, error)
}

// Missions creates assignments.
type Missions interface {
	Assign(ctx context.Context, actor core.Actor, vesselID, missionID string) (core.MissionAssignment, core.Mission, error)
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Registry     *registry.Registry
	Ports        Ports
	Economy      Profiles
	Missions     Missions
	ProfileCache *cache.ProfileCache
	Persist      Persister
	Journal      Journal
	Broadcast    Broadcaster
	Parser       *parser.Parser
	LogManager   *logging.SlogManager
	Rules        config.RulesConfig
	Now          func() time.Time
}

// Service provides the handler methods.
type Service struct {
	deps     Dependencies
	controls controls.Rules
	pose     reconcile.Rules

	mu    sync.Mutex
	modes map[string]core.UserMode // space/user -> mode
}

// NewService creates a new handler service
func NewService(deps Dependencies) *Service {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Parser == nil {
		deps.Parser = parser.NewParser(deps.LogManager.Logger())
	}
	if deps.ProfileCache == nil {
		deps.ProfileCache = cache.NewProfileCache()
	}

	cr := controls.DefaultRules()
	if deps.Rules.DepartureThrottle > 0 {
		cr.DepartureThrottle = deps.Rules.DepartureThrottle
	}
	if deps.Rules.DamageThrottleLimit > 0 {
		cr.DamageThrottleLimit = deps.Rules.DamageThrottleLimit
	}

	pr := reconcile.DefaultRules()
	if deps.Rules.StaleAfter > 0 {
		pr.StaleAfter = deps.Rules.StaleAfter
	}
	if deps.Rules.DerivedSpeedMin > 0 {
		pr.DerivedSpeedMin = deps.Rules.DerivedSpeedMin
	}
	if deps.Rules.ReportedSpeedMax > 0 {
		pr.ReportedSpeedMax = deps.Rules.ReportedSpeedMax
	}

	return &Service{
		deps:     deps,
		controls: cr,
		pose:     pr,
		modes:    make(map[string]core.UserMode),
	}
}

// RegisterHandlers registers all inbound events with the dispatcher. Every
// handler is synchronous so denials reach the sender before anything else.
func (s *Service) RegisterHandlers(d *dispatcher.Dispatcher) {
	d.Register(streaming.TypeVesselControl, s.handleControl, dispatcher.Logged())
	d.Register(streaming.TypeVesselUpdate, s.handleUpdate)
	d.Register(streaming.TypeVesselHelm, s.handleHelm, dispatcher.Logged())
	d.Register(streaming.TypeVesselStation, s.handleStation, dispatcher.Logged())
	d.Register(streaming.TypeUserMode, s.handleMode, dispatcher.Logged())
	d.Register(streaming.TypeMissionAssign, s.handleMissionAssign, dispatcher.Logged())

	d.Register(streaming.TypeAdminVesselStop, s.handleAdminStop, dispatcher.Logged())
	d.Register(streaming.TypeAdminVesselMove, s.handleAdminMove, dispatcher.Logged())
	d.Register(streaming.TypeAdminVesselDrop, s.handleAdminRemove, dispatcher.Logged())
	d.Register(streaming.TypeAdminVesselMode, s.handleAdminMode, dispatcher.Logged())
	d.Register(streaming.TypeAdminStation, s.handleAdminStation, dispatcher.Logged())
	d.Register(streaming.TypeAdminKick, s.handleAdminKick, dispatcher.Logged())
}

func (s *Service) logger() *slog.Logger {
	return s.deps.LogManager.Logger()
}

// resolve returns the space and the vessel id an event targets. An explicit
// id wins; otherwise the actor's own vessel is used.
func (s *Service) resolve(actor core.Actor, explicit string) (*registry.Space, string, error) {
	space := s.deps.Registry.Space(actor.SpaceID)
	if explicit != "" {
		return space, explicit, nil
	}
	id, ok := space.VesselFor(actor.UserID)
	if !ok {
		return space, "", fmt.Errorf("%s: %w", actor.UserID, ErrNoVessel)
	}
	return space, id, nil
}

// rank returns the freshest rank known for the actor.
func (s *Service) rank(actor core.Actor) int {
	if p, ok := s.deps.ProfileCache.Get(actor.UserID); ok {
		return p.Rank
	}
	return actor.Rank
}

func (s *Service) profile(ctx context.Context, userID string) (core.EconomyProfile, error) {
	p, err := s.deps.Economy.Profile(ctx, userID)
	if err != nil {
		return p, err
	}
	s.deps.ProfileCache.Set(p)
	return p, nil
}

func (s *Service) update(vessels ...*core.Vessel) streaming.Outbound {
	m := make(map[string]*core.Vessel, len(vessels))
	for _, v := range vessels {
		m[v.ID] = v
	}
	return streaming.Outbound{
		Type: streaming.TypeSimulationUpdate,
		Payload: streaming.SimulationUpdate{
			Vessels:   m,
			Partial:   true,
			Timestamp: s.deps.Now().UnixMilli(),
		},
	}
}

func (s *Service) broadcast(spaceID string, msg streaming.Outbound, exceptConn string) {
	if s.deps.Broadcast != nil {
		s.deps.Broadcast.Broadcast(spaceID, msg, exceptConn)
	}
}

func (s *Service) stationUpdate(spaceID, vesselID string, st core.Station, userID string) {
	s.broadcast(spaceID, streaming.Outbound{
		Type:    streaming.TypeStationUpdate,
		Payload: streaming.StationUpdatePayload{VesselID: vesselID, Station: st, UserID: userID},
	}, "")
}

// Snapshot builds the full simulation:update sent to a joining connection.
func (s *Service) Snapshot(spaceID string) streaming.Outbound {
	return streaming.Outbound{
		Type: streaming.TypeSimulationUpdate,
		Payload: streaming.SimulationUpdate{
			Vessels:   s.deps.Registry.Space(spaceID).Snapshot(),
			Timestamp: s.deps.Now().UnixMilli(),
		},
	}
}

// Moor records every vessel of spaceID that lies still inside a port.
// It runs once after vessels are loaded.
func (s *Service) Moor(spaceID string) int {
	space := s.deps.Registry.Space(spaceID)
	n := 0
	for _, v := range space.Vessels() {
		if s.moor(space, &v) {
			n++
		}
	}
	return n
}

func (s *Service) moor(space *registry.Space, v *core.Vessel) bool {
	if s.deps.Ports == nil {
		return false
	}
	port, ok := s.deps.Ports.PortAt(v.Position)
	if ok && v.Velocity.Horizontal() < s.deps.Rules.MooredSpeed {
		space.SetMoored(v.ID, port.ID)
		return true
	}
	space.SetMoored(v.ID, "")
	return false
}

func modeKey(spaceID, userID string) string {
	return spaceID + "/" + userID
}

// UserMode returns the participation mode of userID in spaceID.
func (s *Service) UserMode(spaceID, userID string) core.UserMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.modes[modeKey(spaceID, userID)]; ok {
		return m
	}
	return core.UserModePlayer
}

func (s *Service) setMode(spaceID, userID string, m core.UserMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modes[modeKey(spaceID, userID)] = m
}

// Disconnect tears down everything userID held in spaceID: station claims
// are released and abandoned player vessels return to AI.
func (s *Service) Disconnect(spaceID, userID string) {
	s.mu.Lock()
	delete(s.modes, modeKey(spaceID, userID))
	s.mu.Unlock()

	space, ok := s.deps.Registry.Lookup(spaceID)
	if !ok {
		return
	}
	s.release(space, userID)
	s.logger().Info("User left", "space", spaceID, "user", userID)
}

func (s *Service) release(space *registry.Space, userID string) {
	releases := space.Teardown(userID)
	if len(releases) == 0 {
		return
	}
	changed := make([]*core.Vessel, 0, len(releases))
	for _, r := range releases {
		for _, st := range r.Stations {
			s.stationUpdate(space.ID, r.Vessel.ID, st, "")
		}
		if r.ToAI {
			s.logger().Info("Vessel returned to AI", "space", space.ID, "vessel", r.Vessel.ID)
		}
		if s.deps.Persist != nil {
			s.deps.Persist.MarkDirty(r.Vessel)
		}
		changed = append(changed, r.Vessel)
	}
	s.broadcast(space.ID, s.update(changed...), "")
}
