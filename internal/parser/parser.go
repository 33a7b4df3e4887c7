// Package parser turns raw inbound payloads into validated values. It does
// no registry or storage work; handlers act on what it returns.
package parser

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/OCAP2/helmsync/internal/geo"
	"github.com/OCAP2/helmsync/internal/reconcile"
	"github.com/OCAP2/helmsync/internal/util"
	"github.com/OCAP2/helmsync/pkg/core"
	"github.com/OCAP2/helmsync/pkg/streaming"
)

// ErrBadPayload wraps every validation failure.
var ErrBadPayload = errors.New("bad payload")

// Decoder is anything that can unmarshal its payload, such as a dispatcher event.
type Decoder interface {
	Decode(v any) error
}

// Parser provides payload -> typed value conversion.
// It has zero external dependencies beyond a logger.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a new parser with only a logger dependency
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

func bad(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBadPayload, fmt.Sprintf(format, args...))
}

func (p *Parser) decode(d Decoder, v any, kind string) error {
	if err := d.Decode(v); err != nil {
		p.logger.Debug("Undecodable payload", "kind", kind, "error", err)
		return bad("%s: %v", kind, err)
	}
	return nil
}

// ParseControl decodes a control intent. At least one control must be set
// and every set value must be finite.
func (p *Parser) ParseControl(d Decoder) (streaming.ControlPayload, error) {
	var c streaming.ControlPayload
	if err := p.decode(d, &c, "control"); err != nil {
		return c, err
	}
	if c.Empty() {
		return c, bad("control carries no values")
	}
	for name, v := range map[string]*float64{"throttle": c.Throttle, "rudderAngle": c.RudderAngle, "ballast": c.Ballast} {
		if v != nil && !util.Finite(*v) {
			return c, bad("%s is not finite", name)
		}
	}
	return c, nil
}

// ParsePose decodes a pose update, rejects non-finite values and derives the
// missing half of the position.
func (p *Parser) ParsePose(d Decoder) (core.PoseUpdate, error) {
	var u core.PoseUpdate
	if err := p.decode(d, &u, "pose"); err != nil {
		return u, err
	}
	if err := reconcile.Validate(u); err != nil {
		return u, bad("pose: %v", err)
	}
	u.Position = geo.Normalize(u.Position)
	return u, nil
}

func validAction(a string) bool {
	return a == streaming.ActionClaim || a == streaming.ActionRelease
}

// ParseHelm decodes a helm claim or release.
func (p *Parser) ParseHelm(d Decoder) (streaming.HelmPayload, error) {
	var h streaming.HelmPayload
	if err := p.decode(d, &h, "helm"); err != nil {
		return h, err
	}
	h.Action = strings.ToLower(strings.TrimSpace(h.Action))
	if !validAction(h.Action) {
		return h, bad("unknown helm action %q", h.Action)
	}
	return h, nil
}

// ParseStation decodes a station claim or release.
func (p *Parser) ParseStation(d Decoder) (streaming.StationPayload, error) {
	var s streaming.StationPayload
	if err := p.decode(d, &s, "station"); err != nil {
		return s, err
	}
	s.Action = strings.ToLower(strings.TrimSpace(s.Action))
	if !s.Station.Valid() {
		return s, bad("unknown station %q", s.Station)
	}
	if !validAction(s.Action) {
		return s, bad("unknown station action %q", s.Action)
	}
	return s, nil
}

// ParseMode decodes a user mode switch.
func (p *Parser) ParseMode(d Decoder) (streaming.ModePayload, error) {
	var m streaming.ModePayload
	if err := p.decode(d, &m, "mode"); err != nil {
		return m, err
	}
	if m.Mode != core.UserModePlayer && m.Mode != core.UserModeSpectator {
		return m, bad("unknown mode %q", m.Mode)
	}
	return m, nil
}

// ParseMissionAssign decodes a mission request.
func (p *Parser) ParseMissionAssign(d Decoder) (streaming.MissionAssignPayload, error) {
	var m streaming.MissionAssignPayload
	if err := p.decode(d, &m, "mission"); err != nil {
		return m, err
	}
	m.MissionID = strings.TrimSpace(m.MissionID)
	if m.MissionID == "" {
		return m, bad("missionId is required")
	}
	return m, nil
}

// ParseAdminVessel decodes an admin vessel override. needPos requires a
// position, needMode a valid vessel mode.
func (p *Parser) ParseAdminVessel(d Decoder, needPos, needMode bool) (streaming.AdminVesselPayload, error) {
	var a streaming.AdminVesselPayload
	if err := p.decode(d, &a, "admin"); err != nil {
		return a, err
	}
	if a.VesselID == "" {
		return a, bad("vesselId is required")
	}
	if needPos {
		if a.Position == nil {
			return a, bad("position is required")
		}
		pos := *a.Position
		for _, v := range []float64{pos.X, pos.Y, pos.Lat, pos.Lon, pos.Depth} {
			if !util.Finite(v) {
				return a, bad("position is not finite")
			}
		}
		pos = geo.Normalize(pos)
		a.Position = &pos
	}
	if a.Heading != nil {
		if !util.Finite(*a.Heading) {
			return a, bad("heading is not finite")
		}
		h := util.WrapAngle(*a.Heading)
		a.Heading = &h
	}
	if needMode && a.Mode != core.ModeAI && a.Mode != core.ModePlayer {
		return a, bad("unknown vessel mode %q", a.Mode)
	}
	return a, nil
}

// ParseAdminStation decodes a station override.
func (p *Parser) ParseAdminStation(d Decoder) (streaming.AdminStationPayload, error) {
	var a streaming.AdminStationPayload
	if err := p.decode(d, &a, "admin station"); err != nil {
		return a, err
	}
	a.UserID = strings.TrimSpace(a.UserID)
	if a.VesselID == "" {
		return a, bad("vesselId is required")
	}
	if !a.Station.Valid() {
		return a, bad("unknown station %q", a.Station)
	}
	return a, nil
}

// ParseAdminKick decodes a kick request.
func (p *Parser) ParseAdminKick(d Decoder) (streaming.AdminKickPayload, error) {
	var k streaming.AdminKickPayload
	if err := p.decode(d, &k, "kick"); err != nil {
		return k, err
	}
	if k.UserID == "" {
		return k, bad("userId is required")
	}
	return k, nil
}
