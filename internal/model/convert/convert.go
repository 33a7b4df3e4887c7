// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/OCAP2/helmsync/internal/geo"
	"github.com/OCAP2/helmsync/internal/model"
	"github.com/OCAP2/helmsync/pkg/core"
	"gorm.io/datatypes"
)

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func fromNullTime(t sql.NullTime) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time
}

// crewToJSON converts a crew set to datatypes.JSON for DB storage.
func crewToJSON(crew []string) datatypes.JSON {
	if len(crew) == 0 {
		return datatypes.JSON("[]")
	}
	data, _ := json.Marshal(crew)
	return datatypes.JSON(data)
}

// CoreToVessel converts a core.Vessel to a GORM model.Vessel.
// Lat/Lon are derived from X/Y when only the world pair is set.
func CoreToVessel(v core.Vessel) model.Vessel {
	pos := geo.Normalize(v.Position)
	hull, _ := json.Marshal(v.Hull)

	return model.Vessel{
		ID:              v.ID,
		SpaceID:         v.SpaceID,
		Name:            v.Name,
		OwnerID:         v.OwnerID,
		Lat:             pos.Lat,
		Lon:             pos.Lon,
		Z:               pos.Depth,
		X:               pos.X,
		Y:               pos.Y,
		Location:        geo.Point(pos),
		Heading:         v.Orientation.Heading,
		Roll:            v.Orientation.Roll,
		Pitch:           v.Orientation.Pitch,
		Surge:           v.Velocity.Surge,
		Sway:            v.Velocity.Sway,
		Heave:           v.Velocity.Heave,
		YawRate:         v.AngularVelocity.Yaw,
		RollRate:        v.AngularVelocity.Roll,
		PitchRate:       v.AngularVelocity.Pitch,
		Throttle:        v.Controls.Throttle,
		RudderAngle:     v.Controls.RudderAngle,
		Ballast:         v.Controls.Ballast,
		Hull:            datatypes.JSON(hull),
		Crew:            crewToJSON(v.CrewIDs),
		HelmUserID:      v.HelmUserID,
		HelmClaimedAt:   nullTime(v.HelmClaimedAt),
		EngineUserID:    v.EngineUserID,
		EngineClaimedAt: nullTime(v.EngineClaimedAt),
		Mode:            string(v.Mode),
		DesiredMode:     string(v.DesiredMode),
		FailureState:    v.FailureState,
		DamageState:     v.DamageState,
		LastUpdate:      v.LastUpdate,
	}
}

// VesselToCore converts a GORM model.Vessel to a core.Vessel.
// The geodetic columns are the source of truth, world X/Y is re-derived.
func VesselToCore(m model.Vessel) core.Vessel {
	v := core.Vessel{
		ID:       m.ID,
		SpaceID:  m.SpaceID,
		Name:     m.Name,
		OwnerID:  m.OwnerID,
		Position: geo.FromGeodetic(m.Lat, m.Lon, m.Z),
		Orientation: core.Orientation{
			Heading: m.Heading,
			Roll:    m.Roll,
			Pitch:   m.Pitch,
		},
		Velocity: core.Velocity{
			Surge: m.Surge,
			Sway:  m.Sway,
			Heave: m.Heave,
		},
		AngularVelocity: core.AngularVelocity{
			Yaw:   m.YawRate,
			Roll:  m.RollRate,
			Pitch: m.PitchRate,
		},
		Controls: core.Controls{
			Throttle:    m.Throttle,
			RudderAngle: m.RudderAngle,
			Ballast:     m.Ballast,
		},
		Hull:            core.DefaultHull(),
		HelmUserID:      m.HelmUserID,
		HelmClaimedAt:   fromNullTime(m.HelmClaimedAt),
		EngineUserID:    m.EngineUserID,
		EngineClaimedAt: fromNullTime(m.EngineClaimedAt),
		Mode:            core.VesselMode(m.Mode),
		DesiredMode:     core.VesselMode(m.DesiredMode),
		FailureState:    m.FailureState,
		DamageState:     m.DamageState,
		LastUpdate:      m.LastUpdate,
	}
	if len(m.Hull) > 0 {
		_ = json.Unmarshal(m.Hull, &v.Hull)
	}
	if len(m.Crew) > 0 {
		_ = json.Unmarshal(m.Crew, &v.CrewIDs)
	}
	if v.Mode == "" {
		v.Mode = core.ModeAI
	}
	return v
}

// CoreToProfile converts a core.EconomyProfile to a GORM model.EconomyProfile.
func CoreToProfile(p core.EconomyProfile) model.EconomyProfile {
	return model.EconomyProfile{
		UserID:      p.UserID,
		Rank:        p.Rank,
		Experience:  p.Experience,
		Credits:     p.Credits,
		SafetyScore: p.SafetyScore,
	}
}

// ProfileToCore converts a GORM model.EconomyProfile to a core.EconomyProfile.
func ProfileToCore(m model.EconomyProfile) core.EconomyProfile {
	return core.EconomyProfile{
		UserID:      m.UserID,
		Rank:        m.Rank,
		Experience:  m.Experience,
		Credits:     m.Credits,
		SafetyScore: m.SafetyScore,
	}
}

// AdjustmentToLedger converts an applied adjustment to a ledger row.
func AdjustmentToLedger(userID string, adj core.Adjustment, at time.Time) model.EconomyLedger {
	return model.EconomyLedger{
		Time:       at,
		UserID:     userID,
		Credits:    adj.Credits,
		Experience: adj.Experience,
		Reason:     adj.Reason,
	}
}

// CoreToAssignment converts a core.MissionAssignment to a GORM model.MissionAssignment.
func CoreToAssignment(a core.MissionAssignment) model.MissionAssignment {
	m := model.MissionAssignment{
		ID:         a.ID,
		MissionID:  a.MissionID,
		UserID:     a.UserID,
		VesselID:   a.VesselID,
		SpaceID:    a.SpaceID,
		Status:     string(a.Status),
		Stage:      string(a.Stage),
		AssignedAt: a.AssignedAt,
		UpdatedAt:  a.UpdatedAt,
	}
	if a.Status == core.AssignmentCompleted {
		m.CompletedAt = nullTime(a.UpdatedAt)
	}
	return m
}

// AssignmentToCore converts a GORM model.MissionAssignment to a core.MissionAssignment.
func AssignmentToCore(m model.MissionAssignment) core.MissionAssignment {
	return core.MissionAssignment{
		ID:         m.ID,
		MissionID:  m.MissionID,
		UserID:     m.UserID,
		VesselID:   m.VesselID,
		SpaceID:    m.SpaceID,
		Status:     core.AssignmentStatus(m.Status),
		Stage:      core.MissionStage(m.Stage),
		AssignedAt: m.AssignedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}
