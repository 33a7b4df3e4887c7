package model

import (
	"database/sql"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Vessel{},
	&EconomyProfile{},
	&EconomyLedger{},
	&MissionAssignment{},
}

////////////////////////
// VESSEL MODELS
////////////////////////

// Vessel is the persisted authoritative vessel record.
// Location mirrors Lat/Lon/Z as a WKB point for spatial tooling.
type Vessel struct {
	ID              string         `json:"id" gorm:"primaryKey;size:64"`
	SpaceID         string         `json:"spaceId" gorm:"size:64;index:idx_vessel_space_id"`
	Name            string         `json:"name" gorm:"size:127"`
	OwnerID         string         `json:"ownerId" gorm:"size:64;index:idx_vessel_owner_id"`
	Lat             float64        `json:"lat"`
	Lon             float64        `json:"lon"`
	Z               float64        `json:"z"`
	X               float64        `json:"x"`
	Y               float64        `json:"y"`
	Location        geom.Point     `json:"location"`
	Heading         float64        `json:"heading"`
	Roll            float64        `json:"roll"`
	Pitch           float64        `json:"pitch"`
	Surge           float64        `json:"surge"`
	Sway            float64        `json:"sway"`
	Heave           float64        `json:"heave"`
	YawRate         float64        `json:"yawRate"`
	RollRate        float64        `json:"rollRate"`
	PitchRate       float64        `json:"pitchRate"`
	Throttle        float64        `json:"throttle"`
	RudderAngle     float64        `json:"rudderAngle"`
	Ballast         float64        `json:"ballast"`
	Hull            datatypes.JSON `json:"hull"`
	Crew            datatypes.JSON `json:"crew"`
	HelmUserID      string         `json:"helmUserId" gorm:"size:64"`
	HelmClaimedAt   sql.NullTime   `json:"helmClaimedAt"`
	EngineUserID    string         `json:"engineUserId" gorm:"size:64"`
	EngineClaimedAt sql.NullTime   `json:"engineClaimedAt"`
	Mode            string         `json:"mode" gorm:"size:16"`
	DesiredMode     string         `json:"desiredMode" gorm:"size:16"`
	FailureState    float64        `json:"failureState"`
	DamageState     float64        `json:"damageState"`
	LastUpdate      time.Time      `json:"lastUpdate"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

func (*Vessel) TableName() string {
	return "vessels"
}

////////////////////////
// ECONOMY MODELS
////////////////////////

// EconomyProfile is a user's balance and progression.
type EconomyProfile struct {
	UserID      string    `json:"userId" gorm:"primaryKey;size:64"`
	Rank        int       `json:"rank"`
	Experience  int64     `json:"experience"`
	Credits     int64     `json:"credits"`
	SafetyScore float64   `json:"safetyScore"`
	UpdatedAt   time.Time `json:"updatedAt" gorm:"autoUpdateTime:false"`
}

func (*EconomyProfile) TableName() string {
	return "economy_profiles"
}

// EconomyLedger records every applied adjustment.
type EconomyLedger struct {
	ID         uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time       time.Time `json:"time" gorm:"index:idx_ledger_time"`
	UserID     string    `json:"userId" gorm:"size:64;index:idx_ledger_user_id"`
	Credits    int64     `json:"credits"`
	Experience int64     `json:"experience"`
	Reason     string    `json:"reason" gorm:"size:255"`
}

func (*EconomyLedger) TableName() string {
	return "economy_ledger"
}

////////////////////////
// MISSION MODELS
////////////////////////

// MissionAssignment binds a catalog mission to a user and vessel.
type MissionAssignment struct {
	ID          string       `json:"id" gorm:"primaryKey;size:64"`
	MissionID   string       `json:"missionId" gorm:"size:64"`
	UserID      string       `json:"userId" gorm:"size:64;index:idx_assignment_user_id"`
	VesselID    string       `json:"vesselId" gorm:"size:64"`
	SpaceID     string       `json:"spaceId" gorm:"size:64;index:idx_assignment_space_status"`
	Status      string       `json:"status" gorm:"size:16;index:idx_assignment_space_status"`
	Stage       string       `json:"stage" gorm:"size:16"`
	AssignedAt  time.Time    `json:"assignedAt"`
	UpdatedAt   time.Time    `json:"updatedAt" gorm:"autoUpdateTime:false"`
	CompletedAt sql.NullTime `json:"completedAt"`
}

func (*MissionAssignment) TableName() string {
	return "mission_assignments"
}
