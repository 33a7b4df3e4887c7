// pkg/core/mission.go
package core

import "time"

// Port is a registered harbour. A vessel inside Radius is considered in port.
type Port struct {
	ID     string  `json:"id" yaml:"id"`
	Name   string  `json:"name" yaml:"name"`
	Lat    float64 `json:"lat" yaml:"lat"`
	Lon    float64 `json:"lon" yaml:"lon"`
	Radius float64 `json:"radius" yaml:"radius"` // metres
}

// Mission is a cargo run between two geodetic points.
type Mission struct {
	ID               string  `json:"id" yaml:"id"`
	Name             string  `json:"name" yaml:"name"`
	OriginLat        float64 `json:"originLat" yaml:"originLat"`
	OriginLon        float64 `json:"originLon" yaml:"originLon"`
	DestinationLat   float64 `json:"destinationLat" yaml:"destinationLat"`
	DestinationLon   float64 `json:"destinationLon" yaml:"destinationLon"`
	RewardCredits    int64   `json:"rewardCredits" yaml:"rewardCredits"`
	RewardExperience int64   `json:"rewardExperience" yaml:"rewardExperience"`
	MinRank          int     `json:"minRank,omitempty" yaml:"minRank"`
}

// AssignmentStatus only ever moves forward.
type AssignmentStatus string

const (
	AssignmentAssigned   AssignmentStatus = "assigned"
	AssignmentInProgress AssignmentStatus = "in_progress"
	AssignmentCompleted  AssignmentStatus = "completed"
)

// Active reports whether the tracker still needs to look at the assignment.
func (s AssignmentStatus) Active() bool {
	return s == AssignmentAssigned || s == AssignmentInProgress
}

// MissionStage is the leg of the mission the vessel is currently sailing.
type MissionStage string

const (
	StagePickup   MissionStage = "pickup"
	StageDelivery MissionStage = "delivery"
)

// MissionAssignment binds a mission to a user and the vessel carrying it.
type MissionAssignment struct {
	ID         string           `json:"id"`
	MissionID  string           `json:"missionId"`
	UserID     string           `json:"userId"`
	VesselID   string           `json:"vesselId"`
	SpaceID    string           `json:"spaceId"`
	Status     AssignmentStatus `json:"status"`
	Stage      MissionStage     `json:"stage"`
	AssignedAt time.Time        `json:"assignedAt"`
	UpdatedAt  time.Time        `json:"updatedAt"`
}
