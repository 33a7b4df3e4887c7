// Package storage defines the persistence contract for vessel records,
// economy profiles and mission assignments.
package storage

import (
	"context"
	"errors"

	"github.com/OCAP2/helmsync/pkg/core"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a record already exists or was changed concurrently.
	ErrConflict = errors.New("record conflict")
)

// ProfileFunc mutates a profile inside a storage transaction. Returning an
// error rolls the transaction back.
type ProfileFunc func(p *core.EconomyProfile) error

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Vessels. An empty spaceID loads every space.
	LoadVessels(ctx context.Context, spaceID string) ([]core.Vessel, error)
	SaveVessels(ctx context.Context, vessels []core.Vessel) error
	DeleteVessel(ctx context.Context, vesselID string) error

	// Economy. Profile returns a fresh starting profile for unknown users
	// without persisting it; AdjustProfile creates the row on first write.
	Profile(ctx context.Context, userID string) (core.EconomyProfile, error)
	AdjustProfile(ctx context.Context, userID string, adj core.Adjustment, fn ProfileFunc) (core.EconomyProfile, error)

	// Mission assignments
	CreateAssignment(ctx context.Context, a core.MissionAssignment) error
	Assignment(ctx context.Context, id string) (core.MissionAssignment, error)
	ActiveAssignments(ctx context.Context, spaceID string) ([]core.MissionAssignment, error)
	// AdvanceAssignment moves an assignment from one status to the next. It
	// reports false without error when the assignment is no longer in from.
	AdvanceAssignment(ctx context.Context, id string, from core.AssignmentStatus, next core.MissionAssignment) (bool, error)
	// CompleteAssignment marks an in-progress assignment completed and applies
	// reward to its user in the same transaction. It reports false without
	// error when the assignment was already completed.
	CompleteAssignment(ctx context.Context, id string, reward core.Adjustment, fn ProfileFunc) (core.MissionAssignment, core.EconomyProfile, bool, error)
}
