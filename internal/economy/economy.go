// Package economy is the single writer of credits and experience.
package economy

import (
	"context"
	"errors"
	"fmt"

	"github.com/OCAP2/helmsync/internal/storage"
	"github.com/OCAP2/helmsync/pkg/core"
)

// ErrOverdraft is returned when a debit would take credits below zero.
var ErrOverdraft = errors.New("adjustment would overdraw credits")

// Store is the part of storage.Backend the economy needs.
type Store interface {
	Profile(ctx context.Context, userID string) (core.EconomyProfile, error)
	AdjustProfile(ctx context.Context, userID string, adj core.Adjustment, fn storage.ProfileFunc) (core.EconomyProfile, error)
}

// Service applies adjustments to economy profiles.
type Service struct {
	store Store
}

// NewService creates a Service on store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Profile returns the current profile of userID.
func (s *Service) Profile(ctx context.Context, userID string) (core.EconomyProfile, error) {
	p, err := s.store.Profile(ctx, userID)
	if err != nil {
		return core.EconomyProfile{}, fmt.Errorf("economy profile %s: %w", userID, err)
	}
	return p, nil
}

// Adjust applies adj atomically. Debits that would leave the balance negative
// are refused; credits and experience gains always apply.
func (s *Service) Adjust(ctx context.Context, userID string, adj core.Adjustment) (core.EconomyProfile, error) {
	p, err := s.store.AdjustProfile(ctx, userID, adj, Guard(adj))
	if err != nil {
		return core.EconomyProfile{}, fmt.Errorf("economy adjust %s: %w", userID, err)
	}
	return p, nil
}

// Guard returns the ProfileFunc Adjust runs inside the transaction.
func Guard(adj core.Adjustment) storage.ProfileFunc {
	return func(p *core.EconomyProfile) error {
		if adj.Credits < 0 && p.Credits < 0 {
			return ErrOverdraft
		}
		return nil
	}
}

// CanDepart reports whether userID has credits to leave port.
func (s *Service) CanDepart(ctx context.Context, userID string) (bool, error) {
	p, err := s.Profile(ctx, userID)
	if err != nil {
		return false, err
	}
	return p.Credits > 0, nil
}

// Reward is the adjustment paid for completing mission m.
func Reward(m core.Mission) core.Adjustment {
	return core.Adjustment{
		Credits:    m.RewardCredits,
		Experience: m.RewardExperience,
		Reason:     "mission " + m.ID,
	}
}
