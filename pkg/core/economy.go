// pkg/core/economy.go
package core

// EconomyProfile is a user's progression and balance.
type EconomyProfile struct {
	UserID      string  `json:"userId"`
	Rank        int     `json:"rank"`
	Experience  int64   `json:"experience"`
	Credits     int64   `json:"credits"`
	SafetyScore float64 `json:"safetyScore"`
}

// Adjustment is a signed change applied to a profile in one transaction.
type Adjustment struct {
	Credits    int64  `json:"credits"`
	Experience int64  `json:"experience"`
	Reason     string `json:"reason,omitempty"`
}

// rankThresholds[i] is the experience needed to reach rank i+1.
var rankThresholds = []int64{0, 1000, 3000, 7000, 15000}

// RankFor returns the rank earned by xp experience.
func RankFor(xp int64) int {
	rank := 1
	for i, t := range rankThresholds {
		if xp >= t {
			rank = i + 1
		}
	}
	return rank
}

// StartingCredits is the balance a new profile opens with. Set once at startup.
var StartingCredits int64

// NewEconomyProfile returns the starting profile for a user.
func NewEconomyProfile(userID string) EconomyProfile {
	return EconomyProfile{
		UserID:      userID,
		Rank:        1,
		Credits:     StartingCredits,
		SafetyScore: 100,
	}
}
