package economy

import (
	"context"
	"testing"

	"github.com/OCAP2/helmsync/internal/storage/memory"
	"github.com/OCAP2/helmsync/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdjust(t *testing.T) {
	s := NewService(memory.New())
	ctx := context.Background()

	p, err := s.Adjust(ctx, "u", core.Adjustment{Credits: 100, Experience: 3000})
	require.NoError(t, err)
	assert.Equal(t, int64(100), p.Credits)
	assert.Equal(t, 3, p.Rank)

	p, err = s.Adjust(ctx, "u", core.Adjustment{Credits: -40})
	require.NoError(t, err)
	assert.Equal(t, int64(60), p.Credits)
}

func TestAdjust_Overdraft(t *testing.T) {
	s := NewService(memory.New())
	ctx := context.Background()

	_, err := s.Adjust(ctx, "u", core.Adjustment{Credits: 10})
	require.NoError(t, err)

	_, err = s.Adjust(ctx, "u", core.Adjustment{Credits: -11})
	assert.ErrorIs(t, err, ErrOverdraft)

	p, err := s.Profile(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, int64(10), p.Credits)
}

func TestCanDepart(t *testing.T) {
	s := NewService(memory.New())
	ctx := context.Background()

	ok, err := s.CanDepart(ctx, "broke")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Adjust(ctx, "rich", core.Adjustment{Credits: 10})
	require.NoError(t, err)
	ok, err = s.CanDepart(ctx, "rich")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStartingCredits(t *testing.T) {
	core.StartingCredits = 100
	t.Cleanup(func() { core.StartingCredits = 0 })

	s := NewService(memory.New())
	ctx := context.Background()

	ok, err := s.CanDepart(ctx, "newcomer")
	require.NoError(t, err)
	assert.True(t, ok)

	p, err := s.Adjust(ctx, "newcomer", core.Adjustment{Credits: -30})
	require.NoError(t, err)
	assert.Equal(t, int64(70), p.Credits)
}

func TestReward(t *testing.T) {
	adj := Reward(core.Mission{ID: "m-7", RewardCredits: 300, RewardExperience: 50})
	assert.Equal(t, core.Adjustment{Credits: 300, Experience: 50, Reason: "mission m-7"}, adj)
}
