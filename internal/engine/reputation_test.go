package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreNewcomerTracksStake(t *testing.T) {
	cases := []struct {
		staked uint64
		want   int
	}{
		{0, 0},
		{1, 10},
		{10, 100},
		{20, 200},
		{21, 200},
		{1 << 40, 200},
	}
	for _, tc := range cases {
		a := Agent{Identity: "fresh", Staked: tc.staked}
		assert.Equal(t, tc.want, Score(a), "staked=%d", tc.staked)
	}
}

func TestScoreEstablishedAgent(t *testing.T) {
	// One completed deal out of one, no meaningful volume, 10 staked:
	// 500 completion + 0 volume + 100 stake.
	a := Agent{
		Staked:         10,
		DealsCompleted: 1,
		TotalVolume:    50,
	}
	assert.Equal(t, 600, Score(a))
}

func TestScoreCompletionRatioTruncates(t *testing.T) {
	// 2 completed of 3 total: floor(2*500/3) = 333.
	a := Agent{
		DealsCompleted: 2,
		DealsFailed:    1,
	}
	assert.Equal(t, 333, Score(a))
}

func TestScoreVolumeComponent(t *testing.T) {
	cases := []struct {
		volume uint64
		want   int
	}{
		{0, 0},
		{99, 0},
		{100, 30},
		{199, 30},
		{250, 60},
		{999, 270},
		{1000, 300},
		{1 << 50, 300},
	}
	for _, tc := range cases {
		a := Agent{DealsCompleted: 1, TotalVolume: tc.volume}
		assert.Equal(t, 500+tc.want, Score(a), "volume=%d", tc.volume)
	}
}

func TestScoreAllComponentsCapped(t *testing.T) {
	a := Agent{
		Staked:         1 << 30,
		DealsCompleted: 100,
		TotalVolume:    1 << 30,
	}
	assert.Equal(t, 500+300+200, Score(a))
}

func TestScoreAllFailedDeals(t *testing.T) {
	a := Agent{
		Staked:      5,
		DealsFailed: 3,
		TotalVolume: 400,
	}
	// 0 completion + 120 volume + 50 stake.
	assert.Equal(t, 170, Score(a))
}

func TestGetReputationUnregistered(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, 0, env.engine.GetReputation("ghost"))
}

func TestReputationLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.registerFunded(t, "alice", "Alice", 1000)
	env.registerFunded(t, "bob", "Bob", 1000)

	assert.Equal(t, 0, env.engine.GetReputation("alice"))

	require.NoError(t, env.engine.Stake("alice", 10))
	assert.Equal(t, 100, env.engine.GetReputation("alice"))

	id, err := env.engine.CreateDeal("alice", "bob", 50, "", 0)
	require.NoError(t, err)
	require.NoError(t, env.engine.ConfirmDeal(id, "alice"))
	require.NoError(t, env.engine.ConfirmDeal(id, "bob"))
	assert.Equal(t, 600, env.engine.GetReputation("alice"))

	// A dispute on a second deal drags the completion ratio down.
	id2, err := env.engine.CreateDeal("bob", "alice", 20, "", 0)
	require.NoError(t, err)
	require.NoError(t, env.engine.DisputeDeal(id2, "bob"))

	// Alice: 1 completed of 2 total = 250, volume 50 = 0, stake 9 after
	// the 10% slash = 90.
	a, _ := env.engine.GetAgent("alice")
	require.Equal(t, uint64(9), a.Staked)
	assert.Equal(t, 340, env.engine.GetReputation("alice"))
}
