package pacing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGovernorAllowsWithinBurst(t *testing.T) {
	g := NewGovernor(Config{QueriesPerSecond: 10, Burst: 3})

	require.True(t, g.Allow("root-a"))
	require.True(t, g.Allow("root-a"))
	require.True(t, g.Allow("root-a"))
	require.False(t, g.Allow("root-a"), "fourth immediate send should exceed the burst of 3")
}

func TestGovernorTracksAgentsIndependently(t *testing.T) {
	g := NewGovernor(Config{QueriesPerSecond: 1, Burst: 1})

	require.True(t, g.Allow("agent-a"))
	require.True(t, g.Allow("agent-b"), "separate agent must have its own bucket")
	require.Equal(t, 2, g.TrackedAgents())
}

func TestGovernorDisabledWhenRateIsZero(t *testing.T) {
	g := NewGovernor(Config{QueriesPerSecond: 0})

	for i := 0; i < 1000; i++ {
		require.True(t, g.Allow("anything"))
	}
	require.Equal(t, 0, g.TrackedAgents())
}

func TestGovernorForgetRemovesLimiter(t *testing.T) {
	g := NewGovernor(Config{QueriesPerSecond: 5, Burst: 5})
	g.Allow("agent-a")
	require.Equal(t, 1, g.TrackedAgents())

	g.Forget("agent-a")
	require.Equal(t, 0, g.TrackedAgents())
}
