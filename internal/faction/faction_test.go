package faction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moncraft/monworld/internal/events"
)

func TestJoinUnknownFaction(t *testing.T) {
	m := NewManager(events.NewBus())
	_, err := m.Join("alice", "pirates")
	assert.Error(t, err)
	assert.Equal(t, ID(""), m.Of("alice"))
}

func TestJoinGrantsBonuses(t *testing.T) {
	m := NewManager(events.NewBus())

	b, err := m.Join("alice", Ironveil)
	require.NoError(t, err)
	assert.Equal(t, 1.20, b.Combat)
	assert.Equal(t, Ironveil, m.Of("alice"))
	assert.Equal(t, b, m.BonusesOf("alice"))
}

func TestUnaffiliatedGetsNeutralBonuses(t *testing.T) {
	m := NewManager(events.NewBus())
	b := m.BonusesOf("stranger")
	assert.Equal(t, Neutral, b)
	assert.Equal(t, 1.0, b.Gathering)
	assert.Equal(t, 1.0, b.Combat)
}

func TestSwitchingZeroesAgentPointsKeepsAggregate(t *testing.T) {
	m := NewManager(events.NewBus())
	m.Join("alice", Verdant)
	m.AwardPoints("alice", 40)
	require.Equal(t, 40, m.Points("alice"))

	m.Join("alice", Gilded)

	assert.Equal(t, 0, m.Points("alice"))
	assert.Equal(t, Gilded, m.Of("alice"))

	for _, st := range m.Leaderboard() {
		switch st.Faction {
		case Verdant:
			assert.Equal(t, 40, st.Points, "prior faction keeps its history")
			assert.Equal(t, 0, st.Members)
		case Gilded:
			assert.Equal(t, 1, st.Members)
		}
	}
}

func TestRejoiningSameFactionKeepsPoints(t *testing.T) {
	m := NewManager(events.NewBus())
	m.Join("alice", Verdant)
	m.AwardPoints("alice", 10)

	m.Join("alice", Verdant)
	assert.Equal(t, 10, m.Points("alice"))
}

func TestAwardPointsIgnoresUnaffiliated(t *testing.T) {
	m := NewManager(events.NewBus())
	m.AwardPoints("stranger", 10)
	assert.Equal(t, 0, m.Points("stranger"))

	for _, st := range m.Leaderboard() {
		assert.Equal(t, 0, st.Points)
	}
}

func TestExportRestoreRoundTrip(t *testing.T) {
	m := NewManager(events.NewBus())
	m.Join("alice", Ironveil)
	m.Join("bob", Ironveil)
	m.Join("carol", Verdant)
	m.AwardPoints("alice", 15)
	m.AwardPoints("carol", 5)

	restored := NewManager(events.NewBus())
	restored.Restore(m.Export())

	assert.Equal(t, Ironveil, restored.Of("alice"))
	assert.Equal(t, 15, restored.Points("alice"))
	assert.Equal(t, 5, restored.Points("carol"))

	for _, st := range restored.Leaderboard() {
		switch st.Faction {
		case Ironveil:
			assert.Equal(t, 2, st.Members)
			assert.Equal(t, 15, st.Points)
		case Verdant:
			assert.Equal(t, 1, st.Members)
		}
	}
}
