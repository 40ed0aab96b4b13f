package season

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moncraft/monworld/internal/events"
	"github.com/moncraft/monworld/internal/ledger"
)

func newTestManager(t *testing.T, archive bool) (*Manager, *ledger.Ledger, time.Time) {
	t.Helper()
	l := ledger.New(1_000_000)
	dir := ""
	if archive {
		dir = t.TempDir()
	}
	m := NewManager(l, events.NewBus(), dir)
	base := time.Now()
	m.SetClock(func() time.Time { return base })
	m.RestorePrestige(1, base, nil)
	return m, l, base
}

func TestEntryFeeDecaysLinearly(t *testing.T) {
	m, _, base := newTestManager(t, false)

	assert.InDelta(t, BaseEntryFee, m.EntryFee(), 0.01)

	m.SetClock(func() time.Time { return base.Add(Length / 2) })
	assert.InDelta(t, BaseEntryFee/2, m.EntryFee(), 0.01)

	// Late in the season the fee bottoms out at the floor.
	m.SetClock(func() time.Time { return base.Add(Length - time.Hour) })
	assert.Equal(t, FloorFee, m.EntryFee())

	m.SetClock(func() time.Time { return base.Add(2 * Length) })
	assert.Equal(t, FloorFee, m.EntryFee())
}

func TestSummary(t *testing.T) {
	m, l, _ := newTestManager(t, false)
	l.CreateAccount("alice", 500)

	sum := m.Summary()
	assert.Equal(t, 1, sum.Number)
	assert.Equal(t, 30, sum.DaysRemaining)
	require.Len(t, sum.TopAgents, 1)
	assert.Equal(t, "alice", sum.TopAgents[0].AgentID)
}

func TestStanding(t *testing.T) {
	m, l, _ := newTestManager(t, false)
	l.CreateAccount("alice", 500)
	l.CreateAccount("bob", 700)

	st := m.Standing("alice")
	assert.Equal(t, 2, st.Rank)
	assert.Equal(t, 500.0, st.Balance)

	unknown := m.Standing("ghost")
	assert.Equal(t, 0, unknown.Rank)
}

func TestMaybeRolloverBeforeEnd(t *testing.T) {
	m, _, _ := newTestManager(t, false)
	assert.False(t, m.MaybeRollover())
}

func TestRolloverAwardsPrestigeAndStartsNextSeason(t *testing.T) {
	m, l, base := newTestManager(t, false)
	l.CreateAccount("first", 400)
	l.CreateAccount("second", 300)
	l.CreateAccount("third", 200)
	l.CreateAccount("fourth", 100)

	m.SetClock(func() time.Time { return base.Add(Length) })
	require.True(t, m.MaybeRollover())

	assert.Equal(t, 3, m.Prestige("first"))
	assert.Equal(t, 2, m.Prestige("second"))
	assert.Equal(t, 1, m.Prestige("third"))
	assert.Equal(t, 0, m.Prestige("fourth"))

	sum := m.Summary()
	assert.Equal(t, 2, sum.Number)
	// New season: the fee resets to its base.
	assert.InDelta(t, BaseEntryFee, m.EntryFee(), 0.01)

	// The season just rolled; it must not roll again immediately.
	assert.False(t, m.MaybeRollover())
}

func TestPrestigeAccumulatesAcrossSeasons(t *testing.T) {
	m, l, base := newTestManager(t, false)
	l.CreateAccount("champ", 999)

	m.SetClock(func() time.Time { return base.Add(Length) })
	require.True(t, m.MaybeRollover())
	m.SetClock(func() time.Time { return base.Add(2 * Length) })
	require.True(t, m.MaybeRollover())

	assert.Equal(t, 6, m.Prestige("champ"))
}

func TestRolloverWritesArchive(t *testing.T) {
	m, l, base := newTestManager(t, true)
	l.CreateAccount("alice", 500)
	l.CreateAccount("bob", 300)

	m.SetClock(func() time.Time { return base.Add(Length) })
	require.True(t, m.MaybeRollover())

	arch, err := ReadArchive(m.archiveDir, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, arch.Season)
	require.Len(t, arch.Leaderboard, 2)
	assert.Equal(t, "alice", arch.Leaderboard[0].AgentID)
	require.NotEmpty(t, arch.Prestige)
	assert.Equal(t, "alice", arch.Prestige[0].AgentID)
	assert.Equal(t, 3, arch.Prestige[0].Prestige)
}

func TestExportRestoreRoundTrip(t *testing.T) {
	m, l, base := newTestManager(t, false)
	l.CreateAccount("alice", 500)
	m.SetClock(func() time.Time { return base.Add(Length) })
	require.True(t, m.MaybeRollover())

	number, startedAt, prestige := m.Export()

	restored := NewManager(ledger.New(1000), events.NewBus(), "")
	restored.RestorePrestige(number, startedAt, prestige)

	assert.Equal(t, 2, restored.Summary().Number)
	assert.Equal(t, 3, restored.Prestige("alice"))
}
