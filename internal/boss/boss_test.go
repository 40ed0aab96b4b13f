package boss

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moncraft/monworld/internal/events"
	"github.com/moncraft/monworld/internal/ledger"
)

func newTestManager(t *testing.T) (*Manager, *ledger.Ledger) {
	t.Helper()
	l := ledger.New(1_000_000)
	return NewManager(l, events.NewBus()), l
}

func TestNewManagerSpawnsFirstBoss(t *testing.T) {
	m, _ := newTestManager(t)
	st := m.Status()
	assert.Equal(t, 1, st.ID)
	assert.Equal(t, MaxHealth, st.Health)
	assert.True(t, st.Active)
}

func TestAttackClampsDamage(t *testing.T) {
	m, l := newTestManager(t)
	l.CreateAccount("weak", 0)
	l.CreateAccount("strong", 0)

	res, err := m.Attack("weak", 1)
	require.NoError(t, err)
	assert.Equal(t, MinDamage, res.Damage)

	res, err = m.Attack("strong", 99999)
	require.NoError(t, err)
	assert.Equal(t, MaxDamage, res.Damage)

	assert.Equal(t, MaxHealth-MinDamage-MaxDamage, m.Status().Health)
}

func TestParticipantsAreIdempotent(t *testing.T) {
	m, _ := newTestManager(t)
	for i := 0; i < 3; i++ {
		_, err := m.Attack("alice", 50)
		require.NoError(t, err)
	}
	m.Attack("bob", 50)

	st := m.Status()
	assert.Equal(t, []string{"alice", "bob"}, st.Participants)
}

func TestDefeatPaysBountySplit(t *testing.T) {
	m, l := newTestManager(t)
	l.CreateAccount("alice", 0)
	l.CreateAccount("bob", 0)
	before := l.Total()

	m.Attack("alice", MaxDamage)
	m.Attack("bob", MaxDamage)

	// Burn the boss down; alice lands the killing blow.
	var final AttackResult
	for {
		res, err := m.Attack("alice", MaxDamage)
		require.NoError(t, err)
		if res.Defeated {
			final = res
			break
		}
	}

	assert.Equal(t, 0, final.Remaining)
	assert.Equal(t, DefeatBounty/2.0, final.Bounty)
	assert.Equal(t, DefeatBounty/2.0, l.Balance("alice"))
	assert.Equal(t, DefeatBounty/2.0, l.Balance("bob"))
	assert.Equal(t, before, l.Total(), "bounty moves from the system reserve")

	st := m.Status()
	assert.True(t, st.Defeated)
	assert.False(t, st.Active)
}

func TestAttackAfterDefeatFails(t *testing.T) {
	m, l := newTestManager(t)
	l.CreateAccount("alice", 0)
	for {
		res, err := m.Attack("alice", MaxDamage)
		require.NoError(t, err)
		if res.Defeated {
			break
		}
	}

	_, err := m.Attack("alice", 50)
	assert.ErrorIs(t, err, ErrInactive)
}

func TestRespawnCooldown(t *testing.T) {
	m, l := newTestManager(t)
	l.CreateAccount("alice", 0)

	base := time.Now()
	m.SetClock(func() time.Time { return base })
	for {
		res, _ := m.Attack("alice", MaxDamage)
		if res.Defeated {
			break
		}
	}

	assert.False(t, m.ShouldRespawn())
	assert.Equal(t, RespawnCooldown, m.TimeUntilRespawn())

	m.SetClock(func() time.Time { return base.Add(RespawnCooldown) })
	assert.True(t, m.ShouldRespawn())
	assert.Equal(t, time.Duration(0), m.TimeUntilRespawn())

	st := m.Spawn()
	assert.Equal(t, 2, st.ID)
	assert.Equal(t, MaxHealth, st.Health)
	assert.Empty(t, st.Participants)
	assert.True(t, st.Active)
}

func TestAttackHistoryIsBounded(t *testing.T) {
	m, l := newTestManager(t)
	l.CreateAccount("alice", 0)

	// MinDamage hits never defeat a MaxHealth boss within the window.
	for i := 0; i < historyLimit+20 && m.Status().Health > MaxDamage*2; i++ {
		m.Attack("alice", MinDamage)
	}
	assert.LessOrEqual(t, len(m.Status().AttackHistory), historyLimit)
}
