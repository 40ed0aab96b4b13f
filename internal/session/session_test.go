package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moncraft/monworld/internal/ledger"
)

type fixedFee float64

func (f fixedFee) EntryFee() float64 { return float64(f) }

func TestProcessEntryChargesFeeAndMintsToken(t *testing.T) {
	l := ledger.New(10_000)
	l.CreateAccount("alice", 100)
	g := NewGateway(l, fixedFee(40))

	s, fee, err := g.ProcessEntry("alice")
	require.NoError(t, err)
	assert.Equal(t, 40.0, fee)
	assert.Equal(t, 60.0, l.Balance("alice"))
	assert.NotEmpty(t, s.Token)

	agentID, err := g.Validate(s.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", agentID)
}

func TestProcessEntryRejectsInsufficientBalance(t *testing.T) {
	l := ledger.New(10_000)
	l.CreateAccount("poor", 10)
	g := NewGateway(l, fixedFee(40))

	_, _, err := g.ProcessEntry("poor")
	assert.ErrorIs(t, err, ErrNoFunds)
	assert.Equal(t, 10.0, l.Balance("poor"))
	assert.Equal(t, 0, g.ActiveCount())
}

func TestMultipleSessionsPerAgent(t *testing.T) {
	l := ledger.New(10_000)
	l.CreateAccount("alice", 1000)
	g := NewGateway(l, fixedFee(40))

	s1, _, err := g.ProcessEntry("alice")
	require.NoError(t, err)
	s2, _, err := g.ProcessEntry("alice")
	require.NoError(t, err)

	assert.NotEqual(t, s1.Token, s2.Token)
	for _, tok := range []string{s1.Token, s2.Token} {
		id, err := g.Validate(tok)
		require.NoError(t, err)
		assert.Equal(t, "alice", id)
	}
	// Each entry is charged separately.
	assert.Equal(t, 920.0, l.Balance("alice"))
}

func TestValidateUnknownToken(t *testing.T) {
	g := NewGateway(ledger.New(100), fixedFee(0))
	_, err := g.Validate("not-a-token")
	assert.ErrorIs(t, err, ErrExpired)
}

func TestExpiredSessionIsEvictedOnValidate(t *testing.T) {
	l := ledger.New(10_000)
	l.CreateAccount("alice", 100)
	g := NewGateway(l, fixedFee(1))

	base := time.Now()
	g.SetClock(func() time.Time { return base })
	s, _, err := g.ProcessEntry("alice")
	require.NoError(t, err)

	g.SetClock(func() time.Time { return base.Add(TTL + time.Minute) })
	_, err = g.Validate(s.Token)
	assert.ErrorIs(t, err, ErrExpired)
	assert.Equal(t, 0, g.ActiveCount())
}

func TestSweepRemovesOnlyExpired(t *testing.T) {
	l := ledger.New(10_000)
	l.CreateAccount("alice", 100)
	g := NewGateway(l, fixedFee(1))

	base := time.Now()
	g.SetClock(func() time.Time { return base })
	old, _, err := g.ProcessEntry("alice")
	require.NoError(t, err)

	g.SetClock(func() time.Time { return base.Add(TTL / 2) })
	fresh, _, err := g.ProcessEntry("alice")
	require.NoError(t, err)

	g.SetClock(func() time.Time { return base.Add(TTL + time.Minute) })
	assert.Equal(t, 1, g.Sweep())

	_, err = g.Validate(old.Token)
	assert.ErrorIs(t, err, ErrExpired)
	_, err = g.Validate(fresh.Token)
	assert.NoError(t, err)
}
