package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAccount(t *testing.T) {
	l := New(1000)

	require.True(t, l.CreateAccount("alice", 100))
	assert.Equal(t, 100.0, l.Balance("alice"))

	// Re-creating must not reset the balance.
	assert.False(t, l.CreateAccount("alice", 999))
	assert.Equal(t, 100.0, l.Balance("alice"))
}

func TestTransfer(t *testing.T) {
	l := New(1000)
	l.CreateAccount("alice", 100)
	l.CreateAccount("bob", 50)

	require.True(t, l.Transfer("alice", "bob", 30, "test"))
	assert.Equal(t, 70.0, l.Balance("alice"))
	assert.Equal(t, 80.0, l.Balance("bob"))
}

func TestTransferRejectsInsufficientFunds(t *testing.T) {
	l := New(1000)
	l.CreateAccount("alice", 10)
	l.CreateAccount("bob", 0)

	assert.False(t, l.Transfer("alice", "bob", 11, "too much"))
	assert.Equal(t, 10.0, l.Balance("alice"))
	assert.Equal(t, 0.0, l.Balance("bob"))
}

func TestTransferRejectsNonPositiveAmounts(t *testing.T) {
	l := New(1000)
	l.CreateAccount("alice", 10)
	l.CreateAccount("bob", 10)

	assert.False(t, l.Transfer("alice", "bob", 0, "zero"))
	assert.False(t, l.Transfer("alice", "bob", -5, "negative"))
	assert.Equal(t, 10.0, l.Balance("alice"))
}

func TestAwardAndDeductConserveTotal(t *testing.T) {
	l := New(10_000)
	l.CreateAccount("alice", 100)
	l.CreateAccount("bob", 100)
	total := l.Total()

	require.True(t, l.Award("alice", 50, "bounty"))
	require.True(t, l.Deduct("bob", 25, "fee"))
	require.True(t, l.Transfer("alice", "bob", 10, "trade"))

	assert.Equal(t, total, l.Total())
	assert.Equal(t, 140.0, l.Balance("alice"))
	assert.Equal(t, 85.0, l.Balance("bob"))
}

func TestDeductRejectsOverdraft(t *testing.T) {
	l := New(1000)
	l.CreateAccount("alice", 5)

	assert.False(t, l.Deduct("alice", 6, "fee"))
	assert.Equal(t, 5.0, l.Balance("alice"))
}

func TestLeaderboardExcludesSystem(t *testing.T) {
	l := New(1_000_000)
	l.CreateAccount("alice", 300)
	l.CreateAccount("bob", 100)
	l.CreateAccount("carol", 200)

	top := l.Leaderboard(2)
	require.Len(t, top, 2)
	assert.Equal(t, "alice", top[0].AgentID)
	assert.Equal(t, "carol", top[1].AgentID)

	for _, e := range l.Leaderboard(0) {
		assert.NotEqual(t, SystemAccount, e.AgentID)
	}
}

func TestTransactionLogRecordsMovement(t *testing.T) {
	l := New(1000)
	l.CreateAccount("alice", 100)
	l.Transfer("alice", SystemAccount, 40, "entry fee")

	txs := l.Transactions(1)
	require.Len(t, txs, 1)
	tx := txs[0]
	assert.Equal(t, "alice", tx.From)
	assert.Equal(t, SystemAccount, tx.To)
	assert.Equal(t, 40.0, tx.Amount)
	assert.Equal(t, "entry fee", tx.Reason)
	assert.NotZero(t, tx.ID)
}

func TestTransactionIDsAreMonotonic(t *testing.T) {
	l := New(1000)
	l.CreateAccount("alice", 100)
	for i := 0; i < 5; i++ {
		l.Award("alice", 1, "drip")
	}

	txs := l.Transactions(0)
	for i := 1; i < len(txs); i++ {
		assert.Greater(t, txs[i].ID, txs[i-1].ID)
	}
}

func TestSeedSequenceContinuesPastPersistedLog(t *testing.T) {
	l := New(1000)
	l.SeedSequence(50)
	l.CreateAccount("alice", 100)

	txs := l.Transactions(1)
	assert.Equal(t, uint64(51), txs[0].ID)

	// Seeding backwards never rewinds.
	l.SeedSequence(10)
	l.Award("alice", 1, "drip")
	txs = l.Transactions(1)
	assert.Equal(t, uint64(52), txs[0].ID)
}
