// Package ledger is the authoritative in-process MON balance store with an
// immutable transaction log. Balances are a local mirror of the on-chain
// ledger, not a source of truth; conservation is still enforced locally so
// the mirror cannot drift through gameplay alone.
package ledger

import (
	"sort"
	"sync"
	"time"
)

// SystemAccount is the reserved account that fees, awards, and escrow route
// through. It never appears on the leaderboard.
const SystemAccount = "SYSTEM"

// Transaction is an immutable record of one balance movement. Balance is
// the destination balance after the transfer applied.
type Transaction struct {
	ID      uint64    `json:"id"`
	From    string    `json:"from"`
	To      string    `json:"to"`
	Amount  float64   `json:"amount"`
	Reason  string    `json:"reason"`
	Balance float64   `json:"balance"`
	At      time.Time `json:"at"`
}

// Entry is one row of the balance leaderboard.
type Entry struct {
	AgentID string  `json:"agent_id"`
	Balance float64 `json:"balance"`
}

// Ledger tracks balances and the transaction log behind one mutex.
type Ledger struct {
	mu       sync.Mutex
	balances map[string]float64
	log      []Transaction
	nextID   uint64
}

// New creates a ledger with the system account seeded to reserve.
func New(reserve float64) *Ledger {
	return &Ledger{
		balances: map[string]float64{SystemAccount: reserve},
	}
}

// SeedSequence advances the transaction id counter to at least n so that
// ids minted after a restart continue past the persisted log instead of
// colliding with it. Seeding backwards is a no-op.
func (l *Ledger) SeedSequence(n uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n > l.nextID {
		l.nextID = n
	}
}

// CreateAccount mints an account with an initial balance. The initial
// balance mirrors an external (on-chain) deposit, so it is minted rather
// than drawn from the system reserve. Creating an existing account is a
// no-op returning false.
func (l *Ledger) CreateAccount(id string, initial float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.balances[id]; ok {
		return false
	}
	if initial < 0 {
		initial = 0
	}
	l.balances[id] = initial
	l.append(Transaction{From: "", To: id, Amount: initial, Reason: "account created", Balance: initial})
	return true
}

// Balance returns the current balance for an account (0 if unknown).
func (l *Ledger) Balance(id string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[id]
}

// Transfer moves amount from one account to another. Fails without mutation
// when amount is not positive or the source balance is insufficient.
func (l *Ledger) Transfer(from, to string, amount float64, reason string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transfer(from, to, amount, reason)
}

// Award credits an agent from the system reserve.
func (l *Ledger) Award(to string, amount float64, reason string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transfer(SystemAccount, to, amount, reason)
}

// Deduct debits an agent into the system reserve.
func (l *Ledger) Deduct(from string, amount float64, reason string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transfer(from, SystemAccount, amount, reason)
}

func (l *Ledger) transfer(from, to string, amount float64, reason string) bool {
	if amount <= 0 {
		return false
	}
	if l.balances[from] < amount {
		return false
	}
	l.balances[from] -= amount
	l.balances[to] += amount
	l.append(Transaction{From: from, To: to, Amount: amount, Reason: reason, Balance: l.balances[to]})
	return true
}

func (l *Ledger) append(tx Transaction) {
	l.nextID++
	tx.ID = l.nextID
	tx.At = time.Now()
	l.log = append(l.log, tx)
}

// Leaderboard returns the top balances in descending order, excluding the
// system account. limit <= 0 returns all accounts.
func (l *Ledger) Leaderboard(limit int) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := make([]Entry, 0, len(l.balances))
	for id, bal := range l.balances {
		if id == SystemAccount {
			continue
		}
		entries = append(entries, Entry{AgentID: id, Balance: bal})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Balance != entries[j].Balance {
			return entries[i].Balance > entries[j].Balance
		}
		return entries[i].AgentID < entries[j].AgentID
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

// Transactions returns a copy of the most recent n log entries, oldest
// first. n <= 0 returns the full log.
func (l *Ledger) Transactions(n int) []Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n <= 0 || n > len(l.log) {
		n = len(l.log)
	}
	out := make([]Transaction, n)
	copy(out, l.log[len(l.log)-n:])
	return out
}

// Total sums every balance including the system account. Conserved across
// Transfer/Award/Deduct; changes only via CreateAccount minting.
func (l *Ledger) Total() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	var total float64
	for _, b := range l.balances {
		total += b
	}
	return total
}
