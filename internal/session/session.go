// Package session is the payment gateway for world entry: it settles the
// season-scaled entry fee through the ledger and mints time-boxed session
// tokens that authenticate all subsequent mutating actions. Expired tokens
// are evicted lazily on validation and by a periodic sweep.
//
// Exclusivity is deliberately permissive: an agent may hold several valid
// sessions at once.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/moncraft/monworld/internal/ledger"
)

// TTL is the absolute session lifetime.
const TTL = 24 * time.Hour

// Entry settlement failures.
var (
	ErrNoFunds = errors.New("insufficient balance for entry fee")
	ErrExpired = errors.New("session expired or unknown")
)

// FeeSource yields the current entry fee (season-scaled).
type FeeSource interface {
	EntryFee() float64
}

// Session is one minted credential.
type Session struct {
	Token     string    `json:"token"`
	AgentID   string    `json:"agent_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Gateway owns the session table behind one mutex.
type Gateway struct {
	mu       sync.Mutex
	sessions map[string]Session

	ledger *ledger.Ledger
	fees   FeeSource
	now    func() time.Time
}

// NewGateway creates an empty gateway.
func NewGateway(l *ledger.Ledger, fees FeeSource) *Gateway {
	return &Gateway{
		sessions: make(map[string]Session),
		ledger:   l,
		fees:     fees,
		now:      time.Now,
	}
}

// ProcessEntry charges the entry fee to the system account and mints a
// session token with an absolute expiry. Returns the fee actually charged.
func (g *Gateway) ProcessEntry(agentID string) (Session, float64, error) {
	fee := g.fees.EntryFee()
	if !g.ledger.Deduct(agentID, fee, "season entry fee") {
		return Session{}, fee, ErrNoFunds
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	s := Session{
		Token:     uuid.NewString(),
		AgentID:   agentID,
		ExpiresAt: g.now().Add(TTL),
	}
	g.sessions[s.Token] = s
	return s, fee, nil
}

// Validate resolves a token to its agent. Unknown or expired tokens fail;
// expired entries are evicted on the spot.
func (g *Gateway) Validate(token string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	s, ok := g.sessions[token]
	if !ok {
		return "", ErrExpired
	}
	if g.now().After(s.ExpiresAt) {
		delete(g.sessions, token)
		return "", ErrExpired
	}
	return s.AgentID, nil
}

// Sweep evicts all expired sessions, returning how many were removed. Run
// periodically by the scheduler in main.
func (g *Gateway) Sweep() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	removed := 0
	now := g.now()
	for token, s := range g.sessions {
		if now.After(s.ExpiresAt) {
			delete(g.sessions, token)
			removed++
		}
	}
	return removed
}

// ActiveCount reports the number of live sessions.
func (g *Gateway) ActiveCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sessions)
}

// SetClock overrides the clock. Tests only.
func (g *Gateway) SetClock(now func() time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.now = now
}
