// Package boss runs the singleton world boss encounter: cumulative damage
// from many agents, a bounded attack history, defeat bounty distribution,
// and a respawn cooldown polled by the owning scheduler.
package boss

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/moncraft/monworld/internal/events"
	"github.com/moncraft/monworld/internal/ledger"
)

// Encounter tunables.
const (
	MaxHealth       = 10000
	MinDamage       = 10
	MaxDamage       = 100
	RespawnCooldown = 5 * time.Minute
	DefeatBounty    = 500.0 // MON split evenly among participants.
	historyLimit    = 50
)

// ErrInactive is returned for attacks while the boss is down.
var ErrInactive = errors.New("boss is not active")

// AttackRecord is one entry of the bounded attack history.
type AttackRecord struct {
	AttackerID string    `json:"attacker_id"`
	Damage     int       `json:"damage"`
	At         time.Time `json:"at"`
}

// State is a point-in-time view of the encounter.
type State struct {
	ID            int            `json:"id"`
	Health        int            `json:"health"`
	MaxHealth     int            `json:"max_health"`
	Participants  []string       `json:"participants"`
	Active        bool           `json:"active"`
	Defeated      bool           `json:"defeated"`
	SpawnedAt     time.Time      `json:"spawned_at"`
	DefeatedAt    time.Time      `json:"defeated_at,omitempty"`
	AttackHistory []AttackRecord `json:"attack_history,omitempty"`
}

// AttackResult reports one resolved attack.
type AttackResult struct {
	Damage    int     `json:"damage"` // After clamping.
	Remaining int     `json:"remaining"`
	Defeated  bool    `json:"defeated"`
	Bounty    float64 `json:"bounty,omitempty"` // Per-participant share when this hit defeated the boss.
}

// Manager owns the encounter behind one mutex.
type Manager struct {
	mu           sync.Mutex
	id           int
	health       int
	participants map[string]bool
	order        []string // Participant join order, for stable views.
	defeated     bool
	spawnedAt    time.Time
	defeatedAt   time.Time
	history      []AttackRecord

	ledger *ledger.Ledger
	bus    *events.Bus
	now    func() time.Time
}

// NewManager creates the manager and spawns the first boss.
func NewManager(l *ledger.Ledger, bus *events.Bus) *Manager {
	m := &Manager{ledger: l, bus: bus, now: time.Now}
	m.Spawn()
	return m
}

// Attack applies damage from one agent. Damage is clamped into
// [MinDamage, MaxDamage], the attacker joins the participant set
// (idempotent), and the boss flips to defeated exactly when health first
// reaches zero. The defeating hit triggers the bounty split.
func (m *Manager) Attack(attackerID string, damage int) (AttackResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.defeated || m.health <= 0 {
		return AttackResult{}, ErrInactive
	}

	if damage < MinDamage {
		damage = MinDamage
	}
	if damage > MaxDamage {
		damage = MaxDamage
	}

	if !m.participants[attackerID] {
		m.participants[attackerID] = true
		m.order = append(m.order, attackerID)
	}

	m.health -= damage
	if m.health < 0 {
		m.health = 0
	}

	m.history = append(m.history, AttackRecord{AttackerID: attackerID, Damage: damage, At: m.now()})
	if len(m.history) > historyLimit {
		m.history = m.history[len(m.history)-historyLimit:]
	}

	res := AttackResult{Damage: damage, Remaining: m.health}

	m.bus.Publish(events.WorldEvent{
		Type:        events.BossDamaged,
		AgentID:     attackerID,
		Description: fmt.Sprintf("%s struck the world boss for %d", attackerID, damage),
		Data:        map[string]any{"boss_id": m.id, "damage": damage, "remaining": m.health},
	})

	if m.health == 0 {
		m.defeated = true
		m.defeatedAt = m.now()
		res.Defeated = true
		res.Bounty = m.payBountyLocked()

		m.bus.Publish(events.WorldEvent{
			Type:        events.BossDefeated,
			AgentID:     attackerID,
			Description: fmt.Sprintf("world boss %d has fallen to %d raiders", m.id, len(m.order)),
			Data:        map[string]any{"boss_id": m.id, "participants": len(m.order), "bounty_each": res.Bounty},
		})
	}
	return res, nil
}

// payBountyLocked splits the defeat bounty evenly among participants.
// Returns the per-participant share.
func (m *Manager) payBountyLocked() float64 {
	if len(m.order) == 0 {
		return 0
	}
	share := DefeatBounty / float64(len(m.order))
	for _, id := range m.order {
		m.ledger.Award(id, share, "world boss bounty")
	}
	return share
}

// Spawn resets the encounter with full health and an incremented boss id.
func (m *Manager) Spawn() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.id++
	m.health = MaxHealth
	m.participants = make(map[string]bool)
	m.order = nil
	m.defeated = false
	m.spawnedAt = m.now()
	m.defeatedAt = time.Time{}
	m.history = nil

	m.bus.Publish(events.WorldEvent{
		Type:        events.BossSpawned,
		Description: fmt.Sprintf("world boss %d has risen with %d HP", m.id, MaxHealth),
		Data:        map[string]any{"boss_id": m.id, "max_health": MaxHealth},
	})
	return m.stateLocked()
}

// ShouldRespawn reports whether the cooldown since defeat has elapsed. The
// owning scheduler polls this and calls Spawn.
func (m *Manager) ShouldRespawn() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.defeated && m.now().Sub(m.defeatedAt) >= RespawnCooldown
}

// TimeUntilRespawn returns the remaining cooldown, zero when the boss is
// alive or due.
func (m *Manager) TimeUntilRespawn() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.defeated {
		return 0
	}
	remaining := RespawnCooldown - m.now().Sub(m.defeatedAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Status returns a copy of the encounter state.
func (m *Manager) Status() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

func (m *Manager) stateLocked() State {
	return State{
		ID:            m.id,
		Health:        m.health,
		MaxHealth:     MaxHealth,
		Participants:  append([]string(nil), m.order...),
		Active:        !m.defeated,
		Defeated:      m.defeated,
		SpawnedAt:     m.spawnedAt,
		DefeatedAt:    m.defeatedAt,
		AttackHistory: append([]AttackRecord(nil), m.history...),
	}
}

// SetClock overrides the clock. Tests only.
func (m *Manager) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}
