// Package season tracks the rolling competitive epoch: the decaying entry
// fee, per-agent rank and prestige, and the end-of-epoch rollover that
// awards prestige to the top agents and archives the closing leaderboard.
package season

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/moncraft/monworld/internal/events"
	"github.com/moncraft/monworld/internal/ledger"
)

// Epoch tunables.
const (
	Length       = 30 * 24 * time.Hour
	BaseEntryFee = 100.0
	FloorFee     = 25.0
	topRewarded  = 3 // Agents receiving prestige at rollover.
)

// Summary is the public season view.
type Summary struct {
	Number        int            `json:"number"`
	EntryFee      float64        `json:"entry_fee"`
	DaysRemaining int            `json:"days_remaining"`
	StartedAt     time.Time      `json:"started_at"`
	TopAgents     []ledger.Entry `json:"top_agents"`
}

// Standing is one agent's competitive position.
type Standing struct {
	AgentID  string  `json:"agent_id"`
	Rank     int     `json:"rank"` // 0 when unranked.
	Balance  float64 `json:"balance"`
	Prestige int     `json:"prestige"`
}

// Manager owns the epoch state behind one mutex.
type Manager struct {
	mu        sync.Mutex
	number    int
	startedAt time.Time
	prestige  map[string]int

	ledger     *ledger.Ledger
	bus        *events.Bus
	archiveDir string // Empty disables archiving.
	now        func() time.Time
}

// NewManager starts season 1 now.
func NewManager(l *ledger.Ledger, bus *events.Bus, archiveDir string) *Manager {
	m := &Manager{
		number:     1,
		prestige:   make(map[string]int),
		ledger:     l,
		bus:        bus,
		archiveDir: archiveDir,
		now:        time.Now,
	}
	m.startedAt = m.now()
	return m
}

// EntryFee returns the current fee: linear decay from BaseEntryFee toward
// FloorFee as the season ages, so late joiners pay less.
func (m *Manager) EntryFee() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entryFeeLocked()
}

func (m *Manager) entryFeeLocked() float64 {
	remaining := Length - m.now().Sub(m.startedAt)
	if remaining < 0 {
		remaining = 0
	}
	fee := BaseEntryFee * remaining.Hours() / Length.Hours()
	if fee < FloorFee {
		fee = FloorFee
	}
	return fee
}

// Summary returns the current season state with the top balances.
func (m *Manager) Summary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	remaining := Length - m.now().Sub(m.startedAt)
	days := int(remaining.Hours() / 24)
	if days < 0 {
		days = 0
	}
	return Summary{
		Number:        m.number,
		EntryFee:      m.entryFeeLocked(),
		DaysRemaining: days,
		StartedAt:     m.startedAt,
		TopAgents:     m.ledger.Leaderboard(10),
	}
}

// Standing returns an agent's rank on the balance leaderboard and its
// carried prestige.
func (m *Manager) Standing(agentID string) Standing {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Standing{AgentID: agentID, Prestige: m.prestige[agentID]}
	for i, e := range m.ledger.Leaderboard(0) {
		if e.AgentID == agentID {
			st.Rank = i + 1
			st.Balance = e.Balance
			break
		}
	}
	return st
}

// Prestige returns an agent's carried prestige points.
func (m *Manager) Prestige(agentID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prestige[agentID]
}

// MaybeRollover closes the season when its length has elapsed: prestige to
// the top agents (3/2/1), an archive file of the closing standings, and a
// fresh epoch. Returns true when a rollover happened. Called periodically by
// the scheduler in main.
func (m *Manager) MaybeRollover() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.now().Sub(m.startedAt) < Length {
		return false
	}

	closing := m.ledger.Leaderboard(0)
	for i, e := range closing {
		if i >= topRewarded {
			break
		}
		m.prestige[e.AgentID] += topRewarded - i
	}

	if m.archiveDir != "" {
		if err := writeArchive(m.archiveDir, m.number, m.startedAt, m.now(), closing, m.prestigeSnapshotLocked()); err != nil {
			slog.Error("season archive failed", "season", m.number, "error", err)
		}
	}

	ended := m.number
	m.number++
	m.startedAt = m.now()

	m.bus.Publish(events.WorldEvent{
		Type:        events.SeasonEnded,
		Description: fmt.Sprintf("season %d has ended; season %d begins", ended, m.number),
		Data:        map[string]any{"season": ended, "next": m.number},
	})
	slog.Info("season rollover", "ended", ended, "next", m.number, "ranked_agents", len(closing))
	return true
}

func (m *Manager) prestigeSnapshotLocked() []PrestigeEntry {
	out := make([]PrestigeEntry, 0, len(m.prestige))
	for id, p := range m.prestige {
		out = append(out, PrestigeEntry{AgentID: id, Prestige: p})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Prestige > out[j].Prestige })
	return out
}

// RestorePrestige reloads carried prestige and the season counter, used on
// process restart.
func (m *Manager) RestorePrestige(number int, startedAt time.Time, entries []PrestigeEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if number > 0 {
		m.number = number
	}
	if !startedAt.IsZero() {
		m.startedAt = startedAt
	}
	for _, e := range entries {
		m.prestige[e.AgentID] = e.Prestige
	}
}

// Export returns the season counter and prestige table for persistence.
func (m *Manager) Export() (int, time.Time, []PrestigeEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.number, m.startedAt, m.prestigeSnapshotLocked()
}

// SetClock overrides the clock. Tests only.
func (m *Manager) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}
