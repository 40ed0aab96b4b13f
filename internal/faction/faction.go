// Package faction manages exclusive faction membership, per-agent point
// totals, and the fixed bonus bundles the action processor applies to
// gather, craft, trade, rest, and combat yields.
package faction

import (
	"fmt"
	"sort"
	"sync"

	"github.com/moncraft/monworld/internal/events"
)

// ID names one of the closed set of factions.
type ID string

const (
	Ironveil ID = "ironveil" // Miners and duellists.
	Verdant  ID = "verdant"  // Foragers and herbalists.
	Gilded   ID = "gilded"   // Merchants and brokers.
)

// All lists the valid factions in a stable order.
var All = []ID{Ironveil, Verdant, Gilded}

// Bonuses is a fixed multiplier bundle. 1.0 means no effect.
type Bonuses struct {
	Gathering float64 `json:"gathering"`
	Combat    float64 `json:"combat"`
	Trading   float64 `json:"trading"`
	Crafting  float64 `json:"crafting"`
	Movement  float64 `json:"movement"`
	RareLoot  float64 `json:"rare_loot"`
}

// Neutral is the bundle applied to unaffiliated agents.
var Neutral = Bonuses{Gathering: 1, Combat: 1, Trading: 1, Crafting: 1, Movement: 1, RareLoot: 1}

var bonusTable = map[ID]Bonuses{
	Ironveil: {Gathering: 1.10, Combat: 1.20, Trading: 0.95, Crafting: 1.10, Movement: 1.00, RareLoot: 1.05},
	Verdant:  {Gathering: 1.20, Combat: 0.95, Trading: 1.00, Crafting: 1.05, Movement: 1.10, RareLoot: 1.10},
	Gilded:   {Gathering: 0.95, Combat: 1.00, Trading: 1.25, Crafting: 1.00, Movement: 1.05, RareLoot: 1.00},
}

// Standing is one row of the faction leaderboard.
type Standing struct {
	Faction ID  `json:"faction"`
	Members int `json:"members"`
	Points  int `json:"points"`
}

// Manager tracks membership and scoring behind one mutex.
type Manager struct {
	mu          sync.Mutex
	membership  map[string]ID
	agentPoints map[string]int
	memberCount map[ID]int
	totalPoints map[ID]int // Aggregate history; never reduced by switches.
	bus         *events.Bus
}

// NewManager creates an empty faction manager.
func NewManager(bus *events.Bus) *Manager {
	return &Manager{
		membership:  make(map[string]ID),
		agentPoints: make(map[string]int),
		memberCount: make(map[ID]int),
		totalPoints: make(map[ID]int),
		bus:         bus,
	}
}

// Valid reports whether f names a known faction.
func Valid(f ID) bool {
	_, ok := bonusTable[f]
	return ok
}

// Join moves an agent into a faction. Leaving a prior faction decrements
// its member count and zeroes the agent's accumulated points; the prior
// faction keeps its aggregate history.
func (m *Manager) Join(agentID string, f ID) (Bonuses, error) {
	if !Valid(f) {
		return Neutral, fmt.Errorf("unknown faction %q", f)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if prior, ok := m.membership[agentID]; ok {
		if prior == f {
			return bonusTable[f], nil
		}
		m.memberCount[prior]--
	}
	m.membership[agentID] = f
	m.memberCount[f]++
	m.agentPoints[agentID] = 0

	if m.bus != nil {
		m.bus.Publish(events.WorldEvent{
			Type:        events.FactionJoined,
			AgentID:     agentID,
			Description: fmt.Sprintf("%s joined the %s faction", agentID, f),
			Data:        map[string]any{"faction": string(f)},
		})
	}
	return bonusTable[f], nil
}

// Of returns the agent's faction, or "" when unaffiliated.
func (m *Manager) Of(agentID string) ID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.membership[agentID]
}

// AwardPoints credits points to an agent and its faction's aggregate.
// No-ops for unaffiliated agents.
func (m *Manager) AwardPoints(agentID string, points int) {
	if points <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.membership[agentID]
	if !ok {
		return
	}
	m.agentPoints[agentID] += points
	m.totalPoints[f] += points
}

// Points returns an agent's accumulated points in its current faction.
func (m *Manager) Points(agentID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.agentPoints[agentID]
}

// BonusesFor returns the fixed bundle for a faction ("" yields Neutral).
func (m *Manager) BonusesFor(f ID) Bonuses {
	if b, ok := bonusTable[f]; ok {
		return b
	}
	return Neutral
}

// BonusesOf returns the bundle for an agent's current faction.
func (m *Manager) BonusesOf(agentID string) Bonuses {
	return m.BonusesFor(m.Of(agentID))
}

// Export is the persistable faction state. Member counts are recomputed
// on restore rather than stored.
type Export struct {
	Membership  map[string]ID  `json:"membership"`
	AgentPoints map[string]int `json:"agent_points"`
	TotalPoints map[ID]int     `json:"total_points"`
}

// Export copies the manager state for persistence.
func (m *Manager) Export() Export {
	m.mu.Lock()
	defer m.mu.Unlock()

	ex := Export{
		Membership:  make(map[string]ID, len(m.membership)),
		AgentPoints: make(map[string]int, len(m.agentPoints)),
		TotalPoints: make(map[ID]int, len(m.totalPoints)),
	}
	for k, v := range m.membership {
		ex.Membership[k] = v
	}
	for k, v := range m.agentPoints {
		ex.AgentPoints[k] = v
	}
	for k, v := range m.totalPoints {
		ex.TotalPoints[k] = v
	}
	return ex
}

// Restore replaces manager state from a prior export. Unknown faction ids
// are dropped, and member counts are rebuilt from the surviving membership.
func (m *Manager) Restore(ex Export) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.membership = make(map[string]ID, len(ex.Membership))
	m.agentPoints = make(map[string]int, len(ex.AgentPoints))
	m.memberCount = make(map[ID]int, len(All))
	m.totalPoints = make(map[ID]int, len(All))

	for agentID, f := range ex.Membership {
		if !Valid(f) {
			continue
		}
		m.membership[agentID] = f
		m.memberCount[f]++
	}
	for agentID, pts := range ex.AgentPoints {
		if _, ok := m.membership[agentID]; ok {
			m.agentPoints[agentID] = pts
		}
	}
	for f, pts := range ex.TotalPoints {
		if Valid(f) {
			m.totalPoints[f] = pts
		}
	}
}

// Leaderboard returns per-faction member counts and aggregate points,
// sorted by points descending.
func (m *Manager) Leaderboard() []Standing {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Standing, 0, len(All))
	for _, f := range All {
		out = append(out, Standing{Faction: f, Members: m.memberCount[f], Points: m.totalPoints[f]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Points > out[j].Points })
	return out
}
