// World state store: agent registry, runtime location state, event
// emission, and the dirty flag the persistence flusher polls. All methods
// are safe for concurrent use; compound gameplay updates are additionally
// serialized by the action processor on top of this lock.
package world

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/moncraft/monworld/internal/catalog"
	"github.com/moncraft/monworld/internal/events"
)

// Store owns the mutable world entities.
type Store struct {
	mu      sync.RWMutex
	catalog *catalog.Catalog
	bus     *events.Bus

	agents    map[string]*Agent
	locations map[string]*LocationState
	stats     Stats

	nextAgentID int
	dirty       atomic.Bool

	now func() time.Time // Injectable clock for tests.
}

// NewStore builds a store with empty runtime state for every catalog
// location, pools starting full.
func NewStore(cat *catalog.Catalog, bus *events.Bus) *Store {
	s := &Store{
		catalog:   cat,
		bus:       bus,
		agents:    make(map[string]*Agent),
		locations: make(map[string]*LocationState, len(cat.Locations)),
		now:       time.Now,
	}
	for id, loc := range cat.Locations {
		ls := &LocationState{
			ID:        id,
			Resources: make(map[catalog.ResourceType]*ResourceState, len(loc.Resources)),
		}
		for rt, pool := range loc.Resources {
			ls.Resources[rt] = &ResourceState{Amount: pool.Max, LastRegen: s.now()}
		}
		s.locations[id] = ls
	}
	return s
}

// SetClock overrides the store clock. Tests only.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// Catalog exposes the static world definition the store was built from.
func (s *Store) Catalog() *catalog.Catalog { return s.catalog }

// AddAgent creates an agent at the hub location. Fails when the hub is at
// capacity or the name is empty.
func (s *Store) AddAgent(name string, initialBalance float64) (*Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name == "" {
		return nil, fmt.Errorf("agent name required")
	}
	hub := s.locations[s.catalog.HubID]
	if hub.Occupancy >= s.catalog.Location(s.catalog.HubID).Capacity {
		return nil, fmt.Errorf("hub location %s is full", s.catalog.HubID)
	}

	s.nextAgentID++
	a := &Agent{
		ID:         fmt.Sprintf("agent_%d", s.nextAgentID),
		Name:       name,
		LocationID: s.catalog.HubID,
		Balance:    initialBalance,
		Inventory:  make(Inventory),
		Combat:     CombatStats{HP: 100, MaxHP: 100, Attack: 10, Defense: 5},
		JoinedAt:   s.now(),
	}
	s.agents[a.ID] = a
	hub.Occupancy++
	s.dirty.Store(true)

	s.bus.Publish(events.WorldEvent{
		Type:        events.AgentJoined,
		AgentID:     a.ID,
		LocationID:  a.LocationID,
		Description: fmt.Sprintf("%s entered the world", name),
		Data:        map[string]any{"balance": initialBalance},
	})
	return a.clone(), nil
}

// MoveAgent relocates an agent, maintaining occupancy counts. Returns false
// when the agent or target is unknown. Adjacency and capacity rules belong
// to the action processor; this is the raw relocation primitive.
func (s *Store) MoveAgent(agentID, targetID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.agents[agentID]
	if !ok {
		return false
	}
	target, ok := s.locations[targetID]
	if !ok {
		return false
	}
	if a.LocationID == targetID {
		return true
	}

	s.locations[a.LocationID].Occupancy--
	target.Occupancy++
	from := a.LocationID
	a.LocationID = targetID
	s.dirty.Store(true)

	s.bus.Publish(events.WorldEvent{
		Type:        events.AgentMoved,
		AgentID:     agentID,
		LocationID:  targetID,
		Description: fmt.Sprintf("%s travelled from %s to %s", a.Name, from, targetID),
		Data:        map[string]any{"from": from, "to": targetID},
	})
	return true
}

// UpdateBalance adjusts the cached balance mirror. The ledger remains
// authoritative; callers must have already settled the movement there.
func (s *Store) UpdateBalance(agentID string, newBalance float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.agents[agentID]
	if !ok {
		return false
	}
	a.Balance = newBalance
	s.dirty.Store(true)
	return true
}

// AddToInventory adds quantity of a type/quality pair.
func (s *Store) AddToInventory(agentID string, rt catalog.ResourceType, q catalog.Quality, n int) bool {
	if n <= 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.agents[agentID]
	if !ok {
		return false
	}
	tiers := a.Inventory[rt]
	if tiers == nil {
		tiers = make(map[catalog.Quality]int)
		a.Inventory[rt] = tiers
	}
	tiers[q] += n
	s.dirty.Store(true)
	return true
}

// RemoveFromInventory removes quantity of a type/quality pair, failing
// without mutation when the held quantity is insufficient. Zeroed entries
// are deleted.
func (s *Store) RemoveFromInventory(agentID string, rt catalog.ResourceType, q catalog.Quality, n int) bool {
	if n <= 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(s.agents[agentID], rt, q, n)
}

func (s *Store) removeLocked(a *Agent, rt catalog.ResourceType, q catalog.Quality, n int) bool {
	if a == nil {
		return false
	}
	tiers := a.Inventory[rt]
	if tiers[q] < n {
		return false
	}
	tiers[q] -= n
	if tiers[q] == 0 {
		delete(tiers, q)
	}
	if len(tiers) == 0 {
		delete(a.Inventory, rt)
	}
	s.dirty.Store(true)
	return true
}

// ConsumeCheapestFirst removes n units of a resource type regardless of
// quality, consuming common tiers before rare before legendary. Fails
// without mutation when the total held is insufficient.
func (s *Store) ConsumeCheapestFirst(agentID string, rt catalog.ResourceType, n int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.agents[agentID]
	if !ok || a.Inventory.TotalOf(rt) < n {
		return false
	}
	for _, q := range []catalog.Quality{catalog.QualityCommon, catalog.QualityRare, catalog.QualityLegendary} {
		if n == 0 {
			break
		}
		have := a.Inventory[rt][q]
		take := have
		if take > n {
			take = n
		}
		if take > 0 {
			s.removeLocked(a, rt, q, take)
			n -= take
		}
	}
	return true
}

// UpdateAgent applies fn to the live agent under the store lock. Used by
// the action processor and the arena/boss managers for stat updates.
func (s *Store) UpdateAgent(agentID string, fn func(*Agent)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.agents[agentID]
	if !ok {
		return false
	}
	fn(a)
	s.dirty.Store(true)
	return true
}

// UpdateStats applies fn to the global counters under the store lock.
func (s *Store) UpdateStats(fn func(*Stats)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.stats)
	s.dirty.Store(true)
}

// Agent returns a copy of an agent, or nil when unknown.
func (s *Store) Agent(agentID string) *Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.agents[agentID]
	if !ok {
		return nil
	}
	return a.clone()
}

// Agents returns copies of every agent.
func (s *Store) Agents() []*Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Agent, 0, len(s.agents))
	for _, a := range s.agents {
		out = append(out, a.clone())
	}
	return out
}

// Location returns a copy of a location's runtime state with regeneration
// applied, or nil when unknown.
func (s *Store) Location(id string) *LocationState {
	s.mu.Lock()
	defer s.mu.Unlock()

	ls, ok := s.locations[id]
	if !ok {
		return nil
	}
	s.regenLocked(ls)
	return ls.clone()
}

// Locations returns copies of all runtime location state.
func (s *Store) Locations() []*LocationState {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*LocationState, 0, len(s.locations))
	for _, ls := range s.locations {
		s.regenLocked(ls)
		out = append(out, ls.clone())
	}
	return out
}

// DrawResource takes up to want units from a location pool after applying
// regeneration, returning the amount actually drawn.
func (s *Store) DrawResource(locationID string, rt catalog.ResourceType, want float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	ls, ok := s.locations[locationID]
	if !ok {
		return 0
	}
	s.regenLocked(ls)
	rs, ok := ls.Resources[rt]
	if !ok {
		return 0
	}
	got := want
	if got > rs.Amount {
		got = rs.Amount
	}
	rs.Amount -= got
	if got > 0 {
		s.dirty.Store(true)
	}
	return got
}

// regenLocked tops pools up by elapsed time times the catalog regen rate.
func (s *Store) regenLocked(ls *LocationState) {
	loc := s.catalog.Location(ls.ID)
	if loc == nil {
		return
	}
	now := s.now()
	for rt, rs := range ls.Resources {
		pool := loc.Resources[rt]
		elapsed := now.Sub(rs.LastRegen).Seconds()
		if elapsed <= 0 {
			continue
		}
		rs.Amount += elapsed * pool.RegenRate
		if rs.Amount > pool.Max {
			rs.Amount = pool.Max
		}
		rs.LastRegen = now
	}
}

// Stats returns a copy of the global counters.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// Dirty reports and clears the dirty flag when clear is true. The
// persistence flusher uses Dirty(true); observers use Dirty(false).
func (s *Store) Dirty(clear bool) bool {
	if clear {
		return s.dirty.Swap(false)
	}
	return s.dirty.Load()
}

// MarkDirty flags the store for the next persistence flush.
func (s *Store) MarkDirty() { s.dirty.Store(true) }
