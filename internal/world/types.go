// Package world owns the mutable simulation entities: agents, runtime
// location state, and aggregate economic counters. It is the single source
// of truth for simulation state; all mutation goes through the store.
package world

import (
	"time"

	"github.com/moncraft/monworld/internal/catalog"
)

// SkillSet tracks an agent's learned proficiencies.
type SkillSet struct {
	Mining    int `json:"mining"`
	Gathering int `json:"gathering"`
	Crafting  int `json:"crafting"`
	Trading   int `json:"trading"`
}

// CombatStats holds an agent's fighting attributes and arena record.
type CombatStats struct {
	HP      int `json:"hp"`
	MaxHP   int `json:"max_hp"`
	Attack  int `json:"attack"`
	Defense int `json:"defense"`
	Wins    int `json:"wins"`
	Losses  int `json:"losses"`
}

// Inventory is a multiset of (resource type, quality tier) -> quantity.
// Entries are removed when quantity reaches zero.
type Inventory map[catalog.ResourceType]map[catalog.Quality]int

// Count returns the held quantity for one type/quality pair.
func (inv Inventory) Count(rt catalog.ResourceType, q catalog.Quality) int {
	return inv[rt][q]
}

// TotalOf sums the held quantity of a resource type across all qualities.
func (inv Inventory) TotalOf(rt catalog.ResourceType) int {
	total := 0
	for _, n := range inv[rt] {
		total += n
	}
	return total
}

// Clone deep-copies the inventory.
func (inv Inventory) Clone() Inventory {
	out := make(Inventory, len(inv))
	for rt, tiers := range inv {
		m := make(map[catalog.Quality]int, len(tiers))
		for q, n := range tiers {
			m[q] = n
		}
		out[rt] = m
	}
	return out
}

// Agent is a participant in the world. Owned exclusively by the Store;
// callers outside this package see copies.
type Agent struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	LocationID   string      `json:"location_id"`
	Balance      float64     `json:"balance"` // Cached mirror of the ledger balance.
	Inventory    Inventory   `json:"inventory"`
	Skills       SkillSet    `json:"skills"`
	Combat       CombatStats `json:"combat"`
	FactionID    string      `json:"faction_id,omitempty"`
	JoinedAt     time.Time   `json:"joined_at"`
	LastActionAt time.Time   `json:"last_action_at"`
	ActionCount  int         `json:"action_count"`
}

func (a *Agent) clone() *Agent {
	cp := *a
	cp.Inventory = a.Inventory.Clone()
	return &cp
}

// ResourceState is the runtime amount of one resource pool. Regeneration is
// applied lazily from LastRegen whenever the pool is read or drawn from.
type ResourceState struct {
	Amount    float64   `json:"amount"`
	LastRegen time.Time `json:"last_regen"`
}

// LocationState is the mutable half of a location; the static half lives in
// the catalog.
type LocationState struct {
	ID        string                                  `json:"id"`
	Occupancy int                                     `json:"occupancy"`
	Resources map[catalog.ResourceType]*ResourceState `json:"resources"`
}

func (ls *LocationState) clone() *LocationState {
	cp := &LocationState{ID: ls.ID, Occupancy: ls.Occupancy,
		Resources: make(map[catalog.ResourceType]*ResourceState, len(ls.Resources))}
	for rt, rs := range ls.Resources {
		c := *rs
		cp.Resources[rt] = &c
	}
	return cp
}

// Stats are the global economic counters.
type Stats struct {
	ResourcesGathered int     `json:"resources_gathered"`
	ItemsCrafted      int     `json:"items_crafted"`
	TradesCompleted   int     `json:"trades_completed"`
	TotalMonEarned    float64 `json:"total_mon_earned"`
	ActionsProcessed  int     `json:"actions_processed"`
}
