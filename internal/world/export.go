// Export/restore boundary for persistence. Map-shaped state is flattened to
// slices keyed by id so it round-trips through plain encodings.
package world

// Export is a point-in-time copy of all store-owned state.
type Export struct {
	Agents      []*Agent         `json:"agents"`
	Locations   []*LocationState `json:"locations"`
	Stats       Stats            `json:"stats"`
	NextAgentID int              `json:"next_agent_id"`
}

// Export copies the full world state under the read lock.
func (s *Store) Export() Export {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ex := Export{Stats: s.stats, NextAgentID: s.nextAgentID}
	for _, a := range s.agents {
		ex.Agents = append(ex.Agents, a.clone())
	}
	for _, ls := range s.locations {
		ex.Locations = append(ex.Locations, ls.clone())
	}
	return ex
}

// Restore replaces store state from a prior export. Occupancy is recomputed
// from agent positions rather than trusted, preserving the occupancy
// invariant across restarts. Agents referencing locations no longer in the
// catalog are returned to the hub.
func (s *Store) Restore(ex Export) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.agents = make(map[string]*Agent, len(ex.Agents))
	for _, a := range ex.Agents {
		cp := a.clone()
		if _, ok := s.locations[cp.LocationID]; !ok {
			cp.LocationID = s.catalog.HubID
		}
		if cp.Inventory == nil {
			cp.Inventory = make(Inventory)
		}
		s.agents[cp.ID] = cp
	}

	for _, ls := range ex.Locations {
		cur, ok := s.locations[ls.ID]
		if !ok {
			continue
		}
		for rt, rs := range ls.Resources {
			if _, known := cur.Resources[rt]; known {
				cp := *rs
				cur.Resources[rt] = &cp
			}
		}
	}

	for _, ls := range s.locations {
		ls.Occupancy = 0
	}
	for _, a := range s.agents {
		s.locations[a.LocationID].Occupancy++
	}

	s.stats = ex.Stats
	s.nextAgentID = ex.NextAgentID
	s.dirty.Store(false)
}
