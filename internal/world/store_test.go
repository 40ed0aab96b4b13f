package world

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moncraft/monworld/internal/catalog"
	"github.com/moncraft/monworld/internal/events"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(catalog.Default(), events.NewBus())
}

func TestAddAgentStartsAtHub(t *testing.T) {
	s := newTestStore(t)

	a, err := s.AddAgent("alice", 100)
	require.NoError(t, err)
	assert.Equal(t, "agent_1", a.ID)
	assert.Equal(t, s.Catalog().HubID, a.LocationID)
	assert.Equal(t, 100.0, a.Balance)
	assert.Equal(t, 100, a.Combat.HP)

	hub := s.Location(s.Catalog().HubID)
	assert.Equal(t, 1, hub.Occupancy)
}

func TestAddAgentRejectsEmptyName(t *testing.T) {
	s := newTestStore(t)
	_, err := s.AddAgent("", 100)
	assert.Error(t, err)
}

func TestAddAgentRejectsFullHub(t *testing.T) {
	s := newTestStore(t)
	capacity := s.Catalog().Location(s.Catalog().HubID).Capacity
	for i := 0; i < capacity; i++ {
		_, err := s.AddAgent("bot", 0)
		require.NoError(t, err)
	}
	_, err := s.AddAgent("late", 0)
	assert.Error(t, err)
}

func TestMoveAgentMaintainsOccupancy(t *testing.T) {
	s := newTestStore(t)
	a, err := s.AddAgent("alice", 0)
	require.NoError(t, err)

	require.True(t, s.MoveAgent(a.ID, "forest"))

	assert.Equal(t, 0, s.Location(s.Catalog().HubID).Occupancy)
	assert.Equal(t, 1, s.Location("forest").Occupancy)
	assert.Equal(t, "forest", s.Agent(a.ID).LocationID)

	// Occupancy across all locations always sums to the agent count.
	total := 0
	for _, ls := range s.Locations() {
		total += ls.Occupancy
	}
	assert.Equal(t, 1, total)
}

func TestMoveAgentUnknownTargets(t *testing.T) {
	s := newTestStore(t)
	a, _ := s.AddAgent("alice", 0)

	assert.False(t, s.MoveAgent(a.ID, "nowhere"))
	assert.False(t, s.MoveAgent("ghost", "forest"))
	assert.Equal(t, s.Catalog().HubID, s.Agent(a.ID).LocationID)
}

func TestInventoryAddRemove(t *testing.T) {
	s := newTestStore(t)
	a, _ := s.AddAgent("alice", 0)

	require.True(t, s.AddToInventory(a.ID, catalog.ResourceWood, catalog.QualityCommon, 3))
	assert.Equal(t, 3, s.Agent(a.ID).Inventory.Count(catalog.ResourceWood, catalog.QualityCommon))

	// Removing more than held fails without mutation.
	assert.False(t, s.RemoveFromInventory(a.ID, catalog.ResourceWood, catalog.QualityCommon, 4))
	assert.Equal(t, 3, s.Agent(a.ID).Inventory.Count(catalog.ResourceWood, catalog.QualityCommon))

	require.True(t, s.RemoveFromInventory(a.ID, catalog.ResourceWood, catalog.QualityCommon, 3))
	assert.Empty(t, s.Agent(a.ID).Inventory)
}

func TestConsumeCheapestFirst(t *testing.T) {
	s := newTestStore(t)
	a, _ := s.AddAgent("alice", 0)
	s.AddToInventory(a.ID, catalog.ResourceOre, catalog.QualityCommon, 2)
	s.AddToInventory(a.ID, catalog.ResourceOre, catalog.QualityRare, 2)
	s.AddToInventory(a.ID, catalog.ResourceOre, catalog.QualityLegendary, 1)

	require.True(t, s.ConsumeCheapestFirst(a.ID, catalog.ResourceOre, 3))

	inv := s.Agent(a.ID).Inventory
	assert.Equal(t, 0, inv.Count(catalog.ResourceOre, catalog.QualityCommon))
	assert.Equal(t, 1, inv.Count(catalog.ResourceOre, catalog.QualityRare))
	assert.Equal(t, 1, inv.Count(catalog.ResourceOre, catalog.QualityLegendary))
}

func TestConsumeCheapestFirstInsufficient(t *testing.T) {
	s := newTestStore(t)
	a, _ := s.AddAgent("alice", 0)
	s.AddToInventory(a.ID, catalog.ResourceOre, catalog.QualityCommon, 1)

	assert.False(t, s.ConsumeCheapestFirst(a.ID, catalog.ResourceOre, 2))
	assert.Equal(t, 1, s.Agent(a.ID).Inventory.TotalOf(catalog.ResourceOre))
}

func TestDrawResourceDepletesPool(t *testing.T) {
	s := newTestStore(t)

	got := s.DrawResource("forest", catalog.ResourceWood, 5)
	assert.Equal(t, 5.0, got)

	max := s.Catalog().Location("forest").Resources[catalog.ResourceWood].Max
	assert.InDelta(t, max-5, s.Location("forest").Resources[catalog.ResourceWood].Amount, 0.01)
}

func TestResourceRegeneration(t *testing.T) {
	s := newTestStore(t)
	base := time.Now()
	s.SetClock(func() time.Time { return base })

	s.DrawResource("forest", catalog.ResourceWood, 100)

	// Advance 60s: wood regens at 0.5/s, so +30 units.
	s.SetClock(func() time.Time { return base.Add(60 * time.Second) })
	max := s.Catalog().Location("forest").Resources[catalog.ResourceWood].Max
	assert.InDelta(t, max-100+30, s.Location("forest").Resources[catalog.ResourceWood].Amount, 0.01)
}

func TestRegenerationCapsAtMax(t *testing.T) {
	s := newTestStore(t)
	base := time.Now()
	s.SetClock(func() time.Time { return base })

	s.DrawResource("forest", catalog.ResourceWood, 1)
	s.SetClock(func() time.Time { return base.Add(24 * time.Hour) })

	max := s.Catalog().Location("forest").Resources[catalog.ResourceWood].Max
	assert.Equal(t, max, s.Location("forest").Resources[catalog.ResourceWood].Amount)
}

func TestAgentReturnsCopy(t *testing.T) {
	s := newTestStore(t)
	a, _ := s.AddAgent("alice", 0)
	s.AddToInventory(a.ID, catalog.ResourceWood, catalog.QualityCommon, 1)

	cp := s.Agent(a.ID)
	cp.Inventory[catalog.ResourceWood][catalog.QualityCommon] = 99
	cp.Balance = 123

	fresh := s.Agent(a.ID)
	assert.Equal(t, 1, fresh.Inventory.Count(catalog.ResourceWood, catalog.QualityCommon))
	assert.Equal(t, 0.0, fresh.Balance)
}

func TestExportRestoreRoundTrip(t *testing.T) {
	s := newTestStore(t)
	a, _ := s.AddAgent("alice", 50)
	b, _ := s.AddAgent("bob", 25)
	s.MoveAgent(a.ID, "forest")
	s.AddToInventory(a.ID, catalog.ResourceHerb, catalog.QualityRare, 2)
	s.DrawResource("forest", catalog.ResourceWood, 10)
	s.UpdateStats(func(st *Stats) { st.ResourcesGathered = 7 })

	ex := s.Export()

	restored := newTestStore(t)
	restored.Restore(ex)

	ra := restored.Agent(a.ID)
	require.NotNil(t, ra)
	assert.Equal(t, "forest", ra.LocationID)
	assert.Equal(t, 2, ra.Inventory.Count(catalog.ResourceHerb, catalog.QualityRare))
	assert.Equal(t, 50.0, ra.Balance)
	require.NotNil(t, restored.Agent(b.ID))

	// Occupancy is recomputed from positions, not trusted from the export.
	assert.Equal(t, 1, restored.Location("forest").Occupancy)
	assert.Equal(t, 1, restored.Location(restored.Catalog().HubID).Occupancy)
	assert.Equal(t, 7, restored.Stats().ResourcesGathered)

	// A restored store keeps numbering where the export left off.
	c, err := restored.AddAgent("carol", 0)
	require.NoError(t, err)
	assert.Equal(t, "agent_3", c.ID)
}

func TestRestoreReturnsOrphansToHub(t *testing.T) {
	s := newTestStore(t)
	a, _ := s.AddAgent("alice", 0)
	ex := s.Export()
	for _, agent := range ex.Agents {
		agent.LocationID = "razed_village"
	}

	restored := newTestStore(t)
	restored.Restore(ex)
	assert.Equal(t, restored.Catalog().HubID, restored.Agent(a.ID).LocationID)
}

func TestDirtyFlag(t *testing.T) {
	s := newTestStore(t)
	assert.False(t, s.Dirty(false))

	s.AddAgent("alice", 0)
	assert.True(t, s.Dirty(false))
	assert.True(t, s.Dirty(true))
	assert.False(t, s.Dirty(false))

	s.MarkDirty()
	assert.True(t, s.Dirty(false))
}
