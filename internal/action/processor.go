// The action execution pipeline: validate, mutate, credit, emit.
package action

import (
	"fmt"
	"sync"
	"time"

	"github.com/moncraft/monworld/internal/catalog"
	"github.com/moncraft/monworld/internal/entropy"
	"github.com/moncraft/monworld/internal/events"
	"github.com/moncraft/monworld/internal/faction"
	"github.com/moncraft/monworld/internal/ledger"
	"github.com/moncraft/monworld/internal/world"
)

// Tunables for action outcomes.
const (
	baseTravelSeconds = 5
	maxSuccessChance  = 0.95
	minSuccessChance  = 0.05

	// Quality tier margins: how far the roll must beat the success
	// threshold, after the faction rare-loot bonus widens the window.
	legendaryMargin = 0.45
	rareMargin      = 0.20

	skillGainSuccess = 2
	skillGainFailure = 1
)

var tierQuantity = map[catalog.Quality]int{
	catalog.QualityCommon:    1,
	catalog.QualityRare:      2,
	catalog.QualityLegendary: 3,
}

// Processor executes one action at a time.
type Processor struct {
	mu       sync.Mutex
	store    *world.Store
	ledger   *ledger.Ledger
	catalog  *catalog.Catalog
	factions *faction.Manager
	bus      *events.Bus
	rng      *entropy.Source
}

// NewProcessor wires the pipeline.
func NewProcessor(store *world.Store, l *ledger.Ledger, cat *catalog.Catalog, factions *faction.Manager, bus *events.Bus, rng *entropy.Source) *Processor {
	return &Processor{store: store, ledger: l, catalog: cat, factions: factions, bus: bus, rng: rng}
}

// Process validates and executes one intent. All rule violations return a
// failed Result; a Go error here means a defect (referenced entity vanished
// mid-pipeline).
func (p *Processor) Process(a Action) Result {
	p.mu.Lock()
	defer p.mu.Unlock()

	agent := p.store.Agent(a.AgentID)
	if agent == nil {
		return fail(CodeNotFound, fmt.Sprintf("unknown agent %s", a.AgentID))
	}

	var res Result
	switch a.Kind {
	case KindMove:
		res = p.move(agent, a)
	case KindGather:
		res = p.gather(agent, a)
	case KindCraft:
		res = p.craft(agent, a)
	case KindTrade:
		res = p.trade(agent, a)
	case KindRest:
		res = p.rest(agent)
	default:
		return fail(CodeBadRequest, fmt.Sprintf("unknown action kind %q", a.Kind))
	}

	p.store.UpdateAgent(a.AgentID, func(ag *world.Agent) {
		ag.LastActionAt = time.Now()
		ag.ActionCount++
	})
	p.store.UpdateStats(func(st *world.Stats) { st.ActionsProcessed++ })
	return res
}

// move requires adjacency and capacity headroom at the target.
func (p *Processor) move(agent *world.Agent, a Action) Result {
	target := p.catalog.Location(a.TargetLocation)
	if target == nil {
		return fail(CodeNotFound, fmt.Sprintf("unknown location %s", a.TargetLocation))
	}
	if a.TargetLocation == agent.LocationID {
		return fail(CodeBadRequest, "already there")
	}
	if !p.catalog.Connected(agent.LocationID, a.TargetLocation) {
		return fail(CodeNotConnected, fmt.Sprintf("%s is not connected to %s", agent.LocationID, a.TargetLocation))
	}
	if state := p.store.Location(a.TargetLocation); state != nil && state.Occupancy >= target.Capacity {
		return fail(CodeCapacity, fmt.Sprintf("%s is at capacity", a.TargetLocation))
	}

	if !p.store.MoveAgent(agent.ID, a.TargetLocation) {
		return fail(CodeInternal, "relocation failed")
	}

	bonuses := p.factions.BonusesOf(agent.ID)
	travel := int(float64(baseTravelSeconds) / bonuses.Movement)
	if travel < 1 {
		travel = 1
	}
	return Result{
		Success:     true,
		Message:     fmt.Sprintf("moved to %s", target.Name),
		NewLocation: a.TargetLocation,
		TravelTime:  travel,
	}
}

// gather rolls against (location difficulty, agent skill). A failed roll
// still grants a small skill increment but never touches inventory or
// balance.
func (p *Processor) gather(agent *world.Agent, a Action) Result {
	if a.Resource == "" {
		return fail(CodeBadRequest, "resource required")
	}
	loc := p.catalog.Location(agent.LocationID)
	if _, harvestable := loc.Resources[a.Resource]; !harvestable {
		return fail(CodeNoResource, fmt.Sprintf("%s cannot be gathered at %s", a.Resource, loc.ID))
	}

	state := p.store.Location(agent.LocationID)
	if state.Resources[a.Resource].Amount < 1 {
		return fail(CodeNoResource, fmt.Sprintf("%s is depleted at %s", a.Resource, loc.ID))
	}

	bonuses := p.factions.BonusesOf(agent.ID)
	skill := gatherSkill(agent.Skills, a.Resource)
	chance := (1.0 - loc.GatherDifficulty + float64(skill)/100.0) * bonuses.Gathering
	chance = clamp(chance, minSuccessChance, maxSuccessChance)

	roll := p.rng.Float()
	if roll >= chance {
		p.bumpGatherSkill(agent.ID, a.Resource, skillGainFailure)
		// A failed roll is a legitimate outcome, not a rule violation:
		// no code, skill partial credit only.
		return Result{
			Success:     false,
			Message:     fmt.Sprintf("the %s slipped away", a.Resource),
			SkillGained: skillGainFailure,
		}
	}

	// Quality from how far the roll beat the threshold; the rare-loot
	// bonus widens the upper tiers.
	margin := (chance - roll) * bonuses.RareLoot
	quality := catalog.QualityCommon
	switch {
	case margin >= legendaryMargin:
		quality = catalog.QualityLegendary
	case margin >= rareMargin:
		quality = catalog.QualityRare
	}

	quantity := tierQuantity[quality]
	drawn := int(p.store.DrawResource(agent.LocationID, a.Resource, float64(quantity)))
	if drawn < 1 {
		drawn = 1 // Availability was checked above; the pool held at least one unit.
	}

	p.store.AddToInventory(agent.ID, a.Resource, quality, drawn)
	p.bumpGatherSkill(agent.ID, a.Resource, skillGainSuccess)

	reward := loc.MonReward * float64(drawn)
	p.creditMon(agent.ID, reward, "gather reward", func(st *world.Stats) {
		st.ResourcesGathered += drawn
	})
	p.factions.AwardPoints(agent.ID, drawn)

	p.bus.Publish(events.WorldEvent{
		Type:        events.ResourceGathered,
		AgentID:     agent.ID,
		LocationID:  agent.LocationID,
		Description: fmt.Sprintf("%s gathered %d %s %s", agent.Name, drawn, quality, a.Resource),
		Data:        map[string]any{"resource": string(a.Resource), "quality": string(quality), "quantity": drawn, "mon": reward},
	})

	return Result{
		Success:     true,
		Message:     fmt.Sprintf("gathered %d %s %s", drawn, quality, a.Resource),
		MonEarned:   reward,
		ItemsGained: []ItemGain{{Resource: a.Resource, Quality: quality, Quantity: drawn}},
		SkillGained: skillGainSuccess,
	}
}

// craft consumes recipe inputs whether or not the roll succeeds; only a
// success produces the output item and MON.
func (p *Processor) craft(agent *world.Agent, a Action) Result {
	loc := p.catalog.Location(agent.LocationID)
	if !loc.AllowsCrafting {
		return fail(CodeWrongState, fmt.Sprintf("crafting is not allowed at %s", loc.ID))
	}
	recipe := p.catalog.Recipe(a.RecipeID)
	if recipe == nil {
		return fail(CodeNotFound, fmt.Sprintf("unknown recipe %s", a.RecipeID))
	}

	// Validate the full bill of materials before consuming anything.
	for rt, need := range recipe.Inputs {
		if agent.Inventory.TotalOf(rt) < need {
			return fail(CodeNoResource, fmt.Sprintf("need %d %s", need, rt))
		}
	}

	// Materials are committed now: consumed win or lose, common first.
	for rt, need := range recipe.Inputs {
		if !p.store.ConsumeCheapestFirst(agent.ID, rt, need) {
			return fail(CodeInternal, fmt.Sprintf("inventory changed under craft of %s", recipe.ID))
		}
	}

	bonuses := p.factions.BonusesOf(agent.ID)
	chance := recipe.BaseRate + float64(agent.Skills.Crafting-recipe.RequiredSkill)/100.0
	chance = clamp(chance*bonuses.Crafting, minSuccessChance, maxSuccessChance)

	if p.rng.Float() >= chance {
		p.store.UpdateAgent(agent.ID, func(ag *world.Agent) { ag.Skills.Crafting += skillGainFailure })
		return Result{
			Success:     false,
			Message:     fmt.Sprintf("the %s was ruined; materials lost", recipe.Name),
			SkillGained: skillGainFailure,
		}
	}

	out := recipe.Output
	p.store.AddToInventory(agent.ID, out.Type, out.Quality, out.Quantity)
	p.store.UpdateAgent(agent.ID, func(ag *world.Agent) { ag.Skills.Crafting += skillGainSuccess })

	p.creditMon(agent.ID, recipe.MonReward, "craft reward", func(st *world.Stats) {
		st.ItemsCrafted += out.Quantity
	})
	p.factions.AwardPoints(agent.ID, out.Quantity)

	p.bus.Publish(events.WorldEvent{
		Type:        events.ItemCrafted,
		AgentID:     agent.ID,
		LocationID:  agent.LocationID,
		Description: fmt.Sprintf("%s crafted %d %s %s", agent.Name, out.Quantity, out.Quality, out.Type),
		Data:        map[string]any{"recipe": recipe.ID, "mon": recipe.MonReward},
	})

	return Result{
		Success:     true,
		Message:     fmt.Sprintf("crafted %s", recipe.Name),
		MonEarned:   recipe.MonReward,
		ItemsGained: []ItemGain{{Resource: out.Type, Quality: out.Quality, Quantity: out.Quantity}},
		SkillGained: skillGainSuccess,
	}
}

// trade sells the offered items to the system at the static price table;
// every line must be covered before anything is removed.
func (p *Processor) trade(agent *world.Agent, a Action) Result {
	if len(a.Offer) == 0 {
		return fail(CodeBadRequest, "empty offer")
	}

	// Validate against the summed quantity per position so an offer that
	// repeats a line cannot pass line-by-line and then fail mid-removal.
	type position struct {
		resource catalog.ResourceType
		quality  catalog.Quality
	}
	offered := make(map[position]int, len(a.Offer))
	for _, line := range a.Offer {
		if line.Quantity <= 0 {
			return fail(CodeBadRequest, "offer quantities must be positive")
		}
		if _, priced := p.catalog.Prices[line.Resource]; !priced {
			return fail(CodeBadRequest, fmt.Sprintf("unknown resource %s", line.Resource))
		}
		pos := position{line.Resource, line.Quality}
		offered[pos] += line.Quantity
		if agent.Inventory.Count(line.Resource, line.Quality) < offered[pos] {
			return fail(CodeNoResource, fmt.Sprintf("not enough %s %s on hand", line.Quality, line.Resource))
		}
	}

	bonuses := p.factions.BonusesOf(agent.ID)
	var value float64
	for _, line := range a.Offer {
		if !p.store.RemoveFromInventory(agent.ID, line.Resource, line.Quality, line.Quantity) {
			return fail(CodeInternal, "inventory changed under trade")
		}
		value += p.catalog.Value(line.Resource, line.Quality) * float64(line.Quantity)
	}
	value *= bonuses.Trading

	p.store.UpdateAgent(agent.ID, func(ag *world.Agent) { ag.Skills.Trading += skillGainFailure })
	p.creditMon(agent.ID, value, "trade proceeds", func(st *world.Stats) {
		st.TradesCompleted++
	})
	p.factions.AwardPoints(agent.ID, len(a.Offer))

	p.bus.Publish(events.WorldEvent{
		Type:        events.TradeCompleted,
		AgentID:     agent.ID,
		LocationID:  agent.LocationID,
		Description: fmt.Sprintf("%s sold %d lots for %.1f MON", agent.Name, len(a.Offer), value),
		Data:        map[string]any{"lots": len(a.Offer), "mon": value},
	})

	return Result{
		Success:   true,
		Message:   fmt.Sprintf("sold %d lots for %.1f MON", len(a.Offer), value),
		MonEarned: value,
	}
}

// rest requires a safe zone; grants a uniform bump to the gathering-family
// skills scaled by lifetime action count and the location's rest bonus, and
// restores the agent to full health.
func (p *Processor) rest(agent *world.Agent) Result {
	loc := p.catalog.Location(agent.LocationID)
	if !loc.SafeZone {
		return fail(CodeWrongState, fmt.Sprintf("%s is not a safe zone", loc.ID))
	}

	gain := int(float64(agent.ActionCount) / 100.0 * loc.RestBonus)
	if gain < 1 {
		gain = 1
	}
	p.store.UpdateAgent(agent.ID, func(ag *world.Agent) {
		ag.Skills.Mining += gain
		ag.Skills.Gathering += gain
		ag.Skills.Crafting += gain
		ag.Combat.HP = ag.Combat.MaxHP
	})

	p.bus.Publish(events.WorldEvent{
		Type:        events.AgentRested,
		AgentID:     agent.ID,
		LocationID:  agent.LocationID,
		Description: fmt.Sprintf("%s rested at %s", agent.Name, loc.Name),
		Data:        map[string]any{"skill_gain": gain},
	})

	return Result{
		Success:     true,
		Message:     fmt.Sprintf("rested at %s", loc.Name),
		SkillGained: gain,
	}
}

// creditMon performs the three-way credit as one unit under the processor
// lock: ledger award, cached balance mirror, global counters.
func (p *Processor) creditMon(agentID string, amount float64, reason string, statsFn func(*world.Stats)) {
	if amount <= 0 {
		return
	}
	p.ledger.Award(agentID, amount, reason)
	p.store.UpdateBalance(agentID, p.ledger.Balance(agentID))
	p.store.UpdateStats(func(st *world.Stats) {
		st.TotalMonEarned += amount
		if statsFn != nil {
			statsFn(st)
		}
	})
}

func (p *Processor) bumpGatherSkill(agentID string, rt catalog.ResourceType, by int) {
	p.store.UpdateAgent(agentID, func(ag *world.Agent) {
		switch rt {
		case catalog.ResourceOre, catalog.ResourceStone, catalog.ResourceCrystal:
			ag.Skills.Mining += by
		default:
			ag.Skills.Gathering += by
		}
	})
}

func gatherSkill(s world.SkillSet, rt catalog.ResourceType) int {
	switch rt {
	case catalog.ResourceOre, catalog.ResourceStone, catalog.ResourceCrystal:
		return s.Mining
	default:
		return s.Gathering
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
