// Package events defines the world event record and the publish/subscribe
// bus that fans events out to observers. Publishing assigns a monotonic
// sequence id under a single lock, so subscribers see a totally ordered
// stream. Slow subscribers drop events rather than blocking the mutation path.
package events

import (
	"sync"
	"time"
)

// Type categorizes a world event.
type Type string

const (
	AgentJoined      Type = "AGENT_JOINED"
	AgentMoved       Type = "AGENT_MOVED"
	ResourceGathered Type = "RESOURCE_GATHERED"
	ItemCrafted      Type = "ITEM_CRAFTED"
	TradeCompleted   Type = "TRADE_COMPLETED"
	AgentRested      Type = "AGENT_RESTED"
	FactionJoined    Type = "FACTION_JOINED"
	BattleCreated    Type = "BATTLE_CREATED"
	BattleAccepted   Type = "BATTLE_ACCEPTED"
	BattleCompleted  Type = "BATTLE_COMPLETED"
	BetPlaced        Type = "BET_PLACED"
	BossSpawned      Type = "BOSS_SPAWNED"
	BossDamaged      Type = "BOSS_DAMAGED"
	BossDefeated     Type = "BOSS_DEFEATED"
	SeasonEnded      Type = "SEASON_ENDED"
)

// WorldEvent is an append-only record of something that happened.
type WorldEvent struct {
	ID          uint64         `json:"id"`
	Timestamp   time.Time      `json:"timestamp"`
	Type        Type           `json:"type"`
	AgentID     string         `json:"agent_id,omitempty"`
	LocationID  string         `json:"location_id,omitempty"`
	Description string         `json:"description"`
	Data        map[string]any `json:"data,omitempty"`
}

// retainedEvents bounds the in-memory event tail kept for snapshots.
const retainedEvents = 1000

// Bus is the ordered event fan-out point.
type Bus struct {
	mu      sync.Mutex
	seq     uint64
	recent  []WorldEvent
	subs    map[int]chan WorldEvent
	nextSub int
	dropped uint64
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan WorldEvent)}
}

// SeedSequence advances the event sequence to at least n so that events
// published after a restart continue past the persisted tail instead of
// colliding with it. Seeding backwards is a no-op.
func (b *Bus) SeedSequence(n uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n > b.seq {
		b.seq = n
	}
}

// Publish stamps the event with a sequence id and timestamp, retains it in
// the bounded tail, and fans it out. Never blocks: a subscriber with a full
// buffer misses the event.
func (b *Bus) Publish(ev WorldEvent) WorldEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	ev.ID = b.seq
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	b.recent = append(b.recent, ev)
	if len(b.recent) > retainedEvents {
		b.recent = b.recent[len(b.recent)-retainedEvents:]
	}

	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.dropped++
		}
	}
	return ev
}

// Subscribe registers a buffered subscriber channel. The returned cancel
// function unregisters and closes it.
func (b *Bus) Subscribe(buffer int) (<-chan WorldEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextSub
	b.nextSub++
	ch := make(chan WorldEvent, buffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Recent returns a copy of the last n retained events, oldest first.
func (b *Bus) Recent(n int) []WorldEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n <= 0 || n > len(b.recent) {
		n = len(b.recent)
	}
	out := make([]WorldEvent, n)
	copy(out, b.recent[len(b.recent)-n:])
	return out
}

// Dropped reports how many events were missed by slow subscribers.
func (b *Bus) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
