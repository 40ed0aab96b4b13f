// Package arena runs the wagered 1v1 battle state machine: challenge,
// accept, fight, spectate. Battles only ever move open -> active ->
// completed. Wagers and spectator stakes are escrowed through the ledger at
// the moment they are placed.
package arena

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/moncraft/monworld/internal/entropy"
	"github.com/moncraft/monworld/internal/events"
	"github.com/moncraft/monworld/internal/ledger"
)

// Status is the battle lifecycle state.
type Status string

const (
	StatusOpen      Status = "open"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// Side names which combatant a spectator backs.
type Side string

const (
	SideChallenger Side = "challenger"
	SideOpponent   Side = "opponent"
)

// Tunables for battle resolution.
const (
	MinWager     = 10.0
	MaxRounds    = 20
	critChance   = 0.10
	damageJitter = 5    // Symmetric noise band added to each hit.
	winnerCut    = 0.90 // Share of the principal pot paid to the winner.
)

// State machine and validation failures.
var (
	ErrNotFound      = errors.New("battle not found")
	ErrWrongState    = errors.New("battle is not in the required state")
	ErrBusy          = errors.New("agent already has an open or active battle")
	ErrSelfChallenge = errors.New("cannot fight yourself")
	ErrMinWager      = fmt.Errorf("wager below minimum of %v MON", MinWager)
	ErrNoFunds       = errors.New("insufficient balance")
	ErrCombatantBet  = errors.New("combatants cannot bet on their own battle")
	ErrBadSide       = errors.New("bet side must be challenger or opponent")
)

// Bet is one spectator stake.
type Bet struct {
	Side   Side    `json:"side"`
	Amount float64 `json:"amount"`
}

// Battle is one arena encounter.
type Battle struct {
	ID           string         `json:"id"`
	ChallengerID string         `json:"challenger_id"`
	OpponentID   string         `json:"opponent_id,omitempty"`
	Wager        float64        `json:"wager"`
	Bets         map[string]Bet `json:"bets,omitempty"`
	Status       Status         `json:"status"`
	WinnerID     string         `json:"winner_id,omitempty"`
	Log          []string       `json:"log,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	StartedAt    time.Time      `json:"started_at,omitempty"`
	EndedAt      time.Time      `json:"ended_at,omitempty"`
}

func (b *Battle) clone() *Battle {
	cp := *b
	cp.Bets = make(map[string]Bet, len(b.Bets))
	for k, v := range b.Bets {
		cp.Bets[k] = v
	}
	cp.Log = append([]string(nil), b.Log...)
	return &cp
}

// Combatant is the stat snapshot a fight runs against. Attack is expected
// to already include any faction combat bonus.
type Combatant struct {
	ID      string
	HP      int
	Attack  int
	Defense int
}

// FightOutcome reports a resolved battle.
type FightOutcome struct {
	WinnerID      string   `json:"winner_id"`
	LoserID       string   `json:"loser_id"`
	Rounds        int      `json:"rounds"`
	WinnerPayout  float64  `json:"winner_payout"`
	SpectatorPool float64  `json:"spectator_pool"`
	Log           []string `json:"log"`
}

// Manager is the independent battle registry.
type Manager struct {
	mu      sync.Mutex
	battles map[string]*Battle
	ledger  *ledger.Ledger
	bus     *events.Bus
	rng     *entropy.Source
	now     func() time.Time
}

// NewManager creates an arena manager.
func NewManager(l *ledger.Ledger, bus *events.Bus, rng *entropy.Source) *Manager {
	return &Manager{
		battles: make(map[string]*Battle),
		ledger:  l,
		bus:     bus,
		rng:     rng,
		now:     time.Now,
	}
}

// CreateChallenge opens a battle and escrows the challenger's wager.
func (m *Manager) CreateChallenge(agentID string, wager float64) (*Battle, error) {
	if wager < MinWager {
		return nil, ErrMinWager
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.busyLocked(agentID) {
		return nil, ErrBusy
	}
	if !m.ledger.Deduct(agentID, wager, "arena wager escrow") {
		return nil, ErrNoFunds
	}

	b := &Battle{
		ID:           uuid.NewString(),
		ChallengerID: agentID,
		Wager:        wager,
		Bets:         make(map[string]Bet),
		Status:       StatusOpen,
		CreatedAt:    m.now(),
	}
	m.battles[b.ID] = b

	m.bus.Publish(events.WorldEvent{
		Type:        events.BattleCreated,
		AgentID:     agentID,
		Description: fmt.Sprintf("%s opened an arena challenge for %.0f MON", agentID, wager),
		Data:        map[string]any{"battle_id": b.ID, "wager": wager},
	})
	return b.clone(), nil
}

// AcceptChallenge joins an open battle, escrows the opponent's matching
// wager, and transitions the battle to active.
func (m *Manager) AcceptChallenge(battleID, opponentID string) (*Battle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.battles[battleID]
	if !ok {
		return nil, ErrNotFound
	}
	if b.Status != StatusOpen {
		return nil, ErrWrongState
	}
	if b.ChallengerID == opponentID {
		return nil, ErrSelfChallenge
	}
	if m.busyLocked(opponentID) {
		return nil, ErrBusy
	}
	if !m.ledger.Deduct(opponentID, b.Wager, "arena wager escrow") {
		return nil, ErrNoFunds
	}

	b.OpponentID = opponentID
	b.Status = StatusActive
	b.StartedAt = m.now()

	m.bus.Publish(events.WorldEvent{
		Type:        events.BattleAccepted,
		AgentID:     opponentID,
		Description: fmt.Sprintf("%s accepted the challenge from %s", opponentID, b.ChallengerID),
		Data:        map[string]any{"battle_id": b.ID, "wager": b.Wager},
	})
	return b.clone(), nil
}

// PlaceBet escrows a spectator stake on an active battle. One bet per
// spectator per battle; combatants cannot bet.
func (m *Manager) PlaceBet(battleID, spectatorID string, side Side, amount float64) error {
	if side != SideChallenger && side != SideOpponent {
		return ErrBadSide
	}
	if amount <= 0 {
		return ErrMinWager
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.battles[battleID]
	if !ok {
		return ErrNotFound
	}
	if b.Status != StatusActive {
		return ErrWrongState
	}
	if spectatorID == b.ChallengerID || spectatorID == b.OpponentID {
		return ErrCombatantBet
	}
	if _, dup := b.Bets[spectatorID]; dup {
		return ErrBusy
	}
	if !m.ledger.Deduct(spectatorID, amount, "arena bet escrow") {
		return ErrNoFunds
	}

	b.Bets[spectatorID] = Bet{Side: side, Amount: amount}

	m.bus.Publish(events.WorldEvent{
		Type:        events.BetPlaced,
		AgentID:     spectatorID,
		Description: fmt.Sprintf("%s bet %.0f MON on the %s", spectatorID, amount, side),
		Data:        map[string]any{"battle_id": b.ID, "side": string(side), "amount": amount},
	})
	return nil
}

// Fight resolves an active battle and settles all payouts. Requires stat
// snapshots for both combatants; fails without side effects when the battle
// is not active.
func (m *Manager) Fight(battleID string, challenger, opponent Combatant) (*FightOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.battles[battleID]
	if !ok {
		return nil, ErrNotFound
	}
	if b.Status != StatusActive || b.OpponentID == "" {
		return nil, ErrWrongState
	}
	if challenger.ID != b.ChallengerID || opponent.ID != b.OpponentID {
		return nil, fmt.Errorf("combatant snapshots do not match battle %s", battleID)
	}

	outcome := m.simulate(challenger, opponent)
	b.Status = StatusCompleted
	b.WinnerID = outcome.WinnerID
	b.Log = outcome.Log
	b.EndedAt = m.now()

	// Winner takes 90% of the principal pot; the remainder stays with the
	// system escrow as the house fee.
	outcome.WinnerPayout = 2 * b.Wager * winnerCut
	m.ledger.Award(outcome.WinnerID, outcome.WinnerPayout, "arena victory")

	outcome.SpectatorPool = m.settleBetsLocked(b)

	m.bus.Publish(events.WorldEvent{
		Type:        events.BattleCompleted,
		AgentID:     outcome.WinnerID,
		Description: fmt.Sprintf("%s defeated %s in the arena after %d rounds", outcome.WinnerID, outcome.LoserID, outcome.Rounds),
		Data: map[string]any{
			"battle_id": b.ID,
			"winner":    outcome.WinnerID,
			"payout":    outcome.WinnerPayout,
		},
	})
	return outcome, nil
}

// settleBetsLocked distributes the full spectator pool pro-rata among
// bettors who backed the winner. With no winning bettors the pool stays in
// system escrow. Returns the pool size.
func (m *Manager) settleBetsLocked(b *Battle) float64 {
	var pool, winningStake float64
	winningSide := SideChallenger
	if b.WinnerID == b.OpponentID {
		winningSide = SideOpponent
	}
	for _, bet := range b.Bets {
		pool += bet.Amount
		if bet.Side == winningSide {
			winningStake += bet.Amount
		}
	}
	if pool == 0 || winningStake == 0 {
		return pool
	}
	for spectator, bet := range b.Bets {
		if bet.Side != winningSide {
			continue
		}
		share := pool * bet.Amount / winningStake
		m.ledger.Award(spectator, share, "arena bet payout")
	}
	return pool
}

// simulate runs the round loop: alternating strikes, damage =
// attack - defense + jitter (minimum 1), independent crit roll doubling the
// hit, capped at MaxRounds. The combatant with more health remaining wins;
// the challenger wins exact ties.
func (m *Manager) simulate(challenger, opponent Combatant) *FightOutcome {
	chHP, opHP := challenger.HP, opponent.HP
	log := []string{fmt.Sprintf("%s vs %s: fight!", challenger.ID, opponent.ID)}

	rounds := 0
	for r := 1; r <= MaxRounds; r++ {
		rounds = r

		dmg := m.rollDamage(challenger, opponent)
		opHP -= dmg
		log = append(log, fmt.Sprintf("round %d: %s hits %s for %d (%d hp left)", r, challenger.ID, opponent.ID, dmg, max(opHP, 0)))
		if opHP <= 0 {
			break
		}

		dmg = m.rollDamage(opponent, challenger)
		chHP -= dmg
		log = append(log, fmt.Sprintf("round %d: %s hits %s for %d (%d hp left)", r, opponent.ID, challenger.ID, dmg, max(chHP, 0)))
		if chHP <= 0 {
			break
		}
	}

	winner, loser := challenger.ID, opponent.ID
	if opHP > chHP {
		winner, loser = opponent.ID, challenger.ID
	}
	log = append(log, fmt.Sprintf("%s wins after %d rounds", winner, rounds))

	return &FightOutcome{WinnerID: winner, LoserID: loser, Rounds: rounds, Log: log}
}

func (m *Manager) rollDamage(att, def Combatant) int {
	dmg := att.Attack - def.Defense + m.rng.IntN(2*damageJitter+1) - damageJitter
	if dmg < 1 {
		dmg = 1
	}
	if m.rng.Float() < critChance {
		dmg *= 2
	}
	return dmg
}

// Battle returns a copy of one battle.
func (m *Manager) Battle(battleID string) (*Battle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.battles[battleID]
	if !ok {
		return nil, ErrNotFound
	}
	return b.clone(), nil
}

// Battles lists copies of battles in the given states (all when empty).
func (m *Manager) Battles(states ...Status) []*Battle {
	m.mu.Lock()
	defer m.mu.Unlock()

	want := make(map[Status]bool, len(states))
	for _, s := range states {
		want[s] = true
	}
	var out []*Battle
	for _, b := range m.battles {
		if len(want) == 0 || want[b.Status] {
			out = append(out, b.clone())
		}
	}
	return out
}

// busyLocked reports whether an agent is a combatant in any non-completed
// battle.
func (m *Manager) busyLocked(agentID string) bool {
	for _, b := range m.battles {
		if b.Status == StatusCompleted {
			continue
		}
		if b.ChallengerID == agentID || b.OpponentID == agentID {
			return true
		}
	}
	return false
}
