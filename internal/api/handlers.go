// Request handlers for entry, actions, observation, factions, the arena,
// the world boss, and seasons.
package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/moncraft/monworld/internal/action"
	"github.com/moncraft/monworld/internal/arena"
	"github.com/moncraft/monworld/internal/boss"
	"github.com/moncraft/monworld/internal/faction"
	"github.com/moncraft/monworld/internal/world"
)

// handleEnter registers a new agent, settles the entry fee, and mints a
// session token.
func (s *Server) handleEnter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name            string  `json:"name"`
		StartingBalance float64 `json:"starting_balance"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeFailure(w, http.StatusBadRequest, action.CodeBadRequest, "name required")
		return
	}
	if fee := s.Seasons.EntryFee(); req.StartingBalance < fee {
		writeFailure(w, http.StatusPaymentRequired, action.CodeNoFunds,
			"starting balance does not cover the entry fee")
		return
	}

	agent, err := s.Store.AddAgent(req.Name, req.StartingBalance)
	if err != nil {
		writeFailure(w, http.StatusConflict, action.CodeCapacity, err.Error())
		return
	}
	s.Ledger.CreateAccount(agent.ID, req.StartingBalance)

	sess, charged, err := s.Gateway.ProcessEntry(agent.ID)
	if err != nil {
		// Fee re-check raced a season rollover; the agent keeps its
		// account but gets no session.
		writeFailure(w, http.StatusPaymentRequired, action.CodeNoFunds, err.Error())
		return
	}
	s.mirrorBalances(agent.ID)

	writeJSON(w, map[string]any{
		"success":    true,
		"agent":      s.Store.Agent(agent.ID),
		"token":      sess.Token,
		"expires_at": sess.ExpiresAt,
		"fee_paid":   charged,
	})
}

// handleAction runs one intent through the processor. Rule violations come
// back as HTTP 200 with success=false and an error code; non-2xx statuses
// are reserved for transport and auth problems.
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
		action.Action
	}
	if !decodeBody(w, r, &req) {
		return
	}
	agentID, ok := s.requireSession(w, req.Token)
	if !ok {
		return
	}
	req.Action.AgentID = agentID
	writeJSON(w, s.Processor.Process(req.Action))
}

func (s *Server) handleWorld(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"agents":    s.Store.Agents(),
		"locations": s.locationViews(),
		"stats":     s.Store.Stats(),
		"events":    s.Bus.Recent(50),
		"boss":      s.Boss.Status(),
		"season":    s.Seasons.Summary(),
	})
}

// locationViews joins static catalog data with runtime state.
func (s *Server) locationViews() []map[string]any {
	states := s.Store.Locations()
	out := make([]map[string]any, 0, len(states))
	for _, ls := range states {
		loc := s.Catalog.Location(ls.ID)
		if loc == nil {
			continue
		}
		out = append(out, map[string]any{
			"id":              ls.ID,
			"name":            loc.Name,
			"capacity":        loc.Capacity,
			"occupancy":       ls.Occupancy,
			"safe_zone":       loc.SafeZone,
			"allows_crafting": loc.AllowsCrafting,
			"pvp_zone":        loc.PvPZone,
			"connections":     loc.Connections,
			"resources":       ls.Resources,
		})
	}
	return out
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Store.Agents())
}

func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	agent := s.Store.Agent(mux.Vars(r)["id"])
	if agent == nil {
		writeFailure(w, http.StatusNotFound, action.CodeNotFound, "agent not found")
		return
	}
	writeJSON(w, agent)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Bus.Recent(100))
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Ledger.Leaderboard(20))
}

func (s *Server) handleFactions(w http.ResponseWriter, r *http.Request) {
	type row struct {
		faction.Standing
		Bonuses faction.Bonuses `json:"bonuses"`
	}
	standings := s.Factions.Leaderboard()
	out := make([]row, 0, len(standings))
	for _, st := range standings {
		out = append(out, row{Standing: st, Bonuses: s.Factions.BonusesFor(st.Faction)})
	}
	writeJSON(w, out)
}

func (s *Server) handleFactionJoin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token   string     `json:"token"`
		Faction faction.ID `json:"faction"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	agentID, ok := s.requireSession(w, req.Token)
	if !ok {
		return
	}

	bonuses, err := s.Factions.Join(agentID, req.Faction)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, action.CodeBadRequest, err.Error())
		return
	}
	s.Store.UpdateAgent(agentID, func(a *world.Agent) {
		a.FactionID = string(req.Faction)
	})
	writeJSON(w, map[string]any{
		"success": true,
		"faction": req.Faction,
		"bonuses": bonuses,
	})
}

func (s *Server) handleBattles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Arena.Battles())
}

func (s *Server) handleChallenge(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string  `json:"token"`
		Wager float64 `json:"wager"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	agentID, ok := s.requireSession(w, req.Token)
	if !ok {
		return
	}

	battle, err := s.Arena.CreateChallenge(agentID, req.Wager)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, arenaCode(err), err.Error())
		return
	}
	s.mirrorBalances(agentID)
	writeJSON(w, map[string]any{"success": true, "battle": battle})
}

func (s *Server) handleAccept(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		BattleID string `json:"battle_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	agentID, ok := s.requireSession(w, req.Token)
	if !ok {
		return
	}

	battle, err := s.Arena.AcceptChallenge(req.BattleID, agentID)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, arenaCode(err), err.Error())
		return
	}
	s.mirrorBalances(agentID)
	writeJSON(w, map[string]any{"success": true, "battle": battle})
}

func (s *Server) handleBet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string     `json:"token"`
		BattleID string     `json:"battle_id"`
		Side     arena.Side `json:"side"`
		Amount   float64    `json:"amount"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	agentID, ok := s.requireSession(w, req.Token)
	if !ok {
		return
	}

	if err := s.Arena.PlaceBet(req.BattleID, agentID, req.Side, req.Amount); err != nil {
		writeFailure(w, http.StatusBadRequest, arenaCode(err), err.Error())
		return
	}
	s.mirrorBalances(agentID)
	writeJSON(w, map[string]any{"success": true})
}

// handleFight resolves an active battle. Either combatant may trigger it;
// combatant snapshots carry faction combat bonuses into the simulation.
func (s *Server) handleFight(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		BattleID string `json:"battle_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	agentID, ok := s.requireSession(w, req.Token)
	if !ok {
		return
	}

	battle, err := s.Arena.Battle(req.BattleID)
	if err != nil {
		writeFailure(w, http.StatusNotFound, action.CodeNotFound, err.Error())
		return
	}
	if agentID != battle.ChallengerID && agentID != battle.OpponentID {
		writeFailure(w, http.StatusForbidden, action.CodeBadRequest, "only a combatant may start the fight")
		return
	}

	challenger := s.combatant(battle.ChallengerID)
	opponent := s.combatant(battle.OpponentID)
	if challenger == nil || opponent == nil {
		writeFailure(w, http.StatusNotFound, action.CodeNotFound, "combatant no longer exists")
		return
	}

	outcome, err := s.Arena.Fight(req.BattleID, *challenger, *opponent)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, arenaCode(err), err.Error())
		return
	}

	s.Store.UpdateAgent(outcome.WinnerID, func(a *world.Agent) { a.Combat.Wins++ })
	s.Store.UpdateAgent(outcome.LoserID, func(a *world.Agent) { a.Combat.Losses++ })

	touched := []string{battle.ChallengerID, battle.OpponentID}
	for spectator := range battle.Bets {
		touched = append(touched, spectator)
	}
	s.mirrorBalances(touched...)

	writeJSON(w, map[string]any{"success": true, "outcome": outcome})
}

// combatant snapshots an agent's fight stats, attack scaled by the faction
// combat bonus.
func (s *Server) combatant(agentID string) *arena.Combatant {
	a := s.Store.Agent(agentID)
	if a == nil {
		return nil
	}
	bonus := s.Factions.BonusesOf(agentID).Combat
	return &arena.Combatant{
		ID:      a.ID,
		HP:      a.Combat.MaxHP,
		Attack:  int(float64(a.Combat.Attack) * bonus),
		Defense: a.Combat.Defense,
	}
}

// arenaCode maps arena errors onto the shared error taxonomy.
func arenaCode(err error) string {
	switch {
	case errors.Is(err, arena.ErrNotFound):
		return action.CodeNotFound
	case errors.Is(err, arena.ErrNoFunds):
		return action.CodeNoFunds
	case errors.Is(err, arena.ErrWrongState):
		return action.CodeWrongState
	default:
		return action.CodeBadRequest
	}
}

func (s *Server) handleBossStatus(w http.ResponseWriter, r *http.Request) {
	st := s.Boss.Status()
	resp := map[string]any{"boss": st}
	if st.Defeated {
		resp["respawn_in_seconds"] = int(s.Boss.TimeUntilRespawn().Seconds())
	}
	writeJSON(w, resp)
}

func (s *Server) handleBossAttack(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	agentID, ok := s.requireSession(w, req.Token)
	if !ok {
		return
	}

	agent := s.Store.Agent(agentID)
	if agent == nil {
		writeFailure(w, http.StatusNotFound, action.CodeNotFound, "agent not found")
		return
	}

	damage := int(float64(agent.Combat.Attack) * s.Factions.BonusesOf(agentID).Combat)
	result, err := s.Boss.Attack(agentID, damage)
	if err != nil {
		if errors.Is(err, boss.ErrInactive) {
			writeFailure(w, http.StatusConflict, action.CodeWrongState, "no active boss")
			return
		}
		writeFailure(w, http.StatusInternalServerError, action.CodeInternal, err.Error())
		return
	}

	if result.Defeated {
		// The defeating hit paid every participant; refresh their mirrors.
		s.mirrorBalances(s.Boss.Status().Participants...)
	}
	writeJSON(w, map[string]any{"success": true, "result": result})
}

func (s *Server) handleSeason(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Seasons.Summary())
}

func (s *Server) handleSeasonRank(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Seasons.Standing(mux.Vars(r)["id"]))
}

func (s *Server) handleBossSpawn(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"success": true, "boss": s.Boss.Spawn()})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.Snapshot == nil {
		writeFailure(w, http.StatusNotImplemented, action.CodeInternal, "snapshots not configured")
		return
	}
	path, err := s.Snapshot()
	if err != nil {
		writeFailure(w, http.StatusInternalServerError, action.CodeInternal, err.Error())
		return
	}
	writeJSON(w, map[string]any{"success": true, "path": path})
}
