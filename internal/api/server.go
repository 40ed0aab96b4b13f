// Package api exposes the simulation core over HTTP. GET endpoints are
// public read-only observation; mutating endpoints require a session token
// minted by the entry gateway; admin endpoints require a bearer key.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/moncraft/monworld/internal/action"
	"github.com/moncraft/monworld/internal/arena"
	"github.com/moncraft/monworld/internal/boss"
	"github.com/moncraft/monworld/internal/catalog"
	"github.com/moncraft/monworld/internal/events"
	"github.com/moncraft/monworld/internal/faction"
	"github.com/moncraft/monworld/internal/ledger"
	"github.com/moncraft/monworld/internal/season"
	"github.com/moncraft/monworld/internal/session"
	"github.com/moncraft/monworld/internal/world"
)

// SnapshotFunc writes a point-in-time snapshot file on admin request.
type SnapshotFunc func() (string, error)

// Server wires the simulation core to its HTTP surface.
type Server struct {
	Store     *world.Store
	Processor *action.Processor
	Ledger    *ledger.Ledger
	Factions  *faction.Manager
	Arena     *arena.Manager
	Boss      *boss.Manager
	Seasons   *season.Manager
	Gateway   *session.Gateway
	Bus       *events.Bus
	Catalog   *catalog.Catalog

	AdminKey string       // Bearer token for admin endpoints. Empty = disabled.
	Snapshot SnapshotFunc // Optional admin snapshot trigger.
}

// Router builds the full route table.
func (s *Server) Router() http.Handler {
	entryLimiter := NewRateLimiter(30, time.Hour)

	r := mux.NewRouter()
	v1 := r.PathPrefix("/api/v1").Subrouter()

	// Entry and actions.
	v1.HandleFunc("/enter", RateLimitMiddleware(entryLimiter, s.handleEnter)).Methods(http.MethodPost)
	v1.HandleFunc("/action", s.handleAction).Methods(http.MethodPost)

	// Observation.
	v1.HandleFunc("/world", s.handleWorld).Methods(http.MethodGet)
	v1.HandleFunc("/agents", s.handleAgents).Methods(http.MethodGet)
	v1.HandleFunc("/agent/{id}", s.handleAgent).Methods(http.MethodGet)
	v1.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)
	v1.HandleFunc("/leaderboard", s.handleLeaderboard).Methods(http.MethodGet)

	// Factions.
	v1.HandleFunc("/factions", s.handleFactions).Methods(http.MethodGet)
	v1.HandleFunc("/faction/join", s.handleFactionJoin).Methods(http.MethodPost)

	// Arena.
	v1.HandleFunc("/arena/battles", s.handleBattles).Methods(http.MethodGet)
	v1.HandleFunc("/arena/challenge", s.handleChallenge).Methods(http.MethodPost)
	v1.HandleFunc("/arena/accept", s.handleAccept).Methods(http.MethodPost)
	v1.HandleFunc("/arena/fight", s.handleFight).Methods(http.MethodPost)
	v1.HandleFunc("/arena/bet", s.handleBet).Methods(http.MethodPost)

	// World boss.
	v1.HandleFunc("/boss", s.handleBossStatus).Methods(http.MethodGet)
	v1.HandleFunc("/boss/attack", s.handleBossAttack).Methods(http.MethodPost)

	// Season.
	v1.HandleFunc("/season", s.handleSeason).Methods(http.MethodGet)
	v1.HandleFunc("/season/rank/{id}", s.handleSeasonRank).Methods(http.MethodGet)

	// Event stream.
	v1.HandleFunc("/stream", s.handleStream).Methods(http.MethodGet)

	// Admin.
	v1.HandleFunc("/admin/boss/spawn", s.adminOnly(s.handleBossSpawn)).Methods(http.MethodPost)
	v1.HandleFunc("/admin/snapshot", s.adminOnly(s.handleSnapshot)).Methods(http.MethodPost)

	return corsMiddleware(r)
}

// Start serves the API in a goroutine.
func (s *Server) Start(port int) {
	addr := fmt.Sprintf(":%d", port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")
	go func() {
		if err := http.ListenAndServe(addr, s.Router()); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// corsMiddleware adds CORS headers for allowed frontend origins. Set
// CORS_ORIGINS to a comma-separated list; localhost dev servers are always
// allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// adminOnly requires the bearer admin key.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no admin key set)", http.StatusForbidden)
			return
		}
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != s.AdminKey {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "error", err)
	}
}

// failure is the structured error envelope carried on non-2xx responses
// and on rule-violation results.
type failure struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeFailure(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(failure{Code: code, Message: message})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeFailure(w, http.StatusBadRequest, action.CodeBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// requireSession resolves the token field to an agent id, writing the 401
// on failure.
func (s *Server) requireSession(w http.ResponseWriter, token string) (string, bool) {
	agentID, err := s.Gateway.Validate(token)
	if err != nil {
		writeFailure(w, http.StatusUnauthorized, action.CodeNoSession, "missing or expired session")
		return "", false
	}
	return agentID, true
}

// mirrorBalances refreshes the cached balance field for the given agents
// after ledger movement outside the action processor.
func (s *Server) mirrorBalances(agentIDs ...string) {
	for _, id := range agentIDs {
		s.Store.UpdateBalance(id, s.Ledger.Balance(id))
	}
}
