// Command worldcore runs the MONWORLD persistent agent economy.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/moncraft/monworld/internal/action"
	"github.com/moncraft/monworld/internal/api"
	"github.com/moncraft/monworld/internal/arena"
	"github.com/moncraft/monworld/internal/boss"
	"github.com/moncraft/monworld/internal/catalog"
	"github.com/moncraft/monworld/internal/entropy"
	"github.com/moncraft/monworld/internal/events"
	"github.com/moncraft/monworld/internal/faction"
	"github.com/moncraft/monworld/internal/ledger"
	"github.com/moncraft/monworld/internal/persistence"
	"github.com/moncraft/monworld/internal/season"
	"github.com/moncraft/monworld/internal/session"
	"github.com/moncraft/monworld/internal/world"
)

// Metadata keys for epoch state that lives outside the world export.
const (
	metaSeasonNumber  = "season_number"
	metaSeasonStarted = "season_started"
	metaPrestige      = "season_prestige"
	metaFactions      = "faction_state"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("MONWORLD — persistent agent economy core")

	port := envInt("WORLD_PORT", 8080)
	dataDir := envStr("WORLD_DATA_DIR", "data")
	catalogPath := envStr("WORLD_CATALOG", "")
	adminKey := envStr("WORLD_ADMIN_KEY", "")
	reserve := envFloat("WORLD_RESERVE", 1_000_000)

	// ── Catalog ───────────────────────────────────────────────────────
	cat, err := catalog.Load(catalogPath)
	if err != nil {
		slog.Error("catalog load failed", "path", catalogPath, "error", err)
		os.Exit(1)
	}
	slog.Info("catalog ready", "locations", len(cat.Locations), "recipes", len(cat.Recipes))

	// ── Database ──────────────────────────────────────────────────────
	os.MkdirAll(dataDir, 0o755)
	dbPath := filepath.Join(dataDir, "monworld.db")
	db, err := persistence.Open(dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", dbPath)

	// ── Core components ───────────────────────────────────────────────
	bus := events.NewBus()
	led := ledger.New(reserve)
	store := world.NewStore(cat, bus)
	factions := faction.NewManager(bus)
	seasons := season.NewManager(led, bus, filepath.Join(dataDir, "seasons"))
	rng := entropy.New()

	// ── Load or start fresh ───────────────────────────────────────────
	if db.HasWorldState() {
		slog.Info("found saved world state, loading...")

		ex, loadErr := db.LoadWorld()
		if loadErr != nil {
			slog.Error("failed to load world", "error", loadErr)
			os.Exit(1)
		}
		store.Restore(ex)

		// Continue the tx and event sequences past the persisted rows so
		// the append-only mirrors keep accepting new ids.
		txMax, evMax, idErr := db.MaxIDs()
		if idErr != nil {
			slog.Error("failed to read persisted id sequences", "error", idErr)
			os.Exit(1)
		}
		led.SeedSequence(txMax)
		bus.SeedSequence(evMax)

		// The database mirrors balances on the agent rows; the ledger is
		// rebuilt from those.
		for _, a := range ex.Agents {
			led.CreateAccount(a.ID, a.Balance)
		}

		restoreEpochState(db, seasons, factions)

		slog.Info("world state restored",
			"agents", len(ex.Agents),
			"season", seasons.Summary().Number,
			"total_mon", led.Total(),
		)
	} else {
		slog.Info("no saved state found, starting a fresh world")
	}

	arenaMgr := arena.NewManager(led, bus, rng)
	bossMgr := boss.NewManager(led, bus)
	gateway := session.NewGateway(led, seasons)
	proc := action.NewProcessor(store, led, cat, factions, bus, rng)

	// ── Background loops ──────────────────────────────────────────────
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	flusher := &persistence.Flusher{DB: db, Store: store, Ledger: led, Bus: bus}
	wg.Add(1)
	go func() {
		defer wg.Done()
		flusher.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		sweep := time.NewTicker(time.Minute)
		respawn := time.NewTicker(5 * time.Second)
		epoch := time.NewTicker(time.Minute)
		defer sweep.Stop()
		defer respawn.Stop()
		defer epoch.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-sweep.C:
				if n := gateway.Sweep(); n > 0 {
					slog.Info("expired sessions swept", "count", n)
				}
			case <-respawn.C:
				if bossMgr.ShouldRespawn() {
					st := bossMgr.Spawn()
					slog.Info("world boss respawned", "id", st.ID, "health", st.Health)
				}
			case <-epoch.C:
				if seasons.MaybeRollover() {
					slog.Info("season rolled over", "number", seasons.Summary().Number)
				}
				saveEpochState(db, seasons, factions)
			}
		}
	}()

	// ── HTTP API ──────────────────────────────────────────────────────
	server := &api.Server{
		Store:     store,
		Processor: proc,
		Ledger:    led,
		Factions:  factions,
		Arena:     arenaMgr,
		Boss:      bossMgr,
		Seasons:   seasons,
		Gateway:   gateway,
		Bus:       bus,
		Catalog:   cat,
		AdminKey:  adminKey,
		Snapshot: func() (string, error) {
			return writeSnapshot(dataDir, store, led, bus, seasons)
		},
	}
	server.Start(port)

	// ── Shutdown ──────────────────────────────────────────────────────
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	slog.Info("shutting down...")
	cancel()
	wg.Wait()
	saveEpochState(db, seasons, factions)
	if path, err := writeSnapshot(dataDir, store, led, bus, seasons); err != nil {
		slog.Error("shutdown snapshot failed", "error", err)
	} else {
		slog.Info("shutdown snapshot written", "path", path)
	}
	slog.Info("goodbye")
}

// writeSnapshot captures the full world into a timestamped snapshot file.
func writeSnapshot(dataDir string, store *world.Store, led *ledger.Ledger, bus *events.Bus, seasons *season.Manager) (string, error) {
	number, startedAt, prestige := seasons.Export()
	snap := persistence.SnapshotV1{
		Header:       persistence.SnapshotHeader{Version: 1, TakenAt: time.Now()},
		World:        store.Export(),
		Transactions: led.Transactions(0),
		Events:       bus.Recent(0),
		SeasonNumber: number,
		SeasonStart:  startedAt,
		Prestige:     prestige,
	}
	path := filepath.Join(dataDir, "snapshots", fmt.Sprintf("world_%s.zst", time.Now().UTC().Format("20060102T150405")))
	if err := persistence.WriteSnapshot(path, snap); err != nil {
		return "", err
	}
	return path, nil
}

// saveEpochState writes season and faction state into the metadata table.
func saveEpochState(db *persistence.DB, seasons *season.Manager, factions *faction.Manager) {
	number, startedAt, prestige := seasons.Export()
	db.SaveMeta(metaSeasonNumber, strconv.Itoa(number))
	db.SaveMeta(metaSeasonStarted, startedAt.UTC().Format(time.RFC3339))
	if raw, err := json.Marshal(prestige); err == nil {
		db.SaveMeta(metaPrestige, string(raw))
	}
	if raw, err := json.Marshal(factions.Export()); err == nil {
		db.SaveMeta(metaFactions, string(raw))
	}
}

func restoreEpochState(db *persistence.DB, seasons *season.Manager, factions *faction.Manager) {
	number := 1
	startedAt := time.Now()
	var prestige []season.PrestigeEntry

	if v, err := db.GetMeta(metaSeasonNumber); err == nil {
		if n, err := strconv.Atoi(v); err == nil {
			number = n
		}
	}
	if v, err := db.GetMeta(metaSeasonStarted); err == nil {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			startedAt = t
		}
	}
	if v, err := db.GetMeta(metaPrestige); err == nil && v != "" {
		json.Unmarshal([]byte(v), &prestige)
	}
	seasons.RestorePrestige(number, startedAt, prestige)

	if v, err := db.GetMeta(metaFactions); err == nil && v != "" {
		var ex faction.Export
		if json.Unmarshal([]byte(v), &ex) == nil {
			factions.Restore(ex)
		}
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
