// Package persistence provides SQLite-backed world state storage and the
// compressed point-in-time snapshot files. The database is the queryable
// mirror (agents, locations, ledger log, event tail); the snapshot file is
// the single-blob restore point.
package persistence

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/moncraft/monworld/internal/events"
	"github.com/moncraft/monworld/internal/ledger"
	"github.com/moncraft/monworld/internal/world"
)

// DB wraps a SQLite connection for world state persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS agents (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		location_id TEXT NOT NULL,
		balance REAL NOT NULL,
		faction_id TEXT,
		action_count INTEGER NOT NULL,
		joined_at INTEGER NOT NULL,
		last_action_at INTEGER NOT NULL,
		inventory_json TEXT NOT NULL,
		skills_json TEXT NOT NULL,
		combat_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS locations (
		id TEXT PRIMARY KEY,
		occupancy INTEGER NOT NULL,
		resources_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS ledger_tx (
		id INTEGER PRIMARY KEY,
		from_id TEXT NOT NULL,
		to_id TEXT NOT NULL,
		amount REAL NOT NULL,
		reason TEXT NOT NULL,
		balance REAL NOT NULL,
		at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY,
		at INTEGER NOT NULL,
		type TEXT NOT NULL,
		agent_id TEXT,
		location_id TEXT,
		description TEXT NOT NULL,
		data_json TEXT
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_at ON events(at);
	CREATE INDEX IF NOT EXISTS idx_tx_at ON ledger_tx(at);
	CREATE INDEX IF NOT EXISTS idx_agents_location ON agents(location_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveWorld writes the exported world state (full replace for agents and
// locations, append for ledger transactions and events).
func (db *DB) SaveWorld(ex world.Export, txs []ledger.Transaction, evs []events.WorldEvent) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM agents"); err != nil {
		return err
	}
	stmt, err := tx.Preparex(`INSERT INTO agents
		(id, name, location_id, balance, faction_id, action_count, joined_at, last_action_at,
		 inventory_json, skills_json, combat_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, a := range ex.Agents {
		invJSON, _ := json.Marshal(a.Inventory)
		skillsJSON, _ := json.Marshal(a.Skills)
		combatJSON, _ := json.Marshal(a.Combat)
		if _, err := stmt.Exec(
			a.ID, a.Name, a.LocationID, a.Balance, a.FactionID, a.ActionCount,
			a.JoinedAt.UnixMilli(), a.LastActionAt.UnixMilli(),
			string(invJSON), string(skillsJSON), string(combatJSON),
		); err != nil {
			return fmt.Errorf("insert agent %s: %w", a.ID, err)
		}
	}

	if _, err := tx.Exec("DELETE FROM locations"); err != nil {
		return err
	}
	for _, ls := range ex.Locations {
		resJSON, _ := json.Marshal(ls.Resources)
		if _, err := tx.Exec(
			"INSERT INTO locations (id, occupancy, resources_json) VALUES (?, ?, ?)",
			ls.ID, ls.Occupancy, string(resJSON),
		); err != nil {
			return fmt.Errorf("insert location %s: %w", ls.ID, err)
		}
	}

	for _, t := range txs {
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO ledger_tx (id, from_id, to_id, amount, reason, balance, at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.From, t.To, t.Amount, t.Reason, t.Balance, t.At.UnixMilli(),
		); err != nil {
			return err
		}
	}

	for _, e := range evs {
		dataJSON, _ := json.Marshal(e.Data)
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO events (id, at, type, agent_id, location_id, description, data_json)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.Timestamp.UnixMilli(), e.Type, e.AgentID, e.LocationID, e.Description, string(dataJSON),
		); err != nil {
			return err
		}
	}

	statsJSON, _ := json.Marshal(ex.Stats)
	if _, err := tx.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES ('stats', ?), ('next_agent_id', ?)",
		string(statsJSON), fmt.Sprintf("%d", ex.NextAgentID),
	); err != nil {
		return err
	}

	return tx.Commit()
}

// HasWorldState reports whether a prior save exists.
func (db *DB) HasWorldState() bool {
	var n int
	if err := db.conn.Get(&n, "SELECT COUNT(*) FROM world_meta WHERE key = 'next_agent_id'"); err != nil {
		return false
	}
	return n > 0
}

// LoadWorld reconstructs the exported state from the database.
func (db *DB) LoadWorld() (world.Export, error) {
	var ex world.Export

	type agentRow struct {
		ID            string         `db:"id"`
		Name          string         `db:"name"`
		LocationID    string         `db:"location_id"`
		Balance       float64        `db:"balance"`
		FactionID     sql.NullString `db:"faction_id"`
		ActionCount   int            `db:"action_count"`
		JoinedAt      int64          `db:"joined_at"`
		LastActionAt  int64          `db:"last_action_at"`
		InventoryJSON string         `db:"inventory_json"`
		SkillsJSON    string         `db:"skills_json"`
		CombatJSON    string         `db:"combat_json"`
	}
	var agentRows []agentRow
	if err := db.conn.Select(&agentRows, "SELECT * FROM agents"); err != nil {
		return ex, fmt.Errorf("load agents: %w", err)
	}
	for _, r := range agentRows {
		a := &world.Agent{
			ID:           r.ID,
			Name:         r.Name,
			LocationID:   r.LocationID,
			Balance:      r.Balance,
			FactionID:    r.FactionID.String,
			ActionCount:  r.ActionCount,
			JoinedAt:     time.UnixMilli(r.JoinedAt),
			LastActionAt: time.UnixMilli(r.LastActionAt),
		}
		if err := json.Unmarshal([]byte(r.InventoryJSON), &a.Inventory); err != nil {
			return ex, fmt.Errorf("agent %s inventory: %w", r.ID, err)
		}
		if err := json.Unmarshal([]byte(r.SkillsJSON), &a.Skills); err != nil {
			return ex, fmt.Errorf("agent %s skills: %w", r.ID, err)
		}
		if err := json.Unmarshal([]byte(r.CombatJSON), &a.Combat); err != nil {
			return ex, fmt.Errorf("agent %s combat: %w", r.ID, err)
		}
		ex.Agents = append(ex.Agents, a)
	}

	type locRow struct {
		ID            string `db:"id"`
		Occupancy     int    `db:"occupancy"`
		ResourcesJSON string `db:"resources_json"`
	}
	var locRows []locRow
	if err := db.conn.Select(&locRows, "SELECT * FROM locations"); err != nil {
		return ex, fmt.Errorf("load locations: %w", err)
	}
	for _, r := range locRows {
		ls := &world.LocationState{ID: r.ID, Occupancy: r.Occupancy}
		if err := json.Unmarshal([]byte(r.ResourcesJSON), &ls.Resources); err != nil {
			return ex, fmt.Errorf("location %s resources: %w", r.ID, err)
		}
		ex.Locations = append(ex.Locations, ls)
	}

	if statsStr, err := db.GetMeta("stats"); err == nil {
		if err := json.Unmarshal([]byte(statsStr), &ex.Stats); err != nil {
			return ex, fmt.Errorf("stats: %w", err)
		}
	}
	if nextStr, err := db.GetMeta("next_agent_id"); err == nil {
		fmt.Sscanf(nextStr, "%d", &ex.NextAgentID)
	}
	return ex, nil
}

// SaveMeta stores a key-value pair in world metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	return value, err
}

// MaxIDs returns the highest persisted transaction and event ids, zero
// when a table is empty. Used on restart to seed the in-memory sequences
// past the saved log.
func (db *DB) MaxIDs() (txMax, evMax uint64, err error) {
	if err = db.conn.Get(&txMax, "SELECT COALESCE(MAX(id), 0) FROM ledger_tx"); err != nil {
		return 0, 0, err
	}
	if err = db.conn.Get(&evMax, "SELECT COALESCE(MAX(id), 0) FROM events"); err != nil {
		return 0, 0, err
	}
	return txMax, evMax, nil
}

// RecentEvents returns the most recent N persisted events, oldest first.
func (db *DB) RecentEvents(limit int) ([]events.WorldEvent, error) {
	type row struct {
		ID          uint64         `db:"id"`
		At          int64          `db:"at"`
		Type        string         `db:"type"`
		AgentID     sql.NullString `db:"agent_id"`
		LocationID  sql.NullString `db:"location_id"`
		Description string         `db:"description"`
		DataJSON    sql.NullString `db:"data_json"`
	}
	var rows []row
	err := db.conn.Select(&rows,
		"SELECT * FROM (SELECT * FROM events ORDER BY id DESC LIMIT ?) ORDER BY id ASC",
		limit,
	)
	if err != nil {
		return nil, err
	}

	out := make([]events.WorldEvent, 0, len(rows))
	for _, r := range rows {
		ev := events.WorldEvent{
			ID:          r.ID,
			Timestamp:   time.UnixMilli(r.At),
			Type:        events.Type(r.Type),
			AgentID:     r.AgentID.String,
			LocationID:  r.LocationID.String,
			Description: r.Description,
		}
		if r.DataJSON.Valid && r.DataJSON.String != "null" {
			_ = json.Unmarshal([]byte(r.DataJSON.String), &ev.Data)
		}
		out = append(out, ev)
	}
	return out, nil
}
