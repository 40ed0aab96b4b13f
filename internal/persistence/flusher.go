// The durability flusher: polls the store's dirty flag and writes the
// database mirror off the action path, so mutations stay durable within the
// flush interval without any action blocking on disk.
package persistence

import (
	"context"
	"log/slog"
	"time"

	"github.com/moncraft/monworld/internal/events"
	"github.com/moncraft/monworld/internal/ledger"
	"github.com/moncraft/monworld/internal/world"
)

// DefaultFlushInterval bounds how stale the database mirror may be.
const DefaultFlushInterval = 5 * time.Second

// Flusher periodically saves dirty world state.
type Flusher struct {
	DB       *DB
	Store    *world.Store
	Ledger   *ledger.Ledger
	Bus      *events.Bus
	Interval time.Duration
}

// Run blocks until ctx is cancelled, flushing on each tick where the store
// is dirty, plus one final flush on the way out.
func (f *Flusher) Run(ctx context.Context) {
	interval := f.Interval
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			f.Flush(true)
			return
		case <-ticker.C:
			f.Flush(false)
		}
	}
}

// Flush saves when the store is dirty (or unconditionally when force is
// set). Returns whether a save happened.
func (f *Flusher) Flush(force bool) bool {
	if !f.Store.Dirty(true) && !force {
		return false
	}

	ex := f.Store.Export()
	txs := f.Ledger.Transactions(0)
	evs := f.Bus.Recent(0)
	if err := f.DB.SaveWorld(ex, txs, evs); err != nil {
		slog.Error("world flush failed", "error", err)
		// Leave the state dirty so the next tick retries.
		f.Store.MarkDirty()
		return false
	}
	slog.Debug("world flushed", "agents", len(ex.Agents), "events", len(evs))
	return true
}
