// Snapshot files: the full world capture as one zstd-compressed blob with
// a JSON header line followed by a gob body. Written on shutdown and on
// admin request; restore replays it into a fresh store.
package persistence

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/moncraft/monworld/internal/events"
	"github.com/moncraft/monworld/internal/ledger"
	"github.com/moncraft/monworld/internal/season"
	"github.com/moncraft/monworld/internal/world"
)

// SnapshotHeader identifies a snapshot file.
type SnapshotHeader struct {
	Version int       `json:"version"`
	TakenAt time.Time `json:"taken_at"`
}

// SnapshotV1 is the full serialized world.
type SnapshotV1 struct {
	Header SnapshotHeader `json:"header"`

	World        world.Export           `json:"world"`
	Transactions []ledger.Transaction   `json:"transactions"`
	Events       []events.WorldEvent    `json:"events"`
	SeasonNumber int                    `json:"season_number"`
	SeasonStart  time.Time              `json:"season_start"`
	Prestige     []season.PrestigeEntry `json:"prestige"`
}

// WriteSnapshot saves a snapshot to path, creating parent directories.
func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 64*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

// ReadSnapshot loads a snapshot file.
func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)
	// Header line duplicates fields the gob body also carries.
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}
