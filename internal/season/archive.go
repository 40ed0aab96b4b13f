// Season archives: the closing leaderboard and prestige table written as a
// zstd-compressed file with a JSON header line followed by a gob body, one
// file per season under <dir>/season_NNN.zst.
package season

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/moncraft/monworld/internal/ledger"
)

// PrestigeEntry is one row of the carried-prestige table.
type PrestigeEntry struct {
	AgentID  string `json:"agent_id"`
	Prestige int    `json:"prestige"`
}

// ArchiveV1 is the on-disk season record.
type ArchiveV1 struct {
	Version     int             `json:"version"`
	Season      int             `json:"season"`
	StartedAt   time.Time       `json:"started_at"`
	EndedAt     time.Time       `json:"ended_at"`
	Leaderboard []ledger.Entry  `json:"leaderboard"`
	Prestige    []PrestigeEntry `json:"prestige"`
}

func archivePath(dir string, season int) string {
	return filepath.Join(dir, fmt.Sprintf("season_%03d.zst", season))
}

func writeArchive(dir string, season int, startedAt, endedAt time.Time, board []ledger.Entry, prestige []PrestigeEntry) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(archivePath(dir, season), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriter(enc)
	defer bw.Flush()

	arch := ArchiveV1{
		Version:     1,
		Season:      season,
		StartedAt:   startedAt,
		EndedAt:     endedAt,
		Leaderboard: board,
		Prestige:    prestige,
	}

	header, _ := json.Marshal(map[string]any{"version": arch.Version, "season": arch.Season})
	if _, err := bw.Write(header); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&arch); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

// ReadArchive loads one season archive file.
func ReadArchive(dir string, season int) (ArchiveV1, error) {
	var arch ArchiveV1
	f, err := os.Open(archivePath(dir, season))
	if err != nil {
		return arch, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return arch, err
	}
	defer dec.Close()

	br := bufio.NewReader(dec)
	// Header line duplicates fields the gob body also carries.
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&arch); err != nil {
		return arch, fmt.Errorf("gob decode: %w", err)
	}
	return arch, nil
}
