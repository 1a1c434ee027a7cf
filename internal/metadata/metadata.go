package metadata

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// FileName is the metadata record kept in every product and scene directory.
const FileName = "metadata.json"

var ErrCorrupt = errors.New("metadata record checksum mismatch")

type Provenance struct {
	CreatedAt time.Time `json:"created_at"`
	Revision  string    `json:"revision"`
	RunID     string    `json:"run_id"`
	// Scenes lists the files or products a derived record was built from.
	Scenes []string `json:"scenes,omitempty"`
}

type Record struct {
	Row        map[string]string `json:"row"`
	Provenance Provenance        `json:"provenance"`
	Checksum   string            `json:"checksum"`
}

type Store struct {
	clock    clockwork.Clock
	revision string
	runID    string
}

func NewStore(clock clockwork.Clock, revision string) *Store {
	return &Store{clock: clock, revision: revision, runID: uuid.NewString()}
}

func (s *Store) RunID() string { return s.runID }

// Write persists row, with provenance, as dir/metadata.json. The file is
// written next to its final name and renamed into place.
func (s *Store) Write(dir string, row map[string]string, scenes []string) error {
	rec := Record{
		Row: row,
		Provenance: Provenance{
			CreatedAt: s.clock.Now().UTC(),
			Revision:  s.revision,
			RunID:     s.runID,
			Scenes:    scenes,
		},
	}
	rec.Checksum = checksum(rec)

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	path := filepath.Join(dir, FileName)
	tmpFile := path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp metadata file: %w", err)
	}
	if err := os.Rename(tmpFile, path); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to rename temp metadata file: %w", err)
	}
	return nil
}

// Read loads dir/metadata.json and verifies its checksum.
func Read(dir string) (Record, error) {
	var rec Record
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("failed to parse metadata in %s: %w", dir, err)
	}
	if rec.Checksum != checksum(rec) {
		return rec, fmt.Errorf("%w: %s", ErrCorrupt, dir)
	}
	return rec, nil
}

func checksum(rec Record) string {
	data, _ := json.Marshal(struct {
		Row        map[string]string `json:"row"`
		Provenance Provenance        `json:"provenance"`
	}{rec.Row, rec.Provenance})
	hash := md5.Sum(data)
	return hex.EncodeToString(hash[:])
}
