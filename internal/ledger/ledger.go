// Package ledger is the persisted record of fully archived videos. It is
// the sole source of truth for dedup: a video absent from the ledger is a
// fresh candidate on every run.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrCorrupt marks a ledger file that exists but cannot be parsed. Callers
// must treat it as fatal for the run: proceeding with an empty ledger would
// re-archive everything.
var ErrCorrupt = errors.New("ledger file is corrupt")

// ArchivedPart is one delivered chunk. PartNum counts delivered parts,
// contiguous from 1, independent of raw segment indexes.
type ArchivedPart struct {
	PartNum int    `json:"part_num"`
	FileID  string `json:"file_id"`
}

// ArchivedVideo exists only when at least one part was delivered.
type ArchivedVideo struct {
	ID              string         `json:"id"`
	Title           string         `json:"title"`
	Parts           []ArchivedPart `json:"parts"`
	SpoilerSafeFrom string         `json:"spoiler_safe_from,omitempty"`
}

// Store reads and writes the ledger file wholesale. Writes go through a
// temp file and rename so a crashed run never leaves a truncated ledger.
type Store struct {
	Path string
}

func NewStore(path string) *Store {
	return &Store{Path: path}
}

// Load returns the archived videos, most recent first. A missing file is an
// empty ledger; an unreadable or unparsable one is ErrCorrupt.
func (s *Store) Load() ([]ArchivedVideo, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return []ArchivedVideo{}, nil
		}
		return nil, fmt.Errorf("read ledger %s: %w", s.Path, err)
	}
	var entries []ArchivedVideo
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.Path, err)
	}
	return entries, nil
}

// Save overwrites the ledger atomically.
func (s *Store) Save(entries []ArchivedVideo) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create ledger dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".ledger-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write temp ledger: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("chmod temp ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp ledger: %w", err)
	}
	if err := os.Rename(tmpPath, s.Path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace ledger %s: %w", s.Path, err)
	}
	return nil
}

// ContainsID reports whether id is already archived.
func ContainsID(entries []ArchivedVideo, id string) bool {
	for _, e := range entries {
		if e.ID == id {
			return true
		}
	}
	return false
}

// Trim drops the oldest entries (the tail of the most-recent-first slice)
// until len <= max.
func Trim(entries []ArchivedVideo, max int) []ArchivedVideo {
	if max <= 0 || len(entries) <= max {
		return entries
	}
	return entries[:max]
}
