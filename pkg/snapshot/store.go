// Package snapshot stores daily configuration snapshots and writes a
// diff file only on days when a device's configuration changed.
package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/newtron-network/bulkcfg/pkg/util"
)

// DateFormat names snapshot and diff files.
const DateFormat = "2006-01-02"

// Store keeps one file per (date, device) under Dir.
type Store struct {
	Dir string

	// Overwrite allows replacing a snapshot already captured for the
	// same date. Snapshots are otherwise immutable.
	Overwrite bool
}

// NewStore creates dir if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating snapshot directory: %w", err)
	}
	return &Store{Dir: dir}, nil
}

// Path returns the snapshot file for address on date.
func (s *Store) Path(date time.Time, address string) string {
	return filepath.Join(s.Dir, fmt.Sprintf("%s_%s.cfg", date.Format(DateFormat), address))
}

// DiffPath returns the diff file for address on date.
func (s *Store) DiffPath(date time.Time, address string) string {
	return filepath.Join(s.Dir, fmt.Sprintf("%s_%s_diff.cfg", date.Format(DateFormat), address))
}

// Exists reports whether a snapshot exists for address on date.
func (s *Store) Exists(date time.Time, address string) bool {
	info, err := os.Stat(s.Path(date, address))
	return err == nil && info.Mode().IsRegular()
}

// Save writes config verbatim, followed by a newline. The file is written
// to a temporary name and renamed so a reader never sees a partial
// snapshot.
func (s *Store) Save(date time.Time, address, config string) (string, error) {
	path := s.Path(date, address)
	if !s.Overwrite && s.Exists(date, address) {
		return path, fmt.Errorf("%s: %w", filepath.Base(path), util.ErrSnapshotExists)
	}

	tmp, err := os.CreateTemp(s.Dir, ".snapshot-*")
	if err != nil {
		return "", fmt.Errorf("creating snapshot for %s: %w", address, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(config + "\n"); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing snapshot for %s: %w", address, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("writing snapshot for %s: %w", address, err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("saving snapshot for %s: %w", address, err)
	}
	return path, nil
}

// Load reads the snapshot for address on date.
func (s *Store) Load(date time.Time, address string) ([]byte, error) {
	return os.ReadFile(s.Path(date, address))
}
