package reset

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// MarkerStore persists the date of the last applied reset. The marker is
// per-device state, deliberately not kept in the document store: two devices
// may each run the day's reset once, which is harmless because reverting an
// already-reverted item changes nothing.
type MarkerStore interface {
	// LastReset returns the stored date key, or "" when none exists.
	LastReset() (string, error)
	SetLastReset(date string) error
}

// FileMarker keeps the marker in a single small file.
type FileMarker struct {
	path string
}

func NewFileMarker(path string) *FileMarker {
	return &FileMarker{path: path}
}

func (m *FileMarker) LastReset() (string, error) {
	data, err := os.ReadFile(m.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read marker: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (m *FileMarker) SetLastReset(date string) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("create marker dir: %w", err)
	}
	if err := os.WriteFile(m.path, []byte(date+"\n"), 0o644); err != nil {
		return fmt.Errorf("write marker: %w", err)
	}
	return nil
}

// MemMarker is an in-memory MarkerStore for tests and ephemeral runs.
type MemMarker struct {
	date string
}

func (m *MemMarker) LastReset() (string, error) { return m.date, nil }

func (m *MemMarker) SetLastReset(date string) error {
	m.date = date
	return nil
}
