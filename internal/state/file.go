package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/couchcryptid/quakewatch/internal/domain"
)

// FileStore keeps each slot in its own plain-text file under dir. Every write
// replaces the whole file through a temp file and rename.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates dir if needed and returns a store rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) IsNewEvent(_ context.Context, url string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	last, err := s.read(eventSlot)
	if err != nil {
		return false, err
	}
	return isNew(last, url), nil
}

// Commit records url and magnitude as the last published event. The magnitude
// is written first so a crash in between never pairs a new URL with an old magnitude.
func (s *FileStore) Commit(_ context.Context, url string, magnitude float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.write(magnitudeSlot, formatMagnitude(magnitude)); err != nil {
		return err
	}
	return s.write(eventSlot, url)
}

func (s *FileStore) Rollback(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(eventSlot, "")
}

func (s *FileStore) SaveCoordinates(_ context.Context, c domain.Coordinates) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(coordinatesSlot, c.String())
}

func (s *FileStore) LastCoordinates(_ context.Context) (domain.Coordinates, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.read(coordinatesSlot)
	if err != nil {
		return domain.Coordinates{}, err
	}
	return parseCoordinates(raw)
}

func (s *FileStore) LastEvent(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(eventSlot)
}

func (s *FileStore) LastMagnitude(_ context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.read(magnitudeSlot)
	if err != nil {
		return 0, err
	}
	return parseMagnitude(raw)
}

func (s *FileStore) path(slot string) string {
	return filepath.Join(s.dir, slot+".txt")
}

// read returns the slot content; a missing file reads as "".
func (s *FileStore) read(slot string) (string, error) {
	data, err := os.ReadFile(s.path(slot))
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", slot, err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *FileStore) write(slot, value string) (err error) {
	tmp, err := os.CreateTemp(s.dir, slot+".*.tmp")
	if err != nil {
		return fmt.Errorf("write %s: %w", slot, err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.WriteString(value); err != nil {
		return fmt.Errorf("write %s: %w", slot, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", slot, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", slot, err)
	}
	if err = os.Rename(tmp.Name(), s.path(slot)); err != nil {
		return fmt.Errorf("replace %s: %w", slot, err)
	}
	return nil
}
