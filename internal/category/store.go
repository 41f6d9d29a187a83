package category

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// fileLayout is the on-disk shape shared by both layers: category name
// to a list of literal command strings.
type fileLayout map[string][]string

// Store merges the default and user category layers and serialises all
// access. Mutations rewrite the user file and recompute the merge
// before returning, so the merged view is never stale for longer than
// one mutation.
type Store struct {
	mu          sync.RWMutex
	defaultPath string
	userPath    string
	logger      *zap.Logger

	user   map[Category][]string // user layer as written to disk
	merged map[string]Category   // command -> effective category
}

// NewStore creates a store backed by the given file paths and loads the
// merged view. A missing or malformed file is treated as an empty layer,
// never an error.
func NewStore(defaultPath, userPath string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		defaultPath: defaultPath,
		userPath:    userPath,
		logger:      logger,
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads both layers from disk and recomputes the merge.
func (s *Store) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reloadLocked()
}

func (s *Store) reloadLocked() error {
	def := s.readLayer(s.defaultPath)
	user := s.readLayer(s.userPath)

	merged := make(map[string]Category)
	// Default layer first, user layer second so it overrides.
	for cat, cmds := range def {
		for _, c := range cmds {
			merged[c] = cat
		}
	}
	for cat, cmds := range user {
		for _, c := range cmds {
			merged[c] = cat
		}
	}

	s.user = user
	s.merged = merged
	return nil
}

// readLayer parses one JSON layer. Missing or malformed files degrade
// to an empty layer; malformed files are logged.
func (s *Store) readLayer(path string) map[Category][]string {
	out := make(map[Category][]string)
	if path == "" {
		return out
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("category file unreadable, treating as empty",
				zap.String("path", path), zap.Error(err))
		}
		return out
	}
	var raw fileLayout
	if err := json.Unmarshal(data, &raw); err != nil {
		s.logger.Warn("category file malformed, treating as empty",
			zap.String("path", path), zap.Error(err))
		return out
	}
	for name, cmds := range raw {
		cat, err := Parse(name)
		if err != nil {
			s.logger.Warn("skipping unknown category in file",
				zap.String("path", path), zap.String("category", name))
			continue
		}
		out[cat] = append(out[cat], cmds...)
	}
	return out
}

// Classify returns the effective category for cmd, or Unknown. Identity
// is exact string equality; no normalisation is applied.
func (s *Store) Classify(cmd string) Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.merged[cmd]
}

// Add places cmd in cat within the user layer, removing it from any
// other user category first. It reports whether the command was already
// stored under that category.
func (s *Store) Add(cmd string, cat Category) (alreadySet bool, err error) {
	if cat == Unknown {
		return false, fmt.Errorf("cannot add %q to the unknown category", cmd)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if contains(s.user[cat], cmd) {
		return true, nil
	}
	for c := range s.user {
		if c != cat {
			s.user[c] = remove(s.user[c], cmd)
		}
	}
	s.user[cat] = append(s.user[cat], cmd)

	if err := s.writeUserLocked(); err != nil {
		return false, err
	}
	return false, s.reloadLocked()
}

// Remove deletes cmd from every user category. It reports whether the
// command was present in the user layer at all.
func (s *Store) Remove(cmd string) (removed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for c, cmds := range s.user {
		if contains(cmds, cmd) {
			s.user[c] = remove(cmds, cmd)
			removed = true
		}
	}
	if !removed {
		return false, nil
	}
	if err := s.writeUserLocked(); err != nil {
		return false, err
	}
	return true, s.reloadLocked()
}

// Move reassigns cmd to newCat in the user layer. Moving is the same
// user-layer rewrite as Add; it exists so callers can express intent.
func (s *Store) Move(cmd string, newCat Category) error {
	_, err := s.Add(cmd, newCat)
	return err
}

// List returns the merged view grouped by category, with each command
// list sorted for stable display.
func (s *Store) List() map[Category][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[Category][]string)
	for cmd, cat := range s.merged {
		out[cat] = append(out[cat], cmd)
	}
	for cat := range out {
		sort.Strings(out[cat])
	}
	return out
}

// writeUserLocked rewrites the whole user file. The store is the only
// writer; concurrent external edits are not merged.
func (s *Store) writeUserLocked() error {
	raw := make(fileLayout)
	for cat, cmds := range s.user {
		if len(cmds) == 0 {
			continue
		}
		sorted := append([]string(nil), cmds...)
		sort.Strings(sorted)
		raw[string(cat)] = sorted
	}
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode user categories: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.userPath), 0o755); err != nil {
		return fmt.Errorf("failed to create category directory: %w", err)
	}
	if err := os.WriteFile(s.userPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write user categories: %w", err)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func remove(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
