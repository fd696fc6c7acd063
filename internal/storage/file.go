// Package storage provides file-backed JSON persistence for the position
// ledger and the market data cache.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/knakatani/kabufolio/internal/common"
	"github.com/knakatani/kabufolio/internal/interfaces"
	"github.com/knakatani/kabufolio/internal/models"
)

// sanitizeKey makes a key safe for use as a filename.
// Replaces /, \, : with _ and collapses ".." to "_" to prevent path
// traversal. Single dots are preserved (common in tickers like "7203.T").
func sanitizeKey(key string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "..", "_")
	return r.Replace(key)
}

// writeJSONAtomic marshals data to indented JSON and writes it atomically
// via a temp file rename.
func writeJSONAtomic(path string, data interface{}) error {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to rename %s: %w", tmp, err)
	}
	return nil
}

// FileCache implements the Cache interface over a directory of JSON files.
// It is the explicit cache object injected into the market service — the
// valuation core never touches the storage medium.
type FileCache struct {
	basePath string
	logger   *common.Logger
}

// NewFileCache creates a FileCache rooted at path, creating it if needed.
func NewFileCache(logger *common.Logger, path string) (*FileCache, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", path, err)
	}
	logger.Debug().Str("path", path).Msg("FileCache opened")
	return &FileCache{basePath: path, logger: logger}, nil
}

func (c *FileCache) filePath(key string) string {
	return filepath.Join(c.basePath, sanitizeKey(key)+".json")
}

// Get unmarshals the cached value for key into dest.
func (c *FileCache) Get(key string, dest interface{}) error {
	data, err := os.ReadFile(c.filePath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return interfaces.ErrCacheMiss
		}
		return fmt.Errorf("failed to read cache key %s: %w", key, err)
	}
	if len(data) == 0 {
		return interfaces.ErrCacheMiss
	}
	if err := json.Unmarshal(data, dest); err != nil {
		// A corrupt cache entry is a miss, not a failure.
		c.logger.Warn().Str("key", key).Err(err).Msg("Corrupt cache entry, treating as miss")
		return interfaces.ErrCacheMiss
	}
	return nil
}

// Put stores a value under key.
func (c *FileCache) Put(key string, value interface{}) error {
	return writeJSONAtomic(c.filePath(key), value)
}

// Delete removes a key. Absent keys are not an error.
func (c *FileCache) Delete(key string) error {
	err := os.Remove(c.filePath(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete cache key %s: %w", key, err)
	}
	return nil
}

// FilePositionStore implements PositionStore over a single JSON ledger
// file. Writes are serialized with a mutex; the file is rewritten
// atomically on every change (the ledger is small — a personal portfolio).
type FilePositionStore struct {
	path   string
	logger *common.Logger
	mu     sync.Mutex
}

// NewFilePositionStore creates a FilePositionStore at dir/positions.json.
func NewFilePositionStore(logger *common.Logger, dir string) (*FilePositionStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create positions directory %s: %w", dir, err)
	}
	s := &FilePositionStore{
		path:   filepath.Join(dir, "positions.json"),
		logger: logger,
	}
	logger.Debug().Str("path", s.path).Msg("FilePositionStore opened")
	return s, nil
}

func (s *FilePositionStore) load() ([]models.RawPosition, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []models.RawPosition{}, nil
		}
		return nil, fmt.Errorf("failed to read position ledger: %w", err)
	}
	if len(data) == 0 {
		return []models.RawPosition{}, nil
	}

	var positions []models.RawPosition
	if err := json.Unmarshal(data, &positions); err != nil {
		return nil, fmt.Errorf("failed to parse position ledger: %w", err)
	}
	return positions, nil
}

// ListPositions returns the full ledger in recorded order.
func (s *FilePositionStore) ListPositions(ctx context.Context) ([]models.RawPosition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// SavePositions replaces the whole ledger.
func (s *FilePositionStore) SavePositions(ctx context.Context, positions []models.RawPosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSONAtomic(s.path, positions)
}

// AddPosition appends one transaction to the ledger.
func (s *FilePositionStore) AddPosition(ctx context.Context, position models.RawPosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	positions, err := s.load()
	if err != nil {
		return err
	}
	for _, p := range positions {
		if p.ID == position.ID {
			return fmt.Errorf("position %s already exists", position.ID)
		}
	}
	positions = append(positions, position)
	return writeJSONAtomic(s.path, positions)
}

// DeletePosition removes a transaction by id. Returns false when the id
// was not found.
func (s *FilePositionStore) DeletePosition(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	positions, err := s.load()
	if err != nil {
		return false, err
	}

	kept := positions[:0]
	found := false
	for _, p := range positions {
		if p.ID == id {
			found = true
			continue
		}
		kept = append(kept, p)
	}
	if !found {
		return false, nil
	}
	return true, writeJSONAtomic(s.path, kept)
}
