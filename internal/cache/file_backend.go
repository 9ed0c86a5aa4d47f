package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrInvalidKey is returned when a key contains path separators or
// traversal sequences.
var ErrInvalidKey = errors.New("cache: invalid key")

// FileBackend stores entries as JSON files, one file per key.
// Storage layout:
//
//	<base-dir>/
//	  └── <key>.json
type FileBackend struct {
	baseDir string
	mu      sync.RWMutex
	closed  bool
}

// NewFileBackend creates a file-based cache backend.
// If baseDir is empty, uses ~/.finsight/cache.
func NewFileBackend(baseDir string) (*FileBackend, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".finsight", "cache")
	}

	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	return &FileBackend{baseDir: baseDir}, nil
}

// Name identifies the backend in entry metadata and metrics.
func (f *FileBackend) Name() string { return "file" }

func (f *FileBackend) entryPath(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return "", ErrInvalidKey
	}
	return filepath.Join(f.baseDir, key+".json"), nil
}

// Put stores an entry under key.
func (f *FileBackend) Put(ctx context.Context, key string, entry *Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrBackendClosed
	}

	path, err := f.entryPath(key)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write entry: %w", err)
	}
	return nil
}

// Get retrieves the entry for key, or ErrNotFound.
func (f *FileBackend) Get(ctx context.Context, key string) (*Entry, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nil, ErrBackendClosed
	}

	path, err := f.entryPath(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path) // #nosec G304 - key validated to prevent traversal
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read entry: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("unmarshal entry: %w", err)
	}
	return &entry, nil
}

// Delete removes the entry for key. Missing keys are not an error.
func (f *FileBackend) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrBackendClosed
	}

	path, err := f.entryPath(key)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove entry: %w", err)
	}
	return nil
}

// Ping reports availability; the local filesystem is always reachable
// while the backend is open.
func (f *FileBackend) Ping(ctx context.Context) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return ErrBackendClosed
	}
	return nil
}

// Close marks the backend closed.
func (f *FileBackend) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	return nil
}
