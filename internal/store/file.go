package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// fileState is the on-disk document.
type fileState struct {
	Version   int64             `json:"version"`    // bumped on every save
	UpdatedAt string            `json:"updated_at"` // RFC3339
	Entries   map[string]string `json:"entries"`
}

// FileKV keeps the whole store in one JSON file and rewrites it atomically
// (temp file + rename) on every mutation.
type FileKV struct {
	mu       sync.RWMutex
	filePath string
	state    fileState
}

// OpenFileKV loads filePath, starting empty if it does not exist yet.
func OpenFileKV(filePath string) (*FileKV, error) {
	if filePath == "" {
		return nil, fmt.Errorf("store: file backend needs a path")
	}
	f := &FileKV{filePath: filePath, state: fileState{Entries: map[string]string{}}}

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return nil, fmt.Errorf("failed to read store file: %w", err)
	}
	if err := json.Unmarshal(data, &f.state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal store file: %w", err)
	}
	if f.state.Entries == nil {
		f.state.Entries = map[string]string{}
	}
	return f, nil
}

func (f *FileKV) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.state.Entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return []byte(v), nil
}

func (f *FileKV) Set(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.Entries[key] = string(value)
	return f.saveUnsafe()
}

func (f *FileKV) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.state.Entries[key]; !ok {
		return nil
	}
	delete(f.state.Entries, key)
	return f.saveUnsafe()
}

func (f *FileKV) Keys(_ context.Context, prefix string) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var keys []string
	for k := range f.state.Entries {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (f *FileKV) Close() error { return nil }

// saveUnsafe writes without taking the lock; callers hold it.
func (f *FileKV) saveUnsafe() error {
	f.state.Version++
	f.state.UpdatedAt = time.Now().UTC().Format(time.RFC3339)

	data, err := json.MarshalIndent(f.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal store file: %w", err)
	}
	if dir := filepath.Dir(f.filePath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	tempPath := f.filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp store file: %w", err)
	}
	if err := os.Rename(tempPath, f.filePath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename store file: %w", err)
	}
	return nil
}
