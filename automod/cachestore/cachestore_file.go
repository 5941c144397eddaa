package cachestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Cache persisted as a single JSON object on local disk. Changes are held in memory until [FileCacheStore.Flush] is called.
//
// This is intended for CLI runs which want to re-use fetched identifiers between invocations, not for concurrent processes sharing one file.
type FileCacheStore struct {
	path  string
	lk    sync.Mutex
	data  map[string]string
	dirty bool
}

var _ CacheStore = (*FileCacheStore)(nil)

// Opens (or prepares to create) a file-backed cache. A missing file is an empty cache; a corrupt one is an error.
func OpenFileCacheStore(path string) (*FileCacheStore, error) {
	s := &FileCacheStore{
		path: path,
		data: make(map[string]string),
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("parsing cache file %s: %w", path, err)
	}
	return s, nil
}

func (s *FileCacheStore) Get(ctx context.Context, name, key string) (string, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	v, ok := s.data[cacheKey(name, key)]
	observeLookup("file", name, ok)
	return v, nil
}

func (s *FileCacheStore) Set(ctx context.Context, name, key string, val string) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	s.data[cacheKey(name, key)] = val
	s.dirty = true
	return nil
}

func (s *FileCacheStore) Purge(ctx context.Context, name, key string) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	k := cacheKey(name, key)
	if _, ok := s.data[k]; ok {
		delete(s.data, k)
		s.dirty = true
	}
	return nil
}

func (s *FileCacheStore) Len() int {
	s.lk.Lock()
	defer s.lk.Unlock()
	return len(s.data)
}

// Writes the cache to disk if anything changed. The file is replaced atomically via rename.
func (s *FileCacheStore) Flush() error {
	s.lk.Lock()
	defer s.lk.Unlock()
	if !s.dirty {
		return nil
	}
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return err
	}
	s.dirty = false
	return nil
}
