// Package blobstore stores patient documents. It defines the Store contract,
// the path convention that places every file under
// pacientes/<patientID>/<area>/, and the storage backends (local disk, S3,
// GridFS, memory).
package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"
)

var (
	ErrBlobNotFound = errors.New("blob not found")
	ErrInvalidKey   = errors.New("invalid blob key")
)

// Store is the contract every backend satisfies. Keys are slash-separated
// paths relative to the store root.
type Store interface {
	// EnsureDir makes sure prefix can receive writes. It is idempotent.
	EnsureDir(ctx context.Context, prefix string) error
	Put(ctx context.Context, key string, content io.Reader, contentType string) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	// RemoveAll deletes every blob under prefix. A missing prefix is not an
	// error.
	RemoveAll(ctx context.Context, prefix string) error
}

// CleanKey normalizes key and rejects anything that would escape the root.
func CleanKey(key string) (string, error) {
	key = strings.ReplaceAll(key, "\\", "/")
	if key == "" || strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return cleaned, nil
}

// MemoryStore is a thread-safe in-memory Store for tests and local runs.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
	dirs  map[string]bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		blobs: make(map[string][]byte),
		dirs:  make(map[string]bool),
	}
}

func (s *MemoryStore) EnsureDir(_ context.Context, prefix string) error {
	prefix, err := CleanKey(prefix)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.dirs[prefix] = true
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Put(_ context.Context, key string, content io.Reader, _ string) (int64, error) {
	key, err := CleanKey(key)
	if err != nil {
		return 0, err
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return 0, fmt.Errorf("read content: %w", err)
	}

	s.mu.Lock()
	s.blobs[key] = data
	s.mu.Unlock()
	return int64(len(data)), nil
}

func (s *MemoryStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	key, err := CleanKey(key)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	data, ok := s.blobs[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrBlobNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	key, err := CleanKey(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[key]; !ok {
		return ErrBlobNotFound
	}
	delete(s.blobs, key)
	return nil
}

func (s *MemoryStore) RemoveAll(_ context.Context, prefix string) error {
	prefix, err := CleanKey(prefix)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.blobs {
		if key == prefix || strings.HasPrefix(key, prefix+"/") {
			delete(s.blobs, key)
		}
	}
	for dir := range s.dirs {
		if dir == prefix || strings.HasPrefix(dir, prefix+"/") {
			delete(s.dirs, dir)
		}
	}
	return nil
}

// Keys lists stored keys in order.
func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.blobs))
	for k := range s.blobs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// HasDir reports whether EnsureDir was called for prefix and it has not
// been removed since.
func (s *MemoryStore) HasDir(prefix string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirs[prefix]
}
