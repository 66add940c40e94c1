package kv

import (
	"context"
	"path"
	"sort"
	"sync"
	"time"
)

// MemStore is an in-memory Store used by package tests in place of a live
// Redis instance — the Go analogue of a fake repository implementation.
type MemStore struct {
	mu      sync.Mutex
	strings map[string]memEntry
	hashes  map[string]map[string]string
	expiry  map[string]time.Time
}

type memEntry struct {
	value string
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		strings: make(map[string]memEntry),
		hashes:  make(map[string]map[string]string),
		expiry:  make(map[string]time.Time),
	}
}

func (m *MemStore) expired(key string) bool {
	t, ok := m.expiry[key]
	return ok && time.Now().After(t)
}

func (m *MemStore) Scan(_ context.Context, cursor string, pattern string, batchSize int64) (string, []string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var all []string
	for k := range m.strings {
		if !m.expired(k) {
			all = append(all, k)
		}
	}
	for k := range m.hashes {
		if !m.expired(k) {
			all = append(all, k)
		}
	}
	sort.Strings(all)

	var matched []string
	for _, k := range all {
		if ok, _ := path.Match(pattern, k); ok {
			matched = append(matched, k)
		}
	}

	start := 0
	if cursor != "" && cursor != "0" {
		for i, k := range matched {
			if k == cursor {
				start = i + 1
				break
			}
		}
	}
	end := start + int(batchSize)
	if end > len(matched) {
		end = len(matched)
	}
	if start > len(matched) {
		start = len(matched)
	}
	batch := matched[start:end]

	next := "0"
	if end < len(matched) {
		next = matched[end-1]
	}
	return next, batch, nil
}

func (m *MemStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.expired(key) {
		delete(m.hashes, key)
		return map[string]string{}, nil
	}
	h, ok := m.hashes[key]
	if !ok {
		return map[string]string{}, nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out, nil
}

func (m *MemStore) HSet(_ context.Context, key string, fields map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hashes[key]
	if !ok {
		h = make(map[string]string)
		m.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
	return nil
}

func (m *MemStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.expired(key) {
		delete(m.strings, key)
		return "", false, nil
	}
	e, ok := m.strings[key]
	if !ok {
		return "", false, nil
	}
	return e.value, true, nil
}

func (m *MemStore) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.strings[key] = memEntry{value: value}
	if ttl > 0 {
		m.expiry[key] = time.Now().Add(ttl)
	} else {
		delete(m.expiry, key)
	}
	return nil
}

func (m *MemStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.expired(key) {
		return false, nil
	}
	if _, ok := m.strings[key]; ok {
		return true, nil
	}
	if _, ok := m.hashes[key]; ok {
		return true, nil
	}
	return false, nil
}

func (m *MemStore) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.strings, key)
	delete(m.hashes, key)
	delete(m.expiry, key)
	return nil
}

func (m *MemStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expiry[key] = time.Now().Add(ttl)
	return nil
}

func (m *MemStore) Close() error { return nil }
