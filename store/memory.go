package store

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// Memory is an in-memory Store implementation.
// It is safe for concurrent use and intended primarily for testing.
type Memory struct {
	mu     sync.RWMutex
	data   map[string][]byte
	prefix string
}

// NewMemory creates a new in-memory Store. Slots are namespaced by prefix
// when it is not empty.
func NewMemory(prefix string) *Memory {
	return &Memory{
		data:   make(map[string][]byte),
		prefix: prefix,
	}
}

func (m *Memory) Get(_ context.Context, slot string) ([]byte, error) {
	m.mu.RLock()
	v, ok := m.data[key(m.prefix, slot)]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(v), nil
}

func (m *Memory) Set(_ context.Context, slot string, value []byte) error {
	cp := slices.Clone(value)
	m.mu.Lock()
	m.data[key(m.prefix, slot)] = cp
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, slot string) error {
	m.mu.Lock()
	delete(m.data, key(m.prefix, slot))
	m.mu.Unlock()
	return nil
}

func (m *Memory) Slots(_ context.Context) ([]string, error) {
	p := key(m.prefix, "")
	m.mu.RLock()
	defer m.mu.RUnlock()
	var slots []string
	for k := range m.data {
		if m.prefix == "" || strings.HasPrefix(k, p) {
			slots = append(slots, strings.TrimPrefix(k, p))
		}
	}
	slices.Sort(slots)
	return slots, nil
}

func (m *Memory) Close() error {
	return nil
}
