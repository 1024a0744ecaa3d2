// Package storage is the per-origin key/value store the hub and the game
// pages keep their state in. It mirrors browser local storage: string values,
// no transactions, and a backend that may refuse every operation.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnavailable wraps every failure of the underlying store
var ErrUnavailable = errors.New("storage unavailable")

// Storage is a string key/value store scoped to one origin
type Storage interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
	Keys() ([]string, error)
}

// Wrap marks a backend failure of op as ErrUnavailable
func Wrap(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}

// GetJSON decodes the JSON stored under key into v. found is false when the
// key is absent; a value that does not decode is returned as an error without
// touching the store.
func GetJSON(s Storage, key string, v interface{}) (found bool, err error) {
	raw, ok, err := s.Get(key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return true, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON stores v under key as JSON
func SetJSON(s Storage, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.Set(key, string(raw))
}

// Memory is an in-process Storage, safe for concurrent use
type Memory struct {
	mu    sync.RWMutex
	items map[string]string
}

func NewMemory() *Memory {
	return &Memory{items: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	return v, ok, nil
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return nil
}

func (m *Memory) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

func (m *Memory) Keys() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.items))
	for k := range m.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Unavailable refuses every operation, like a browser with storage disabled
type Unavailable struct{}

func (Unavailable) Get(string) (string, bool, error) { return "", false, ErrUnavailable }
func (Unavailable) Set(string, string) error         { return ErrUnavailable }
func (Unavailable) Remove(string) error              { return ErrUnavailable }
func (Unavailable) Keys() ([]string, error)          { return nil, ErrUnavailable }

// Provider opens the storage of one origin
type Provider interface {
	Open(origin string) Storage
}

// MemoryProvider keeps one Memory per origin for the life of the process
type MemoryProvider struct {
	mu     sync.Mutex
	stores map[string]*Memory
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{stores: make(map[string]*Memory)}
}

func (p *MemoryProvider) Open(origin string) Storage {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.stores[origin]
	if !ok {
		s = NewMemory()
		p.stores[origin] = s
	}
	return s
}
