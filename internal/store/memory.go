package store

import (
	"context"
	"strings"
	"sync"
)

var _ KV = (*Memory)(nil)

// Memory is a mutex-guarded in-memory KV, used in unit tests and local dev.
type Memory struct {
	mutex sync.RWMutex
	data  map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{
		data: make(map[string][]byte),
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	val, ok := m.data[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	valCopy := make([]byte, len(val))
	copy(valCopy, val)
	return valCopy, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	valCopy := make([]byte, len(value))
	copy(valCopy, value)
	m.data[key] = valCopy
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	delete(m.data, key)
	return nil
}

func (m *Memory) ScanKeys(_ context.Context, prefix string) ([]string, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var keys []string
	for key := range m.data {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (m *Memory) ScanPrefix(_ context.Context, prefix string) ([][]byte, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	values := make([][]byte, 0)
	for key, val := range m.data {
		if strings.HasPrefix(key, prefix) {
			valCopy := make([]byte, len(val))
			copy(valCopy, val)
			values = append(values, valCopy)
		}
	}
	return values, nil
}
