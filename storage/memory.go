package storage

import (
	"context"
	"sync"
)

// MemoryKV is an in-process key-value store. It backs tests and single-binary
// setups that have no redis available.
type MemoryKV struct {
	mu     sync.RWMutex
	values map[string][]byte

	// FailSet, when set, is returned by every Set call. Tests use it to
	// simulate storage rejections.
	FailSet error
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{values: make(map[string][]byte)}
}

func (m *MemoryKV) Get(ctx context.Context, keys ...string) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if v, ok := m.values[k]; ok {
			cp := make([]byte, len(v))
			copy(cp, v)
			out[k] = cp
		}
	}
	return out, nil
}

func (m *MemoryKV) Set(ctx context.Context, values map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSet != nil {
		return m.FailSet
	}
	for k, v := range values {
		cp := make([]byte, len(v))
		copy(cp, v)
		m.values[k] = cp
	}
	return nil
}
