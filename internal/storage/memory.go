package storage

import (
	"context"
	"sync"
)

// MemoryBackend はプロセス内メモリに値を保持するBackend。
// 再起動で内容は失われるため、テストと開発用途に限る。
type MemoryBackend struct {
	mu     sync.RWMutex
	values map[string]map[string]string
}

// NewMemoryBackend はMemoryBackendを生成する。
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{values: make(map[string]map[string]string)}
}

func (m *MemoryBackend) Get(_ context.Context, clientID, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.values[clientID][key]
	return value, ok, nil
}

func (m *MemoryBackend) Set(_ context.Context, clientID, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values[clientID] == nil {
		m.values[clientID] = make(map[string]string)
	}
	m.values[clientID][key] = value
	return nil
}

// compile-time interface check
var _ Backend = (*MemoryBackend)(nil)
