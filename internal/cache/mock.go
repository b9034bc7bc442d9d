package cache

import (
	"sync"
	"time"
)

// MockCache is a simple in-memory Store for tests. It never expires entries
// and counts calls so tests can assert on cache traffic.
type MockCache struct {
	mu   sync.Mutex
	data map[string]any

	Gets int
	Sets int
}

// NewMockCache creates a new mock cache for testing.
func NewMockCache() *MockCache {
	return &MockCache{
		data: make(map[string]any),
	}
}

func (m *MockCache) Get(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Gets++
	val, found := m.data[key]
	return val, found
}

func (m *MockCache) Set(key string, value any, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sets++
	m.data[key] = value
}

func (m *MockCache) Delete(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, found := m.data[key]
	delete(m.data, key)
	return found
}

func (m *MockCache) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string]any)
}

func (m *MockCache) CleanupExpired() int { return 0 }
