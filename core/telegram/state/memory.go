package state

import (
	"sync"
)

type memoryManager struct {
	mu      sync.RWMutex
	pending map[int64]Pending
}

// NewMemoryManager constructs the in-memory Manager implementation.
func NewMemoryManager() Manager {
	return &memoryManager{
		pending: make(map[int64]Pending),
	}
}

// Set records a pending operation for the chat, overwriting any prior one.
func (m *memoryManager) Set(chatID int64, p Pending) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[chatID] = p
}

// Peek returns the pending operation without consuming it.
func (m *memoryManager) Peek(chatID int64) (Pending, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pending[chatID]
	return p, ok
}

// Take atomically removes and returns the pending operation for the chat.
func (m *memoryManager) Take(chatID int64) (Pending, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pending[chatID]
	if ok {
		delete(m.pending, chatID)
	}
	return p, ok
}

// Clear drops any pending operation for the chat.
func (m *memoryManager) Clear(chatID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, chatID)
}

// InProgress reports whether the chat has a pending operation.
func (m *memoryManager) InProgress(chatID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.pending[chatID]
	return ok
}
