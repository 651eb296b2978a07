package localstore

import (
	"context"
	"sync"
)

// Memory is an in-process KV used in tests and as a degraded fallback when
// Redis is unavailable at startup.
type Memory struct {
	mu   sync.RWMutex
	data map[string]string

	// FailWrites makes Set/Delete return an error, for exercising the
	// best-effort persistence contract in tests.
	FailWrites bool
	// FailReads makes Get return an error.
	FailReads bool
}

// NewMemory creates an empty in-memory KV
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

// Get reads a key
func (m *Memory) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailReads {
		return "", false, errMemoryUnavailable
	}
	val, ok := m.data[key]
	return val, ok, nil
}

// Set writes a key
func (m *Memory) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return errMemoryUnavailable
	}
	m.data[key] = value
	return nil
}

// Delete removes a key
func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return errMemoryUnavailable
	}
	delete(m.data, key)
	return nil
}

type memoryError string

func (e memoryError) Error() string { return string(e) }

const errMemoryUnavailable = memoryError("memory store unavailable")
