package storage

import (
	"context"
	"sync"
)

// Memory is an in-process Store. Load and Save copy, so callers never share
// maps with it.
type Memory struct {
	mu    sync.Mutex
	state State
	saves int
}

func NewMemory(seed State) *Memory { return &Memory{state: seed.Clone()} }

func (m *Memory) Load(context.Context) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone(), nil
}

func (m *Memory) Save(_ context.Context, s State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s.Clone()
	m.saves++
	return nil
}

// Saves reports how many times Save was called.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *Memory) Close() error { return nil }
