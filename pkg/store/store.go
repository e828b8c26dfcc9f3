// Package store retains completed analysis runs for the serving layer.
package store

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/Vork-21/payplan/pkg/analysis"
)

var (
	// ErrNoRun means nothing has been analyzed yet.
	ErrNoRun = errors.New("no analysis run available")
	// ErrRunNotFound means the requested run id is unknown.
	ErrRunNotFound = errors.New("analysis run not found")
)

// Store retains analysis runs and serves them back by recency or id.
type Store interface {
	Save(result *analysis.Result) error
	Latest() (*analysis.Result, error)
	Get(id uuid.UUID) (*analysis.Result, error)
	Clear() error
}

// Memory keeps runs in process memory. Every run stays retrievable by id
// until Clear; results never persist across restarts.
type Memory struct {
	mu     sync.RWMutex
	runs   map[uuid.UUID]*analysis.Result
	latest *analysis.Result
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{runs: make(map[uuid.UUID]*analysis.Result)}
}

func (m *Memory) Save(result *analysis.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[result.ID] = result
	m.latest = result
	return nil
}

func (m *Memory) Latest() (*analysis.Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.latest == nil {
		return nil, ErrNoRun
	}
	return m.latest, nil
}

func (m *Memory) Get(id uuid.UUID) (*analysis.Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result, ok := m.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return result, nil
}

func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = make(map[uuid.UUID]*analysis.Result)
	m.latest = nil
	return nil
}
