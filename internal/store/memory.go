package store

import (
	"context"
	"sync"

	"github.com/studyquest/backend/internal/progress"
)

// Memory is an in-process store. It keeps encoded documents so that callers
// never share memory with the stored copy. Errors can be injected for tests.
type Memory struct {
	mu         sync.Mutex
	docs       map[string][]byte
	fetchErr   error
	persistErr error
	fetches    int
	persists   int
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string][]byte)}
}

func (m *Memory) Fetch(ctx context.Context, userID string) (*progress.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	data, ok := m.docs[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return Decode(data)
}

func (m *Memory) Persist(ctx context.Context, userID string, s *progress.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.persists++
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.persistErr != nil {
		return m.persistErr
	}
	data, err := Encode(s)
	if err != nil {
		return err
	}
	m.docs[userID] = data
	return nil
}

// Get returns the stored snapshot for userID without counting a fetch.
func (m *Memory) Get(userID string) (*progress.Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.docs[userID]
	if !ok {
		return nil, false
	}
	s, err := Decode(data)
	if err != nil {
		return nil, false
	}
	return s, true
}

// Put stores s directly, bypassing counters and injected errors.
func (m *Memory) Put(userID string, s *progress.Snapshot) error {
	data, err := Encode(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.docs[userID] = data
	m.mu.Unlock()
	return nil
}

// SetFetchErr makes every Fetch fail with err until cleared with nil.
func (m *Memory) SetFetchErr(err error) {
	m.mu.Lock()
	m.fetchErr = err
	m.mu.Unlock()
}

// SetPersistErr makes every Persist fail with err until cleared with nil.
func (m *Memory) SetPersistErr(err error) {
	m.mu.Lock()
	m.persistErr = err
	m.mu.Unlock()
}

// Fetches returns the number of Fetch calls so far.
func (m *Memory) Fetches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetches
}

// Persists returns the number of Persist calls so far.
func (m *Memory) Persists() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.persists
}
