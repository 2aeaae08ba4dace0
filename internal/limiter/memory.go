package limiter

import (
	"context"
	"sync"
	"time"
)

type attempt struct {
	fails        int
	updatedAt    time.Time
	blockedUntil time.Time
}

// Memory is a process-local limiter used with the embedded stores.
// It applies the same window and lockout rules as PG.
type Memory struct {
	policy Policy
	now    func() time.Time

	mu    sync.Mutex
	state map[string]*attempt
}

// NewMemory constructs an in-process limiter.
func NewMemory(p Policy) *Memory {
	return &Memory{policy: p, now: time.Now, state: make(map[string]*attempt)}
}

func memKey(username string, ipHash []byte) string {
	return username + "\x00" + string(ipHash)
}

// Allow reports whether login is currently allowed and a retry-after duration.
func (m *Memory) Allow(_ context.Context, username string, ipHash []byte) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := memKey(username, ipHash)
	a, ok := m.state[k]
	if !ok {
		return true, 0, nil
	}
	now := m.now()
	if a.blockedUntil.After(now) {
		return false, a.blockedUntil.Sub(now), nil
	}
	if now.Sub(a.updatedAt) > m.policy.Window {
		delete(m.state, k)
	}
	return true, 0, nil
}

// Success forgets all failures for (username, ip).
func (m *Memory) Success(_ context.Context, username string, ipHash []byte) error {
	m.mu.Lock()
	delete(m.state, memKey(username, ipHash))
	m.mu.Unlock()
	return nil
}

// Failure records a failed attempt; may set a block until a future time.
func (m *Memory) Failure(_ context.Context, username string, ipHash []byte) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	k := memKey(username, ipHash)
	a, ok := m.state[k]
	if !ok || now.Sub(a.updatedAt) > m.policy.Window {
		a = &attempt{}
		m.state[k] = a
	}
	a.fails++
	a.updatedAt = now
	if a.fails >= m.policy.MaxFails {
		a.blockedUntil = now.Add(m.policy.BlockFor)
		return true, m.policy.BlockFor, nil
	}
	return false, 0, nil
}

// Len reports the number of tracked (username, ip) pairs.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state)
}
