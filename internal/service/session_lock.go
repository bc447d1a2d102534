package service

import (
	"sync"

	"github.com/google/uuid"
)

// sessionLocks serializes operations per session. Entries are dropped once
// no goroutine holds or waits for them.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[uuid.UUID]*refMutex)}
}

// lock blocks until the session is free and returns its unlock func.
func (l *sessionLocks) lock(id uuid.UUID) func() {
	l.mu.Lock()
	m, ok := l.locks[id]
	if !ok {
		m = &refMutex{}
		l.locks[id] = m
	}
	m.refs++
	l.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		l.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
