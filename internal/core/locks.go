package core

import "sync"

// taskLocks serializes rounds per task id: rounds for one task never
// overlap, rounds for different tasks do not block each other.
type taskLocks struct {
	mu    sync.Mutex             // Guards the locks map itself
	locks map[string]*sync.Mutex // Per-task mutexes
}

func newTaskLocks() *taskLocks {
	return &taskLocks{locks: make(map[string]*sync.Mutex)}
}

// lock acquires the mutex for id and returns its release function.
func (l *taskLocks) lock(id string) func() {
	l.mu.Lock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
