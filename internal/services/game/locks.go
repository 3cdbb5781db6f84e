package game

import (
	"sync"

	"github.com/mcoot/chessgame-go/internal/model"
)

// gameLocks hands out one mutex per game ID, dropping it once unused
type gameLocks struct {
	mu    sync.Mutex
	locks map[model.GameID]*gameLock
}

type gameLock struct {
	mu   sync.Mutex
	refs int
}

func newGameLocks() *gameLocks {
	return &gameLocks{locks: make(map[model.GameID]*gameLock)}
}

// Lock blocks until the game's critical section is free and returns its unlock func
func (l *gameLocks) Lock(id model.GameID) func() {
	l.mu.Lock()
	lock, ok := l.locks[id]
	if !ok {
		lock = &gameLock{}
		l.locks[id] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()

		l.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

func (l *gameLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
