package mutex

import (
	"sync"

	"github.com/pkg/errors"
)

var ErrNotLocked = errors.New("mutex is not locked")

// Local is an in-process Provider. Entries are dropped once nobody holds or waits for them.
type Local struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func NewLocal() *Local {
	return &Local{locks: make(map[string]*entry)}
}

func (l *Local) Feed(channelId string) Locker {
	return &localMutex{owner: l, key: channelId}
}

func (l *Local) acquire(key string) *entry {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &entry{}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()
	e.mu.Lock()
	return e
}

func (l *Local) release(key string, e *entry) {
	e.mu.Unlock()
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()
}

func (l *Local) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

type localMutex struct {
	owner *Local
	key   string
	held  *entry
}

func (m *localMutex) Lock() error {
	m.held = m.owner.acquire(m.key)
	return nil
}

func (m *localMutex) Unlock() (bool, error) {
	if m.held == nil {
		return false, ErrNotLocked
	}
	e := m.held
	m.held = nil
	m.owner.release(m.key, e)
	return true, nil
}
