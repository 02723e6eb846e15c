package session

import (
	"sync"
)

const shardCount = 32

type entry struct {
	mu sync.Mutex
	s  Session
}

type shard struct {
	mu       sync.RWMutex
	sessions map[int64]*entry
}

// Store is a concurrency-safe session map. Mutations for one user are
// serialised by a per-user mutex; different users proceed in parallel.
// Sessions are created on first use and only ever reset, never removed.
type Store struct {
	shards [shardCount]shard
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	st := &Store{}
	for i := range st.shards {
		st.shards[i].sessions = make(map[int64]*entry)
	}
	return st
}

func (st *Store) shardFor(userID int64) *shard {
	idx := uint64(userID) % shardCount
	return &st.shards[idx]
}

func (st *Store) lookup(userID int64, create bool) *entry {
	sh := st.shardFor(userID)
	sh.mu.RLock()
	e, ok := sh.sessions[userID]
	sh.mu.RUnlock()
	if ok || !create {
		return e
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()
	if e, ok = sh.sessions[userID]; ok {
		return e
	}
	e = &entry{s: Session{State: StateIdle}}
	sh.sessions[userID] = e
	return e
}

// Update runs fn against a copy of the user's session while holding that
// user's lock. The copy is committed only if fn returns nil and the result
// passes Validate; otherwise the stored session is left untouched.
func (st *Store) Update(userID int64, fn func(*Session) error) error {
	e := st.lookup(userID, true)
	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.s
	if err := fn(&next); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}
	e.s = next
	return nil
}

// Get returns a snapshot of the user's session; unknown users read as idle.
func (st *Store) Get(userID int64) Session {
	e := st.lookup(userID, false)
	if e == nil {
		return Session{State: StateIdle}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.s
}

// GetState returns the current state of a user, or StateIdle if none exists.
func (st *Store) GetState(userID int64) State {
	return st.Get(userID).State
}

// InProgress reports whether the user currently has an active conversation.
func (st *Store) InProgress(userID int64) bool {
	return st.GetState(userID) != StateIdle
}

// Known reports whether the user has interacted since the process started.
func (st *Store) Known(userID int64) bool {
	return st.lookup(userID, false) != nil
}

// Reset clears the user's session. It is idempotent.
func (st *Store) Reset(userID int64) {
	_ = st.Update(userID, func(s *Session) error {
		s.Reset()
		return nil
	})
}

// Len returns the number of sessions seen so far.
func (st *Store) Len() int {
	n := 0
	for i := range st.shards {
		sh := &st.shards[i]
		sh.mu.RLock()
		n += len(sh.sessions)
		sh.mu.RUnlock()
	}
	return n
}
