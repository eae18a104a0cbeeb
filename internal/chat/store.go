package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type sessionEntry struct {
	session      *Session
	lastAccessed time.Time
}

// Store keeps sessions in memory, evicting the least recently used one
// once maxSize is reached.
type Store struct {
	lock     sync.Mutex
	sessions map[uuid.UUID]*sessionEntry
	maxSize  int
	settings Settings
}

func NewStore(maxSize int, settings Settings) *Store {
	return &Store{
		sessions: make(map[uuid.UUID]*sessionEntry, maxSize),
		maxSize:  maxSize,
		settings: settings,
	}
}

// Create starts a new session with a fresh id.
func (st *Store) Create() *Session {
	st.lock.Lock()
	defer st.lock.Unlock()
	return st.add(uuid.New())
}

// Get returns the session with id, or false when it is unknown or evicted.
func (st *Store) Get(id uuid.UUID) (*Session, bool) {
	st.lock.Lock()
	defer st.lock.Unlock()

	entry, ok := st.sessions[id]
	if !ok {
		return nil, false
	}
	entry.lastAccessed = time.Now()
	return entry.session, true
}

// GetOrCreate returns the session with id, creating it under that id when
// it does not exist.
func (st *Store) GetOrCreate(id uuid.UUID) *Session {
	st.lock.Lock()
	defer st.lock.Unlock()

	if entry, ok := st.sessions[id]; ok {
		entry.lastAccessed = time.Now()
		return entry.session
	}
	return st.add(id)
}

func (st *Store) Len() int {
	st.lock.Lock()
	defer st.lock.Unlock()
	return len(st.sessions)
}

func (st *Store) add(id uuid.UUID) *Session {
	if st.maxSize > 0 && len(st.sessions) >= st.maxSize {
		st.evictOldest()
	}
	session := NewSession(id, st.settings)
	st.sessions[id] = &sessionEntry{session: session, lastAccessed: time.Now()}
	return session
}

func (st *Store) evictOldest() {
	oldestID := uuid.Nil
	var oldestTime time.Time
	for id, entry := range st.sessions {
		if oldestID == uuid.Nil || entry.lastAccessed.Before(oldestTime) {
			oldestID = id
			oldestTime = entry.lastAccessed
		}
	}
	if oldestID == uuid.Nil {
		return
	}
	delete(st.sessions, oldestID)
	log.Debug().Str("session_id", oldestID.String()).Msg("Evicted session")
}
