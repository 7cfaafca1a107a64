package handlers

import (
	"sync"
	"time"

	"github.com/suPer8Hu/nextile-ai/internal/chat"
)

// browserSession is the active conversation of one browser. mu is held for the
// whole of a turn, so a second input from the same browser is turned away.
type browserSession struct {
	mu       sync.Mutex
	sess     *chat.Session
	lastSeen time.Time
}

// Sessions maps browser ids to their server-side session.
type Sessions struct {
	mu    sync.Mutex
	byID  map[string]*browserSession
	fresh func() *chat.Session
	nowFn func() time.Time
}

func NewSessions(fresh func() *chat.Session) *Sessions {
	return &Sessions{
		byID:  make(map[string]*browserSession),
		fresh: fresh,
		nowFn: time.Now,
	}
}

// get returns the browser's session, starting a new conversation on first sight.
func (s *Sessions) get(browserID string) *browserSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	bs, ok := s.byID[browserID]
	if !ok {
		bs = &browserSession{sess: s.fresh()}
		s.byID[browserID] = bs
	}
	bs.lastSeen = s.nowFn()
	return bs
}

// Sweep forgets sessions idle for longer than maxIdle and not in a turn.
// Their conversations stay in the store.
func (s *Sessions) Sweep(maxIdle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.nowFn().Add(-maxIdle)
	n := 0
	for id, bs := range s.byID {
		if !bs.lastSeen.Before(cutoff) || !bs.mu.TryLock() {
			continue
		}
		delete(s.byID, id)
		bs.mu.Unlock()
		n++
	}
	return n
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}
