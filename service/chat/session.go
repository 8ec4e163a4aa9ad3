package chat

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/HighK/chatrelay/logger"
	"github.com/HighK/chatrelay/tools/ids"
)

// Identity is the session's user metadata. Caller-supplied identities
// are adopted verbatim; without one a guest identity is synthesized.
type Identity struct {
	UserID       string `json:"userId"`
	DisplayName  string `json:"displayName"`
	ProfileImage string `json:"profileImage,omitempty"`
	IsGuest      bool   `json:"-"`
}

// Session is the per-connection state. All mutable fields are guarded by
// mu; nothing outside this file touches them directly. The registry owns
// the session's lifecycle, everything else reads through accessors.
type Session struct {
	ConnID string

	mu          sync.Mutex
	ident       Identity
	joinedRoom  string
	watched     map[string]struct{}
	lastSeen    map[string]int64 // room -> client-reported read cursor
	flushedSeen map[string]int64 // room -> last durably written cursor

	send chan []byte
	quit chan struct{}
	once sync.Once
}

func newSession(ident Identity, sendQueueSize int) *Session {
	if sendQueueSize <= 0 {
		sendQueueSize = 256
	}
	return &Session{
		ConnID:      ids.GenerateString(),
		ident:       ident,
		watched:     make(map[string]struct{}),
		lastSeen:    make(map[string]int64),
		flushedSeen: make(map[string]int64),
		send:        make(chan []byte, sendQueueSize),
		quit:        make(chan struct{}),
	}
}

func (s *Session) Identity() Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ident
}

func (s *Session) JoinedRoom() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.joinedRoom
}

// Watches reports whether the session passively watches roomID, either
// directly or through the watch-all sentinel.
func (s *Session) Watches(roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.watched[WatchAllSentinel]; ok {
		return true
	}
	_, ok := s.watched[roomID]
	return ok
}

// LastSeen returns the client-reported read cursor for roomID, 0 when
// none was ever reported.
func (s *Session) LastSeen(roomID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen[roomID]
}

// SnapshotLastSeen copies the cursor map for iteration outside the lock.
func (s *Session) SnapshotLastSeen() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.lastSeen))
	for k, v := range s.lastSeen {
		out[k] = v
	}
	return out
}

func (s *Session) flushedSeq(roomID string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.flushedSeen[roomID]
	return v, ok
}

func (s *Session) markFlushed(roomID string, seq int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushedSeen[roomID] = seq
}

// deliver is best-effort: a session with a full send queue misses the
// payload rather than stalling the caller.
func (s *Session) deliver(payload []byte) bool {
	select {
	case s.send <- payload:
		return true
	default:
		return false
	}
}

// shutdown signals the writer goroutine. The send channel is never
// closed, so concurrent deliver calls stay safe.
func (s *Session) shutdown() {
	s.once.Do(func() { close(s.quit) })
}

// Registry is the in-memory session registry: pure bookkeeping, no
// persistence.
type Registry struct {
	mu     sync.RWMutex
	byConn map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{byConn: make(map[string]*Session)}
}

// OnConnect registers a new session. identityHint, when non-empty, is a
// JSON identity blob adopted verbatim; anything unparseable falls back
// to a guest identity instead of failing the connection.
func (r *Registry) OnConnect(identityHint []byte, sendQueueSize int) *Session {
	ident, ok := parseIdentity(identityHint)
	if !ok {
		ident = guestIdentity()
	}
	s := newSession(ident, sendQueueSize)

	r.mu.Lock()
	r.byConn[s.ConnID] = s
	r.mu.Unlock()

	logger.Infof("[registry] connect conn=%s user=%s guest=%v", s.ConnID, ident.UserID, ident.IsGuest)
	return s
}

func parseIdentity(hint []byte) (Identity, bool) {
	if len(hint) == 0 {
		return Identity{}, false
	}
	var ident Identity
	if err := json.Unmarshal(hint, &ident); err != nil || ident.UserID == "" {
		if err != nil {
			logger.Warnf("[registry] bad identity hint, using guest: %v", err)
		}
		return Identity{}, false
	}
	return ident, true
}

func guestIdentity() Identity {
	now := time.Now().UnixMilli()
	return Identity{
		UserID:      fmt.Sprintf("guest-%d", now),
		DisplayName: "guest",
		IsGuest:     true,
	}
}

// UpdateAuth merges the non-empty fields of patch into the session
// identity. Supplying a userId turns a guest into a named user.
func (r *Registry) UpdateAuth(s *Session, patch SetAuthReq) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if patch.DisplayName != nil && *patch.DisplayName != "" {
		s.ident.DisplayName = *patch.DisplayName
	}
	if patch.UserID != nil && *patch.UserID != "" {
		s.ident.UserID = *patch.UserID
		s.ident.IsGuest = false
	}
	if patch.ProfileImage != nil && *patch.ProfileImage != "" {
		s.ident.ProfileImage = *patch.ProfileImage
	}
}

// Join replaces the session's joined room; sessions are in at most one
// room, last join wins.
func (r *Registry) Join(s *Session, roomID string) {
	s.mu.Lock()
	s.joinedRoom = roomID
	s.mu.Unlock()
}

// Leave clears the joined room if it matches roomID.
func (r *Registry) Leave(s *Session, roomID string) {
	s.mu.Lock()
	if s.joinedRoom == roomID {
		s.joinedRoom = ""
	}
	s.mu.Unlock()
}

// SetWatchList replaces the watched-room set wholesale.
func (r *Registry) SetWatchList(s *Session, roomIDs []string) {
	watched := make(map[string]struct{}, len(roomIDs))
	for _, id := range roomIDs {
		if id != "" {
			watched[id] = struct{}{}
		}
	}
	s.mu.Lock()
	s.watched = watched
	s.mu.Unlock()
}

// RecordRead stores the client-reported cursor; a missing roomID makes
// this a no-op.
func (r *Registry) RecordRead(s *Session, roomID string, seq int64) {
	if roomID == "" {
		return
	}
	s.mu.Lock()
	s.lastSeen[roomID] = seq
	s.mu.Unlock()
}

// OnDisconnect removes all registry state for the session and signals
// its writer.
func (r *Registry) OnDisconnect(s *Session) {
	r.mu.Lock()
	delete(r.byConn, s.ConnID)
	r.mu.Unlock()
	s.shutdown()
	logger.Infof("[registry] disconnect conn=%s", s.ConnID)
}

// ListByRoom snapshots the sessions currently joined to roomID.
func (r *Registry) ListByRoom(roomID string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Session
	for _, s := range r.byConn {
		if s.JoinedRoom() == roomID {
			out = append(out, s)
		}
	}
	return out
}

// ListAll snapshots every connected session.
func (r *Registry) ListAll() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.byConn))
	for _, s := range r.byConn {
		out = append(out, s)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConn)
}
