package chat

import (
	"context"
	"time"

	"github.com/HighK/chatrelay/logger"
)

// CursorFlusher persists each session's last-read sequence per room.
// Only changed cursors are written; guests are skipped since there is no
// durable identity to attach a cursor to.
type CursorFlusher struct {
	reg     *Registry
	rooms   RoomStore
	g       gate
	timeout time.Duration
}

func NewCursorFlusher(reg *Registry, rooms RoomStore, timeout time.Duration) *CursorFlusher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &CursorFlusher{reg: reg, rooms: rooms, timeout: timeout}
}

// Tick runs one flush cycle; false means the previous cycle was still
// running and this one was skipped.
func (f *CursorFlusher) Tick(ctx context.Context) bool {
	if !f.g.TryAcquire() {
		return false
	}
	defer f.g.Release()

	for _, s := range f.reg.ListAll() {
		ident := s.Identity()
		if ident.IsGuest {
			continue
		}
		for roomID, seq := range s.SnapshotLastSeen() {
			if flushed, ok := s.flushedSeq(roomID); ok && flushed == seq {
				continue
			}
			cctx, cancel := context.WithTimeout(ctx, f.timeout)
			err := f.rooms.UpdateReadCursor(cctx, roomID, ident.UserID, seq)
			cancel()
			if err != nil {
				logger.Warnf("[cursor] flush user=%s room=%s seq=%d: %v", ident.UserID, roomID, seq, err)
				continue
			}
			s.markFlushed(roomID, seq)
		}
	}
	return true
}
