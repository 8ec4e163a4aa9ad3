package chat

import (
	"context"
	"time"

	"github.com/HighK/chatrelay/module/chat/store"
)

// MessageStore is the document-store surface the relay needs. The mongo
// implementation lives in module/chat/store; tests substitute fakes.
type MessageStore interface {
	InsertMany(ctx context.Context, msgs []store.StoredMessage) error
	LatestSeq(ctx context.Context, roomID string) (int64, error)
	FindByRoomPaginated(ctx context.Context, roomID string, beforeSeq, limit int64) ([]store.StoredMessage, error)
	UpdateContentByID(ctx context.Context, roomID string, seq int64, content string) error
}

// RoomStore is the relational-store surface: room summaries, read
// cursors and profile lookups.
type RoomStore interface {
	UpdateRoomSummary(ctx context.Context, roomID string, lastSeq int64, lastText string, lastTime time.Time) error
	UpdateReadCursor(ctx context.Context, roomID, userID string, seq int64) error
	LookupProfileRef(ctx context.Context, userID string) (string, error)
}
