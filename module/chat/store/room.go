package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// RoomStore covers the relational side: room summaries, per-user read
// cursors and profile lookups.
type RoomStore struct {
	Pool *pgxpool.Pool
}

func NewRoomStore(pool *pgxpool.Pool) *RoomStore {
	return &RoomStore{Pool: pool}
}

// UpdateRoomSummary upserts the room's last-message snapshot. The update
// only applies when the incoming seq exceeds the stored one, so
// out-of-order flush completions can never move a summary backwards.
func (s *RoomStore) UpdateRoomSummary(ctx context.Context, roomID string, lastSeq int64, lastText string, lastTime time.Time) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO room_summary (room_id, last_message_seq, last_message_text, last_message_time)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (room_id) DO UPDATE
		SET last_message_seq  = EXCLUDED.last_message_seq,
		    last_message_text = EXCLUDED.last_message_text,
		    last_message_time = EXCLUDED.last_message_time
		WHERE room_summary.last_message_seq < EXCLUDED.last_message_seq`,
		roomID, lastSeq, lastText, lastTime)
	return errors.Wrap(err, "update room summary")
}

// UpdateReadCursor upserts the user's last-read sequence for the room.
func (s *RoomStore) UpdateReadCursor(ctx context.Context, roomID, userID string, seq int64) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO read_cursor (room_id, user_id, last_read_seq)
		VALUES ($1, $2, $3)
		ON CONFLICT (room_id, user_id) DO UPDATE
		SET last_read_seq = EXCLUDED.last_read_seq`,
		roomID, userID, seq)
	return errors.Wrap(err, "update read cursor")
}

// LookupProfileRef returns the user's profile image path, or "" when the
// user is unknown.
func (s *RoomStore) LookupProfileRef(ctx context.Context, userID string) (string, error) {
	var ref string
	err := s.Pool.QueryRow(ctx,
		`SELECT profile_image FROM users WHERE user_id = $1`, userID,
	).Scan(&ref)
	if err == pgx.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "lookup profile ref")
	}
	return ref, nil
}
