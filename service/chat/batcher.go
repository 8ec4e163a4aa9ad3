package chat

import (
	"context"
	"sync"
	"time"

	"github.com/HighK/chatrelay/logger"
	"github.com/HighK/chatrelay/module/chat/store"
)

// PendingMessage is a chat message awaiting durable sequencing, held in
// the batcher's per-room FIFO until a flush cycle assigns its sequence
// number.
type PendingMessage struct {
	RoomID     string
	SenderID   string
	SenderName string
	Content    Content
	EnqueuedAt time.Time
}

// Batcher turns bursts of pending messages into sequence-numbered,
// durably stored batches. One flush cycle runs at a time (single-flight
// gate); within a cycle each room is flushed by exactly one goroutine,
// so sequence assignment per room is serial and gap-free.
type Batcher struct {
	mu      sync.Mutex
	pending map[string][]PendingMessage

	g        gate
	msgs     MessageStore
	rooms    RoomStore
	profiles *ProfileCache
	queue    *DeliveryQueue
	emit     func(roomID string, ev ChatEvent)
	timeout  time.Duration
}

func NewBatcher(msgs MessageStore, rooms RoomStore, profiles *ProfileCache, queue *DeliveryQueue, emit func(string, ChatEvent), timeout time.Duration) *Batcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Batcher{
		pending:  make(map[string][]PendingMessage),
		msgs:     msgs,
		rooms:    rooms,
		profiles: profiles,
		queue:    queue,
		emit:     emit,
		timeout:  timeout,
	}
}

// Enqueue appends to the room's pending FIFO. Called from connection
// handlers; never blocks on storage.
func (b *Batcher) Enqueue(m PendingMessage) {
	if m.EnqueuedAt.IsZero() {
		m.EnqueuedAt = time.Now()
	}
	b.mu.Lock()
	b.pending[m.RoomID] = append(b.pending[m.RoomID], m)
	b.mu.Unlock()
}

// PendingLen reports the queue depth for one room.
func (b *Batcher) PendingLen(roomID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending[roomID])
}

// Flush runs one flush cycle: every room with pending messages is
// flushed concurrently, and the gate is released only after all of them
// finished. Returns false when a previous cycle was still in flight and
// this tick was skipped.
func (b *Batcher) Flush(ctx context.Context) bool {
	if !b.g.TryAcquire() {
		return false
	}
	defer b.g.Release()

	b.mu.Lock()
	rooms := make([]string, 0, len(b.pending))
	for roomID, q := range b.pending {
		if len(q) > 0 {
			rooms = append(rooms, roomID)
		}
	}
	b.mu.Unlock()
	if len(rooms) == 0 {
		return true
	}

	var wg sync.WaitGroup
	for _, roomID := range rooms {
		wg.Add(1)
		go func(roomID string) {
			defer wg.Done()
			b.flushRoom(ctx, roomID)
		}(roomID)
	}
	wg.Wait()
	return true
}

// flushRoom persists one room's queued messages. A store failure leaves
// the pending queue untouched so the next cycle retries from the same
// state; other rooms are unaffected.
func (b *Batcher) flushRoom(ctx context.Context, roomID string) {
	cctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	latest, err := b.msgs.LatestSeq(cctx, roomID)
	if err != nil {
		logger.Errorf("[batcher] latest seq room=%s: %v", roomID, err)
		return
	}

	b.mu.Lock()
	batch := append([]PendingMessage(nil), b.pending[roomID]...)
	b.mu.Unlock()
	if len(batch) == 0 {
		return
	}

	stored := make([]store.StoredMessage, len(batch))
	for i, m := range batch {
		kind, body := encodeContent(m.Content)
		stored[i] = store.StoredMessage{
			RoomID:      roomID,
			Seq:         latest + 1 + int64(i),
			SenderID:    m.SenderID,
			SenderName:  m.SenderName,
			ContentKind: kind,
			ContentBody: body,
			Timestamp:   m.EnqueuedAt,
		}
	}

	if err := b.msgs.InsertMany(cctx, stored); err != nil {
		logger.Errorf("[batcher] insert room=%s count=%d: %v", roomID, len(batch), err)
		return
	}

	// Drain exactly what was inserted; messages enqueued during the
	// insert stay for the next cycle.
	b.mu.Lock()
	q := b.pending[roomID]
	if len(q) <= len(batch) {
		delete(b.pending, roomID)
	} else {
		b.pending[roomID] = append([]PendingMessage(nil), q[len(batch):]...)
	}
	b.mu.Unlock()

	for i, m := range stored {
		ev := ChatEvent{
			Type:         MsgTypeChat,
			MsgID:        m.Seq,
			RoomID:       roomID,
			UserID:       m.SenderID,
			DisplayName:  m.SenderName,
			ProfileImage: b.profiles.Get(m.SenderID),
			Content:      &batch[i].Content,
			Time:         m.Timestamp.UnixMilli(),
		}
		b.emit(roomID, ev)
		b.queue.Push(ev)
	}

	last := stored[len(stored)-1]
	if err := b.rooms.UpdateRoomSummary(cctx, roomID, last.Seq, summaryText(last), last.Timestamp); err != nil {
		logger.Warnf("[batcher] room summary room=%s seq=%d: %v", roomID, last.Seq, err)
	}
}

// summaryText is the room-list snippet of the last message.
func summaryText(m store.StoredMessage) string {
	if m.ContentKind == "text" {
		return m.ContentBody
	}
	return "[rich message]"
}
