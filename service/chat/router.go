package chat

import (
	"context"
	"time"

	"github.com/HighK/chatrelay/logger"
)

// Router handles immediate best-effort emission to rooms and the whole
// process, and feeds the write batcher on the durable path.
type Router struct {
	reg     *Registry
	batcher *Batcher
	queue   *DeliveryQueue
	msgs    MessageStore // nil when durable storage is disabled
	durable bool
	timeout time.Duration
}

func NewRouter(reg *Registry, batcher *Batcher, queue *DeliveryQueue, msgs MessageStore, durable bool, timeout time.Duration) *Router {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Router{
		reg:     reg,
		batcher: batcher,
		queue:   queue,
		msgs:    msgs,
		durable: durable,
		timeout: timeout,
	}
}

// EmitToRoom delivers the event to every session joined to roomID.
// Best-effort: slow sessions drop, callers never block.
func (rt *Router) EmitToRoom(roomID string, ev ChatEvent) {
	payload := mustFrame(EvtMsg, ev)
	for _, s := range rt.reg.ListByRoom(roomID) {
		s.deliver(payload)
	}
}

// EmitBroadcast delivers the event to every connected session.
func (rt *Router) EmitBroadcast(ev ChatEvent) {
	payload := mustFrame(EvtMsg, ev)
	for _, s := range rt.reg.ListAll() {
		s.deliver(payload)
	}
}

// SendChat accepts a chat message from a session. Durable path: the
// message is queued for the write batcher, which performs the
// authoritative emission once a real sequence number exists. Non-durable
// path: a wall-clock id is assigned and the message is emitted
// immediately, plus queued for watcher fan-out.
func (rt *Router) SendChat(s *Session, roomID string, content Content) {
	if roomID == "" {
		return
	}
	ident := s.Identity()

	if rt.durable {
		rt.batcher.Enqueue(PendingMessage{
			RoomID:     roomID,
			SenderID:   ident.UserID,
			SenderName: ident.DisplayName,
			Content:    content,
			EnqueuedAt: time.Now(),
		})
		return
	}

	now := time.Now()
	ev := ChatEvent{
		Type:         MsgTypeChat,
		MsgID:        now.UnixMilli(),
		RoomID:       roomID,
		UserID:       ident.UserID,
		DisplayName:  ident.DisplayName,
		ProfileImage: ident.ProfileImage,
		Content:      &content,
		Time:         now.UnixMilli(),
	}
	rt.EmitToRoom(roomID, ev)
	rt.queue.Push(ev)
}

// RemoveMessage rewrites the stored content to the removed marker, then
// emits the remove event. Without durable storage only the event goes
// out. A failed rewrite suppresses the event so clients never see a
// removal that did not stick.
func (rt *Router) RemoveMessage(ctx context.Context, roomID string, msgID int64) {
	if roomID == "" {
		return
	}
	if rt.durable && rt.msgs != nil {
		cctx, cancel := context.WithTimeout(ctx, rt.timeout)
		err := rt.msgs.UpdateContentByID(cctx, roomID, msgID, RemovedMessageText)
		cancel()
		if err != nil {
			logger.Errorf("[router] remove room=%s msg=%d: %v", roomID, msgID, err)
			return
		}
	}
	rt.EmitToRoom(roomID, ChatEvent{Type: MsgTypeRemove, MsgID: msgID, RoomID: roomID})
}

// SendRoom is the transient room broadcast: sender identity plus
// content, never persisted.
func (rt *Router) SendRoom(s *Session, roomID string, content Content) {
	if roomID == "" {
		return
	}
	ident := s.Identity()
	rt.EmitToRoom(roomID, ChatEvent{
		Type:        MsgTypeRoom,
		RoomID:      roomID,
		UserID:      ident.UserID,
		DisplayName: ident.DisplayName,
		Content:     &content,
	})
}

// SendBroadcast is the transient process-wide broadcast.
func (rt *Router) SendBroadcast(s *Session, content Content) {
	ident := s.Identity()
	rt.EmitBroadcast(ChatEvent{
		Type:        MsgTypeBroadcast,
		UserID:      ident.UserID,
		DisplayName: ident.DisplayName,
		Content:     &content,
	})
}
