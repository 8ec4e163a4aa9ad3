package chat

import (
	"context"
	"time"

	"github.com/HighK/chatrelay/logger"
	"github.com/HighK/chatrelay/tools/safe"
)

// HistoryService serves paginated past messages from the document store,
// newest first. Chaining calls with the smallest returned seq as lastMsg
// walks the whole room history exactly once.
type HistoryService struct {
	msgs     MessageStore
	pageSize int64
	timeout  time.Duration
}

func NewHistoryService(msgs MessageStore, pageSize int64, timeout time.Duration) *HistoryService {
	if pageSize <= 0 {
		pageSize = 40
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HistoryService{msgs: msgs, pageSize: pageSize, timeout: timeout}
}

// Handle answers one history request on the session. Requests without a
// roomId are ignored; empty pages get no reply, clients treat silence as
// end of history.
func (h *HistoryService) Handle(ctx context.Context, s *Session, req HistoryReq) {
	if h.msgs == nil || req.RoomID == nil || *req.RoomID == "" {
		return
	}
	roomID := *req.RoomID

	count := safe.DefaultInt64(req.Count, h.pageSize)
	if count <= 0 {
		count = h.pageSize
	}
	var before int64
	if !req.IsFirst {
		before = safe.DefaultInt64(req.LastMsg, 0)
	}

	cctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	msgs, err := h.msgs.FindByRoomPaginated(cctx, roomID, before, count)
	if err != nil {
		logger.Errorf("[history] room=%s before=%d: %v", roomID, before, err)
		return
	}
	if len(msgs) == 0 {
		return
	}

	events := make([]ChatEvent, len(msgs))
	for i, m := range msgs {
		content := decodeContent(m.ContentKind, m.ContentBody)
		events[i] = ChatEvent{
			Type:        MsgTypeChat,
			MsgID:       m.Seq,
			RoomID:      m.RoomID,
			UserID:      m.SenderID,
			DisplayName: m.SenderName,
			Content:     &content,
			Time:        m.Timestamp.UnixMilli(),
		}
	}

	s.deliver(mustFrame(EvtHistory, HistoryEvent{
		RoomID:   roomID,
		Messages: events,
		IsFirst:  req.IsFirst,
	}))
}
