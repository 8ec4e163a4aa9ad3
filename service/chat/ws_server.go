package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/HighK/chatrelay/logger"
	"github.com/HighK/chatrelay/tools/safe"
)

const (
	readLimit     = 1 << 20 // 1MB
	readDeadline  = 60 * time.Second
	writeDeadline = 5 * time.Second
	pingEvery     = 30 * time.Second
)

// IdentityHeader carries the optional caller-supplied identity blob.
const IdentityHeader = "X-Chat-Identity"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// HandleWS upgrades the request and runs the connection: one read loop
// here, one writer goroutine draining the session's send queue.
func (s *Server) HandleWS(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Infof("[ws] upgrade error: %v", err)
		return
	}
	defer func() { _ = ws.Close() }()

	sess := s.reg.OnConnect([]byte(c.Request.Header.Get(IdentityHeader)), s.cfg.SendQueueSize)
	s.presence.Online(c.Request.Context(), sess.ConnID, sess.Identity().UserID)

	done := make(chan struct{})
	go s.writePump(ws, sess, done)

	s.readLoop(ws, sess)

	// Disconnect stops future delivery; in-flight store writes complete
	// on their own.
	s.reg.OnDisconnect(sess)
	{
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		s.presence.Offline(ctx, sess.ConnID)
		cancel()
	}
	<-done
}

func (s *Server) writePump(ws *websocket.Conn, sess *Session, done chan struct{}) {
	defer close(done)
	ping := time.NewTicker(pingEvery)
	defer ping.Stop()

	for {
		select {
		case <-sess.quit:
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeDeadline))
			return
		case payload := <-sess.send:
			_ = ws.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Infof("[ws] write err conn=%s: %v", sess.ConnID, err)
				return
			}
		case <-ping.C:
			_ = ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeDeadline))
		}
	}
}

func (s *Server) readLoop(ws *websocket.Conn, sess *Session) {
	ws.SetReadLimit(readLimit)
	_ = ws.SetReadDeadline(time.Now().Add(readDeadline))
	ws.SetPongHandler(func(string) error {
		s.presence.Refresh(context.Background(), sess.ConnID)
		return ws.SetReadDeadline(time.Now().Add(readDeadline))
	})

	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Infof("[ws] peer closed conn=%s", sess.ConnID)
			} else {
				logger.Infof("[ws] read err conn=%s: %v", sess.ConnID, err)
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		_ = ws.SetReadDeadline(time.Now().Add(readDeadline))

		frame, err := ParseFrameJSON(data)
		if err != nil {
			sample := data
			if len(sample) > 256 {
				sample = sample[:256]
			}
			logger.Infof("[ws] bad frame conn=%s err=%v sample=%q", sess.ConnID, err, sample)
			continue
		}
		s.dispatch(sess, frame)
	}
}

// dispatch routes one inbound frame. Malformed payloads are ignored, the
// connection stays up.
func (s *Server) dispatch(sess *Session, f *Frame) {
	switch f.Event {
	case EvtSetAuth:
		var req SetAuthReq
		if err := json.Unmarshal(f.Data, &req); err != nil {
			return
		}
		s.reg.UpdateAuth(sess, req)
		if req.ProfileImage != nil && *req.ProfileImage != "" {
			// Self-reported profile references are trusted.
			s.profiles.Put(sess.Identity().UserID, *req.ProfileImage)
		}
		sess.deliver(mustFrame(EvtComplete, CompleteAck{Type: EvtSetAuth, Status: true}))

	case EvtJoinRoom:
		var req RoomReq
		if err := json.Unmarshal(f.Data, &req); err != nil || req.RoomID == "" {
			return
		}
		s.reg.Join(sess, req.RoomID)
		sess.deliver(mustFrame(EvtComplete, CompleteAck{Type: EvtJoinRoom, RoomID: req.RoomID, Status: true}))

	case EvtLeaveRoom:
		var req RoomReq
		if err := json.Unmarshal(f.Data, &req); err != nil || req.RoomID == "" {
			return
		}
		s.reg.Leave(sess, req.RoomID)
		sess.deliver(mustFrame(EvtComplete, CompleteAck{Type: EvtLeaveRoom, RoomID: req.RoomID, Status: true}))

	case EvtMessage:
		var req MessageReq
		if err := json.Unmarshal(f.Data, &req); err != nil {
			return
		}
		s.dispatchMessage(sess, req)

	case EvtHistory:
		var req HistoryReq
		if err := json.Unmarshal(f.Data, &req); err != nil {
			return
		}
		s.history.Handle(context.Background(), sess, req)

	case EvtSubscriptionRoom:
		var req SubscriptionReq
		if err := json.Unmarshal(f.Data, &req); err != nil {
			return
		}
		s.reg.SetWatchList(sess, req.Rooms)

	case EvtReceive:
		var req ReceiveReq
		if err := json.Unmarshal(f.Data, &req); err != nil || req.RoomID == nil {
			return
		}
		s.reg.RecordRead(sess, *req.RoomID, req.MsgID)

	default:
		logger.Debug("[ws] unknown event " + f.Event)
	}
}

func (s *Server) dispatchMessage(sess *Session, req MessageReq) {
	roomID := safe.DefaultString(req.RoomID, "")
	content := TextContent("")
	if req.Content != nil {
		content = *req.Content
	}

	switch req.Type {
	case MsgTypeChat:
		s.router.SendChat(sess, roomID, content)
	case MsgTypeRemove:
		if req.MsgID == nil {
			return
		}
		s.router.RemoveMessage(context.Background(), roomID, *req.MsgID)
	case MsgTypeRoom:
		s.router.SendRoom(sess, roomID, content)
	case MsgTypeBroadcast:
		s.router.SendBroadcast(sess, content)
	}
}
