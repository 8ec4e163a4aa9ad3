package chat

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Inbound event names.
const (
	EvtSetAuth          = "setAuth"
	EvtJoinRoom         = "joinRoom"
	EvtLeaveRoom        = "leaveRoom"
	EvtMessage          = "message"
	EvtHistory          = "history"
	EvtSubscriptionRoom = "subscriptionRoom"
	EvtReceive          = "receive"
)

// Outbound event names.
const (
	EvtMsg      = "msg"
	EvtComplete = "complete"
)

// message payload types.
const (
	MsgTypeChat      = "chat"
	MsgTypeRemove    = "remove"
	MsgTypeRoom      = "room"
	MsgTypeBroadcast = "broadcast"
	MsgTypeChats     = "chats"
)

// WatchAllSentinel in a watch list means "watch every room". Kept as an
// opaque special room id.
const WatchAllSentinel = "manager"

// RemovedMessageText replaces the content of a removed message.
const RemovedMessageText = "This message has been removed."

// Frame is the envelope for every frame in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func ParseFrameJSON(raw []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, errors.Wrap(err, "unmarshal frame")
	}
	if f.Event == "" {
		return nil, errors.New("frame missing event")
	}
	return &f, nil
}

// EncodeFrame builds the wire form of one outbound frame.
func EncodeFrame(event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, errors.Wrap(err, "marshal frame data")
	}
	return json.Marshal(Frame{Event: event, Data: raw})
}

// mustFrame is for payloads built from our own types; a marshal failure
// there is a programming error.
func mustFrame(event string, data interface{}) []byte {
	raw, err := EncodeFrame(event, data)
	if err != nil {
		panic(err)
	}
	return raw
}

// Content is the tagged message body: plain text or an opaque rich
// payload the relay forwards untouched.
type Content struct {
	Kind string          `json:"kind"` // text | rich
	Text string          `json:"text,omitempty"`
	Rich json.RawMessage `json:"rich,omitempty"`
}

func TextContent(text string) Content {
	return Content{Kind: "text", Text: text}
}

// ---- inbound payloads; optional fields are pointers ----

type SetAuthReq struct {
	DisplayName  *string `json:"displayName,omitempty"`
	UserID       *string `json:"userId,omitempty"`
	ProfileImage *string `json:"profileImage,omitempty"`
}

type RoomReq struct {
	RoomID string `json:"roomId"`
}

type MessageReq struct {
	Type    string   `json:"type"`
	RoomID  *string  `json:"roomId,omitempty"`
	MsgID   *int64   `json:"msgId,omitempty"`
	Content *Content `json:"content,omitempty"`
}

type HistoryReq struct {
	RoomID  *string `json:"roomId,omitempty"`
	IsFirst bool    `json:"isFirst"`
	LastMsg *int64  `json:"lastMsg,omitempty"` // oldest seq of the previous page
	Count   *int64  `json:"count,omitempty"`   // default is the configured page size
}

type SubscriptionReq struct {
	Rooms []string `json:"rooms"`
}

type ReceiveReq struct {
	RoomID *string `json:"roomId,omitempty"`
	MsgID  int64   `json:"msgId"`
}

// ---- outbound payloads ----

type CompleteAck struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId,omitempty"`
	Status bool   `json:"status"`
}

// ChatEvent is the one canonical shape for every msg-frame variant. The
// durable and non-durable send paths emit the same fields; chats batches
// carry Messages and leave the per-message fields empty.
type ChatEvent struct {
	Type         string      `json:"type"`
	MsgID        int64       `json:"msgId,omitempty"`
	RoomID       string      `json:"roomId,omitempty"`
	UserID       string      `json:"userId,omitempty"`
	DisplayName  string      `json:"displayName,omitempty"`
	ProfileImage string      `json:"profileImage,omitempty"`
	Content      *Content    `json:"content,omitempty"`
	Time         int64       `json:"time,omitempty"` // unix ms
	Messages     []ChatEvent `json:"messages,omitempty"`
}

type HistoryEvent struct {
	RoomID   string      `json:"roomId"`
	Messages []ChatEvent `json:"messages"`
	IsFirst  bool        `json:"isFirst"`
}

// encodeContent flattens a Content into the two stored columns.
func encodeContent(c Content) (kind, body string) {
	if c.Kind == "rich" {
		return "rich", string(c.Rich)
	}
	return "text", c.Text
}

func decodeContent(kind, body string) Content {
	if kind == "rich" {
		return Content{Kind: "rich", Rich: json.RawMessage(body)}
	}
	return Content{Kind: "text", Text: body}
}
