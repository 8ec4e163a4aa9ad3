package store

import "time"

const (
	MsgCollectionName = "messages"

	MsgFieldRoomID      = "room_id"
	MsgFieldSeq         = "seq"
	MsgFieldSenderID    = "sender_id"
	MsgFieldSenderName  = "sender_name"
	MsgFieldContentKind = "content_kind"
	MsgFieldContentBody = "content_body"
	MsgFieldTimestamp   = "timestamp"
)

// StoredMessage is the durable form of one chat message. Seq is assigned
// by the write batcher at flush time and never changes afterwards; the
// (RoomID, Seq) pair is the message identity. Content may later be
// rewritten to the removed marker, nothing else is mutable.
type StoredMessage struct {
	RoomID      string    `bson:"room_id"`
	Seq         int64     `bson:"seq"`
	SenderID    string    `bson:"sender_id"`
	SenderName  string    `bson:"sender_name"`
	ContentKind string    `bson:"content_kind"` // text | rich
	ContentBody string    `bson:"content_body"`
	Timestamp   time.Time `bson:"timestamp"`
}
