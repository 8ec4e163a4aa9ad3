package store

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MessageStore persists chat messages in a mongo collection, one
// document per message, sequence-numbered per room.
type MessageStore struct {
	MsgColl *mongo.Collection
}

func NewMessageStore(db *mongo.Database) *MessageStore {
	return &MessageStore{MsgColl: db.Collection(MsgCollectionName)}
}

// EnsureIndexes creates the (room_id, seq) unique index the relay
// depends on for ordering and identity.
func (s *MessageStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.MsgColl.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: MsgFieldRoomID, Value: 1},
			{Key: MsgFieldSeq, Value: -1},
		},
		Options: options.Index().SetUnique(true),
	})
	return errors.Wrap(err, "create message index")
}

// InsertMany bulk-inserts a flush batch. Ordered inserts: a failure
// leaves a prefix written, and the retry next cycle re-reads LatestSeq
// so no gap can result.
func (s *MessageStore) InsertMany(ctx context.Context, msgs []StoredMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(msgs))
	for _, m := range msgs {
		docs = append(docs, m)
	}
	_, err := s.MsgColl.InsertMany(ctx, docs)
	return errors.Wrap(err, "insert messages")
}

// LatestSeq returns the highest stored sequence number for the room,
// 0 when the room has no messages yet.
func (s *MessageStore) LatestSeq(ctx context.Context, roomID string) (int64, error) {
	var m StoredMessage
	err := s.MsgColl.FindOne(ctx,
		bson.M{MsgFieldRoomID: roomID},
		options.FindOne().SetSort(bson.M{MsgFieldSeq: -1}),
	).Decode(&m)
	if err == mongo.ErrNoDocuments {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "latest seq")
	}
	return m.Seq, nil
}

// FindByRoomPaginated returns up to limit messages in descending seq
// order. beforeSeq <= 0 means the newest page.
func (s *MessageStore) FindByRoomPaginated(ctx context.Context, roomID string, beforeSeq, limit int64) ([]StoredMessage, error) {
	filter := bson.M{MsgFieldRoomID: roomID}
	if beforeSeq > 0 {
		filter[MsgFieldSeq] = bson.M{"$lt": beforeSeq}
	}
	cur, err := s.MsgColl.Find(ctx, filter,
		options.Find().SetSort(bson.M{MsgFieldSeq: -1}).SetLimit(limit))
	if err != nil {
		return nil, errors.Wrap(err, "find messages")
	}
	defer func() { _ = cur.Close(ctx) }()

	var out []StoredMessage
	for cur.Next(ctx) {
		var m StoredMessage
		if err := cur.Decode(&m); err != nil {
			return nil, errors.Wrap(err, "decode message")
		}
		out = append(out, m)
	}
	return out, errors.Wrap(cur.Err(), "cursor")
}

// UpdateContentByID rewrites a stored message's content in place.
// Sequence numbers are room-scoped, so (roomID, seq) identifies the
// message.
func (s *MessageStore) UpdateContentByID(ctx context.Context, roomID string, seq int64, content string) error {
	_, err := s.MsgColl.UpdateOne(ctx,
		bson.M{MsgFieldRoomID: roomID, MsgFieldSeq: seq},
		bson.M{"$set": bson.M{
			MsgFieldContentKind: "text",
			MsgFieldContentBody: content,
		}},
	)
	return errors.Wrap(err, "update message content")
}
