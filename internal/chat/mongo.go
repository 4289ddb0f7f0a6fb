package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const threadCollection = "earnings_call_chats"

type threadDoc struct {
	UserID    string    `bson:"userid"`
	ChatID    string    `bson:"chatid"`
	Messages  []Turn    `bson:"messages"`
	Timestamp time.Time `bson:"timestamp"`
}

// MongoStore keeps one document per (userid, chatid) pair in the
// earnings_call_chats collection. The mongo client pools connections, so a
// collection handle is acquired per call and released with the call.
type MongoStore struct {
	coll *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection(threadCollection)}
}

func (s *MongoStore) Load(ctx context.Context, userID, chatID string) ([]Turn, bool, error) {
	var doc threadDoc
	err := s.coll.FindOne(ctx, threadFilter(userID, chatID)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load thread %s/%s: %w", userID, chatID, err)
	}
	return doc.Messages, true, nil
}

func (s *MongoStore) Save(ctx context.Context, userID, chatID string, turns []Turn, ts time.Time) error {
	doc := threadDoc{UserID: userID, ChatID: chatID, Messages: turns, Timestamp: ts}
	_, err := s.coll.ReplaceOne(ctx, threadFilter(userID, chatID), doc,
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save thread %s/%s: %w", userID, chatID, err)
	}
	return nil
}

func (s *MongoStore) History(ctx context.Context, userID, chatID string) ([]Turn, bool, error) {
	return s.Load(ctx, userID, chatID)
}

func (s *MongoStore) Summaries(ctx context.Context, userID string) ([]Summary, error) {
	cur, err := s.coll.Find(ctx, bson.D{{Key: "userid", Value: userID}},
		options.Find().
			SetSort(bson.D{{Key: "timestamp", Value: -1}}).
			SetProjection(bson.D{{Key: "messages", Value: 0}}))
	if err != nil {
		return nil, fmt.Errorf("list chats for %s: %w", userID, err)
	}
	defer cur.Close(ctx)

	var out []Summary
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode chat summaries for %s: %w", userID, err)
	}
	return out, nil
}

func threadFilter(userID, chatID string) bson.D {
	return bson.D{{Key: "userid", Value: userID}, {Key: "chatid", Value: chatID}}
}
