package transcript

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const cacheCollection = "earnings_call_transcripts"

type cacheDoc struct {
	Ticker     string `bson:"ticker"`
	Year       int    `bson:"year"`
	Quarter    int    `bson:"quarter"`
	Transcript string `bson:"transcript"`
}

// MongoCache stores one document per (ticker, year, quarter) in the
// earnings_call_transcripts collection.
type MongoCache struct {
	coll *mongo.Collection
}

func NewMongoCache(db *mongo.Database) *MongoCache {
	return &MongoCache{coll: db.Collection(cacheCollection)}
}

func (c *MongoCache) Get(ctx context.Context, ticker string, year, quarter int) (string, bool, error) {
	var doc cacheDoc
	err := c.coll.FindOne(ctx, cacheFilter(ticker, year, quarter)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup transcript %s %d Q%d: %w", ticker, year, quarter, err)
	}
	return doc.Transcript, true, nil
}

func (c *MongoCache) Put(ctx context.Context, ticker string, year, quarter int, text string) error {
	doc := cacheDoc{Ticker: ticker, Year: year, Quarter: quarter, Transcript: text}
	_, err := c.coll.ReplaceOne(ctx, cacheFilter(ticker, year, quarter), doc,
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("cache transcript %s %d Q%d: %w", ticker, year, quarter, err)
	}
	return nil
}

func cacheFilter(ticker string, year, quarter int) bson.D {
	return bson.D{
		{Key: "ticker", Value: ticker},
		{Key: "year", Value: year},
		{Key: "quarter", Value: quarter},
	}
}
