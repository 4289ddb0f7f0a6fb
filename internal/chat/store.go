package chat

import (
	"context"
	"time"
)

// ThreadStore persists the ordered turn list for one (userID, chatID) pair.
// Save is a full-document upsert: repeating it with identical turns is safe.
type ThreadStore interface {
	// Load returns the stored turns and found=true, or found=false when no
	// thread exists yet for the key. A thread with zero turns cannot occur.
	Load(ctx context.Context, userID, chatID string) (turns []Turn, found bool, err error)
	// Save upserts the full turn list and last-modified timestamp.
	Save(ctx context.Context, userID, chatID string, turns []Turn, ts time.Time) error
}

// Summary is one chat in the per-user listing. Message contents are
// deliberately absent from the projection.
type Summary struct {
	UserID    string    `bson:"userid" json:"userid"`
	ChatID    string    `bson:"chatid" json:"chatid"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

// HistoryReader is the read-only query surface over stored threads.
type HistoryReader interface {
	// History returns the full turn list, or found=false for an unknown key.
	History(ctx context.Context, userID, chatID string) (turns []Turn, found bool, err error)
	// Summaries lists a user's chats newest-first by last-modified timestamp.
	Summaries(ctx context.Context, userID string) ([]Summary, error)
}
