// Package emailq is the outgoing mail queue. Messages are queued in
// Postgres and drained by a Gmail Apps Script that polls over HTTP; mail
// that does not need to come from the Gmail account goes out directly via
// Mailjet.
package emailq

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Message is one row of the outgoing_emails table.
type Message struct {
	CreatedTimestamp time.Time  `json:"created_timestamp"`
	Module           string     `json:"module"`
	Recipient        string     `json:"recipient_address"`
	Subject          string     `json:"subject"`
	TextBody         string     `json:"text_body"`
	MessageID        string     `json:"message_id"`
	SentTimestamp    *time.Time `json:"sent_timestamp,omitempty"`
}

type Store interface {
	Insert(ctx context.Context, m Message) error
	Unsent(ctx context.Context) ([]Message, error)
	MarkSent(ctx context.Context, messageIDs []string, ts time.Time) error
}

type Queue struct {
	store Store
	now   func() time.Time
}

func NewQueue(store Store) *Queue {
	return &Queue{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// Add queues one message and returns its id.
func (q *Queue) Add(ctx context.Context, module, recipient, subject, body string) (string, error) {
	m := Message{
		CreatedTimestamp: q.now(),
		Module:           module,
		Recipient:        recipient,
		Subject:          subject,
		TextBody:         body,
		MessageID:        uuid.NewString(),
	}
	if err := q.store.Insert(ctx, m); err != nil {
		return "", fmt.Errorf("queue email for %s: %w", recipient, err)
	}
	return m.MessageID, nil
}

// DrainUnsent returns all unsent messages and marks them sent.
// TODO: mark sent only after the Apps Script confirms delivery.
func (q *Queue) DrainUnsent(ctx context.Context) ([]Message, error) {
	msgs, err := q.store.Unsent(ctx)
	if err != nil {
		return nil, fmt.Errorf("load unsent emails: %w", err)
	}
	if len(msgs) == 0 {
		return nil, nil
	}

	ids := make([]string, len(msgs))
	for i, m := range msgs {
		ids[i] = m.MessageID
	}
	if err := q.store.MarkSent(ctx, ids, q.now()); err != nil {
		return nil, fmt.Errorf("mark emails sent: %w", err)
	}
	return msgs, nil
}
