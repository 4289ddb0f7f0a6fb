package emailq

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeEmailStore struct {
	messages  []Message
	insertErr error
	markErr   error
}

func (s *fakeEmailStore) Insert(_ context.Context, m Message) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.messages = append(s.messages, m)
	return nil
}

func (s *fakeEmailStore) Unsent(_ context.Context) ([]Message, error) {
	var out []Message
	for _, m := range s.messages {
		if m.SentTimestamp == nil {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *fakeEmailStore) MarkSent(_ context.Context, ids []string, ts time.Time) error {
	if s.markErr != nil {
		return s.markErr
	}
	for _, id := range ids {
		for i := range s.messages {
			if s.messages[i].MessageID == id {
				t := ts
				s.messages[i].SentTimestamp = &t
			}
		}
	}
	return nil
}

func TestAdd(t *testing.T) {
	store := &fakeEmailStore{}
	q := NewQueue(store)

	id, err := q.Add(context.Background(), "CHECKIN", "a@b.com", "subject", "body")
	if err != nil {
		t.Fatalf("Add error: %v", err)
	}
	if id == "" {
		t.Error("message id should not be empty")
	}
	if len(store.messages) != 1 {
		t.Fatalf("len(messages) = %d, want 1", len(store.messages))
	}
	m := store.messages[0]
	if m.Module != "CHECKIN" || m.Recipient != "a@b.com" || m.MessageID != id {
		t.Errorf("stored message = %+v", m)
	}
	if m.SentTimestamp != nil {
		t.Error("new message should be unsent")
	}
}

func TestAdd_StoreFailure(t *testing.T) {
	q := NewQueue(&fakeEmailStore{insertErr: errors.New("pg down")})
	if _, err := q.Add(context.Background(), "M", "a@b.com", "s", "b"); err == nil {
		t.Error("expected error")
	}
}

func TestDrainUnsent(t *testing.T) {
	store := &fakeEmailStore{}
	q := NewQueue(store)
	ctx := context.Background()

	q.Add(ctx, "M", "one@x.com", "s1", "b1")
	q.Add(ctx, "M", "two@x.com", "s2", "b2")

	msgs, err := q.DrainUnsent(ctx)
	if err != nil {
		t.Fatalf("DrainUnsent error: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("drained %d messages, want 2", len(msgs))
	}

	// Everything is now marked sent; a second drain is empty.
	msgs, err = q.DrainUnsent(ctx)
	if err != nil {
		t.Fatalf("second DrainUnsent error: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("second drain returned %d messages, want 0", len(msgs))
	}
}

func TestDrainUnsent_MarkFailure(t *testing.T) {
	store := &fakeEmailStore{markErr: errors.New("pg down")}
	q := NewQueue(store)
	q.Add(context.Background(), "M", "a@b.com", "s", "b")

	if _, err := q.DrainUnsent(context.Background()); err == nil {
		t.Error("expected error when marking sent fails")
	}
}
