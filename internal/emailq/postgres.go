package emailq

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the slice of pgxpool.Pool this package needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type PGStore struct {
	db DB
}

func NewPGStore(db DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Insert(ctx context.Context, m Message) error {
	_, err := s.db.Exec(ctx,
		`insert into outgoing_emails
		 (created_timestamp, module, recipient_address, subject, text_body, message_id)
		 values ($1, $2, $3, $4, $5, $6)`,
		m.CreatedTimestamp, m.Module, m.Recipient, m.Subject, m.TextBody, m.MessageID)
	return err
}

func (s *PGStore) Unsent(ctx context.Context) ([]Message, error) {
	rows, err := s.db.Query(ctx,
		`select created_timestamp, module, recipient_address, subject, text_body, message_id
		 from outgoing_emails where sent_timestamp is null order by created_timestamp`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.CreatedTimestamp, &m.Module, &m.Recipient,
			&m.Subject, &m.TextBody, &m.MessageID); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PGStore) MarkSent(ctx context.Context, messageIDs []string, ts time.Time) error {
	_, err := s.db.Exec(ctx,
		`update outgoing_emails set sent_timestamp = $1 where message_id = any($2)`,
		ts, messageIDs)
	return err
}
