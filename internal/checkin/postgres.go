package checkin

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the slice of pgxpool.Pool this package needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PGStore struct {
	db DB
}

func NewPGStore(db DB) *PGStore {
	return &PGStore{db: db}
}

const userColumns = `email_address, first_name, last_name,
	monday_checkin, tuesday_checkin, wednesday_checkin, thursday_checkin,
	friday_checkin, saturday_checkin, sunday_checkin`

func scanUser(row pgx.Row) (UserSettings, error) {
	var u UserSettings
	err := row.Scan(&u.Email, &u.FirstName, &u.LastName,
		&u.Monday, &u.Tuesday, &u.Wednesday, &u.Thursday,
		&u.Friday, &u.Saturday, &u.Sunday)
	return u, err
}

func (s *PGStore) Users(ctx context.Context, email string) ([]UserSettings, error) {
	rows, err := s.db.Query(ctx,
		`select `+userColumns+` from checkin_users where email_address = $1`, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []UserSettings
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *PGStore) AllUsers(ctx context.Context) ([]UserSettings, error) {
	rows, err := s.db.Query(ctx, `select `+userColumns+` from checkin_users`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []UserSettings
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *PGStore) UpsertUser(ctx context.Context, u UserSettings) error {
	_, err := s.db.Exec(ctx,
		`insert into checkin_users (`+userColumns+`)
		 values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 on conflict (email_address) do update set
		   first_name = excluded.first_name,
		   last_name = excluded.last_name,
		   monday_checkin = excluded.monday_checkin,
		   tuesday_checkin = excluded.tuesday_checkin,
		   wednesday_checkin = excluded.wednesday_checkin,
		   thursday_checkin = excluded.thursday_checkin,
		   friday_checkin = excluded.friday_checkin,
		   saturday_checkin = excluded.saturday_checkin,
		   sunday_checkin = excluded.sunday_checkin`,
		u.Email, u.FirstName, u.LastName,
		u.Monday, u.Tuesday, u.Wednesday, u.Thursday,
		u.Friday, u.Saturday, u.Sunday)
	return err
}

func (s *PGStore) RecordExists(ctx context.Context, email, date string) (bool, error) {
	var count int
	err := s.db.QueryRow(ctx,
		`select count(*) from checkin_records where email_address = $1 and record_date = $2`,
		email, date).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *PGStore) CreateRecord(ctx context.Context, email, date string) error {
	_, err := s.db.Exec(ctx,
		`insert into checkin_records (email_address, record_date) values ($1, $2)`,
		email, date)
	return err
}
