// Package applog writes the application log and the resource access log to
// Postgres, mirroring every line to the process log. Log writes are
// best-effort: a failed insert must never take down the request that
// triggered it, except for access logging which gates request handling.
package applog

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	LevelTrace   = "TRACE"
	LevelDebug   = "DEBUG"
	LevelInfo    = "INFO"
	LevelWarning = "WARNING"
	LevelError   = "ERROR"
)

// DB is the slice of pgxpool.Pool this package needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type Logger struct {
	db DB
}

func New(db DB) *Logger {
	return &Logger{db: db}
}

// Append writes one line to the app_logs table. Failures are reported on the
// process log and otherwise swallowed.
func (l *Logger) Append(ctx context.Context, category, level, message string) {
	log.Printf("[%s] %s: %s", category, level, message)
	if l == nil || l.db == nil {
		return
	}
	_, err := l.db.Exec(ctx,
		`insert into app_logs (timestamp, category, level, message) values ($1, $2, $3, $4)`,
		time.Now().UTC(), category, level, message)
	if err != nil {
		log.Printf("[applog] writing to app_logs failed: %v", err)
	}
}

// ResourceAccess records one inbound request. Unlike Append, the error is
// returned: a request whose access cannot be logged is rejected.
func (l *Logger) ResourceAccess(ctx context.Context, location, ipAddress string) error {
	if l == nil || l.db == nil {
		return fmt.Errorf("resource access log unavailable")
	}
	_, err := l.db.Exec(ctx,
		`insert into resource_access_logs (timestamp, location, ip_address) values ($1, $2, $3)`,
		time.Now().UTC(), location, ipAddress)
	if err != nil {
		return fmt.Errorf("write resource access log: %w", err)
	}
	return nil
}

// AccessRecord is one row of the resource access log.
type AccessRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Location  string    `json:"location"`
	IPAddress string    `json:"ip_address"`
}

// RecentResourceAccess returns the newest limit access-log rows.
func (l *Logger) RecentResourceAccess(ctx context.Context, limit int) ([]AccessRecord, error) {
	rows, err := l.db.Query(ctx,
		`select timestamp, location, ip_address from resource_access_logs order by timestamp desc limit $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("query resource access logs: %w", err)
	}
	defer rows.Close()

	var out []AccessRecord
	for rows.Next() {
		var r AccessRecord
		if err := rows.Scan(&r.Timestamp, &r.Location, &r.IPAddress); err != nil {
			return nil, fmt.Errorf("scan resource access log: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
