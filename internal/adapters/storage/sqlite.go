// Package storage persists users and call logs in sqlite. It backs the
// UserDirectory, UserStatusStore and CallLogStore contracts; the realtime
// core never touches SQL directly.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/whiskr/backend/internal/core"
	"github.com/whiskr/backend/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	avatar_url TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT 'OFFLINE',
	last_seen  INTEGER
);

CREATE TABLE IF NOT EXISTS call_logs (
	id          TEXT PRIMARY KEY,
	caller_id   TEXT NOT NULL,
	receiver_id TEXT NOT NULL,
	type        TEXT NOT NULL,
	status      TEXT NOT NULL,
	started_at  INTEGER,
	ended_at    INTEGER,
	duration    INTEGER NOT NULL DEFAULT 0,
	created_at  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_call_logs_participants
	ON call_logs (caller_id, receiver_id, created_at);
`

type DB struct {
	db *sql.DB
}

func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// sqlite handles one writer at a time; a single conn avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return &DB{db: db}, nil
}

func (s *DB) Close() error {
	return s.db.Close()
}

// UpsertUser creates or refreshes a user row. Account provisioning lives
// elsewhere; this exists for bootstrapping and tests.
func (s *DB) UpsertUser(ctx context.Context, u *domain.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, avatar_url, status, last_seen)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, avatar_url = excluded.avatar_url`,
		string(u.ID), u.Name, u.AvatarURL, string(statusOrOffline(u.Status)), unixOrNull(u.LastSeen))
	return err
}

func (s *DB) Find(ctx context.Context, id domain.UserID) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, avatar_url, status, last_seen FROM users WHERE id = ?`, string(id))

	var u domain.User
	var lastSeen sql.NullInt64
	err := row.Scan(&u.ID, &u.Name, &u.AvatarURL, &u.Status, &lastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", core.ErrUserNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("find user %s: %w", id, err)
	}
	u.LastSeen = timeOrNil(lastSeen)
	return &u, nil
}

func (s *DB) SetStatus(ctx context.Context, id domain.UserID, status domain.UserStatus, lastSeen *time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET status = ?, last_seen = COALESCE(?, last_seen) WHERE id = ?`,
		string(status), unixOrNull(lastSeen), string(id))
	if err != nil {
		return fmt.Errorf("set status for %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", core.ErrUserNotFound, id)
	}
	return nil
}

func (s *DB) Append(ctx context.Context, e *domain.CallLogEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO call_logs (id, caller_id, receiver_id, type, status, started_at, ended_at, duration, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.CallerID), string(e.ReceiverID), string(e.Type), string(e.Status),
		unixOrNull(e.StartedAt), unixOrNull(e.EndedAt), e.Duration, e.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("append call log: %w", err)
	}
	return nil
}

func (s *DB) History(ctx context.Context, userID domain.UserID) ([]domain.CallLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, caller_id, receiver_id, type, status, started_at, ended_at, duration, created_at
		FROM call_logs
		WHERE caller_id = ? OR receiver_id = ?
		ORDER BY created_at DESC`, string(userID), string(userID))
	if err != nil {
		return nil, fmt.Errorf("call history for %s: %w", userID, err)
	}
	defer rows.Close()

	var out []domain.CallLogEntry
	for rows.Next() {
		var e domain.CallLogEntry
		var started, ended sql.NullInt64
		var created int64
		if err := rows.Scan(&e.ID, &e.CallerID, &e.ReceiverID, &e.Type, &e.Status,
			&started, &ended, &e.Duration, &created); err != nil {
			return nil, fmt.Errorf("scan call log: %w", err)
		}
		e.StartedAt = timeOrNil(started)
		e.EndedAt = timeOrNil(ended)
		e.CreatedAt = time.Unix(created, 0)
		out = append(out, e)
	}
	return out, rows.Err()
}

func unixOrNull(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func timeOrNil(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0)
	return &t
}

func statusOrOffline(st domain.UserStatus) domain.UserStatus {
	if st == "" {
		return domain.StatusOffline
	}
	return st
}
