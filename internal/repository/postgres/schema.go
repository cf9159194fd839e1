package postgres

import (
	"context"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id    BIGINT PRIMARY KEY,
	name  TEXT   NOT NULL,
	tiers JSONB  NOT NULL DEFAULT '[]'
);

CREATE UNIQUE INDEX IF NOT EXISTS events_name_lower_idx ON events (lower(trim(name)));

CREATE TABLE IF NOT EXISTS purchases (
	id           BIGINT  PRIMARY KEY,
	ts           BIGINT  NOT NULL,
	event_id     BIGINT  NOT NULL,
	event_name   TEXT    NOT NULL,
	quantity     BIGINT  NOT NULL,
	breakdown    JSONB   NOT NULL DEFAULT '[]',
	total        NUMERIC NOT NULL,
	cancelled    BOOLEAN NOT NULL DEFAULT FALSE,
	cancelled_at BIGINT  NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS users (
	id            BIGINT PRIMARY KEY,
	fullname      TEXT   NOT NULL,
	username      TEXT   NOT NULL,
	email         TEXT   NOT NULL,
	password      TEXT   NOT NULL,
	role          TEXT   NOT NULL DEFAULT 'user',
	reset_token   TEXT   NOT NULL DEFAULT '',
	reset_expires BIGINT NOT NULL DEFAULT 0
);

CREATE UNIQUE INDEX IF NOT EXISTS users_username_lower_idx ON users (lower(username));
CREATE UNIQUE INDEX IF NOT EXISTS users_email_lower_idx ON users (lower(trim(email)));
`

// EnsureSchema creates the tables on startup when the postgres driver is
// selected. Idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	const op = "postgres.Store.EnsureSchema"

	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
