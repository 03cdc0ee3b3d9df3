package storage

import (
	"context"
	"fmt"
)

// schema statements run on startup. CREATE TABLE IF NOT EXISTS keeps
// restarts idempotent; all cross-entity cleanup (account deletion, room
// deletion) rides the ON DELETE CASCADE clauses below.
var schema = []string{
	`create table if not exists users (
		id bigserial primary key,
		email text unique not null,
		name text not null,
		bio text not null default '',
		avatar_color text not null,
		password_hash text not null,
		created_at timestamptz not null default now()
	)`,

	`create table if not exists sessions (
		token text primary key,
		user_id bigint not null references users (id) on delete cascade,
		created_at timestamptz not null default now()
	)`,

	`create table if not exists reset_tokens (
		token text primary key,
		user_id bigint not null references users (id) on delete cascade,
		expires_at timestamptz not null
	)`,

	`create table if not exists rooms (
		id bigserial primary key,
		name text not null,
		code text unique not null,
		created_at timestamptz not null default now()
	)`,

	`create table if not exists room_members (
		room_id bigint not null references rooms (id) on delete cascade,
		user_id bigint not null references users (id) on delete cascade,
		joined_at timestamptz not null default now(),
		primary key (room_id, user_id)
	)`,

	`create table if not exists messages (
		id bigserial primary key,
		room_id bigint not null references rooms (id) on delete cascade,
		sender_id bigint not null references users (id) on delete cascade,
		text text not null,
		created_at timestamptz not null default now()
	)`,

	`create table if not exists push_tokens (
		user_id bigint not null references users (id) on delete cascade,
		token text not null,
		created_at timestamptz not null default now(),
		primary key (user_id, token)
	)`,
}

func (s *Store) ensureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema bootstrap: %w", err)
		}
	}
	return nil
}
