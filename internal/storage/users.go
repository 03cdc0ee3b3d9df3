package storage

import (
	"context"
	"errors"
	"math/rand"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v4"
)

// avatarColors is the fixed display palette; every account gets one at random.
var avatarColors = []string{
	"#FF6B6B",
	"#4ECDC4",
	"#45B7D1",
	"#FFA07A",
	"#98D8C8",
	"#F7DC6F",
	"#BB8FCE",
	"#85C1E2",
	"#F8B88B",
	"#A8E6CF",
}

// CreateUser inserts a new account and returns it.
// Returns ErrEmailTaken when the email is already registered; the unique
// index makes this atomic under concurrent signups.
func (s *Store) CreateUser(ctx context.Context, email, passwordHash, name string) (User, error) {
	s.logger.Debugf("Creating user (%s)", email)

	u := User{
		Email:        email,
		Name:         name,
		AvatarColor:  avatarColors[rand.Intn(len(avatarColors))],
		PasswordHash: passwordHash,
	}

	sql := `insert into users (email, name, bio, avatar_color, password_hash)
			values ($1, $2, '', $3, $4)
			returning id`
	err := s.db.QueryRow(ctx, sql, email, name, u.AvatarColor, passwordHash).Scan(&u.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return User{}, ErrEmailTaken
		}
		return User{}, err
	}

	s.logger.Debugf("Created user (%s) with id %d", email, u.ID)

	return u, nil
}

// UserByEmail returns the account registered under email, password hash
// included. Returns ErrUserNotExist when no such account exists.
func (s *Store) UserByEmail(ctx context.Context, email string) (User, error) {
	var u User
	sql := `select id, email, name, bio, avatar_color, password_hash
			  from users
			 where email = $1`
	err := s.db.QueryRow(ctx, sql, email).
		Scan(&u.ID, &u.Email, &u.Name, &u.Bio, &u.AvatarColor, &u.PasswordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotExist
		}
		return User{}, err
	}

	return u, nil
}

// UserByID returns the account with the given id.
// Returns ErrUserNotExist when no such account exists.
func (s *Store) UserByID(ctx context.Context, id int64) (User, error) {
	var u User
	sql := `select id, email, name, bio, avatar_color, password_hash
			  from users
			 where id = $1`
	err := s.db.QueryRow(ctx, sql, id).
		Scan(&u.ID, &u.Email, &u.Name, &u.Bio, &u.AvatarColor, &u.PasswordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotExist
		}
		return User{}, err
	}

	return u, nil
}

// DeleteUser removes an account. Sessions, reset tokens, push tokens,
// memberships and authored messages cascade. Idempotent.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	s.logger.Debugf("Deleting user (id: %d)", id)

	_, err := s.db.Exec(ctx, "delete from users where id = $1", id)
	return err
}

// UpdatePassword replaces the stored credential hash for a user
func (s *Store) UpdatePassword(ctx context.Context, userID int64, newHash string) error {
	tag, err := s.db.Exec(ctx, "update users set password_hash = $2 where id = $1", userID, newHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotExist
	}
	return nil
}
