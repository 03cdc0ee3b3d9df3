package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
)

// resetTokenTTL is how long a password reset token stays valid after issuance
const resetTokenTTL = time.Hour

// CreateSession issues an opaque session token for a user. Sessions carry no
// expiry; they live until logout or account deletion.
func (s *Store) CreateSession(ctx context.Context, userID int64) (string, error) {
	token := uuid.New().String()

	_, err := s.db.Exec(ctx, "insert into sessions (token, user_id) values ($1, $2)", token, userID)
	if err != nil {
		return "", err
	}

	s.logger.Debugf("Created session for user (id: %d)", userID)

	return token, nil
}

// UserBySession resolves a session token to its user. This lookup is the sole
// authentication primitive. Returns ErrSessionNotExist for unknown tokens.
func (s *Store) UserBySession(ctx context.Context, token string) (User, error) {
	var u User
	sql := `select users.id, users.email, users.name, users.bio, users.avatar_color, users.password_hash
			  from sessions
			  join users
				on users.id = sessions.user_id
			 where sessions.token = $1`
	err := s.db.QueryRow(ctx, sql, token).
		Scan(&u.ID, &u.Email, &u.Name, &u.Bio, &u.AvatarColor, &u.PasswordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrSessionNotExist
		}
		return User{}, err
	}

	return u, nil
}

// DeleteSession revokes a session token. No-op for unknown tokens.
func (s *Store) DeleteSession(ctx context.Context, token string) error {
	_, err := s.db.Exec(ctx, "delete from sessions where token = $1", token)
	return err
}

// CreateResetToken issues a single-use password reset token valid for one hour
func (s *Store) CreateResetToken(ctx context.Context, userID int64) (string, error) {
	token := uuid.New().String()
	expiresAt := time.Now().Add(resetTokenTTL)

	sql := "insert into reset_tokens (token, user_id, expires_at) values ($1, $2, $3)"
	if _, err := s.db.Exec(ctx, sql, token, userID, expiresAt); err != nil {
		return "", err
	}

	s.logger.Debugf("Created reset token for user (id: %d)", userID)

	return token, nil
}

// ValidateResetToken resolves a reset token to its user id. Expired tokens
// are deleted on sight; unknown and expired tokens both come back as
// ErrResetTokenInvalid.
func (s *Store) ValidateResetToken(ctx context.Context, token string) (int64, error) {
	var (
		userID    int64
		expiresAt time.Time
	)
	sql := "select user_id, expires_at from reset_tokens where token = $1"
	err := s.db.QueryRow(ctx, sql, token).Scan(&userID, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrResetTokenInvalid
		}
		return 0, err
	}

	if time.Now().After(expiresAt) {
		if err := s.DeleteResetToken(ctx, token); err != nil {
			return 0, err
		}
		return 0, ErrResetTokenInvalid
	}

	return userID, nil
}

// DeleteResetToken consumes a reset token. No-op for unknown tokens.
func (s *Store) DeleteResetToken(ctx context.Context, token string) error {
	_, err := s.db.Exec(ctx, "delete from reset_tokens where token = $1", token)
	return err
}
