package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
)

// SavePushToken adds a delivery token to a user's token set. Re-registering
// an existing token is a no-op.
func (s *Store) SavePushToken(ctx context.Context, userID int64, token string) error {
	s.logger.Debugf("Registering push token for user (id: %d)", userID)

	sql := "insert into push_tokens (user_id, token) values ($1, $2) on conflict do nothing"
	_, err := s.db.Exec(ctx, sql, userID, token)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return ErrUserNotExist
		}
		return err
	}
	return nil
}

// RemovePushToken drops a single token from a user's set. No-op when absent.
func (s *Store) RemovePushToken(ctx context.Context, userID int64, token string) error {
	_, err := s.db.Exec(ctx,
		"delete from push_tokens where user_id = $1 and token = $2", userID, token)
	return err
}

// PushTokens returns all delivery tokens registered for a user
func (s *Store) PushTokens(ctx context.Context, userID int64) ([]string, error) {
	rows, err := s.db.Query(ctx,
		"select token from push_tokens where user_id = $1 order by created_at", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tokens := make([]string, 0)
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return tokens, nil
}
