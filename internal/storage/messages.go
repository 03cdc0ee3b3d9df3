package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v4"
)

// CreateMessage appends a message to a room's log and returns it with the
// sender's display name resolved. Text length bounds are the caller's
// responsibility; the log itself is append-only.
func (s *Store) CreateMessage(ctx context.Context, roomID, senderID int64, text string) (Message, error) {
	s.logger.Debugf("Creating message from user (id: %d) in room (id: %d)", senderID, roomID)

	m := Message{
		RoomID:   roomID,
		SenderID: senderID,
		Text:     text,
	}

	sql := `insert into messages (room_id, sender_id, text)
			values ($1, $2, $3)
			returning id, created_at, (select name from users where id = $2)`
	err := s.db.QueryRow(ctx, sql, roomID, senderID, text).Scan(&m.ID, &m.CreatedAt, &m.Sender)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			switch pgErr.ConstraintName {
			case "messages_room_id_fkey":
				return Message{}, ErrMessageBadRoom
			case "messages_sender_id_fkey":
				return Message{}, ErrMessageBadSender
			}
		}
		return Message{}, err
	}

	return m, nil
}

// MessagesByRoomID returns the full message log of a room sorted by creation
// time, earliest first, with message id as the tiebreak. Returns
// ErrRoomNotExist when the room id is unknown, including after room deletion.
func (s *Store) MessagesByRoomID(ctx context.Context, roomID int64) ([]Message, error) {
	s.logger.Debugf("Retrieving messages for room (id: %d)", roomID)

	// check if room exists
	var i int8
	err := s.db.QueryRow(ctx, "select 1 from rooms where id = $1", roomID).Scan(&i)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoomNotExist
		}
		return nil, err
	}

	sql := `select messages.id,
				   messages.room_id,
				   messages.sender_id,
				   users.name,
				   messages.text,
				   messages.created_at
			  from messages
			  join users
				on users.id = messages.sender_id
			 where messages.room_id = $1
			 order by messages.created_at, messages.id`

	rows, err := s.db.Query(ctx, sql, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]Message, 0)
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.RoomID, &m.SenderID, &m.Sender, &m.Text, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	s.logger.Debugf("Retrieved %d messages", len(messages))

	return messages, nil
}
