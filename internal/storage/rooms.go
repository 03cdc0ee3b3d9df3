package storage

import (
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
)

const (
	codeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	codeLength   = 6

	// createRoomAttempts bounds the retry loop on join-code collisions.
	// With a 36^6 space collisions are rare; the bound keeps a pathological
	// run from looping forever.
	createRoomAttempts = 5
)

func generateJoinCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := crand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}

// CreateRoom inserts a room with a fresh join code and its creator as the
// first member, in one transaction. On a join-code unique violation the whole
// transaction is retried with a new code, up to createRoomAttempts times.
func (s *Store) CreateRoom(ctx context.Context, name string, creatorID int64) (Room, error) {
	s.logger.Debugf("Creating room (%s) for user (id: %d)", name, creatorID)

	for attempt := 0; attempt < createRoomAttempts; attempt++ {
		code, err := generateJoinCode()
		if err != nil {
			return Room{}, err
		}

		room, err := s.tryCreateRoom(ctx, name, code, creatorID)
		if err == nil {
			s.logger.Debugf("Created room (%s) with id %d and code %s", name, room.ID, room.Code)
			return room, nil
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation && pgErr.ConstraintName == "rooms_code_key" {
			s.logger.Infof("Join code collision on %s, retrying", code)
			continue
		}
		return Room{}, err
	}

	return Room{}, ErrCodeExhausted
}

func (s *Store) tryCreateRoom(ctx context.Context, name, code string, creatorID int64) (Room, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return Room{}, err
	}
	// error handling can be omitted for rollback according docs
	// see https://pkg.go.dev/github.com/jackc/pgx/v4?tab=doc#hdr-Transactions or any source comment on Rollback
	defer tx.Rollback(context.Background())

	room := Room{Name: name, Code: code, Messages: []Message{}}
	sql := "insert into rooms (name, code) values ($1, $2) returning id, created_at"
	if err := tx.QueryRow(ctx, sql, name, code).Scan(&room.ID, &room.CreatedAt); err != nil {
		return Room{}, err
	}

	sql = "insert into room_members (room_id, user_id) values ($1, $2)"
	if _, err := tx.Exec(ctx, sql, room.ID, creatorID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return Room{}, ErrUserNotExist
		}
		return Room{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Room{}, err
	}

	return room, nil
}

// RoomByCode resolves a join code to its room, case-insensitively.
// Returns ErrRoomNotExist when no room carries the code.
func (s *Store) RoomByCode(ctx context.Context, code string) (Room, error) {
	return s.scanRoom(s.db.QueryRow(ctx,
		"select id, name, code, created_at from rooms where code = $1",
		strings.ToUpper(code)))
}

// RoomByID returns the room with the given id.
// Returns ErrRoomNotExist when there is none.
func (s *Store) RoomByID(ctx context.Context, id int64) (Room, error) {
	return s.scanRoom(s.db.QueryRow(ctx,
		"select id, name, code, created_at from rooms where id = $1", id))
}

func (s *Store) scanRoom(row pgx.Row) (Room, error) {
	room := Room{Messages: []Message{}}
	err := row.Scan(&room.ID, &room.Name, &room.Code, &room.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Room{}, ErrRoomNotExist
		}
		return Room{}, err
	}
	return room, nil
}

// DeleteRoom removes a room; memberships and messages cascade.
// Idempotent: deleting an unknown room id succeeds silently.
func (s *Store) DeleteRoom(ctx context.Context, id int64) error {
	s.logger.Debugf("Deleting room (id: %d)", id)

	_, err := s.db.Exec(ctx, "delete from rooms where id = $1", id)
	return err
}

// JoinRoom makes a user a member of a room. Idempotent under concurrent
// retries via ON CONFLICT DO NOTHING on the (room, user) primary key.
func (s *Store) JoinRoom(ctx context.Context, roomID, userID int64) error {
	s.logger.Debugf("User (id: %d) joining room (id: %d)", userID, roomID)

	sql := "insert into room_members (room_id, user_id) values ($1, $2) on conflict do nothing"
	_, err := s.db.Exec(ctx, sql, roomID, userID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			switch pgErr.ConstraintName {
			case "room_members_room_id_fkey":
				return ErrRoomNotExist
			case "room_members_user_id_fkey":
				return ErrUserNotExist
			}
		}
		return err
	}
	return nil
}

// LeaveRoom drops a user's membership. No-op when the user is not a member.
func (s *Store) LeaveRoom(ctx context.Context, roomID, userID int64) error {
	s.logger.Debugf("User (id: %d) leaving room (id: %d)", userID, roomID)

	_, err := s.db.Exec(ctx,
		"delete from room_members where room_id = $1 and user_id = $2", roomID, userID)
	return err
}

// IsMember reports whether a user belongs to a room
func (s *Store) IsMember(ctx context.Context, roomID, userID int64) (bool, error) {
	var i int8
	sql := "select 1 from room_members where room_id = $1 and user_id = $2"
	err := s.db.QueryRow(ctx, sql, roomID, userID).Scan(&i)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// RoomsByUserID returns every room the user belongs to, each hydrated with
// its full message log in (created_at, id) order
func (s *Store) RoomsByUserID(ctx context.Context, userID int64) ([]Room, error) {
	s.logger.Debugf("Retrieving rooms for user (id: %d)", userID)

	type retrievedRoom struct {
		id        int64
		name      string
		code      string
		createdAt time.Time
		messages  pgtype.JSONBArray
	}

	sql := ` -- member rooms with their message logs aggregated as jsonb
			with member_rooms as (
				select rooms.id,
					   rooms.name,
					   rooms.code,
					   rooms.created_at
				  from rooms
				  join room_members
					on room_members.room_id = rooms.id
				 where room_members.user_id = $1
			),

			messages_per_room as (
				select messages.room_id,
					   array_agg(jsonb_build_object(
						   'id', messages.id,
						   'roomId', messages.room_id,
						   'senderId', messages.sender_id,
						   'sender', users.name,
						   'text', messages.text,
						   'timestamp', messages.created_at
					   ) order by messages.created_at, messages.id) as messages
				  from messages
				  join users
					on users.id = messages.sender_id
				 where messages.room_id in (select id from member_rooms)
				 group by messages.room_id
			)

			select member_rooms.id,
				   member_rooms.name,
				   member_rooms.code,
				   member_rooms.created_at,
				   coalesce(messages_per_room.messages, array[]::jsonb[])
			  from member_rooms
			  left join messages_per_room
				on messages_per_room.room_id = member_rooms.id
			 order by member_rooms.created_at, member_rooms.id`

	rows, err := s.db.Query(ctx, sql, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rooms := make([]Room, 0)
	for rows.Next() {
		var r retrievedRoom
		if err := rows.Scan(&r.id, &r.name, &r.code, &r.createdAt, &r.messages); err != nil {
			return nil, err
		}

		currentRoom := Room{
			ID:        r.id,
			Name:      r.name,
			Code:      r.code,
			CreatedAt: r.createdAt,
			Messages:  make([]Message, len(r.messages.Elements)),
		}

		messagesJSON := make([]string, len(r.messages.Elements))
		if err := r.messages.AssignTo(&messagesJSON); err != nil {
			return nil, err
		}

		for i, v := range messagesJSON {
			if err := json.Unmarshal([]byte(v), &currentRoom.Messages[i]); err != nil {
				return nil, err
			}
		}

		rooms = append(rooms, currentRoom)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	s.logger.Debugf("Retrieved %d rooms", len(rooms))

	return rooms, nil
}

// RoomMembers returns the users belonging to a room, ordered by join time.
// Returns ErrRoomNotExist when the room id is unknown.
func (s *Store) RoomMembers(ctx context.Context, roomID int64) ([]User, error) {
	s.logger.Debugf("Retrieving members for room (id: %d)", roomID)

	// check if room exists
	var i int8
	err := s.db.QueryRow(ctx, "select 1 from rooms where id = $1", roomID).Scan(&i)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoomNotExist
		}
		return nil, err
	}

	sql := `select users.id, users.email, users.name, users.bio, users.avatar_color
			  from room_members
			  join users
				on users.id = room_members.user_id
			 where room_members.room_id = $1
			 order by room_members.joined_at, users.id`

	rows, err := s.db.Query(ctx, sql, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := make([]User, 0)
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.Bio, &u.AvatarColor); err != nil {
			return nil, err
		}
		members = append(members, u)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return members, nil
}
