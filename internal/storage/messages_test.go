package storage

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateMessage(t *testing.T) {
	s := bootstrap(t)
	u := createTestUser(t, s)

	room, err := s.CreateRoom(context.Background(), "Team", u.ID)
	require.NoError(t, err)

	m, err := s.CreateMessage(context.Background(), room.ID, u.ID, "Hi There!")
	require.NoError(t, err)
	require.Equal(t, "Hi There!", m.Text)
	require.Equal(t, u.Name, m.Sender)
	require.False(t, m.CreatedAt.Before(room.CreatedAt))
}

func TestCreateMessageBadRoom(t *testing.T) {
	s := bootstrap(t)
	u := createTestUser(t, s)

	_, err := s.CreateMessage(context.Background(), -1, u.ID, "Hi There!")
	require.Equal(t, ErrMessageBadRoom, err)
}

func TestCreateMessageBadSender(t *testing.T) {
	s := bootstrap(t)
	u := createTestUser(t, s)

	room, err := s.CreateRoom(context.Background(), "Team", u.ID)
	require.NoError(t, err)

	_, err = s.CreateMessage(context.Background(), room.ID, -1, "Hi There!")
	require.Equal(t, ErrMessageBadSender, err)
}

func TestMessagesByRoomIDOrder(t *testing.T) {
	s := bootstrap(t)
	u := createTestUser(t, s)

	room, err := s.CreateRoom(context.Background(), "Team", u.ID)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := s.CreateMessage(context.Background(), room.ID, u.ID, strconv.Itoa(i))
		require.NoError(t, err)
	}

	messages, err := s.MessagesByRoomID(context.Background(), room.ID)
	require.NoError(t, err)
	require.Len(t, messages, 5)

	for i, m := range messages {
		require.Equal(t, strconv.Itoa(i), m.Text)
		if i > 0 {
			prev := messages[i-1]
			require.False(t, m.CreatedAt.Before(prev.CreatedAt))
			if m.CreatedAt.Equal(prev.CreatedAt) {
				// insertion order breaks timestamp ties
				require.Greater(t, m.ID, prev.ID)
			}
		}
	}
}

func TestMessagesByRoomIDNotExist(t *testing.T) {
	s := bootstrap(t)

	_, err := s.MessagesByRoomID(context.Background(), -1)
	require.Equal(t, ErrRoomNotExist, err)
}
