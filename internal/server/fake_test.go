package server

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ShimmerHandmade/chattown-app-release/internal/storage"
	"github.com/google/uuid"
)

// fakeStore is an in-memory Store implementation mirroring the storage
// package's semantics and sentinel errors, so handler tests run without a
// database.
type fakeStore struct {
	mu          sync.Mutex
	nextID      int64
	users       map[int64]storage.User
	sessions    map[string]int64
	resetTokens map[string]fakeResetToken
	rooms       map[int64]storage.Room
	members     map[int64]map[int64]time.Time
	messages    map[int64][]storage.Message
	pushTokens  map[int64][]string
}

type fakeResetToken struct {
	userID    int64
	expiresAt time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:       make(map[int64]storage.User),
		sessions:    make(map[string]int64),
		resetTokens: make(map[string]fakeResetToken),
		rooms:       make(map[int64]storage.Room),
		members:     make(map[int64]map[int64]time.Time),
		messages:    make(map[int64][]storage.Message),
		pushTokens:  make(map[int64][]string),
	}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) CreateUser(_ context.Context, email, passwordHash, name string) (storage.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.users {
		if u.Email == email {
			return storage.User{}, storage.ErrEmailTaken
		}
	}

	u := storage.User{
		ID:           f.id(),
		Email:        email,
		Name:         name,
		AvatarColor:  "#FF6B6B",
		PasswordHash: passwordHash,
	}
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeStore) UserByEmail(_ context.Context, email string) (storage.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return storage.User{}, storage.ErrUserNotExist
}

func (f *fakeStore) DeleteUser(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.users, id)
	for token, userID := range f.sessions {
		if userID == id {
			delete(f.sessions, token)
		}
	}
	for token, rt := range f.resetTokens {
		if rt.userID == id {
			delete(f.resetTokens, token)
		}
	}
	for _, members := range f.members {
		delete(members, id)
	}
	for roomID, msgs := range f.messages {
		kept := msgs[:0]
		for _, m := range msgs {
			if m.SenderID != id {
				kept = append(kept, m)
			}
		}
		f.messages[roomID] = kept
	}
	delete(f.pushTokens, id)
	return nil
}

func (f *fakeStore) UpdatePassword(_ context.Context, userID int64, newHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[userID]
	if !ok {
		return storage.ErrUserNotExist
	}
	u.PasswordHash = newHash
	f.users[userID] = u
	return nil
}

func (f *fakeStore) CreateSession(_ context.Context, userID int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	token := uuid.New().String()
	f.sessions[token] = userID
	return token, nil
}

func (f *fakeStore) UserBySession(_ context.Context, token string) (storage.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	userID, ok := f.sessions[token]
	if !ok {
		return storage.User{}, storage.ErrSessionNotExist
	}
	u, ok := f.users[userID]
	if !ok {
		return storage.User{}, storage.ErrSessionNotExist
	}
	return u, nil
}

func (f *fakeStore) DeleteSession(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.sessions, token)
	return nil
}

func (f *fakeStore) CreateResetToken(_ context.Context, userID int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	token := uuid.New().String()
	f.resetTokens[token] = fakeResetToken{userID: userID, expiresAt: time.Now().Add(time.Hour)}
	return token, nil
}

func (f *fakeStore) ValidateResetToken(_ context.Context, token string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rt, ok := f.resetTokens[token]
	if !ok {
		return 0, storage.ErrResetTokenInvalid
	}
	if time.Now().After(rt.expiresAt) {
		delete(f.resetTokens, token)
		return 0, storage.ErrResetTokenInvalid
	}
	return rt.userID, nil
}

func (f *fakeStore) DeleteResetToken(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.resetTokens, token)
	return nil
}

func (f *fakeStore) CreateRoom(_ context.Context, name string, creatorID int64) (storage.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.users[creatorID]; !ok {
		return storage.Room{}, storage.ErrUserNotExist
	}

	room := storage.Room{
		ID:        f.id(),
		Name:      name,
		Code:      fmt.Sprintf("C%05d", f.nextID),
		CreatedAt: time.Now(),
		Messages:  []storage.Message{},
	}
	f.rooms[room.ID] = room
	f.members[room.ID] = map[int64]time.Time{creatorID: time.Now()}
	return room, nil
}

func (f *fakeStore) RoomByCode(_ context.Context, code string) (storage.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, room := range f.rooms {
		if strings.EqualFold(room.Code, code) {
			return room, nil
		}
	}
	return storage.Room{}, storage.ErrRoomNotExist
}

func (f *fakeStore) RoomByID(_ context.Context, id int64) (storage.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	room, ok := f.rooms[id]
	if !ok {
		return storage.Room{}, storage.ErrRoomNotExist
	}
	return room, nil
}

func (f *fakeStore) DeleteRoom(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.rooms, id)
	delete(f.members, id)
	delete(f.messages, id)
	return nil
}

func (f *fakeStore) JoinRoom(_ context.Context, roomID, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.rooms[roomID]; !ok {
		return storage.ErrRoomNotExist
	}
	if _, ok := f.users[userID]; !ok {
		return storage.ErrUserNotExist
	}
	if _, ok := f.members[roomID][userID]; !ok {
		f.members[roomID][userID] = time.Now()
	}
	return nil
}

func (f *fakeStore) LeaveRoom(_ context.Context, roomID, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.members[roomID], userID)
	return nil
}

func (f *fakeStore) IsMember(_ context.Context, roomID, userID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, ok := f.members[roomID][userID]
	return ok, nil
}

func (f *fakeStore) RoomsByUserID(_ context.Context, userID int64) ([]storage.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rooms := make([]storage.Room, 0)
	for roomID, members := range f.members {
		if _, ok := members[userID]; !ok {
			continue
		}
		room := f.rooms[roomID]
		room.Messages = append([]storage.Message{}, f.messages[roomID]...)
		rooms = append(rooms, room)
	}
	return rooms, nil
}

func (f *fakeStore) RoomMembers(_ context.Context, roomID int64) ([]storage.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.rooms[roomID]; !ok {
		return nil, storage.ErrRoomNotExist
	}

	members := make([]storage.User, 0)
	for userID := range f.members[roomID] {
		members = append(members, f.users[userID])
	}
	return members, nil
}

func (f *fakeStore) CreateMessage(_ context.Context, roomID, senderID int64, text string) (storage.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.rooms[roomID]; !ok {
		return storage.Message{}, storage.ErrMessageBadRoom
	}
	sender, ok := f.users[senderID]
	if !ok {
		return storage.Message{}, storage.ErrMessageBadSender
	}

	m := storage.Message{
		ID:        f.id(),
		RoomID:    roomID,
		SenderID:  senderID,
		Sender:    sender.Name,
		Text:      text,
		CreatedAt: time.Now(),
	}
	f.messages[roomID] = append(f.messages[roomID], m)
	return m, nil
}

func (f *fakeStore) MessagesByRoomID(_ context.Context, roomID int64) ([]storage.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.rooms[roomID]; !ok {
		return nil, storage.ErrRoomNotExist
	}
	return append([]storage.Message{}, f.messages[roomID]...), nil
}

func (f *fakeStore) SavePushToken(_ context.Context, userID int64, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.users[userID]; !ok {
		return storage.ErrUserNotExist
	}
	for _, t := range f.pushTokens[userID] {
		if t == token {
			return nil
		}
	}
	f.pushTokens[userID] = append(f.pushTokens[userID], token)
	return nil
}

func (f *fakeStore) RemovePushToken(_ context.Context, userID int64, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	tokens := f.pushTokens[userID]
	for i, t := range tokens {
		if t == token {
			f.pushTokens[userID] = append(tokens[:i], tokens[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeStore) PushTokens(_ context.Context, userID int64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string{}, f.pushTokens[userID]...), nil
}

// fanout records one NotifyRoomMembers invocation
type fanout struct {
	roomID        int64
	excludeUserID int64
	title         string
	body          string
	data          map[string]string
}

type fakeNotifier struct {
	mu      sync.Mutex
	fanouts []fanout
}

func (n *fakeNotifier) NotifyRoomMembers(_ context.Context, roomID, excludeUserID int64, title, body string, data map[string]string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.fanouts = append(n.fanouts, fanout{
		roomID:        roomID,
		excludeUserID: excludeUserID,
		title:         title,
		body:          body,
		data:          data,
	})
}
