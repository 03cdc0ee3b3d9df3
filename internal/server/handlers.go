package server

import (
	"context"

	"github.com/ShimmerHandmade/chattown-app-release/internal/storage"
	"github.com/valyala/fastjson"
	"go.uber.org/zap"
)

const (
	passwordMinLength = 6
	messageMaxLength  = 1000
)

// Store is the slice of the storage layer the gateway dispatches to.
// *storage.Store satisfies it; handler tests substitute an in-memory fake.
type Store interface {
	CreateUser(ctx context.Context, email, passwordHash, name string) (storage.User, error)
	UserByEmail(ctx context.Context, email string) (storage.User, error)
	DeleteUser(ctx context.Context, id int64) error
	UpdatePassword(ctx context.Context, userID int64, newHash string) error

	CreateSession(ctx context.Context, userID int64) (string, error)
	UserBySession(ctx context.Context, token string) (storage.User, error)
	DeleteSession(ctx context.Context, token string) error

	CreateResetToken(ctx context.Context, userID int64) (string, error)
	ValidateResetToken(ctx context.Context, token string) (int64, error)
	DeleteResetToken(ctx context.Context, token string) error

	CreateRoom(ctx context.Context, name string, creatorID int64) (storage.Room, error)
	RoomByCode(ctx context.Context, code string) (storage.Room, error)
	RoomByID(ctx context.Context, id int64) (storage.Room, error)
	DeleteRoom(ctx context.Context, id int64) error
	JoinRoom(ctx context.Context, roomID, userID int64) error
	LeaveRoom(ctx context.Context, roomID, userID int64) error
	IsMember(ctx context.Context, roomID, userID int64) (bool, error)
	RoomsByUserID(ctx context.Context, userID int64) ([]storage.Room, error)
	RoomMembers(ctx context.Context, roomID int64) ([]storage.User, error)

	CreateMessage(ctx context.Context, roomID, senderID int64, text string) (storage.Message, error)
	MessagesByRoomID(ctx context.Context, roomID int64) ([]storage.Message, error)

	SavePushToken(ctx context.Context, userID int64, token string) error
	RemovePushToken(ctx context.Context, userID int64, token string) error
}

// Notifier triggers the push fan-out after a message is sent.
// Implementations must swallow delivery failures; message persistence never
// depends on notification delivery.
type Notifier interface {
	NotifyRoomMembers(ctx context.Context, roomID, excludeUserID int64, title, body string, data map[string]string)
}

type parsers struct {
	authPool          fastjson.ParserPool
	roomsPool         fastjson.ParserPool
	messagesPool      fastjson.ParserPool
	notificationsPool fastjson.ParserPool
}

type handler struct {
	logger  *zap.SugaredLogger
	store   Store
	pusher  Notifier
	parsers parsers
}

type contextKey string

const (
	userContextKey    contextKey = "user"
	sessionContextKey contextKey = "session_token"
)

func newContextWithUser(ctx context.Context, u storage.User, sessionToken string) context.Context {
	ctx = context.WithValue(ctx, userContextKey, u)
	return context.WithValue(ctx, sessionContextKey, sessionToken)
}

func userFromContext(ctx context.Context) (storage.User, bool) {
	u, ok := ctx.Value(userContextKey).(storage.User)
	return u, ok
}

func sessionFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(sessionContextKey).(string)
	return token, ok
}
