package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ShimmerHandmade/chattown-app-release/internal/storage"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fastjson"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func bootstrapHandler(t *testing.T) (*handler, *fakeStore, *fakeNotifier) {
	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	store := newFakeStore()
	notifier := &fakeNotifier{}

	h := &handler{
		logger: logger.Sugar(),
		store:  store,
		pusher: notifier,
		parsers: parsers{
			authPool:          fastjson.ParserPool{},
			roomsPool:         fastjson.ParserPool{},
			messagesPool:      fastjson.ParserPool{},
			notificationsPool: fastjson.ParserPool{},
		},
	}

	return h, store, notifier
}

// post invokes a handler func directly with a JSON body; when u is non-nil
// the request context carries an authenticated user, as the auth middleware
// would arrange.
func post(t *testing.T, hf http.HandlerFunc, u *storage.User, body string) *httptest.ResponseRecorder {
	req, err := http.NewRequest("POST", "/", bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	if u != nil {
		req = req.WithContext(newContextWithUser(req.Context(), *u, "test-session"))
	}

	rr := httptest.NewRecorder()
	hf(rr, req)
	return rr
}

// registerUser seeds an account with a bcrypt hash of password directly in
// the fake store
func registerUser(t *testing.T, store *fakeStore, email, password, name string) storage.User {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	u, err := store.CreateUser(context.Background(), email, string(hash), name)
	require.NoError(t, err)
	return u
}

func errorCode(rr *httptest.ResponseRecorder) string {
	return string(fastjson.GetBytes(rr.Body.Bytes(), "error", "code"))
}
