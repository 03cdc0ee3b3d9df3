package push

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/ShimmerHandmade/chattown-app-release/internal/storage"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testLogger(t *testing.T) *zap.SugaredLogger {
	logger, err := zap.NewDevelopment()
	require.NoError(t, err)
	return logger.Sugar()
}

func TestClientSend(t *testing.T) {
	t.Parallel()

	var (
		gotContentType string
		gotBody        []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = ioutil.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(Config{GatewayURL: srv.URL, RequestTimeout: 5 * time.Second})
	err := c.Send(context.Background(), []Notification{{
		To:    "ExponentPushToken[abc]",
		Sound: "default",
		Title: "Team",
		Body:  "Alice: hi",
		Data:  map[string]string{"roomId": "1", "type": "new_message"},
	}})
	require.NoError(t, err)

	require.Equal(t, "application/json", gotContentType)

	var batch []map[string]interface{}
	require.NoError(t, json.Unmarshal(gotBody, &batch))
	require.Len(t, batch, 1)
	require.Equal(t, "ExponentPushToken[abc]", batch[0]["to"])
	require.Equal(t, "default", batch[0]["sound"])
	require.Equal(t, "Team", batch[0]["title"])
	require.Equal(t, "Alice: hi", batch[0]["body"])
	require.Equal(t, map[string]interface{}{"roomId": "1", "type": "new_message"}, batch[0]["data"])
}

func TestClientSendEmptyBatch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("gateway must not be called for an empty batch")
	}))
	defer srv.Close()

	c := NewClient(Config{GatewayURL: srv.URL, RequestTimeout: 5 * time.Second})
	require.NoError(t, c.Send(context.Background(), nil))
}

func TestClientSendGatewayError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(Config{GatewayURL: srv.URL, RequestTimeout: 5 * time.Second})
	err := c.Send(context.Background(), []Notification{{To: "t", Sound: "default"}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "502")
}

type memoryDirectory struct {
	members []storage.User
	tokens  map[int64][]string
}

func (d *memoryDirectory) RoomMembers(_ context.Context, _ int64) ([]storage.User, error) {
	return d.members, nil
}

func (d *memoryDirectory) PushTokens(_ context.Context, userID int64) ([]string, error) {
	return d.tokens[userID], nil
}

type recordingSender struct {
	mu      sync.Mutex
	batches [][]Notification
	err     error
}

func (s *recordingSender) Send(_ context.Context, batch []Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, batch)
	return s.err
}

func TestDispatcherNotifyRoomMembers(t *testing.T) {
	t.Parallel()

	dir := &memoryDirectory{
		members: []storage.User{
			{ID: 1, Name: "Alice"},
			{ID: 2, Name: "Bob"},
			{ID: 3, Name: "Carol"},
		},
		tokens: map[int64][]string{
			1: {"token-alice"},
			2: {"token-bob-1", "token-bob-2"},
			// Carol has no registered tokens
		},
	}
	sender := &recordingSender{}

	d := NewDispatcher(testLogger(t), sender, dir)
	d.NotifyRoomMembers(context.Background(), 42, 1, "Team", "Alice: hi", map[string]string{"type": "new_message"})

	// only Bob is addressed: Alice is excluded as the actor, Carol is token-less
	require.Len(t, sender.batches, 1)

	batch := sender.batches[0]
	require.Len(t, batch, 2)

	tokens := []string{batch[0].To, batch[1].To}
	sort.Strings(tokens)
	require.Equal(t, []string{"token-bob-1", "token-bob-2"}, tokens)

	for _, n := range batch {
		require.Equal(t, "default", n.Sound)
		require.Equal(t, "Team", n.Title)
		require.Equal(t, "Alice: hi", n.Body)
		require.Equal(t, map[string]string{"type": "new_message"}, n.Data)
	}
}

func TestDispatcherSwallowsSendFailures(t *testing.T) {
	t.Parallel()

	dir := &memoryDirectory{
		members: []storage.User{{ID: 1}, {ID: 2}},
		tokens: map[int64][]string{
			1: {"token-1"},
			2: {"token-2"},
		},
	}
	sender := &recordingSender{err: context.DeadlineExceeded}

	d := NewDispatcher(testLogger(t), sender, dir)

	// all deliveries fail but the call still returns cleanly having tried everyone
	d.NotifyRoomMembers(context.Background(), 7, 0, "Team", "hello", nil)
	require.Len(t, sender.batches, 2)
}
