// Package push delivers notification payloads to an external push gateway
// (Expo-compatible wire format) and fans them out across room members.
// Delivery is best-effort and at-most-once: failures are logged, never
// retried, and never surfaced to the operation that triggered them.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"time"

	"github.com/ShimmerHandmade/chattown-app-release/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Notification is one payload addressed to one delivery token
type Notification struct {
	To    string            `json:"to"`
	Sound string            `json:"sound"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Config defines fields used for reaching the external push gateway,
// parseable from environment variables
type Config struct {
	GatewayURL     string        `env:"PUSH_GATEWAY_URL" envDefault:"https://exp.host/--/api/v2/push/send"`
	RequestTimeout time.Duration `env:"PUSH_REQUEST_TIMEOUT" envDefault:"10s"`
}

// Sender posts a batch of notifications to a gateway
type Sender interface {
	Send(ctx context.Context, batch []Notification) error
}

// Client is the HTTP Sender implementation
type Client struct {
	gatewayURL string
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	return &Client{
		gatewayURL: cfg.GatewayURL,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
	}
}

// Send posts batch as a single JSON array to the gateway. A non-2xx status
// counts as a failed delivery for the whole batch.
func (c *Client) Send(ctx context.Context, batch []Notification) error {
	if len(batch) == 0 {
		return nil
	}

	payload, err := json.Marshal(batch)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.gatewayURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// drain so the connection can be reused
	_, _ = ioutil.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("push gateway returned status %d", resp.StatusCode)
	}

	return nil
}

// Directory is the slice of the storage layer the dispatcher reads from
type Directory interface {
	RoomMembers(ctx context.Context, roomID int64) ([]storage.User, error)
	PushTokens(ctx context.Context, userID int64) ([]string, error)
}

// Dispatcher fans one event out to every member of a room except the actor
type Dispatcher struct {
	logger      *zap.SugaredLogger
	sender      Sender
	directory   Directory
	concurrency int64
}

func NewDispatcher(logger *zap.SugaredLogger, sender Sender, directory Directory) *Dispatcher {
	return &Dispatcher{
		logger:      logger,
		sender:      sender,
		directory:   directory,
		concurrency: 8,
	}
}

// NotifyRoomMembers delivers one batch per member (one payload per registered
// token) to everyone in the room except excludeUserID. Deliveries run
// concurrently up to the dispatcher's limit. Every failure is logged and
// swallowed; the method never reports one.
func (d *Dispatcher) NotifyRoomMembers(ctx context.Context, roomID, excludeUserID int64, title, body string, data map[string]string) {
	members, err := d.directory.RoomMembers(ctx, roomID)
	if err != nil {
		d.logger.Errorf("push fan-out: listing members of room %d: %v", roomID, err)
		return
	}

	sem := semaphore.NewWeighted(d.concurrency)
	g, ctx := errgroup.WithContext(ctx)

	for _, member := range members {
		if member.ID == excludeUserID {
			continue
		}
		userID := member.ID

		if err := sem.Acquire(ctx, 1); err != nil {
			d.logger.Errorf("push fan-out: %v", err)
			break
		}

		g.Go(func() error {
			defer sem.Release(1)
			d.notifyUser(ctx, userID, title, body, data)
			return nil
		})
	}

	// fire-and-forget semantics: tasks only log, Wait never yields an error
	_ = g.Wait()
}

func (d *Dispatcher) notifyUser(ctx context.Context, userID int64, title, body string, data map[string]string) {
	tokens, err := d.directory.PushTokens(ctx, userID)
	if err != nil {
		d.logger.Errorf("push fan-out: tokens for user %d: %v", userID, err)
		return
	}
	if len(tokens) == 0 {
		return
	}

	batch := make([]Notification, len(tokens))
	for i, token := range tokens {
		batch[i] = Notification{
			To:    token,
			Sound: "default",
			Title: title,
			Body:  body,
			Data:  data,
		}
	}

	if err := d.sender.Send(ctx, batch); err != nil {
		d.logger.Errorf("push fan-out: delivering to user %d: %v", userID, err)
		return
	}

	d.logger.Debugf("Delivered %d push payloads to user %d", len(batch), userID)
}
