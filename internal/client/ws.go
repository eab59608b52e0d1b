package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/studyquest/backend/internal/ws"
)

const (
	reconnectBaseDelay = 1 * time.Second
	reconnectMaxDelay  = 30 * time.Second
)

// Message is one notification as received, payload still encoded.
type Message struct {
	Type    ws.MessageType  `json:"type"`
	Seq     uint64          `json:"seq"`
	Payload json.RawMessage `json:"payload"`
}

// Reward decodes a reward_granted or level_up payload.
func (m Message) Reward() (ws.RewardPayload, error) {
	var p ws.RewardPayload
	err := json.Unmarshal(m.Payload, &p)
	return p, err
}

// WSClient follows a session's reward notifications.
type WSClient struct {
	url    string
	onDrop func(error)
}

// NewWSClient creates a client for the server at baseURL (http or https).
func NewWSClient(baseURL, token string) *WSClient {
	u := strings.TrimRight(baseURL, "/")
	u = strings.Replace(u, "http", "ws", 1) + "/ws?token=" + url.QueryEscape(token)
	return &WSClient{url: u}
}

// OnDrop registers fn to run each time an established connection is lost
// and Watch is about to reconnect. Must be called before Watch.
func (c *WSClient) OnDrop(fn func(error)) {
	c.onDrop = fn
}

// Watch delivers messages to fn until ctx is cancelled, reconnecting with
// backoff when the connection drops. A rejected handshake ends the watch.
func (c *WSClient) Watch(ctx context.Context, fn func(Message)) error {
	delay := reconnectBaseDelay
	for {
		conn, resp, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return errors.New("websocket rejected: " + resp.Status)
			}
			log.WithError(err).WithField("retry", delay).Debug("ws dial failed")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = min(delay*2, reconnectMaxDelay)
			continue
		}
		delay = reconnectBaseDelay

		err = c.readLoop(ctx, conn, fn)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.WithError(err).Debug("ws connection dropped")
		if c.onDrop != nil {
			c.onDrop(err)
		}
	}
}

func (c *WSClient) readLoop(ctx context.Context, conn *websocket.Conn, fn func(Message)) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.WithError(err).Debug("ws message skipped")
			continue
		}
		fn(msg)
	}
}
