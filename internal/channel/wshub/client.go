package wshub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mkrupp/eventhub/internal/channel"
	"github.com/mkrupp/eventhub/internal/domain"
	"github.com/mkrupp/eventhub/internal/infra/logging"
)

// Client is a channel.Channel joined through a Server.
type Client struct {
	wc       *websocket.Conn
	messages chan domain.CoordinationMessage
	writeM   sync.Mutex
	once     sync.Once
	log      logging.Logger
}

var _ channel.Channel = (*Client)(nil)

// ChannelURL returns the websocket URL of the channel name on the server at
// baseURL. http and https base URLs map to ws and wss.
func ChannelURL(baseURL, name string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}

	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	u.Path = strings.TrimSuffix(u.Path, "/") + strings.Replace(Path, "{name}", url.PathEscape(name), 1)

	return u.String(), nil
}

// Dial joins the channel name on the server at baseURL. If dialer is nil,
// websocket.DefaultDialer is used.
func Dial(ctx context.Context, dialer *websocket.Dialer, baseURL, name string) (*Client, error) {
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	target, err := ChannelURL(baseURL, name)
	if err != nil {
		return nil, err
	}

	wc, resp, err := dialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}

	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	c := &Client{ //nolint:exhaustruct
		wc:       wc,
		messages: make(chan domain.CoordinationMessage, bufferSize),
		log:      logging.GetLogger("channel.wshub.client").With("channel", name),
	}

	go c.read()

	return c, nil
}

// Publish implements channel.Channel.Publish.
func (c *Client) Publish(ctx context.Context, msg domain.CoordinationMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	c.writeM.Lock()
	defer c.writeM.Unlock()

	deadline := time.Now().Add(writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	_ = c.wc.SetWriteDeadline(deadline)

	if err := c.wc.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("%w: %w", channel.ErrClosed, err)
	}

	return nil
}

// Messages implements channel.Channel.Messages.
func (c *Client) Messages() <-chan domain.CoordinationMessage {
	return c.messages
}

// Close implements channel.Channel.Close.
func (c *Client) Close() error {
	var err error

	c.once.Do(func() {
		c.writeM.Lock()
		_ = c.wc.SetWriteDeadline(time.Now().Add(writeTimeout))
		_ = c.wc.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeM.Unlock()

		err = c.wc.Close()
	})

	if err != nil {
		return fmt.Errorf("close: %w", err)
	}

	return nil
}

func (c *Client) read() {
	defer close(c.messages)

	for {
		op, data, err := c.wc.ReadMessage()
		if err != nil {
			return
		}

		if op != websocket.TextMessage {
			continue
		}

		var msg domain.CoordinationMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Warn("malformed message", "error", err)

			continue
		}

		select {
		case c.messages <- msg:
		default:
			c.log.Warn("message dropped", "kind", msg.Kind)
		}
	}
}
