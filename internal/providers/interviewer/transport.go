// Package interviewer connects the chat shell to the interviewer socket.
package interviewer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coder/websocket"

	"mockinterview/internal/ports"
)

const readLimit = 1 << 20

// Transport dials the interviewer chat socket.
type Transport struct {
	url string
}

func NewTransport(url string) *Transport {
	return &Transport{url: strings.TrimSpace(url)}
}

func (t *Transport) Dial(ctx context.Context) (ports.ChatConn, error) {
	if t.url == "" {
		return nil, errors.New("interviewer URL is not configured")
	}
	conn, _, err := websocket.Dial(ctx, t.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial interviewer: %w", err)
	}
	conn.SetReadLimit(readLimit)
	return &chatConn{conn: conn}, nil
}

// chatConn carries raw text frames. Cancelling a Receive closes the socket.
type chatConn struct {
	conn *websocket.Conn
}

func (c *chatConn) Receive(ctx context.Context) (string, error) {
	for {
		kind, payload, err := c.conn.Read(ctx)
		if err != nil {
			return "", err
		}
		if kind != websocket.MessageText {
			continue
		}
		return string(payload), nil
	}
}

func (c *chatConn) Send(ctx context.Context, text string) error {
	return c.conn.Write(ctx, websocket.MessageText, []byte(text))
}

func (c *chatConn) Close() error {
	err := c.conn.Close(websocket.StatusNormalClosure, "interview closed")
	if err != nil && websocket.CloseStatus(err) == websocket.StatusNormalClosure {
		return nil
	}
	return err
}
