package relay

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/whyrusleeping/pianojam/notes"
	"github.com/whyrusleeping/pianojam/osc"
	"github.com/whyrusleeping/pianojam/record"
	"go.uber.org/zap"
)

// Client is one player's connection to a hub.
type Client struct {
	conn *websocket.Conn
	log  *zap.Logger

	wmu  sync.Mutex
	once sync.Once
}

func Dial(ctx context.Context, url string, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "dialing relay %s", url)
	}
	log.Info("connected to relay", zap.String("url", url))
	return &Client{conn: conn, log: log}, nil
}

// SendNoteEvent relays a local press or release.
func (c *Client) SendNoteEvent(kind record.Kind, k notes.Key, t osc.Timbre) error {
	msg := Message{Kind: kind, Note: k, Timbre: t}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(msg.String())); err != nil {
		return errors.Wrap(err, "sending to relay")
	}
	return nil
}

// Run reads messages from the hub and hands each well formed one to handle until the
// connection drops or ctx is done.
func (c *Client) Run(ctx context.Context, handle func(Message)) error {
	go func() {
		<-ctx.Done()
		c.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return errors.Wrap(err, "reading from relay")
		}

		msg, err := ParseMessage(string(data))
		if err != nil {
			c.log.Warn("dropping malformed relay message", zap.Error(err))
			continue
		}
		handle(msg)
	}
}

func (c *Client) Close() error {
	var err error
	c.once.Do(func() {
		c.wmu.Lock()
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.wmu.Unlock()
		err = c.conn.Close()
	})
	return err
}
