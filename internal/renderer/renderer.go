// Package renderer streams output-document updates to an external
// renderer process over a WebSocket connection.
package renderer

import (
	"context"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Conn is a live renderer channel. Writes go through SendUpdate; the
// read pump drains renderer acknowledgements until Close.
type Conn struct {
	ws     *websocket.Conn
	sendCh chan []byte
	cancel context.CancelFunc
	group  *errgroup.Group
}

// Options tune the renderer channel.
type Options struct {
	// HandshakeTimeout bounds the dial; zero means 10 seconds.
	HandshakeTimeout time.Duration
	// QueueDepth bounds buffered outbound updates; zero means 32.
	QueueDepth int
}

// Connect dials a renderer at url (ws:// or wss://).
func Connect(ctx context.Context, url string, opts Options) (*Conn, error) {
	if opts.HandshakeTimeout == 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	if opts.QueueDepth == 0 {
		opts.QueueDepth = 32
	}

	dialer := websocket.Dialer{HandshakeTimeout: opts.HandshakeTimeout}
	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "dial renderer %s", url)
	}

	ctx, cancel := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)
	c := &Conn{
		ws:     ws,
		sendCh: make(chan []byte, opts.QueueDepth),
		cancel: cancel,
		group:  g,
	}

	g.Go(func() error { return c.writePump(ctx) })
	g.Go(func() error { return c.readPump(ctx) })

	clog.InfoContextf(ctx, "renderer connected: %s", url)
	return c, nil
}

func (c *Conn) writePump(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-c.sendCh:
			if !ok {
				return nil
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return errors.Wrap(err, "write update")
			}
		}
	}
}

func (c *Conn) readPump(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure,
				websocket.CloseGoingAway) {
				return nil
			}
			return errors.Wrap(err, "read renderer")
		}
		clog.DebugContextf(ctx, "renderer message: %d bytes", len(msg))
	}
}

// SendUpdate queues a serialized output document for the renderer. A
// full queue drops the update rather than blocking the interpreter.
func (c *Conn) SendUpdate(html string) bool {
	select {
	case c.sendCh <- []byte(html):
		return true
	default:
		return false
	}
}

// Close tears the channel down and waits for the pumps.
func (c *Conn) Close() error {
	c.cancel()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	err := c.ws.Close()
	_ = c.group.Wait()
	return err
}
