// Package ws provides a reconnecting websocket transport for the
// venue's binary protocol. The client replays the hello frame after
// every reconnect so the session is re-established before any further
// traffic flows.
package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

type Client struct {
	url            string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	log            *zap.Logger

	mu    sync.Mutex
	conn  *websocket.Conn
	hello []byte
	ping  []byte

	// onDrop fires after a read loop failure, before the reconnect
	// backoff. Optional.
	onDrop func()
}

func New(url string, reconnectDelay, pingInterval time.Duration, log *zap.Logger) *Client {
	return &Client{url: url, reconnectDelay: reconnectDelay, pingInterval: pingInterval, log: log}
}

// SetHello sets the frame sent immediately after every (re)connect.
func (c *Client) SetHello(frame []byte) {
	c.mu.Lock()
	c.hello = frame
	c.mu.Unlock()
}

// SetPing sets the keepalive frame sent on the ping interval.
func (c *Client) SetPing(frame []byte) {
	c.mu.Lock()
	c.ping = frame
	c.mu.Unlock()
}

// SetOnDrop registers a hook invoked once per lost connection.
func (c *Client) SetOnDrop(fn func()) {
	c.mu.Lock()
	c.onDrop = fn
	c.mu.Unlock()
}

func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}
	conn, _, err := websocket.Dial(ctx, c.url, nil)
	if err != nil {
		return err
	}
	c.conn = conn
	return nil
}

// Write sends one binary frame on the current connection.
func (c *Client) Write(ctx context.Context, frame []byte) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errors.New("ws not connected")
	}
	return conn.Write(ctx, websocket.MessageBinary, frame)
}

// Run connects, replays the hello frame, and feeds every inbound frame
// to handler until ctx is done. Lost connections are re-established
// after the reconnect delay.
func (c *Client) Run(ctx context.Context, handler func([]byte)) error {
	for {
		if err := c.ensureConnected(ctx); err != nil {
			return err
		}
		pingCtx, cancel := context.WithCancel(ctx)
		pingDone := make(chan struct{})
		go func() {
			defer close(pingDone)
			c.pingLoop(pingCtx)
		}()
		err := c.readLoop(ctx, handler)
		cancel()
		<-pingDone
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logReadLoopError(err)
			c.resetConn()
			c.mu.Lock()
			drop := c.onDrop
			c.mu.Unlock()
			if drop != nil {
				drop()
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.reconnectDelay):
			}
			continue
		}
	}
}

func (c *Client) ensureConnected(ctx context.Context) error {
	if err := c.Connect(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	conn := c.conn
	hello := c.hello
	c.mu.Unlock()
	if len(hello) == 0 {
		return nil
	}
	return conn.Write(ctx, websocket.MessageBinary, hello)
}

func (c *Client) readLoop(ctx context.Context, handler func([]byte)) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errors.New("ws not connected")
	}
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if handler != nil {
			handler(data)
		}
	}
}

func (c *Client) pingLoop(ctx context.Context) {
	c.mu.Lock()
	conn := c.conn
	interval := c.pingInterval
	ping := c.ping
	c.mu.Unlock()
	if conn == nil || interval <= 0 || len(ping) == 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.Write(ctx, websocket.MessageBinary, ping); err != nil {
				return
			}
		}
	}
}

func (c *Client) logReadLoopError(err error) {
	if c.log == nil {
		return
	}
	status := websocket.CloseStatus(err)
	if status == websocket.StatusNormalClosure {
		var closeErr websocket.CloseError
		if errors.As(err, &closeErr) {
			c.log.Info("ws read loop ended", zap.Int("status", int(closeErr.Code)), zap.String("reason", closeErr.Reason))
			return
		}
		c.log.Info("ws read loop ended", zap.Error(err))
		return
	}
	c.log.Warn("ws read loop ended", zap.Error(err))
}

func (c *Client) resetConn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close(websocket.StatusNormalClosure, "reset")
		c.conn = nil
	}
}
