// Package venue speaks the exchange's binary msgpack protocol over a
// single websocket connection: order commands out, book snapshots and
// execution reports in. Inbound frames are dispatched to the handler
// one at a time from the read loop, so the handler never needs locks.
package venue

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"etf-mm-bot/internal/book"
	"etf-mm-bot/internal/config"
	"etf-mm-bot/internal/engine"
	"etf-mm-bot/internal/venue/ws"
)

// Handler receives the decoded event stream. *engine.Engine satisfies
// it directly.
type Handler interface {
	OnOrderBook(ctx context.Context, snap book.Snapshot)
	OnTradeTicks(ctx context.Context, snap book.Snapshot)
	OnOrderFilled(ctx context.Context, id uint64, price, volume int64)
	OnOrderStatus(ctx context.Context, id uint64, fillVolume, remainingVolume, fees int64)
	OnHedgeFilled(ctx context.Context, id uint64, price, volume int64)
	OnError(ctx context.Context, id uint64, message string)
	OnDisconnect(ctx context.Context)
}

type Client struct {
	conn         *ws.Client
	log          *zap.Logger
	writeTimeout time.Duration

	// runCtx anchors command writes issued from handler callbacks; set
	// once at the top of Run before any traffic flows.
	runCtx context.Context
}

func NewClient(cfg config.VenueConfig, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	conn := ws.New(cfg.URL, cfg.ReconnectDelay, cfg.PingInterval, log)
	hello, err := EncodeLogin(cfg.Name, cfg.Secret)
	if err != nil {
		return nil, fmt.Errorf("venue login: %w", err)
	}
	conn.SetHello(hello)
	ping, err := EncodePing()
	if err != nil {
		return nil, err
	}
	conn.SetPing(ping)
	return &Client{conn: conn, log: log, writeTimeout: cfg.WriteTimeout}, nil
}

// Run connects and pumps inbound frames into handler until ctx is done.
func (c *Client) Run(ctx context.Context, handler Handler) error {
	c.runCtx = ctx
	c.conn.SetOnDrop(func() {
		handler.OnDisconnect(ctx)
	})
	return c.conn.Run(ctx, func(data []byte) {
		c.dispatch(ctx, handler, data)
	})
}

func (c *Client) dispatch(ctx context.Context, handler Handler, data []byte) {
	f, err := decodeFrame(data)
	if err != nil {
		c.log.Warn("dropping undecodable frame", zap.Error(err))
		return
	}
	switch f.Type {
	case frameBook:
		snap, err := f.snapshot()
		if err != nil {
			c.log.Warn("dropping book frame", zap.Error(err))
			return
		}
		handler.OnOrderBook(ctx, snap)
	case frameTicks:
		snap, err := f.snapshot()
		if err != nil {
			c.log.Warn("dropping ticks frame", zap.Error(err))
			return
		}
		handler.OnTradeTicks(ctx, snap)
	case frameFill:
		handler.OnOrderFilled(ctx, f.OrderID, f.Price, f.Volume)
	case frameStatus:
		handler.OnOrderStatus(ctx, f.OrderID, f.FillVolume, f.Remaining, f.Fees)
	case frameHedgeFill:
		handler.OnHedgeFilled(ctx, f.OrderID, f.Price, f.Volume)
	case frameError:
		handler.OnError(ctx, f.OrderID, f.Message)
	case framePong:
	default:
		c.log.Debug("ignoring unknown frame", zap.String("type", f.Type))
	}
}

// InsertOrder, CancelOrder, and HedgeOrder implement engine.Exchange.
// Write failures are logged, not returned: the venue reports the fate
// of every order through the event stream, and a command lost to a
// dropped connection simply never gets a confirmation.

func (c *Client) InsertOrder(id uint64, side engine.Side, price, volume int64, lifespan engine.Lifespan) {
	frame, err := EncodeInsert(id, side, price, volume, lifespan)
	if err != nil {
		c.log.Error("encode insert", zap.Uint64("order_id", id), zap.Error(err))
		return
	}
	c.write(frame, "insert", id)
}

func (c *Client) CancelOrder(id uint64) {
	frame, err := EncodeCancel(id)
	if err != nil {
		c.log.Error("encode cancel", zap.Uint64("order_id", id), zap.Error(err))
		return
	}
	c.write(frame, "cancel", id)
}

func (c *Client) HedgeOrder(id uint64, side engine.Side, price, volume int64) {
	frame, err := EncodeHedge(id, side, price, volume)
	if err != nil {
		c.log.Error("encode hedge", zap.Uint64("order_id", id), zap.Error(err))
		return
	}
	c.write(frame, "hedge", id)
}

func (c *Client) write(frame []byte, kind string, id uint64) {
	ctx := c.runCtx
	if ctx == nil {
		ctx = context.Background()
	}
	if c.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.writeTimeout)
		defer cancel()
	}
	if err := c.conn.Write(ctx, frame); err != nil {
		c.log.Error("venue write failed",
			zap.String("kind", kind),
			zap.Uint64("order_id", id),
			zap.Error(err))
	}
}
