package app

import (
	"context"
	"time"

	"etf-mm-bot/internal/alerts"
	"etf-mm-bot/internal/book"
	"etf-mm-bot/internal/engine"
	"etf-mm-bot/internal/timescale"
)

// feedHandler is the venue event handler: every event goes to the
// engine, and book snapshots additionally feed the timescale top-of-
// book stream. All calls arrive from the single read-loop goroutine.
type feedHandler struct {
	engine *engine.Engine
	writer *timescale.Writer
	alerts *alerts.Telegram
}

func (h *feedHandler) OnOrderBook(ctx context.Context, snap book.Snapshot) {
	h.writer.EnqueueBookTop(timescale.BookTop{
		Time:       time.Now().UTC(),
		Instrument: snap.Instrument.String(),
		Seq:        snap.Seq,
		Bid:        snap.BestBid(),
		BidVolume:  snap.BidVolumes[0],
		Ask:        snap.BestAsk(),
		AskVolume:  snap.AskVolumes[0],
	})
	h.engine.OnOrderBook(ctx, snap)
}

func (h *feedHandler) OnTradeTicks(ctx context.Context, snap book.Snapshot) {
	h.engine.OnTradeTicks(ctx, snap)
}

func (h *feedHandler) OnOrderFilled(ctx context.Context, id uint64, price, volume int64) {
	h.engine.OnOrderFilled(ctx, id, price, volume)
}

func (h *feedHandler) OnOrderStatus(ctx context.Context, id uint64, fillVolume, remainingVolume, fees int64) {
	h.engine.OnOrderStatus(ctx, id, fillVolume, remainingVolume, fees)
}

func (h *feedHandler) OnHedgeFilled(ctx context.Context, id uint64, price, volume int64) {
	h.engine.OnHedgeFilled(ctx, id, price, volume)
}

func (h *feedHandler) OnError(ctx context.Context, id uint64, message string) {
	h.engine.OnError(ctx, id, message)
}

func (h *feedHandler) OnDisconnect(ctx context.Context) {
	h.engine.OnDisconnect(ctx)
	if h.alerts != nil {
		h.alerts.Disconnected(ctx)
	}
}
