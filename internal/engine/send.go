package engine

import (
	"context"

	"go.uber.org/zap"
)

// sendBid inserts a buy order through the rate limiter. Returns the
// assigned client order id, or false when throttled; throttled inserts
// are simply skipped until the next book update.
func (e *Engine) sendBid(price, volume int64, lifespan Lifespan) (uint64, bool) {
	if !e.limiter.TryAdmit() {
		e.throttled("insert bid", price, volume)
		return 0, false
	}
	id := e.nextOrderID()
	e.bids[id] = price
	e.ex.InsertOrder(id, SideBuy, price, volume, lifespan)
	e.metrics.ActionsSent.Inc()
	e.metrics.OrdersInserted.Inc()
	return id, true
}

func (e *Engine) sendAsk(price, volume int64, lifespan Lifespan) (uint64, bool) {
	if !e.limiter.TryAdmit() {
		e.throttled("insert ask", price, volume)
		return 0, false
	}
	id := e.nextOrderID()
	e.asks[id] = price
	e.ex.InsertOrder(id, SideSell, price, volume, lifespan)
	e.metrics.ActionsSent.Inc()
	e.metrics.OrdersInserted.Inc()
	return id, true
}

// sendCancel requests a cancel. The order stays in the resting maps
// until the venue confirms termination: it may still be filled while
// the cancel is in flight.
func (e *Engine) sendCancel(id uint64) bool {
	if !e.limiter.TryAdmit() {
		e.throttled("cancel", 0, 0)
		return false
	}
	e.ex.CancelOrder(id)
	e.metrics.ActionsSent.Inc()
	e.metrics.OrdersCancelled.Inc()
	return true
}

// sendHedge sends a hedge order through the blocking admission path.
// Hedges must not be dropped; the engine waits out the throttle window
// rather than carrying unhedged inventory.
func (e *Engine) sendHedge(ctx context.Context, side Side, price, volume int64) error {
	if err := e.limiter.Admit(ctx); err != nil {
		return err
	}
	id := e.nextOrderID()
	if side == SideBuy {
		e.hedgeBids[id] = struct{}{}
	} else {
		e.hedgeAsks[id] = struct{}{}
	}
	e.ex.HedgeOrder(id, side, price, volume)
	e.metrics.ActionsSent.Inc()
	e.metrics.HedgesSent.Inc()
	e.log.Info("hedge sent",
		zap.Uint64("order_id", id),
		zap.Stringer("side", side),
		zap.Int64("price", price),
		zap.Int64("volume", volume))
	return nil
}

func (e *Engine) throttled(action string, price, volume int64) {
	e.metrics.ActionsThrottled.Inc()
	e.log.Debug("action throttled",
		zap.String("action", action),
		zap.Int64("price", price),
		zap.Int64("volume", volume))
}
