package engine

import (
	"go.uber.org/zap"

	"etf-mm-bot/internal/book"
)

// handleArbitrage fires when the ETF book crosses the future: buy the
// ETF below the future bid or sell it above the future ask. Orders go
// out fill-and-kill since the mispricing can vanish instantly, sized by
// the arbitrage headroom, a tighter cap than the general position
// limit.
func (e *Engine) handleArbitrage(snap book.Snapshot) {
	if snap.BestAsk() < e.futureBid {
		volume := min64(snap.AskVolumes[0], e.params.ArbitrageLimit-e.position)
		if volume <= 0 {
			return
		}
		if id, ok := e.sendBid(snap.BestAsk(), volume, FillAndKill); ok {
			e.metrics.ArbitrageOrders.Inc()
			e.log.Info("arbitrage buy",
				zap.Uint64("order_id", id),
				zap.Int64("price", snap.BestAsk()),
				zap.Int64("volume", volume),
				zap.Int64("future_bid", e.futureBid))
		}
		return
	}
	if snap.BestBid() > e.futureAsk {
		volume := min64(snap.BidVolumes[0], e.params.ArbitrageLimit+e.position)
		if volume <= 0 {
			return
		}
		if id, ok := e.sendAsk(snap.BestBid(), volume, FillAndKill); ok {
			e.metrics.ArbitrageOrders.Inc()
			e.log.Info("arbitrage sell",
				zap.Uint64("order_id", id),
				zap.Int64("price", snap.BestBid()),
				zap.Int64("volume", volume),
				zap.Int64("future_ask", e.futureAsk))
		}
	}
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
