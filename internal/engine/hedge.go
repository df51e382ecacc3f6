package engine

import (
	"context"

	"go.uber.org/zap"
)

// hedgeFill neutralizes a fresh fill with an opposite-side hedge on the
// future at the most conservative acceptable tick, so it executes
// against whatever the future book offers.
func (e *Engine) hedgeFill(ctx context.Context, filledSide Side, volume int64) {
	var price int64
	side := filledSide.Opposite()
	if side == SideBuy {
		price = e.params.maxAskNearestTick()
	} else {
		price = e.params.minBidNearestTick()
	}
	if err := e.sendHedge(ctx, side, price, volume); err != nil {
		e.log.Error("hedge send abandoned",
			zap.Stringer("side", side),
			zap.Int64("volume", volume),
			zap.Error(err))
	}
}

// OnHedgeFilled reconciles outstanding hedge exposure. A report with
// zero price and zero volume means the hedge did not execute: position
// accounting is untouched but the miss is surfaced as a risk event.
func (e *Engine) OnHedgeFilled(ctx context.Context, id uint64, price, volume int64) {
	var side Side
	switch {
	case e.isPendingHedge(e.hedgeBids, id):
		side = SideBuy
		delete(e.hedgeBids, id)
		e.delta += volume
	case e.isPendingHedge(e.hedgeAsks, id):
		side = SideSell
		delete(e.hedgeAsks, id)
		e.delta -= volume
	default:
		e.log.Debug("hedge report for unknown order", zap.Uint64("order_id", id))
		return
	}
	if price == 0 && volume == 0 {
		e.metrics.HedgesUnfilled.Inc()
		e.log.Warn("hedge order unfilled",
			zap.Uint64("order_id", id),
			zap.Stringer("side", side),
			zap.Int64("position", e.position),
			zap.Int64("delta", e.delta))
		e.record(ctx, Event{
			Kind:     EventHedgeUnfilled,
			Time:     e.now(),
			OrderID:  id,
			Side:     side.String(),
			Position: e.position,
			Delta:    e.delta,
		})
		return
	}
	e.log.Info("hedge filled",
		zap.Uint64("order_id", id),
		zap.Stringer("side", side),
		zap.Int64("price", price),
		zap.Int64("volume", volume),
		zap.Int64("delta", e.delta))
}

func (e *Engine) isPendingHedge(set map[uint64]struct{}, id uint64) bool {
	_, ok := set[id]
	return ok
}
