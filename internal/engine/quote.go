package engine

import (
	"time"

	"etf-mm-bot/internal/book"
	"etf-mm-bot/internal/theo"
)

// requote maintains the single theo-anchored resting order per side,
// driven by future book updates. The per-cycle action budget models the
// venue's per-second message allowance at the decision level, on top of
// the hard rate limiter every send already passes.
func (e *Engine) requote(snap book.Snapshot) {
	if !e.cycleAllows() {
		return
	}
	theoPrice := theo.Price(snap, e.params.MinTheoVolume)
	newBid, newAsk := theo.Quotes(snap, theoPrice, e.params.QuoteOffset)

	// Cancel a resting quote whose price has drifted outside the
	// tolerance band around the new target.
	if e.quoteAskID != 0 && newAsk != 0 && absDiff(newAsk, e.quoteAskPrice) > e.params.RequoteTolerance {
		if e.sendCancel(e.quoteAskID) {
			e.quoteAskID = 0
			e.cycleActions++
		}
	}
	if e.quoteBidID != 0 && newBid != 0 && absDiff(newBid, e.quoteBidPrice) > e.params.RequoteTolerance {
		if e.sendCancel(e.quoteBidID) {
			e.quoteBidID = 0
			e.cycleActions++
		}
	}

	askVolume := e.volumes.Ask(e.position)
	bidVolume := e.volumes.Bid(e.position)
	if e.quoteAskID == 0 && newAsk != 0 && e.position > -e.params.PositionLimit && askVolume != 0 {
		if id, ok := e.sendAsk(newAsk, askVolume, GoodForDay); ok {
			e.quoteAskID = id
			e.quoteAskPrice = newAsk
			e.cycleActions++
		}
	}
	if e.quoteBidID == 0 && newBid != 0 && e.position < e.params.PositionLimit && bidVolume != 0 {
		if id, ok := e.sendBid(newBid, bidVolume, GoodForDay); ok {
			e.quoteBidID = id
			e.quoteBidPrice = newBid
			e.cycleActions++
		}
	}
}

// cycleAllows enforces the per-cycle action budget: once the budget is
// spent, quoting pauses until at least a second of wall-clock time has
// passed since the cycle began, then a fresh cycle starts on the next
// update.
func (e *Engine) cycleAllows() bool {
	if e.params.CycleActionBudget <= 0 {
		return true
	}
	if e.cycleActions == 0 {
		e.cycleStart = e.now()
		return true
	}
	if e.cycleActions <= e.params.CycleActionBudget {
		return true
	}
	if e.now().Sub(e.cycleStart) >= time.Second {
		e.cycleActions = 0
	}
	return false
}

func absDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}
