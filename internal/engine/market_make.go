package engine

import "etf-mm-bot/internal/book"

// makeMarket runs when the ETF book sits inside the future spread:
// first prune resting orders unlikely to fill favorably, then lay a
// tick ladder between the future-implied fair bounds and the current
// ETF top of book.
func (e *Engine) makeMarket(snap book.Snapshot) {
	e.clearBook(snap)

	maxBuyOrders := (e.params.PositionLimit-e.position)/e.params.LotSize - int64(len(e.bids))
	maxSellOrders := (e.params.PositionLimit+e.position)/e.params.LotSize - int64(len(e.asks))

	tick := e.params.TickSize
	maxBid := e.futureBid - 2*tick
	minAsk := e.futureAsk + 2*tick

	for price := minAsk; price < snap.BestAsk(); price += tick {
		if maxSellOrders <= 0 {
			break
		}
		if e.hasAskAt(price) {
			continue
		}
		if _, ok := e.sendAsk(price, e.params.LotSize, GoodForDay); ok {
			maxSellOrders--
		}
	}

	for price := snap.BestBid(); price < maxBid; price += tick {
		if maxBuyOrders <= 0 {
			break
		}
		if e.hasBidAt(price) {
			continue
		}
		if _, ok := e.sendBid(price, e.params.LotSize, GoodForDay); ok {
			maxBuyOrders--
		}
	}
}

// clearBook cancels resting orders that have drifted into the thin edge
// of the ETF book. The cutoff on each side is the price level at which
// cumulative visible volume first reaches three lots' worth; anything
// at or past it is unlikely to fill at a good price.
func (e *Engine) clearBook(snap book.Snapshot) {
	threshold := 3 * e.params.LotSize

	cutoffAsk := snap.AskPrices[book.Levels-1]
	var askVolume int64
	for i := 0; i < book.Levels; i++ {
		askVolume += snap.AskVolumes[i]
		if askVolume >= threshold {
			cutoffAsk = snap.AskPrices[i]
			break
		}
	}

	cutoffBid := snap.BidPrices[book.Levels-1]
	var bidVolume int64
	for i := 0; i < book.Levels; i++ {
		bidVolume += snap.BidVolumes[i]
		if bidVolume >= threshold {
			cutoffBid = snap.BidPrices[i]
			break
		}
	}

	for id, price := range e.bids {
		if price <= cutoffBid {
			e.sendCancel(id)
		}
	}
	for id, price := range e.asks {
		if price >= cutoffAsk {
			e.sendCancel(id)
		}
	}
}

func (e *Engine) hasBidAt(price int64) bool {
	for _, p := range e.bids {
		if p == price {
			return true
		}
	}
	return false
}

func (e *Engine) hasAskAt(price int64) bool {
	for _, p := range e.asks {
		if p == price {
			return true
		}
	}
	return false
}
