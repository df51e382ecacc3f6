// Package theo derives a liquidity-aware reference price for the future
// from its order book. The estimate widens past the top level whenever
// the quoted bid volume is too thin to trust, which keeps the quote
// anchor stable through transient top-of-book flicker.
package theo

import "etf-mm-bot/internal/book"

// maxLevels caps how deep the estimator reaches. Beyond three levels
// the book is considered representative regardless of volume.
const maxLevels = 3

// Price returns the volume-weighted mid over the minimum number of
// levels needed for the cumulative bid volume to reach minVolume.
// Returns 0 when the referenced levels carry no volume at all.
func Price(snap book.Snapshot, minVolume int64) int64 {
	levels := 1
	cum := snap.BidVolumes[0]
	for levels < maxLevels && cum < minVolume {
		cum += snap.BidVolumes[levels]
		levels++
	}

	var weighted, total int64
	for i := 0; i < levels; i++ {
		weighted += snap.BidPrices[i]*snap.BidVolumes[i] + snap.AskPrices[i]*snap.AskVolumes[i]
		total += snap.BidVolumes[i] + snap.AskVolumes[i]
	}
	if total == 0 {
		return 0
	}
	return weighted / total
}

// Quotes derives the target bid and ask quote prices from the
// theoretical price. A zero top-of-book price on a side suppresses that
// side's quote entirely: a zero return means "do not quote".
func Quotes(snap book.Snapshot, theo, offset int64) (bid, ask int64) {
	if theo == 0 {
		return 0, 0
	}
	if snap.BidPrices[0] != 0 {
		bid = theo - offset
	}
	if snap.AskPrices[0] != 0 {
		ask = theo + offset
	}
	return bid, ask
}
