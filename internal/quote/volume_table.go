// Package quote maps net position to quote volumes for the resting
// market-making orders. The mapping shrinks size on the side that would
// add inventory and grows it on the side that would reduce inventory,
// so fills naturally pull the position back toward flat.
package quote

import "math"

// positionRange is the half-width of the precomputed table; positions
// are clamped into [-positionRange, positionRange] on lookup.
const positionRange = 100

// VolumeTable is a precomputed position -> quote volume mapping,
// parameterized by a risk factor. Built once at startup, O(1) lookup.
type VolumeTable struct {
	bid [2*positionRange + 1]int64
	ask [2*positionRange + 1]int64
}

// NewVolumeTable builds the table for every position in [-100, 100].
// Larger risk factors reduce quoted size across the board.
//
// Ask volume uses the signed position when short and the absolute value
// when long, so a long book quotes bigger asks (reducing side) while a
// short book quotes smaller ones.
func NewVolumeTable(riskFactor float64) *VolumeTable {
	t := &VolumeTable{}
	base := math.Floor(riskFactor / 2)
	for p := -positionRange; p <= positionRange; p++ {
		bid := math.Floor((positionRange-float64(p)-riskFactor)/2) - base
		if bid < 0 {
			bid = 0
		}

		var ask float64
		if p < 0 {
			ask = math.Floor((positionRange-math.Abs(float64(p))-riskFactor)/2) - base
		} else {
			ask = math.Floor((positionRange+math.Abs(float64(p))-riskFactor)/2) - base
		}
		if ask < 0 {
			ask = 0
		}

		t.bid[p+positionRange] = int64(bid)
		t.ask[p+positionRange] = int64(ask)
	}
	return t
}

func (t *VolumeTable) Bid(position int64) int64 {
	return t.bid[clamp(position)+positionRange]
}

func (t *VolumeTable) Ask(position int64) int64 {
	return t.ask[clamp(position)+positionRange]
}

func clamp(position int64) int64 {
	if position < -positionRange {
		return -positionRange
	}
	if position > positionRange {
		return positionRange
	}
	return position
}
