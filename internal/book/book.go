package book

// Levels is the book depth reported by the venue feed.
const Levels = 5

type Instrument uint8

const (
	Future Instrument = iota
	ETF
	instrumentCount
)

func (i Instrument) String() string {
	switch i {
	case Future:
		return "future"
	case ETF:
		return "etf"
	default:
		return "unknown"
	}
}

// Snapshot is an atomic five-level view of one side pair of an
// instrument's order book. Prices are integer cents, volumes are lots.
// Levels beyond the available depth hold zeros.
type Snapshot struct {
	Instrument Instrument
	Seq        uint64
	BidPrices  [Levels]int64
	BidVolumes [Levels]int64
	AskPrices  [Levels]int64
	AskVolumes [Levels]int64
}

func (s Snapshot) BestBid() int64 { return s.BidPrices[0] }
func (s Snapshot) BestAsk() int64 { return s.AskPrices[0] }

// Valid reports whether the snapshot carries a usable two-sided market.
// A zero top-of-book price on either side means there is no liquidity
// to reference and the snapshot must be discarded.
func (s Snapshot) Valid() bool {
	return s.BidPrices[0] != 0 && s.AskPrices[0] != 0
}

// Tracker gates snapshots on per-instrument sequence numbers. Accept
// advances the high-water mark and reports whether the snapshot is
// fresh; duplicates and out-of-order deliveries are rejected.
type Tracker struct {
	seen [instrumentCount]bool
	last [instrumentCount]uint64
}

func (t *Tracker) Accept(inst Instrument, seq uint64) bool {
	if inst >= instrumentCount {
		return false
	}
	if t.seen[inst] && seq <= t.last[inst] {
		return false
	}
	t.seen[inst] = true
	t.last[inst] = seq
	return true
}
