package engine

import (
	"context"
	"testing"
	"time"

	"etf-mm-bot/internal/book"
	"etf-mm-bot/internal/ratelimit"
)

type insertCmd struct {
	ID       uint64
	Side     Side
	Price    int64
	Volume   int64
	Lifespan Lifespan
}

type hedgeCmd struct {
	ID     uint64
	Side   Side
	Price  int64
	Volume int64
}

type fakeExchange struct {
	inserts []insertCmd
	cancels []uint64
	hedges  []hedgeCmd
}

func (f *fakeExchange) InsertOrder(id uint64, side Side, price, volume int64, lifespan Lifespan) {
	f.inserts = append(f.inserts, insertCmd{ID: id, Side: side, Price: price, Volume: volume, Lifespan: lifespan})
}

func (f *fakeExchange) CancelOrder(id uint64) {
	f.cancels = append(f.cancels, id)
}

func (f *fakeExchange) HedgeOrder(id uint64, side Side, price, volume int64) {
	f.hedges = append(f.hedges, hedgeCmd{ID: id, Side: side, Price: price, Volume: volume})
}

func (f *fakeExchange) reset() {
	f.inserts = nil
	f.cancels = nil
	f.hedges = nil
}

func (f *fakeExchange) total() int {
	return len(f.inserts) + len(f.cancels) + len(f.hedges)
}

type captureRecorder struct {
	events []Event
}

func (c *captureRecorder) Record(ctx context.Context, ev Event) {
	c.events = append(c.events, ev)
}

func testParams() Params {
	return Params{
		LotSize:           20,
		PositionLimit:     100,
		ArbitrageLimit:    20,
		TickSize:          100,
		MinBid:            1,
		MaxAsk:            1<<31 - 1,
		MinTheoVolume:     500,
		QuoteOffset:       100,
		RequoteTolerance:  0,
		RiskFactor:        20,
		CycleActionBudget: 48,
	}
}

func newTestEngine(t *testing.T) (*Engine, *fakeExchange) {
	t.Helper()
	ex := &fakeExchange{}
	e := New(testParams(), ex, nil, nil, nil)
	return e, ex
}

func futureBook(seq uint64, bid, bidVol, ask, askVol int64) book.Snapshot {
	snap := book.Snapshot{Instrument: book.Future, Seq: seq}
	snap.BidPrices[0], snap.BidVolumes[0] = bid, bidVol
	snap.AskPrices[0], snap.AskVolumes[0] = ask, askVol
	return snap
}

func etfBook(seq uint64, bid, bidVol, ask, askVol int64) book.Snapshot {
	snap := book.Snapshot{Instrument: book.ETF, Seq: seq}
	snap.BidPrices[0], snap.BidVolumes[0] = bid, bidVol
	snap.AskPrices[0], snap.AskVolumes[0] = ask, askVol
	return snap
}

func TestFutureBookQuotesBothSides(t *testing.T) {
	e, ex := newTestEngine(t)
	ctx := context.Background()

	// theo = (10000*600 + 10010*600) / 1200 = 10005
	e.OnOrderBook(ctx, futureBook(1, 10000, 600, 10010, 600))

	if len(ex.inserts) != 2 {
		t.Fatalf("expected 2 quote inserts, got %d", len(ex.inserts))
	}
	ask, bid := ex.inserts[0], ex.inserts[1]
	if ask.Side != SideSell || ask.Price != 10105 {
		t.Fatalf("expected ask quote at 10105, got %s at %d", ask.Side, ask.Price)
	}
	if bid.Side != SideBuy || bid.Price != 9905 {
		t.Fatalf("expected bid quote at 9905, got %s at %d", bid.Side, bid.Price)
	}
	// Flat position with risk factor 20 quotes 30 lots per side.
	if ask.Volume != 30 || bid.Volume != 30 {
		t.Fatalf("expected 30 lots per side, got ask %d bid %d", ask.Volume, bid.Volume)
	}
	if ask.Lifespan != GoodForDay || bid.Lifespan != GoodForDay {
		t.Fatalf("expected resting quotes to be good-for-day")
	}
}

func TestRequoteOnTheoMove(t *testing.T) {
	e, ex := newTestEngine(t)
	ctx := context.Background()

	e.OnOrderBook(ctx, futureBook(1, 10000, 600, 10010, 600))
	askID, bidID := ex.inserts[0].ID, ex.inserts[1].ID
	ex.reset()

	// theo moves to 10105; both quotes are off target and get replaced.
	e.OnOrderBook(ctx, futureBook(2, 10100, 600, 10110, 600))

	if len(ex.cancels) != 2 {
		t.Fatalf("expected 2 cancels, got %d", len(ex.cancels))
	}
	if ex.cancels[0] != askID || ex.cancels[1] != bidID {
		t.Fatalf("expected cancels for %d and %d, got %v", askID, bidID, ex.cancels)
	}
	if len(ex.inserts) != 2 {
		t.Fatalf("expected 2 replacement inserts, got %d", len(ex.inserts))
	}
	if ex.inserts[0].Price != 10205 || ex.inserts[1].Price != 10005 {
		t.Fatalf("expected replacement quotes at 10205/10005, got %d/%d",
			ex.inserts[0].Price, ex.inserts[1].Price)
	}
}

func TestRequoteToleranceKeepsCloseQuotes(t *testing.T) {
	params := testParams()
	params.RequoteTolerance = 100
	ex := &fakeExchange{}
	e := New(params, ex, nil, nil, nil)
	ctx := context.Background()

	e.OnOrderBook(ctx, futureBook(1, 10000, 600, 10010, 600))
	ex.reset()

	// theo shifts by less than one tick; quotes stay put.
	e.OnOrderBook(ctx, futureBook(2, 10090, 600, 10100, 600))
	if len(ex.cancels) != 0 {
		t.Fatalf("expected no cancels within tolerance, got %d", len(ex.cancels))
	}
}

func TestStaleSequenceProducesNoActions(t *testing.T) {
	e, ex := newTestEngine(t)
	ctx := context.Background()

	e.OnOrderBook(ctx, futureBook(2, 10000, 600, 10010, 600))
	ex.reset()

	e.OnOrderBook(ctx, futureBook(1, 11000, 600, 11010, 600))
	if ex.total() != 0 {
		t.Fatalf("expected zero actions for stale sequence, got %d", ex.total())
	}
	e.OnOrderBook(ctx, futureBook(2, 11000, 600, 11010, 600))
	if ex.total() != 0 {
		t.Fatalf("expected zero actions for duplicate sequence, got %d", ex.total())
	}
}

func TestZeroTopOfBookProducesNoActions(t *testing.T) {
	e, ex := newTestEngine(t)
	ctx := context.Background()

	e.OnOrderBook(ctx, futureBook(1, 0, 0, 10010, 600))
	if ex.total() != 0 {
		t.Fatalf("expected zero actions for one-sided book, got %d", ex.total())
	}
}

func TestArbitrageBuy(t *testing.T) {
	e, ex := newTestEngine(t)
	ctx := context.Background()

	// Future top of book only; zero volume keeps the theo quoter quiet.
	e.OnOrderBook(ctx, futureBook(1, 10100, 0, 10110, 0))
	ex.reset()

	// ETF ask 10050 below future bid 10100: cross exists.
	e.OnOrderBook(ctx, etfBook(1, 10000, 50, 10050, 50))

	if len(ex.inserts) != 1 {
		t.Fatalf("expected 1 arbitrage insert, got %d", len(ex.inserts))
	}
	got := ex.inserts[0]
	if got.Side != SideBuy || got.Price != 10050 {
		t.Fatalf("expected buy at 10050, got %s at %d", got.Side, got.Price)
	}
	if got.Volume != 20 {
		t.Fatalf("expected volume min(50, 20) = 20, got %d", got.Volume)
	}
	if got.Lifespan != FillAndKill {
		t.Fatalf("expected fill-and-kill lifespan")
	}
}

func TestArbitrageSellUsesShortHeadroom(t *testing.T) {
	e, ex := newTestEngine(t)
	ctx := context.Background()

	e.OnOrderBook(ctx, futureBook(1, 10000, 0, 10010, 0))
	e.position = -15
	ex.reset()

	// ETF bid 10100 above future ask 10010; short headroom is 20-15=5.
	e.OnOrderBook(ctx, etfBook(1, 10100, 50, 10150, 50))

	if len(ex.inserts) != 1 {
		t.Fatalf("expected 1 arbitrage insert, got %d", len(ex.inserts))
	}
	got := ex.inserts[0]
	if got.Side != SideSell || got.Price != 10100 || got.Volume != 5 {
		t.Fatalf("expected sell 5 at 10100, got %s %d at %d", got.Side, got.Volume, got.Price)
	}
}

func TestArbitrageExhaustedHeadroomSendsNothing(t *testing.T) {
	e, ex := newTestEngine(t)
	ctx := context.Background()

	e.OnOrderBook(ctx, futureBook(1, 10100, 0, 10110, 0))
	e.position = 20
	ex.reset()

	e.OnOrderBook(ctx, etfBook(1, 10000, 50, 10050, 50))
	if ex.total() != 0 {
		t.Fatalf("expected no arbitrage past the limit, got %d actions", ex.total())
	}
}

func TestMarketMakingLaddersInsideSpread(t *testing.T) {
	e, ex := newTestEngine(t)
	ctx := context.Background()

	e.OnOrderBook(ctx, futureBook(1, 10000, 0, 10100, 0))
	ex.reset()

	// ETF book strictly inside the future spread: lay the ladder
	// between future bounds +-2 ticks and the ETF top of book.
	e.OnOrderBook(ctx, etfBook(1, 9400, 60, 10700, 60))

	var askPrices, bidPrices []int64
	for _, cmd := range ex.inserts {
		if cmd.Side == SideSell {
			askPrices = append(askPrices, cmd.Price)
		} else {
			bidPrices = append(bidPrices, cmd.Price)
		}
		if cmd.Volume != 20 {
			t.Fatalf("expected lot-size clips, got %d", cmd.Volume)
		}
	}
	wantAsks := []int64{10300, 10400, 10500, 10600}
	wantBids := []int64{9400, 9500, 9600, 9700}
	if !equalInt64(askPrices, wantAsks) {
		t.Fatalf("expected ask ladder %v, got %v", wantAsks, askPrices)
	}
	if !equalInt64(bidPrices, wantBids) {
		t.Fatalf("expected bid ladder %v, got %v", wantBids, bidPrices)
	}
}

func TestMarketMakingClearsDriftedOrders(t *testing.T) {
	e, ex := newTestEngine(t)
	ctx := context.Background()

	e.OnOrderBook(ctx, futureBook(1, 10000, 0, 10100, 0))
	e.OnOrderBook(ctx, etfBook(1, 9400, 60, 10700, 60))
	ex.reset()

	// The ETF top collapses inward: cumulative-volume cutoffs now sit
	// at 9710 (bid) and 10310 (ask), so the stale rungs get cancelled.
	e.OnOrderBook(ctx, etfBook(2, 9710, 60, 10310, 60))

	if len(ex.cancels) != 7 {
		t.Fatalf("expected 7 cancels (4 bids + 3 asks), got %d", len(ex.cancels))
	}
	if len(ex.inserts) != 1 {
		t.Fatalf("expected 1 fresh bid rung, got %d inserts", len(ex.inserts))
	}
	if ex.inserts[0].Side != SideBuy || ex.inserts[0].Price != 9710 {
		t.Fatalf("expected bid rung at 9710, got %s at %d", ex.inserts[0].Side, ex.inserts[0].Price)
	}
}

func TestFutureMoveTrimsCrossedOrders(t *testing.T) {
	e, ex := newTestEngine(t)
	ctx := context.Background()

	e.OnOrderBook(ctx, futureBook(1, 10000, 0, 10100, 0))
	e.OnOrderBook(ctx, etfBook(1, 9400, 60, 10700, 60))
	ex.reset()

	// Future gaps down: every resting bid is now above the future ask.
	e.OnOrderBook(ctx, futureBook(2, 9000, 0, 9300, 0))

	if len(ex.cancels) != 4 {
		t.Fatalf("expected 4 crossed bids cancelled, got %d", len(ex.cancels))
	}
}

func TestAskFillHedgesWithBuy(t *testing.T) {
	e, ex := newTestEngine(t)
	ctx := context.Background()

	e.OnOrderBook(ctx, futureBook(1, 10000, 600, 10010, 600))
	askID := ex.inserts[0].ID
	ex.reset()

	e.OnOrderFilled(ctx, askID, 10105, 10)

	if e.Position() != -10 {
		t.Fatalf("expected position -10, got %d", e.Position())
	}
	if len(ex.hedges) != 1 {
		t.Fatalf("expected 1 hedge order, got %d", len(ex.hedges))
	}
	hedge := ex.hedges[0]
	if hedge.Side != SideBuy || hedge.Volume != 10 {
		t.Fatalf("expected hedge buy of 10, got %s %d", hedge.Side, hedge.Volume)
	}
	want := testParams().maxAskNearestTick()
	if hedge.Price != want {
		t.Fatalf("expected hedge at max-ask tick %d, got %d", want, hedge.Price)
	}
}

func TestBidFillHedgesWithSell(t *testing.T) {
	e, ex := newTestEngine(t)
	ctx := context.Background()

	e.OnOrderBook(ctx, futureBook(1, 10000, 600, 10010, 600))
	bidID := ex.inserts[1].ID
	ex.reset()

	e.OnOrderFilled(ctx, bidID, 9905, 7)

	if e.Position() != 7 {
		t.Fatalf("expected position 7, got %d", e.Position())
	}
	if len(ex.hedges) != 1 {
		t.Fatalf("expected 1 hedge order, got %d", len(ex.hedges))
	}
	hedge := ex.hedges[0]
	if hedge.Side != SideSell || hedge.Volume != 7 {
		t.Fatalf("expected hedge sell of 7, got %s %d", hedge.Side, hedge.Volume)
	}
	want := testParams().minBidNearestTick()
	if hedge.Price != want {
		t.Fatalf("expected hedge at min-bid tick %d, got %d", want, hedge.Price)
	}
}

func TestHedgeFillReconcilesDelta(t *testing.T) {
	e, ex := newTestEngine(t)
	ctx := context.Background()

	e.OnOrderBook(ctx, futureBook(1, 10000, 600, 10010, 600))
	askID := ex.inserts[0].ID
	ex.reset()

	e.OnOrderFilled(ctx, askID, 10105, 10)
	if e.Delta() != -10 {
		t.Fatalf("expected delta -10 before hedge confirmation, got %d", e.Delta())
	}
	hedgeID := ex.hedges[0].ID

	e.OnHedgeFilled(ctx, hedgeID, 10010, 10)
	if e.Delta() != 0 {
		t.Fatalf("expected delta reconciled to 0, got %d", e.Delta())
	}
	// A second report for the same id must be ignored.
	e.OnHedgeFilled(ctx, hedgeID, 10010, 10)
	if e.Delta() != 0 {
		t.Fatalf("expected duplicate hedge report ignored, got delta %d", e.Delta())
	}
}

func TestUnfilledHedgeIsSurfacedNotCounted(t *testing.T) {
	e, ex := newTestEngine(t)
	rec := &captureRecorder{}
	e.SetRecorder(rec)
	ctx := context.Background()

	e.OnOrderBook(ctx, futureBook(1, 10000, 600, 10010, 600))
	bidID := ex.inserts[1].ID
	e.OnOrderFilled(ctx, bidID, 9905, 5)
	hedgeID := ex.hedges[0].ID

	e.OnHedgeFilled(ctx, hedgeID, 0, 0)

	if e.Delta() != 5 {
		t.Fatalf("expected delta unchanged at 5, got %d", e.Delta())
	}
	var found bool
	for _, ev := range rec.events {
		if ev.Kind == EventHedgeUnfilled && ev.OrderID == hedgeID {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an unfilled-hedge risk event, got %v", rec.events)
	}
}

func TestOrderStatusCleanupIsIdempotent(t *testing.T) {
	e, ex := newTestEngine(t)
	ctx := context.Background()

	e.OnOrderBook(ctx, futureBook(1, 10000, 600, 10010, 600))
	askID, bidID := ex.inserts[0].ID, ex.inserts[1].ID

	e.OnOrderStatus(ctx, askID, 30, 0, 0)
	e.OnOrderStatus(ctx, askID, 30, 0, 0)
	e.OnOrderStatus(ctx, bidID, 0, 0, 0)

	if len(e.bids) != 0 || len(e.asks) != 0 {
		t.Fatalf("expected all orders removed, got %d bids %d asks", len(e.bids), len(e.asks))
	}
	if e.quoteBidID != 0 || e.quoteAskID != 0 {
		t.Fatalf("expected quote slots cleared")
	}
	// A fill arriving after cleanup must not move the position.
	ex.reset()
	e.OnOrderFilled(ctx, askID, 10105, 10)
	if e.Position() != 0 || ex.total() != 0 {
		t.Fatalf("expected fill for removed order to be ignored")
	}
}

func TestPartialStatusKeepsOrderAlive(t *testing.T) {
	e, ex := newTestEngine(t)
	ctx := context.Background()

	e.OnOrderBook(ctx, futureBook(1, 10000, 600, 10010, 600))
	askID := ex.inserts[0].ID

	e.OnOrderStatus(ctx, askID, 10, 20, 0)
	if !e.isAsk(askID) {
		t.Fatalf("expected partially filled order to stay tracked")
	}
}

func TestVenueErrorTerminatesKnownOrder(t *testing.T) {
	e, ex := newTestEngine(t)
	rec := &captureRecorder{}
	e.SetRecorder(rec)
	ctx := context.Background()

	e.OnOrderBook(ctx, futureBook(1, 10000, 600, 10010, 600))
	askID := ex.inserts[0].ID

	e.OnError(ctx, askID, "order rejected")
	if e.isAsk(askID) {
		t.Fatalf("expected errored order removed from tracking")
	}
	if e.quoteAskID != 0 {
		t.Fatalf("expected quote slot cleared on error")
	}
	if len(rec.events) != 1 || rec.events[0].Kind != EventOrderError {
		t.Fatalf("expected one order-error event, got %v", rec.events)
	}

	// Errors without a tracked id change nothing.
	e.OnError(ctx, 0, "connection hiccup")
	e.OnError(ctx, 9999, "unknown order")
	if len(rec.events) != 1 {
		t.Fatalf("expected no further events, got %v", rec.events)
	}
}

func TestQuoteVolumesFollowPosition(t *testing.T) {
	e, ex := newTestEngine(t)
	ctx := context.Background()

	e.OnOrderBook(ctx, futureBook(1, 10000, 600, 10010, 600))
	askID := ex.inserts[0].ID
	bidID := ex.inserts[1].ID
	e.OnOrderFilled(ctx, askID, 10105, 10)
	e.OnOrderStatus(ctx, askID, 30, 0, 0)
	e.OnOrderStatus(ctx, bidID, 0, 0, 0)
	ex.reset()

	// Short 10: bids grow to 35 lots, asks shrink to 25.
	e.OnOrderBook(ctx, futureBook(2, 10000, 600, 10010, 600))
	if len(ex.inserts) != 2 {
		t.Fatalf("expected 2 quote inserts, got %d", len(ex.inserts))
	}
	for _, cmd := range ex.inserts {
		switch cmd.Side {
		case SideBuy:
			if cmd.Volume != 35 {
				t.Fatalf("expected bid volume 35 when short 10, got %d", cmd.Volume)
			}
		case SideSell:
			if cmd.Volume != 25 {
				t.Fatalf("expected ask volume 25 when short 10, got %d", cmd.Volume)
			}
		}
	}
}

func TestNoQuotesAtPositionLimit(t *testing.T) {
	e, ex := newTestEngine(t)
	ctx := context.Background()

	e.position = 100
	e.OnOrderBook(ctx, futureBook(1, 10000, 600, 10010, 600))
	for _, cmd := range ex.inserts {
		if cmd.Side == SideBuy {
			t.Fatalf("expected no bid insert at the long limit")
		}
	}

	e2, ex2 := newTestEngine(t)
	e2.position = -100
	e2.OnOrderBook(ctx, futureBook(1, 10000, 600, 10010, 600))
	for _, cmd := range ex2.inserts {
		if cmd.Side == SideSell {
			t.Fatalf("expected no ask insert at the short limit")
		}
	}
}

func TestThrottledInsertIsDropped(t *testing.T) {
	ex := &fakeExchange{}
	limiter := ratelimit.New(1, time.Hour)
	e := New(testParams(), ex, limiter, nil, nil)
	ctx := context.Background()

	e.OnOrderBook(ctx, futureBook(1, 10000, 600, 10010, 600))

	if len(ex.inserts) != 1 {
		t.Fatalf("expected only the first insert to pass the limiter, got %d", len(ex.inserts))
	}
	if e.quoteBidID != 0 {
		t.Fatalf("expected the throttled bid quote to stay unplaced")
	}
}

func TestHedgeRetriesUntilAdmitted(t *testing.T) {
	ex := &fakeExchange{}
	// A tiny window so the blocking hedge path only backs off briefly.
	limiter := ratelimit.New(1, 50*time.Millisecond)
	e := New(testParams(), ex, limiter, nil, nil)
	ctx := context.Background()

	e.OnOrderBook(ctx, futureBook(1, 10000, 600, 10010, 600))
	askID := ex.inserts[0].ID
	ex.reset()

	// The limiter is saturated by the insert; the hedge must wait it out.
	e.OnOrderFilled(ctx, askID, 10105, 10)

	if len(ex.hedges) != 1 {
		t.Fatalf("expected the hedge to be sent after backoff, got %d", len(ex.hedges))
	}
}

func TestHedgeAbandonedOnContextCancel(t *testing.T) {
	ex := &fakeExchange{}
	limiter := ratelimit.New(1, time.Hour)
	e := New(testParams(), ex, limiter, nil, nil)

	e.OnOrderBook(context.Background(), futureBook(1, 10000, 600, 10010, 600))
	askID := ex.inserts[0].ID
	ex.reset()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e.OnOrderFilled(ctx, askID, 10105, 10)

	if len(ex.hedges) != 0 {
		t.Fatalf("expected no hedge after context cancellation")
	}
	// The fill still counts; the miss is the operator's to resolve.
	if e.Position() != -10 {
		t.Fatalf("expected position -10, got %d", e.Position())
	}
}

func TestCycleBudgetPausesQuoting(t *testing.T) {
	params := testParams()
	params.CycleActionBudget = 1
	ex := &fakeExchange{}
	e := New(params, ex, nil, nil, nil)
	ctx := context.Background()

	clock := time.Unix(1_700_000_000, 0)
	e.now = func() time.Time { return clock }

	// First update spends the budget (ask + bid inserts).
	e.OnOrderBook(ctx, futureBook(1, 10000, 600, 10010, 600))
	inserted := len(ex.inserts)
	if inserted == 0 {
		t.Fatalf("expected initial quotes")
	}
	ex.reset()

	// Budget exhausted and the second has not elapsed: no actions.
	e.OnOrderBook(ctx, futureBook(2, 10100, 600, 10110, 600))
	if ex.total() != 0 {
		t.Fatalf("expected quoting paused within the cycle, got %d actions", ex.total())
	}

	// After a second the cycle resets and quoting resumes.
	clock = clock.Add(1100 * time.Millisecond)
	e.OnOrderBook(ctx, futureBook(3, 10100, 600, 10110, 600))
	if ex.total() != 0 {
		t.Fatalf("expected the reset tick itself to stay quiet, got %d", ex.total())
	}
	e.OnOrderBook(ctx, futureBook(4, 10100, 600, 10110, 600))
	if ex.total() == 0 {
		t.Fatalf("expected quoting to resume after the cycle reset")
	}
}

func equalInt64(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
