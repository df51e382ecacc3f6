// Package engine implements the decision and order-lifecycle core: the
// theoretical-price quoter on the future feed, the ETF arbitrage
// detector, the book-clearing market maker, and position and hedge
// accounting. The engine owns all order state exclusively and is driven
// by one event at a time; it performs no locking of its own.
package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"etf-mm-bot/internal/book"
	"etf-mm-bot/internal/metrics"
	"etf-mm-bot/internal/quote"
	"etf-mm-bot/internal/ratelimit"
)

type Engine struct {
	params   Params
	ex       Exchange
	limiter  *ratelimit.Limiter
	volumes  *quote.VolumeTable
	log      *zap.Logger
	metrics  *metrics.Metrics
	recorder Recorder

	seq      book.Tracker
	nextID   uint64
	position int64
	delta    int64

	// Resting orders by client id. An id lives here from the moment the
	// insert is sent until a status callback reports zero remaining
	// volume; cancels do not remove it.
	bids map[uint64]int64
	asks map[uint64]int64

	hedgeBids map[uint64]struct{}
	hedgeAsks map[uint64]struct{}

	// Single resting theo quote per side on the future-driven path.
	quoteBidID    uint64
	quoteBidPrice int64
	quoteAskID    uint64
	quoteAskPrice int64

	futureBid int64
	futureAsk int64

	cycleActions int
	cycleStart   time.Time

	now func() time.Time
}

func New(params Params, ex Exchange, limiter *ratelimit.Limiter, log *zap.Logger, m *metrics.Metrics) *Engine {
	if limiter == nil {
		limiter = ratelimit.New(ratelimit.DefaultLimit, ratelimit.DefaultWindow)
	}
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewNoop()
	}
	return &Engine{
		params:    params,
		ex:        ex,
		limiter:   limiter,
		volumes:   quote.NewVolumeTable(params.RiskFactor),
		log:       log,
		metrics:   m,
		nextID:    1,
		bids:      make(map[uint64]int64),
		asks:      make(map[uint64]int64),
		hedgeBids: make(map[uint64]struct{}),
		hedgeAsks: make(map[uint64]struct{}),
		now:       time.Now,
	}
}

// SetRecorder attaches an observability sink for fills and risk events.
func (e *Engine) SetRecorder(r Recorder) {
	e.recorder = r
}

func (e *Engine) Position() int64 { return e.position }

// Delta is the net inventory exposure not yet offset by confirmed
// hedge fills; nonzero values mean hedges are still in flight.
func (e *Engine) Delta() int64 { return e.delta }

// OnOrderBook handles a book snapshot for either instrument. Stale and
// invalid snapshots are discarded with no side effects.
func (e *Engine) OnOrderBook(ctx context.Context, snap book.Snapshot) {
	if !e.seq.Accept(snap.Instrument, snap.Seq) {
		e.metrics.StaleBooks.Inc()
		return
	}
	if !snap.Valid() {
		e.metrics.StaleBooks.Inc()
		e.log.Debug("discarding one-sided book",
			zap.Stringer("instrument", snap.Instrument),
			zap.Uint64("seq", snap.Seq))
		return
	}
	switch snap.Instrument {
	case book.Future:
		e.onFutureBook(ctx, snap)
	case book.ETF:
		e.onETFBook(ctx, snap)
	}
}

func (e *Engine) onFutureBook(ctx context.Context, snap book.Snapshot) {
	e.futureBid = snap.BestBid()
	e.futureAsk = snap.BestAsk()
	e.trimCrossedOrders()
	e.requote(snap)
}

func (e *Engine) onETFBook(ctx context.Context, snap book.Snapshot) {
	if e.futureBid == 0 || e.futureAsk == 0 {
		return
	}
	etfBid, etfAsk := snap.BestBid(), snap.BestAsk()
	switch {
	case etfAsk < e.futureBid || etfBid > e.futureAsk:
		e.handleArbitrage(snap)
	case etfAsk > e.futureAsk && etfBid < e.futureBid:
		e.makeMarket(snap)
	}
}

// trimCrossedOrders cancels resting ETF orders the future has moved
// through: bids above the future ask and asks below the future bid
// would otherwise be arbitraged against us.
func (e *Engine) trimCrossedOrders() {
	for id, price := range e.bids {
		if price > e.futureAsk {
			e.sendCancel(id)
		}
	}
	for id, price := range e.asks {
		if price < e.futureBid {
			e.sendCancel(id)
		}
	}
}

// OnOrderFilled handles a fill on one of our own orders: position moves
// by the fill volume and a mandatory hedge goes out on the opposite
// side at the most conservative tick.
func (e *Engine) OnOrderFilled(ctx context.Context, id uint64, price, volume int64) {
	var side Side
	switch {
	case e.isBid(id):
		side = SideBuy
		e.position += volume
		e.delta += volume
	case e.isAsk(id):
		side = SideSell
		e.position -= volume
		e.delta -= volume
	default:
		e.log.Debug("fill for unknown order", zap.Uint64("order_id", id))
		return
	}
	e.log.Info("order filled",
		zap.Uint64("order_id", id),
		zap.Stringer("side", side),
		zap.Int64("price", price),
		zap.Int64("volume", volume),
		zap.Int64("position", e.position))
	e.record(ctx, Event{
		Kind:     EventFill,
		Time:     e.now(),
		OrderID:  id,
		Side:     side.String(),
		Price:    price,
		Volume:   volume,
		Position: e.position,
		Delta:    e.delta,
	})
	e.hedgeFill(ctx, side, volume)
}

// OnOrderStatus removes terminated orders. Removal is attempted from
// both books so cleanup stays idempotent regardless of which side the
// order actually rested on.
func (e *Engine) OnOrderStatus(ctx context.Context, id uint64, fillVolume, remainingVolume, fees int64) {
	if remainingVolume != 0 {
		return
	}
	if id == e.quoteBidID {
		e.quoteBidID = 0
	}
	if id == e.quoteAskID {
		e.quoteAskID = 0
	}
	delete(e.bids, id)
	delete(e.asks, id)
}

// OnError handles a venue error. An error naming an order we track is
// equivalent to that order terminating with nothing left to trade.
func (e *Engine) OnError(ctx context.Context, id uint64, message string) {
	e.log.Warn("venue error",
		zap.Uint64("order_id", id),
		zap.String("message", message))
	e.metrics.OrderErrors.Inc()
	if id == 0 || (!e.isBid(id) && !e.isAsk(id)) {
		return
	}
	e.record(ctx, Event{
		Kind:     EventOrderError,
		Time:     e.now(),
		OrderID:  id,
		Position: e.position,
		Delta:    e.delta,
		Message:  message,
	})
	e.OnOrderStatus(ctx, id, 0, 0, 0)
}

// OnTradeTicks reports market trade activity. It carries no decision
// weight; logged for operators only.
func (e *Engine) OnTradeTicks(ctx context.Context, snap book.Snapshot) {
	e.log.Debug("trade ticks",
		zap.Stringer("instrument", snap.Instrument),
		zap.Uint64("seq", snap.Seq),
		zap.Int64("bid", snap.BestBid()),
		zap.Int64("ask", snap.BestAsk()))
}

// OnDisconnect clears any assumption of pending confirmations. Order
// and position state is rebuilt from the live feed after reconnect.
func (e *Engine) OnDisconnect(ctx context.Context) {
	e.log.Warn("execution connection lost",
		zap.Int("open_bids", len(e.bids)),
		zap.Int("open_asks", len(e.asks)),
		zap.Int64("position", e.position))
}

func (e *Engine) isBid(id uint64) bool {
	_, ok := e.bids[id]
	return ok
}

func (e *Engine) isAsk(id uint64) bool {
	_, ok := e.asks[id]
	return ok
}

func (e *Engine) nextOrderID() uint64 {
	id := e.nextID
	e.nextID++
	return id
}

func (e *Engine) record(ctx context.Context, ev Event) {
	if e.recorder == nil {
		return
	}
	e.recorder.Record(ctx, ev)
}
