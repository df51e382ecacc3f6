package engine

import (
	"context"
	"time"

	"etf-mm-bot/internal/config"
)

type Side uint8

const (
	SideBuy Side = iota
	SideSell
)

func (s Side) String() string {
	if s == SideBuy {
		return "buy"
	}
	return "sell"
}

// Opposite returns the hedging side for a fill on this side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

type Lifespan uint8

const (
	// GoodForDay rests on the book until filled or cancelled.
	GoodForDay Lifespan = iota
	// FillAndKill executes against available liquidity and cancels the rest.
	FillAndKill
)

func (l Lifespan) String() string {
	if l == FillAndKill {
		return "fill_and_kill"
	}
	return "good_for_day"
}

// Exchange is the outbound command surface the transport collaborator
// implements. Sends are fire-and-forget: order state changes only on
// the asynchronous status callbacks, never at the moment of sending.
type Exchange interface {
	InsertOrder(id uint64, side Side, price, volume int64, lifespan Lifespan)
	CancelOrder(id uint64)
	HedgeOrder(id uint64, side Side, price, volume int64)
}

type EventKind string

const (
	EventFill          EventKind = "fill"
	EventHedgeUnfilled EventKind = "hedge_unfilled"
	EventOrderError    EventKind = "order_error"
)

// Event is an observability record emitted by the engine for fills and
// risk conditions. Recorders must not block the engine goroutine.
type Event struct {
	Kind     EventKind `json:"kind"`
	Time     time.Time `json:"time"`
	OrderID  uint64    `json:"order_id"`
	Side     string    `json:"side,omitempty"`
	Price    int64     `json:"price,omitempty"`
	Volume   int64     `json:"volume,omitempty"`
	Position int64     `json:"position"`
	Delta    int64     `json:"delta"`
	Message  string    `json:"message,omitempty"`
}

type Recorder interface {
	Record(ctx context.Context, ev Event)
}

// Params are the strategy constants, loaded before construction.
// Prices are integer cents, volumes are lots.
type Params struct {
	LotSize           int64
	PositionLimit     int64
	ArbitrageLimit    int64
	TickSize          int64
	MinBid            int64
	MaxAsk            int64
	MinTheoVolume     int64
	QuoteOffset       int64
	RequoteTolerance  int64
	RiskFactor        float64
	CycleActionBudget int
}

func ParamsFromConfig(cfg config.EngineConfig) Params {
	return Params{
		LotSize:           cfg.LotSize,
		PositionLimit:     cfg.PositionLimit,
		ArbitrageLimit:    cfg.ArbitrageLimit,
		TickSize:          cfg.TickSizeCents,
		MinBid:            cfg.MinBidCents,
		MaxAsk:            cfg.MaxAskCents,
		MinTheoVolume:     cfg.MinTheoVolume,
		QuoteOffset:       cfg.QuoteOffsetTicks * cfg.TickSizeCents,
		RequoteTolerance:  cfg.RequoteToleranceTicks * cfg.TickSizeCents,
		RiskFactor:        cfg.RiskFactor,
		CycleActionBudget: cfg.CycleActionBudget,
	}
}

// minBidNearestTick is the most conservative price a hedge sell can
// carry; maxAskNearestTick the mirror for hedge buys.
func (p Params) minBidNearestTick() int64 {
	return (p.MinBid + p.TickSize) / p.TickSize * p.TickSize
}

func (p Params) maxAskNearestTick() int64 {
	return p.MaxAsk / p.TickSize * p.TickSize
}
