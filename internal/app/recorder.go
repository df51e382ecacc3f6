package app

import (
	"context"
	"encoding/json"

	"etf-mm-bot/internal/alerts"
	"etf-mm-bot/internal/engine"
	"etf-mm-bot/internal/state"
	"etf-mm-bot/internal/timescale"

	"go.uber.org/zap"
)

// recorder fans engine events out to the journal, the timescale fill
// stream, and operator alerts. Failures are logged and swallowed: an
// observability sink must never take the strategy down.
type recorder struct {
	journal state.Journal
	writer  *timescale.Writer
	alerts  *alerts.Telegram
	log     *zap.Logger
}

func (r *recorder) Record(ctx context.Context, ev engine.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		r.log.Warn("event marshal failed", zap.Error(err))
		return
	}
	if r.journal != nil {
		err := r.journal.Append(ctx, state.Entry{
			Time:    ev.Time,
			Kind:    string(ev.Kind),
			Payload: string(payload),
		})
		if err != nil {
			r.log.Warn("journal append failed", zap.Error(err))
		}
	}
	switch ev.Kind {
	case engine.EventFill:
		r.writer.EnqueueFill(timescale.Fill{
			Time:     ev.Time,
			OrderID:  ev.OrderID,
			Side:     ev.Side,
			Price:    ev.Price,
			Volume:   ev.Volume,
			Position: ev.Position,
			Delta:    ev.Delta,
		})
	case engine.EventHedgeUnfilled:
		if r.alerts != nil {
			r.alerts.HedgeMiss(ctx, ev.OrderID, ev.Position, ev.Delta)
		}
	case engine.EventOrderError:
		if r.alerts != nil {
			r.alerts.VenueError(ctx, ev.OrderID, ev.Message)
		}
	}
}
