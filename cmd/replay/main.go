// Command replay drives the engine with a recorded event stream and
// prints every order command it would have sent. Input is one JSON
// event per line, read from a file or stdin.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"etf-mm-bot/internal/book"
	"etf-mm-bot/internal/config"
	"etf-mm-bot/internal/engine"
	"etf-mm-bot/internal/ratelimit"

	"go.uber.org/zap"
)

type replayEvent struct {
	Type       string  `json:"type"`
	Instrument string  `json:"instrument"`
	Seq        uint64  `json:"seq"`
	BidPrices  []int64 `json:"bid_prices"`
	BidVolumes []int64 `json:"bid_volumes"`
	AskPrices  []int64 `json:"ask_prices"`
	AskVolumes []int64 `json:"ask_volumes"`
	OrderID    uint64  `json:"order_id"`
	Price      int64   `json:"price"`
	Volume     int64   `json:"volume"`
	FillVolume int64   `json:"fill_volume"`
	Remaining  int64   `json:"remaining"`
	Fees       int64   `json:"fees"`
	Message    string  `json:"message"`
}

// printExchange writes every command to stdout instead of a venue.
type printExchange struct{}

func (printExchange) InsertOrder(id uint64, side engine.Side, price, volume int64, lifespan engine.Lifespan) {
	fmt.Printf("insert id=%d side=%s price=%d volume=%d lifespan=%s\n", id, side, price, volume, lifespan)
}

func (printExchange) CancelOrder(id uint64) {
	fmt.Printf("cancel id=%d\n", id)
}

func (printExchange) HedgeOrder(id uint64, side engine.Side, price, volume int64) {
	fmt.Printf("hedge id=%d side=%s price=%d volume=%d\n", id, side, price, volume)
}

func main() {
	configPath := flag.String("config", "", "optional config path for engine parameters")
	inputPath := flag.String("input", "-", "event stream path, - for stdin")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fatal(err)
		}
		cfg = loaded
	}

	input := os.Stdin
	if *inputPath != "" && *inputPath != "-" {
		f, err := os.Open(*inputPath)
		if err != nil {
			fatal(err)
		}
		defer f.Close()
		input = f
	}

	// Replay runs faster than wall clock; an unbounded limiter keeps
	// the recorded decision sequence intact.
	limiter := ratelimit.New(1<<30, time.Second)
	eng := engine.New(engine.ParamsFromConfig(cfg.Engine), printExchange{}, limiter, zap.NewNop(), nil)

	ctx := context.Background()
	scanner := bufio.NewScanner(input)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var ev replayEvent
		if err := json.Unmarshal([]byte(text), &ev); err != nil {
			fmt.Fprintf(os.Stderr, "line %d: %v\n", line, err)
			continue
		}
		if err := apply(ctx, eng, ev); err != nil {
			fmt.Fprintf(os.Stderr, "line %d: %v\n", line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		fatal(err)
	}
	fmt.Printf("done: position=%d delta=%d\n", eng.Position(), eng.Delta())
}

func apply(ctx context.Context, eng *engine.Engine, ev replayEvent) error {
	switch ev.Type {
	case "book", "ticks":
		snap, err := snapshot(ev)
		if err != nil {
			return err
		}
		if ev.Type == "book" {
			eng.OnOrderBook(ctx, snap)
		} else {
			eng.OnTradeTicks(ctx, snap)
		}
	case "fill":
		eng.OnOrderFilled(ctx, ev.OrderID, ev.Price, ev.Volume)
	case "status":
		eng.OnOrderStatus(ctx, ev.OrderID, ev.FillVolume, ev.Remaining, ev.Fees)
	case "hedge_fill":
		eng.OnHedgeFilled(ctx, ev.OrderID, ev.Price, ev.Volume)
	case "error":
		eng.OnError(ctx, ev.OrderID, ev.Message)
	default:
		return fmt.Errorf("unknown event type %q", ev.Type)
	}
	return nil
}

func snapshot(ev replayEvent) (book.Snapshot, error) {
	var inst book.Instrument
	switch ev.Instrument {
	case "future":
		inst = book.Future
	case "etf":
		inst = book.ETF
	default:
		return book.Snapshot{}, fmt.Errorf("unknown instrument %q", ev.Instrument)
	}
	snap := book.Snapshot{Instrument: inst, Seq: ev.Seq}
	copy(snap.BidPrices[:], ev.BidPrices)
	copy(snap.BidVolumes[:], ev.BidVolumes)
	copy(snap.AskPrices[:], ev.AskPrices)
	copy(snap.AskVolumes[:], ev.AskVolumes)
	return snap, nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
