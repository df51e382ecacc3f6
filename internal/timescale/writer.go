// Package timescale persists the market data and execution stream for
// offline analysis. Writes are queued on bounded channels and flushed
// by a background goroutine; a full queue drops the record rather than
// stalling the trading path.
package timescale

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"etf-mm-bot/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

const writeTimeout = 3 * time.Second

type BookTop struct {
	Time       time.Time
	Instrument string
	Seq        uint64
	Bid        int64
	BidVolume  int64
	Ask        int64
	AskVolume  int64
}

type Fill struct {
	Time     time.Time
	OrderID  uint64
	Side     string
	Price    int64
	Volume   int64
	Position int64
	Delta    int64
}

type Writer struct {
	db        *sql.DB
	log       *zap.Logger
	schema    string
	tops      chan BookTop
	fills     chan Fill
	started   atomic.Bool
	dropTops  atomic.Uint64
	dropFills atomic.Uint64
}

// New returns nil without error when the writer is disabled; all
// methods are safe on a nil receiver.
func New(cfg config.TimescaleConfig, log *zap.Logger) (*Writer, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("timescale dsn is required")
	}
	schema := strings.TrimSpace(cfg.Schema)
	if schema == "" {
		schema = "public"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	writer := &Writer{
		db:     db,
		log:    log,
		schema: schema,
		tops:   make(chan BookTop, queueSize),
		fills:  make(chan Fill, queueSize),
	}
	if err := writer.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return writer, nil
}

func (w *Writer) Start(ctx context.Context) {
	if w == nil {
		return
	}
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	go w.run(ctx)
}

func (w *Writer) Close() error {
	if w == nil || w.db == nil {
		return nil
	}
	return w.db.Close()
}

func (w *Writer) EnqueueBookTop(top BookTop) {
	if w == nil {
		return
	}
	select {
	case w.tops <- top:
		return
	default:
		if w.dropTops.Add(1) == 1 && w.log != nil {
			w.log.Warn("timescale book top queue full")
		}
	}
}

func (w *Writer) EnqueueFill(fill Fill) {
	if w == nil {
		return
	}
	select {
	case w.fills <- fill:
		return
	default:
		if w.dropFills.Add(1) == 1 && w.log != nil {
			w.log.Warn("timescale fill queue full")
		}
	}
}

func (w *Writer) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case top := <-w.tops:
			w.writeBookTop(ctx, top)
		case fill := <-w.fills:
			w.writeFill(ctx, fill)
		}
	}
}

func (w *Writer) ensureSchema(ctx context.Context) error {
	if w.db == nil {
		return errors.New("timescale db not initialized")
	}
	if w.schema != "public" {
		if err := w.exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", w.schema)); err != nil {
			return err
		}
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		instrument TEXT NOT NULL,
		seq BIGINT NOT NULL,
		bid BIGINT NOT NULL,
		bid_volume BIGINT NOT NULL,
		ask BIGINT NOT NULL,
		ask_volume BIGINT NOT NULL
	)`, w.table("book_tops"))); err != nil {
		return err
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		order_id BIGINT NOT NULL,
		side TEXT NOT NULL,
		price BIGINT NOT NULL,
		volume BIGINT NOT NULL,
		position BIGINT NOT NULL,
		delta BIGINT NOT NULL
	)`, w.table("fills"))); err != nil {
		return err
	}
	if err := w.exec(ctx, "CREATE EXTENSION IF NOT EXISTS timescaledb"); err != nil {
		if w.log != nil {
			w.log.Warn("timescale extension ensure failed", zap.Error(err))
		}
		return nil
	}
	if err := w.exec(ctx, fmt.Sprintf("SELECT create_hypertable('%s', 'ts', if_not_exists => TRUE)", w.table("book_tops"))); err != nil && w.log != nil {
		w.log.Warn("timescale book_tops hypertable create failed", zap.Error(err))
	}
	if err := w.exec(ctx, fmt.Sprintf("SELECT create_hypertable('%s', 'ts', if_not_exists => TRUE)", w.table("fills"))); err != nil && w.log != nil {
		w.log.Warn("timescale fills hypertable create failed", zap.Error(err))
	}
	return nil
}

func (w *Writer) writeBookTop(ctx context.Context, top BookTop) {
	if w.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (
		ts, instrument, seq, bid, bid_volume, ask, ask_volume
	) VALUES (
		$1,$2,$3,$4,$5,$6,$7
	)`, w.table("book_tops"))
	if _, err := w.db.ExecContext(ctx, query,
		top.Time,
		top.Instrument,
		int64(top.Seq),
		top.Bid,
		top.BidVolume,
		top.Ask,
		top.AskVolume,
	); err != nil && w.log != nil {
		w.log.Warn("timescale book top insert failed", zap.Error(err))
	}
}

func (w *Writer) writeFill(ctx context.Context, fill Fill) {
	if w.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (
		ts, order_id, side, price, volume, position, delta
	) VALUES (
		$1,$2,$3,$4,$5,$6,$7
	)`, w.table("fills"))
	if _, err := w.db.ExecContext(ctx, query,
		fill.Time,
		int64(fill.OrderID),
		fill.Side,
		fill.Price,
		fill.Volume,
		fill.Position,
		fill.Delta,
	); err != nil && w.log != nil {
		w.log.Warn("timescale fill insert failed", zap.Error(err))
	}
}

func (w *Writer) exec(ctx context.Context, query string) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_, err := w.db.ExecContext(ctx, query)
	return err
}

func (w *Writer) table(name string) string {
	return w.schema + "." + name
}
