// Package app assembles the process: config, journal, venue transport,
// engine, metrics endpoint, timescale writer, and operator alerts.
package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"etf-mm-bot/internal/alerts"
	"etf-mm-bot/internal/config"
	"etf-mm-bot/internal/engine"
	"etf-mm-bot/internal/metrics"
	"etf-mm-bot/internal/ratelimit"
	"etf-mm-bot/internal/state"
	"etf-mm-bot/internal/state/sqlite"
	"etf-mm-bot/internal/timescale"
	"etf-mm-bot/internal/venue"

	"go.uber.org/zap"
)

const journalRecap = 5

type App struct {
	cfg     *config.Config
	log     *zap.Logger
	journal state.Journal
	venue   *venue.Client
	engine  *engine.Engine
	prom    *metrics.Prometheus
	writer  *timescale.Writer
	alerts  *alerts.Telegram
}

func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.State.JournalPath), 0o755); err != nil {
		return nil, err
	}
	journal, err := sqlite.New(cfg.State.JournalPath)
	if err != nil {
		return nil, err
	}

	venueClient, err := venue.NewClient(cfg.Venue, log)
	if err != nil {
		_ = journal.Close()
		return nil, err
	}

	m := metrics.NewNoop()
	var prom *metrics.Prometheus
	if cfg.Metrics.Enabled {
		prom = metrics.NewPrometheus()
		m = prom.Metrics
	}

	writer, err := timescale.New(cfg.Timescale, log)
	if err != nil {
		_ = journal.Close()
		return nil, err
	}

	alertsClient := alerts.NewTelegram(cfg.Telegram, log)

	limiter := ratelimit.New(ratelimit.DefaultLimit, ratelimit.DefaultWindow)
	eng := engine.New(engine.ParamsFromConfig(cfg.Engine), venueClient, limiter, log, m)
	eng.SetRecorder(&recorder{
		journal: journal,
		writer:  writer,
		alerts:  alertsClient,
		log:     log,
	})

	return &App{
		cfg:     cfg,
		log:     log,
		journal: journal,
		venue:   venueClient,
		engine:  eng,
		prom:    prom,
		writer:  writer,
		alerts:  alertsClient,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	defer a.journal.Close()
	defer a.writer.Close()

	a.recapJournal(ctx)

	if a.prom != nil {
		a.serveMetrics(ctx)
	}
	a.writer.Start(ctx)

	handler := &feedHandler{engine: a.engine, writer: a.writer, alerts: a.alerts}
	return a.venue.Run(ctx, handler)
}

// recapJournal logs the tail of the event journal so the operator sees
// what the previous session left behind.
func (a *App) recapJournal(ctx context.Context) {
	entries, err := a.journal.Recent(ctx, journalRecap)
	if err != nil {
		a.log.Warn("journal recap failed", zap.Error(err))
		return
	}
	for _, entry := range entries {
		a.log.Info("journal recap",
			zap.Time("time", entry.Time),
			zap.String("kind", entry.Kind),
			zap.String("payload", entry.Payload))
	}
}

func (a *App) serveMetrics(ctx context.Context) {
	mux := http.NewServeMux()
	mux.Handle(a.cfg.Metrics.Path, a.prom.Handler())
	server := &http.Server{Addr: a.cfg.Metrics.Address, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	a.log.Info("metrics listening",
		zap.String("address", a.cfg.Metrics.Address),
		zap.String("path", a.cfg.Metrics.Path))
}
