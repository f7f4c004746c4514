package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"go.temporal.io/sdk/client"
	sdklog "go.temporal.io/sdk/log"

	"github.com/locdb/locdb/internal/config"
	"github.com/locdb/locdb/internal/crossref"
	"github.com/locdb/locdb/internal/curator"
	"github.com/locdb/locdb/internal/entries"
	"github.com/locdb/locdb/internal/intake"
	"github.com/locdb/locdb/internal/jobs"
	"github.com/locdb/locdb/internal/metrics"
	"github.com/locdb/locdb/internal/ranker"
	"github.com/locdb/locdb/internal/resource"
	"github.com/locdb/locdb/internal/solr"
	"github.com/locdb/locdb/internal/source"
	"github.com/locdb/locdb/internal/sru"
	"github.com/locdb/locdb/internal/storage"
)

// app holds the services a command needs. Build it with newApp and
// release it with Close.
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	metrics *metrics.Metrics

	store      storage.Store
	closeStore func()

	crossref *crossref.Client
	swb      *sru.Client
	adapters []source.Adapter

	ranker   *ranker.Ranker
	curator  *curator.Curator
	entries  *entries.Service
	intake   *intake.Service
	temporal client.Client
}

// mustLoadConfig loads the configuration or exits with ExitConfigError.
func mustLoadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		exitWithError(ExitConfigError, "%v\n%s", err, config.HelpfulConfigMessage())
	}
	return cfg
}

// mustNewApp wires the services from the loaded configuration.
func mustNewApp(ctx context.Context, withScheduler bool) *app {
	a, err := newApp(ctx, mustLoadConfig(), os.Stderr, withScheduler)
	if err != nil {
		exitOnError(err, "starting locdb")
	}
	return a
}

// newApp wires the services. When withScheduler is set and Temporal is
// enabled, saved resources get background jobs; otherwise they do not.
func newApp(ctx context.Context, cfg *config.Config, logOut io.Writer, withScheduler bool) (*app, error) {
	a := &app{
		cfg:     cfg,
		log:     newLogger(cfg.Log, logOut),
		metrics: metrics.New(),
	}

	if err := a.openStore(ctx); err != nil {
		return nil, err
	}

	adapters, err := a.buildAdapters()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.adapters = adapters

	a.ranker = ranker.New(a.adapters,
		ranker.WithStore(a.store),
		ranker.WithTimeout(cfg.Suggestions.Timeout),
		ranker.WithLogger(a.log),
		ranker.WithMetrics(a.metrics))
	a.curator = curator.New(a.store, curator.WithLogger(a.log), curator.WithMetrics(a.metrics))
	a.entries = entries.New(a.store, a.log)

	var scheduler jobs.Scheduler = jobs.Noop{Logger: a.log}
	if withScheduler && cfg.Temporal.Enabled {
		if err := a.dialTemporal(); err != nil {
			a.Close()
			return nil, err
		}
		scheduler = jobs.NewTemporalScheduler(a.temporal, cfg.Temporal.TaskQueue, a.log)
	}

	opts := []intake.Option{intake.WithScheduler(scheduler), intake.WithLogger(a.log)}
	if a.crossref != nil {
		opts = append(opts, intake.WithCrossref(a.crossref))
	}
	if a.swb != nil {
		opts = append(opts, intake.WithCatalogue(a.swb))
	}
	a.intake = intake.New(a.store, a.curator, opts...)
	return a, nil
}

func (a *app) openStore(ctx context.Context) error {
	switch a.cfg.Store.Driver {
	case config.DriverPostgres:
		pg, err := storage.OpenPostgres(ctx, a.cfg.Store.DSN)
		if err != nil {
			return fmt.Errorf("opening postgres: %w", err)
		}
		a.store, a.closeStore = pg, pg.Close
	default:
		if err := os.MkdirAll(filepath.Dir(a.cfg.Store.Path), 0755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
		db, err := storage.OpenSQLite(a.cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("opening %s: %w", a.cfg.Store.Path, err)
		}
		a.store = db
		a.closeStore = func() {
			if err := db.Close(); err != nil {
				a.log.Warn("closing database", "error", err)
			}
		}
	}
	a.log.Debug("store opened", slog.String("driver", a.cfg.Store.Driver))
	return nil
}

// buildAdapters creates a client for every catalogue with a base URL.
func (a *app) buildAdapters() ([]source.Adapter, error) {
	var out []source.Adapter

	if c := a.cfg.Crossref; c.BaseURL != "" {
		a.crossref = crossref.NewClient(
			crossref.WithBaseURL(c.BaseURL),
			crossref.WithMailto(c.Mailto),
			crossref.WithRows(c.Rows),
			crossref.WithRateLimit(c.RateLimit),
			crossref.WithLogger(a.log))
		out = append(out, a.crossref)
	}
	if c := a.cfg.SWB; c.BaseURL != "" {
		a.swb = sru.NewClient(
			sru.WithBaseURL(c.BaseURL),
			sru.WithRows(c.Rows),
			sru.WithRateLimit(c.RateLimit))
		out = append(out, a.swb)
	}
	for _, s := range []struct {
		src resource.Source
		cfg config.AdapterConfig
	}{
		{resource.SourceGVI, a.cfg.GVI},
		{resource.SourceK10plus, a.cfg.K10plus},
	} {
		if s.cfg.BaseURL == "" {
			continue
		}
		c, err := solr.NewClient(s.src, s.cfg.BaseURL, solr.WithRows(s.cfg.Rows), solr.WithRateLimit(s.cfg.RateLimit))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", config.ErrInvalid, strings.ToLower(string(s.src)), err)
		}
		out = append(out, c)
	}

	if len(out) == 0 {
		a.log.Warn("no catalogue configured; external suggestions will fail")
	}
	return out, nil
}

func (a *app) dialTemporal() error {
	c, err := client.Dial(client.Options{
		HostPort:  a.cfg.Temporal.Address,
		Namespace: a.cfg.Temporal.Namespace,
		Logger:    sdklog.NewStructuredLogger(a.log),
	})
	if err != nil {
		return fmt.Errorf("connecting to temporal at %s: %w", a.cfg.Temporal.Address, err)
	}
	a.temporal = c
	return nil
}

// activities returns the background job activities bound to this app.
func (a *app) activities() *jobs.Activities {
	var lookup jobs.DOILookup
	if a.crossref != nil {
		lookup = a.crossref
	}
	return jobs.NewActivities(a.store, a.ranker, lookup, a.curator, a.cfg.Suggestions.K, a.log)
}

// cachedSuggestions returns the precalculated suggestions of an entry.
func (a *app) cachedSuggestions(ctx context.Context, entryID string) ([]resource.Scored, error) {
	cache, ok := a.store.(storage.SuggestionCache)
	if !ok {
		return nil, fmt.Errorf("the %s store has no suggestion cache", a.cfg.Store.Driver)
	}
	out, err := cache.LoadSuggestions(ctx, entryID)
	if out == nil {
		out = []resource.Scored{}
	}
	return out, err
}

// Close releases the store and the Temporal connection.
func (a *app) Close() {
	if a.temporal != nil {
		a.temporal.Close()
	}
	if a.closeStore != nil {
		a.closeStore()
	}
}

// newLogger builds the process logger from the log configuration.
func newLogger(lc config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch lc.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if lc.Format == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}
