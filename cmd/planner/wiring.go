package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"travelmap/internal/config"
	"travelmap/internal/db"
	"travelmap/internal/metrics"
	"travelmap/internal/pipeline"
	"travelmap/internal/planner"
	"travelmap/internal/publisher"
	"travelmap/internal/route"
)

// openStore connects, pings and migrates the trip store.
func openStore(ctx context.Context, dsn string) (*sql.DB, *db.Store, error) {
	sqlDB, err := db.Open(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("db open: %w", err)
	}
	if err := db.Ping(ctx, sqlDB); err != nil {
		sqlDB.Close()
		return nil, nil, fmt.Errorf("db ping: %w", err)
	}
	store := db.NewStore(sqlDB)
	if err := store.Migrate(ctx); err != nil {
		sqlDB.Close()
		return nil, nil, err
	}
	return sqlDB, store, nil
}

// newRunner builds a pipeline runner. offline disables route lookups.
func newRunner(cfg *config.Config, offline bool, mcol *metrics.Collector) *pipeline.Runner {
	var routes pipeline.RouteLookup
	if !offline {
		routes = route.NewClient(cfg.RouteAPIURL, cfg.RouteTimeout)
	}
	var obs pipeline.Observer
	if mcol != nil {
		obs = mcol
	}
	return pipeline.NewRunner(routes, pipeline.Options{Priority: cfg.Priority}, obs)
}

func newManager(store *db.Store, runner *pipeline.Runner, pub *publisher.NATSPublisher, cfg *config.Config, mcol *metrics.Collector) *planner.Manager {
	var tp planner.TimelinePublisher
	if pub != nil {
		tp = pub
	}
	return planner.NewManager(store, runner, tp, cfg.Level, cfg.RefreshInterval, mcol)
}

// wrapPublisherMetrics adapts our Collector to the PublisherMetrics interface.
func wrapPublisherMetrics(c *metrics.Collector) publisher.PublisherMetrics {
	if c == nil {
		return nil
	}
	return &pubMetrics{c: c}
}

type pubMetrics struct{ c *metrics.Collector }

func (p *pubMetrics) NATSPublishedInc()              { p.c.NATSPublished.Inc() }
func (p *pubMetrics) NATSPublishErrInc()             { p.c.NATSPublishErrs.Inc() }
func (p *pubMetrics) PublishObserve(d time.Duration) { p.c.PublishDuration.Observe(d.Seconds()) }
func (p *pubMetrics) NATSSetConnected(b bool) {
	if b {
		p.c.NATSConnected.Set(1)
	} else {
		p.c.NATSConnected.Set(0)
	}
}
