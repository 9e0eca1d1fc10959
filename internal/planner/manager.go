package planner

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"travelmap/internal/db"
	"travelmap/internal/itinerary"
	mmetrics "travelmap/internal/metrics"
	"travelmap/internal/pipeline"
	"travelmap/internal/publisher"
)

// TimelinePublisher receives the timeline of every persisted run.
type TimelinePublisher interface {
	PublishTimeline(msg publisher.TimelineMessage) error
}

// EditSource delivers requests to re-run a trip.
type EditSource interface {
	SubscribeEdits(fn func(publisher.EditMessage)) (*nats.Subscription, error)
}

type Manager struct {
	store           *db.Store
	runner          *pipeline.Runner
	pub             TimelinePublisher
	level           pipeline.Level
	refreshInterval time.Duration
	metrics         *mmetrics.Collector

	mu    sync.Mutex
	trips map[string]*sync.Mutex // tripID -> run lock
	wg    sync.WaitGroup

	sub           *nats.Subscription
	refreshCancel context.CancelFunc
	refreshWG     sync.WaitGroup
}

// NewManager wires the store and runner together. pub and metrics may be nil.
func NewManager(store *db.Store, runner *pipeline.Runner, pub TimelinePublisher, level pipeline.Level, refreshInterval time.Duration, metrics *mmetrics.Collector) *Manager {
	if level == "" {
		level = pipeline.LevelTiming
	}
	return &Manager{
		store:           store,
		runner:          runner,
		pub:             pub,
		level:           level,
		refreshInterval: refreshInterval,
		metrics:         metrics,
		trips:           make(map[string]*sync.Mutex),
	}
}

func (m *Manager) lockTrip(id string) func() {
	m.mu.Lock()
	l, ok := m.trips[id]
	if !ok {
		l = &sync.Mutex{}
		m.trips[id] = l
	}
	m.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// Run loads a trip, runs the pipeline at level (the configured default when
// empty), persists the result and publishes it. Runs of the same trip are
// serialized; a run starts only after the previous one has been saved.
func (m *Manager) Run(ctx context.Context, tripID string, level pipeline.Level) (pipeline.Result, error) {
	if level == "" {
		level = m.level
	}
	unlock := m.lockTrip(tripID)
	defer unlock()

	if m.metrics != nil {
		m.metrics.ActiveRuns.Inc()
		defer m.metrics.ActiveRuns.Dec()
	}
	start := time.Now()

	t, err := m.store.LoadTrip(ctx, tripID)
	if err != nil {
		m.runError("load")
		return pipeline.Result{}, err
	}
	if !itinerary.HasAnchors(t.Segments) {
		log.Printf("trip %s: adding missing anchors", tripID)
	}
	res := m.runner.Run(ctx, itinerary.EnsureAnchors(t.Segments), level)
	t.Segments = res.Segments
	if err := m.store.SaveTrip(ctx, t); err != nil {
		m.runError("save")
		return pipeline.Result{}, err
	}

	if m.metrics != nil {
		m.metrics.PipelineRuns.WithLabelValues(string(level)).Inc()
		m.metrics.SlackGaps.Add(float64(len(res.Report.Slack)))
		m.metrics.Overlaps.Add(float64(len(res.Report.Overlaps)))
		for _, g := range res.Report.Overlaps {
			m.metrics.OverlapMins.Observe(float64(g.Minutes))
		}
		m.metrics.RunDuration.Observe(time.Since(start).Seconds())
	}

	if m.pub != nil {
		msg := publisher.TimelineMessage{
			TripID:      t.ID,
			Level:       level,
			Segments:    res.Segments,
			Report:      res.Report,
			GeneratedAt: time.Now().UTC(),
		}
		if err := m.pub.PublishTimeline(msg); err != nil {
			// the run is persisted; a lost timeline is picked up by the next run
			m.runError("publish")
			log.Printf("publish timeline for %s: %v", tripID, err)
		}
	}
	return res, nil
}

func (m *Manager) runError(phase string) {
	if m.metrics != nil {
		m.metrics.RunErrors.WithLabelValues(phase).Inc()
	}
}

// Update applies fn to the stored trip under the trip's run lock and saves
// the result. Nothing is saved when fn fails.
func (m *Manager) Update(ctx context.Context, tripID string, fn func(*itinerary.Trip) error) (*itinerary.Trip, error) {
	unlock := m.lockTrip(tripID)
	defer unlock()

	t, err := m.store.LoadTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if err := fn(t); err != nil {
		return nil, err
	}
	if err := m.store.SaveTrip(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Put replaces a trip wholesale. Missing anchors are added.
func (m *Manager) Put(ctx context.Context, t *itinerary.Trip) error {
	unlock := m.lockTrip(t.ID)
	defer unlock()

	t.Segments = itinerary.EnsureAnchors(itinerary.Normalize(t.Segments))
	t.Queue = itinerary.Normalize(t.Queue)
	return m.store.SaveTrip(ctx, t)
}

func (m *Manager) Get(ctx context.Context, tripID string) (*itinerary.Trip, error) {
	return m.store.LoadTrip(ctx, tripID)
}

func (m *Manager) List(ctx context.Context) ([]db.TripSummary, error) {
	return m.store.ListTrips(ctx)
}

func (m *Manager) Delete(ctx context.Context, tripID string) error {
	unlock := m.lockTrip(tripID)
	defer unlock()
	return m.store.DeleteTrip(ctx, tripID)
}

// Report measures slack and overlap on the stored timeline without running
// the pipeline.
func (m *Manager) Report(ctx context.Context, tripID string) (pipeline.Report, error) {
	t, err := m.store.LoadTrip(ctx, tripID)
	if err != nil {
		return pipeline.Report{}, err
	}
	return pipeline.ComputeSlackAndOverlap(t.Segments), nil
}

// HandleEdit runs the pipeline for an edit notification in the background.
func (m *Manager) HandleEdit(ctx context.Context, msg publisher.EditMessage) {
	level, err := pipeline.ParseLevel(msg.Level)
	if err != nil {
		log.Printf("ignoring edit for %s: %v", msg.TripID, err)
		return
	}
	if msg.Level == "" {
		level = m.level
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if _, err := m.Run(ctx, msg.TripID, level); err != nil {
			log.Printf("run trip %s after edit: %v", msg.TripID, err)
		}
	}()
}

// StartListener subscribes to edit notifications until Stop.
func (m *Manager) StartListener(ctx context.Context, src EditSource) error {
	sub, err := src.SubscribeEdits(func(msg publisher.EditMessage) {
		m.HandleEdit(ctx, msg)
	})
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.sub = sub
	m.mu.Unlock()
	log.Printf("listening for trip edits")
	return nil
}

// StartRefresher launches a background loop that periodically re-runs every
// stored trip, retrying route lookups that failed earlier.
func (m *Manager) StartRefresher(parent context.Context) {
	if m.refreshInterval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	m.refreshCancel = cancel
	m.refreshWG.Add(1)
	go func() {
		defer m.refreshWG.Done()
		ticker := time.NewTicker(m.refreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := m.RefreshAll(ctx); err != nil {
					log.Printf("refresh trips error: %v", err)
				}
			}
		}
	}()
}

// RefreshAll re-runs every stored trip at the default level. A failing trip
// does not stop the others.
func (m *Manager) RefreshAll(ctx context.Context) error {
	trips, err := m.store.ListTrips(ctx)
	if err != nil {
		return err
	}
	for _, t := range trips {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := m.Run(ctx, t.ID, m.level); err != nil {
			log.Printf("refresh trip %s: %v", t.ID, err)
		}
	}
	return nil
}

// Stop ends the listener and refresher and waits for in-flight runs.
func (m *Manager) Stop() {
	m.mu.Lock()
	sub := m.sub
	m.sub = nil
	m.mu.Unlock()
	if sub != nil {
		if err := sub.Unsubscribe(); err != nil {
			log.Printf("unsubscribe edits: %v", err)
		}
	}
	if m.refreshCancel != nil {
		m.refreshCancel()
	}
	m.refreshWG.Wait()
	m.wg.Wait()
}
