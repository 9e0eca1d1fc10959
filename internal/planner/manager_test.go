package planner

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelmap/internal/db"
	"travelmap/internal/itinerary"
	mmetrics "travelmap/internal/metrics"
	"travelmap/internal/pipeline"
	"travelmap/internal/publisher"
)

type fakeRoutes struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeRoutes) RouteInfo(_ context.Context, origin, destination itinerary.LatLng) (*itinerary.RouteInfo, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return &itinerary.RouteInfo{
		Geometry:    [][2]float64{{origin.Lon, origin.Lat}, {destination.Lon, destination.Lat}},
		DistanceMi:  20,
		DurationMin: 30,
	}, nil
}

func (f *fakeRoutes) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []publisher.TimelineMessage
	err  error
}

func (f *fakePublisher) PublishTimeline(msg publisher.TimelineMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return f.err
}

func (f *fakePublisher) published() []publisher.TimelineMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]publisher.TimelineMessage(nil), f.msgs...)
}

type fakeEdits struct {
	fn func(publisher.EditMessage)
}

func (f *fakeEdits) SubscribeEdits(fn func(publisher.EditMessage)) (*nats.Subscription, error) {
	f.fn = fn
	return nil, nil
}

type fixture struct {
	store   *db.Store
	routes  *fakeRoutes
	pub     *fakePublisher
	metrics *mmetrics.Collector
	mgr     *Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn, err := db.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	store := db.NewStore(conn)
	require.NoError(t, store.Migrate(context.Background()))

	f := &fixture{
		store:   store,
		routes:  &fakeRoutes{},
		pub:     &fakePublisher{},
		metrics: mmetrics.NewCollector(0),
	}
	runner := pipeline.NewRunner(f.routes, pipeline.Options{}, f.metrics)
	f.mgr = NewManager(store, runner, f.pub, pipeline.LevelTiming, 0, f.metrics)
	return f
}

func coastTrip(id string) *itinerary.Trip {
	return &itinerary.Trip{
		ID:   id,
		Name: "Coast run",
		Segments: itinerary.Sequence{
			{
				ID:       "start",
				Type:     itinerary.TypeTripStart,
				Location: &itinerary.LatLng{Lat: 37.77, Lon: -122.42},
				End:      itinerary.Endpoint{UTC: "2024-01-01T09:00", Lock: itinerary.LockHard},
			},
			{
				ID:       "a",
				Type:     itinerary.TypeStop,
				Name:     "Santa Cruz",
				Location: &itinerary.LatLng{Lat: 36.97, Lon: -122.03},
				Duration: itinerary.Minutes(120),
			},
			{ID: "end", Type: itinerary.TypeTripEnd, Location: &itinerary.LatLng{Lat: 36.6, Lon: -121.9}},
		},
	}
}

func TestRunPersistsAndPublishes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.mgr.Put(ctx, coastTrip("coast")))

	res, err := f.mgr.Run(ctx, "coast", "")
	require.NoError(t, err)
	assert.Equal(t, pipeline.LevelTiming, res.Level)
	require.Len(t, res.Segments, 5)

	stored, err := f.store.LoadTrip(ctx, "coast")
	require.NoError(t, err)
	assert.Equal(t, res.Segments, stored.Segments)
	a, ok := stored.Segments.Find("a")
	require.True(t, ok)
	assert.Equal(t, "2024-01-01T09:30:00Z", a.Start.UTC)
	assert.Equal(t, "2024-01-01T11:30:00Z", a.End.UTC)

	msgs := f.pub.published()
	require.Len(t, msgs, 1)
	assert.Equal(t, "coast", msgs[0].TripID)
	assert.Equal(t, res.Segments, msgs[0].Segments)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PipelineRuns.WithLabelValues("timing")))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.RouteLookups.WithLabelValues("ok")))
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.ActiveRuns))
}

func TestRunUnknownTrip(t *testing.T) {
	f := newFixture(t)

	_, err := f.mgr.Run(context.Background(), "nope", pipeline.LevelTiming)
	assert.ErrorIs(t, err, db.ErrNotFound)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RunErrors.WithLabelValues("load")))
	assert.Empty(t, f.pub.published())
}

func TestRunKeepsResultWhenPublishFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.pub.err = errors.New("nats: connection closed")
	require.NoError(t, f.mgr.Put(ctx, coastTrip("coast")))

	_, err := f.mgr.Run(ctx, "coast", pipeline.LevelTiming)
	require.NoError(t, err)

	stored, err := f.store.LoadTrip(ctx, "coast")
	require.NoError(t, err)
	assert.Len(t, stored.Segments, 5)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RunErrors.WithLabelValues("publish")))
}

func TestConcurrentRunsOfOneTripAreSerialized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.mgr.Put(ctx, coastTrip("coast")))

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.mgr.Run(ctx, "coast", pipeline.LevelTiming)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	// each run sees the routes saved by the one before it
	assert.Equal(t, 2, f.routes.count())
	msgs := f.pub.published()
	require.Len(t, msgs, 8)
	for _, m := range msgs[1:] {
		assert.Equal(t, msgs[0].Segments, m.Segments)
	}
}

func TestPutAddsAnchors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	trip := &itinerary.Trip{ID: "bare", Segments: itinerary.Sequence{{ID: "a", Type: itinerary.TypeStop}}}
	require.NoError(t, f.mgr.Put(ctx, trip))

	stored, err := f.mgr.Get(ctx, "bare")
	require.NoError(t, err)
	require.Len(t, stored.Segments, 3)
	assert.Equal(t, itinerary.TypeTripStart, stored.Segments[0].Type)
	assert.Equal(t, itinerary.TypeTripEnd, stored.Segments[2].Type)
}

func TestUpdateDoesNotSaveOnError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.mgr.Put(ctx, coastTrip("coast")))

	_, err := f.mgr.Update(ctx, "coast", func(t *itinerary.Trip) error {
		t.Name = "changed"
		return t.Enqueue("start")
	})
	assert.ErrorIs(t, err, itinerary.ErrNotMovable)

	stored, err := f.mgr.Get(ctx, "coast")
	require.NoError(t, err)
	assert.Equal(t, "Coast run", stored.Name)

	updated, err := f.mgr.Update(ctx, "coast", func(t *itinerary.Trip) error { return t.Enqueue("a") })
	require.NoError(t, err)
	assert.Len(t, updated.Queue, 1)
}

func TestReportUsesStoredTimeline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	trip := coastTrip("coast")
	trip.Segments[2].Start = itinerary.Endpoint{UTC: "2024-01-01T12:30", Lock: itinerary.LockHard}
	require.NoError(t, f.mgr.Put(ctx, trip))
	_, err := f.mgr.Run(ctx, "coast", pipeline.LevelTiming)
	require.NoError(t, err)

	rep, err := f.mgr.Report(ctx, "coast")
	require.NoError(t, err)
	require.Len(t, rep.Slack, 1)
	assert.Equal(t, 30, rep.Slack[0].Minutes)
}

func TestListenerRunsEditedTrips(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.mgr.Put(ctx, coastTrip("coast")))

	src := &fakeEdits{}
	require.NoError(t, f.mgr.StartListener(ctx, src))
	require.NotNil(t, src.fn)

	src.fn(publisher.EditMessage{TripID: "coast", Level: "routing"})
	src.fn(publisher.EditMessage{TripID: "coast", Level: "bogus"})
	f.mgr.Stop()

	msgs := f.pub.published()
	require.Len(t, msgs, 1)
	assert.Equal(t, pipeline.LevelRouting, msgs[0].Level)
}

func TestRefreshAllRunsEveryTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.mgr.Put(ctx, coastTrip("one")))
	require.NoError(t, f.mgr.Put(ctx, coastTrip("two")))

	require.NoError(t, f.mgr.RefreshAll(ctx))

	ids := map[string]bool{}
	for _, m := range f.pub.published() {
		ids[m.TripID] = true
	}
	assert.Equal(t, map[string]bool{"one": true, "two": true}, ids)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.mgr.Put(ctx, coastTrip("coast")))

	require.NoError(t, f.mgr.Delete(ctx, "coast"))
	_, err := f.mgr.Get(ctx, "coast")
	assert.ErrorIs(t, err, db.ErrNotFound)
}
