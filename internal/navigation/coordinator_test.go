package navigation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"ubicate.osuc.dev/internal/campus"
	"ubicate.osuc.dev/internal/directions"
	"ubicate.osuc.dev/internal/models"
	"ubicate.osuc.dev/internal/places"
	"ubicate.osuc.dev/internal/position"
)

var (
	sjOrigin      = models.Coordinates{Lng: -70.6150, Lat: -33.4980}
	sjDestination = models.Coordinates{Lng: -70.6120, Lat: -33.4990}
	lcPoint       = models.Coordinates{Lng: -70.6170, Lat: -33.4190}
	ccPoint       = models.Coordinates{Lng: -70.6400, Lat: -33.4410}
	offCampus     = models.Coordinates{Lng: -70.7000, Lat: -33.5500}
)

func pointPlace(id string, c models.Coordinates) places.Place {
	return places.Place{
		Identifier: id,
		Name:       "Place " + id,
		Geometry:   json.RawMessage(fmt.Sprintf(`{"type":"Point","coordinates":[%v,%v]}`, c.Lng, c.Lat)),
	}
}

// fakeTracker stands in for a TrackingController.
type fakeTracker struct {
	mu        sync.Mutex
	tracking  bool
	position  *position.Position
	setCalls  []bool
	listeners map[int]func(position.View)
	next      int
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{listeners: make(map[int]func(position.View))}
}

func (f *fakeTracker) SetTracking(active bool) {
	f.mu.Lock()
	f.tracking = active
	f.setCalls = append(f.setCalls, active)
	f.mu.Unlock()
}

func (f *fakeTracker) IsTracking() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tracking
}

func (f *fakeTracker) Position() *position.Position {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.position
}

func (f *fakeTracker) OnUpdate(fn func(position.View)) func() {
	f.mu.Lock()
	id := f.next
	f.next++
	f.listeners[id] = fn
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		delete(f.listeners, id)
		f.mu.Unlock()
	}
}

func (f *fakeTracker) calls() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.setCalls...)
}

func (f *fakeTracker) fix(c models.Coordinates) {
	pos := &position.Position{Coordinates: c, AcquiredAt: time.Now()}
	f.mu.Lock()
	f.position = pos
	listeners := make([]func(position.View), 0, len(f.listeners))
	for _, fn := range f.listeners {
		listeners = append(listeners, fn)
	}
	tracking := f.tracking
	f.mu.Unlock()

	for _, fn := range listeners {
		fn(position.View{Position: pos, IsTracking: tracking})
	}
}

// fakeTimers captures AfterFunc calls so tests decide when a wait expires.
type fakeTimers struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	mu      sync.Mutex
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

func (t *fakeTimer) fire() {
	t.mu.Lock()
	stopped := t.stopped
	t.mu.Unlock()
	if !stopped {
		t.f()
	}
}

func (ft *fakeTimers) AfterFunc(d time.Duration, f func()) Stopper {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	t := &fakeTimer{d: d, f: f}
	ft.timers = append(ft.timers, t)
	return t
}

func (ft *fakeTimers) last(t *testing.T) *fakeTimer {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	require.NotEmpty(t, ft.timers)
	return ft.timers[len(ft.timers)-1]
}

// fakeFetcher counts calls and optionally blocks until released.
type fakeFetcher struct {
	mu      sync.Mutex
	calls   int
	err     error
	release chan struct{}
	// ctxErrs holds ctx.Err() as seen by each call when it returned.
	ctxErrs []error
}

func (f *fakeFetcher) FetchBestRoute(ctx context.Context, origin, destination models.Coordinates) (directions.Result, error) {
	f.mu.Lock()
	f.calls++
	release, err := f.release, f.err
	f.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
		}
	}
	f.mu.Lock()
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	f.mu.Unlock()

	if ctx.Err() != nil {
		return directions.Result{}, fmt.Errorf("%w: %v", directions.ErrRouteServiceUnavailable, ctx.Err())
	}
	if err != nil {
		return directions.Result{}, err
	}
	return directions.Result{
		Candidate:   directions.Candidate{DurationSeconds: 390, DistanceMeters: 520, Bias: directions.AvoidWalkwayBias},
		Origin:      origin,
		Destination: destination,
	}, nil
}

func (f *fakeFetcher) returned() []error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]error(nil), f.ctxErrs...)
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type harness struct {
	tracker *fakeTracker
	fetcher *fakeFetcher
	timers  *fakeTimers
	coord   *Coordinator

	mu     sync.Mutex
	states []State
}

func newHarness(t *testing.T) *harness {
	h := &harness{
		tracker: newFakeTracker(),
		fetcher: &fakeFetcher{},
		timers:  &fakeTimers{},
	}
	h.coord = NewCoordinator(h.tracker, h.fetcher, campus.DefaultCatalog(), Config{AfterFunc: h.timers.AfterFunc})
	h.coord.OnChange(func(s Status) {
		h.mu.Lock()
		h.states = append(h.states, s.State)
		h.mu.Unlock()
	})
	t.Cleanup(h.coord.Close)
	return h
}

func (h *harness) seen() []State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]State(nil), h.states...)
}

func (h *harness) waitFor(t *testing.T, state State) Status {
	t.Helper()
	require.Eventually(t, func() bool { return h.coord.Status().State == state }, time.Second, 5*time.Millisecond)
	return h.coord.Status()
}

func TestRequestWithCachedPositionSkipsWaiting(t *testing.T) {
	h := newHarness(t)
	h.tracker.position = &position.Position{Coordinates: sjOrigin, AcquiredAt: time.Now()}

	status := h.coord.Request(pointPlace("sj-1", sjDestination))
	assert.Equal(t, ComputingRoute, status.State)

	final := h.waitFor(t, Succeeded)
	require.NotNil(t, final.Route)
	assert.Equal(t, "6 min", final.Route.FormatDuration())
	assert.Equal(t, sjOrigin, *final.Origin)
	assert.Equal(t, sjDestination, *final.Destination)
	assert.Equal(t, 1, h.fetcher.callCount())
	assert.Equal(t, []State{ComputingRoute, Succeeded}, h.seen())
	assert.Empty(t, h.tracker.calls(), "tracking untouched when a position is cached")
}

func TestRequestWaitsForFirstFix(t *testing.T) {
	h := newHarness(t)

	status := h.coord.Request(pointPlace("sj-1", sjDestination))
	assert.Equal(t, AwaitingLocation, status.State)
	assert.Equal(t, []bool{true}, h.tracker.calls())
	assert.Equal(t, DefaultWaitTimeout, h.timers.last(t).d)

	h.tracker.fix(sjOrigin)
	h.waitFor(t, Succeeded)

	require.Eventually(t, func() bool { return !h.tracker.IsTracking() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []bool{true, false}, h.tracker.calls())

	// a late timer is a no-op
	h.timers.last(t).fire()
	assert.Equal(t, Succeeded, h.coord.Status().State)
}

func TestRequestLeavesForeignTrackingAlone(t *testing.T) {
	h := newHarness(t)
	h.tracker.tracking = true

	h.coord.Request(pointPlace("sj-1", sjDestination))
	h.tracker.fix(sjOrigin)
	h.waitFor(t, Succeeded)

	assert.Empty(t, h.tracker.calls())
	assert.True(t, h.tracker.IsTracking())
}

func TestLocationTimeout(t *testing.T) {
	h := newHarness(t)

	h.coord.Request(pointPlace("sj-1", sjDestination))
	h.timers.last(t).fire()

	status := h.coord.Status()
	assert.Equal(t, Failed, status.State)
	assert.ErrorIs(t, status.Err, ErrLocationAcquisitionTimeout)
	assert.Equal(t, "location_acquisition_timeout", status.ErrorKind)
	assert.NotEmpty(t, status.Reason)
	assert.Equal(t, []bool{true, false}, h.tracker.calls())
	assert.Zero(t, h.fetcher.callCount())

	// a fix after the timeout does not revive the attempt
	h.tracker.fix(sjOrigin)
	assert.Equal(t, Failed, h.coord.Status().State)
	assert.Zero(t, h.fetcher.callCount())
}

func TestTapWhileAwaitingCancels(t *testing.T) {
	h := newHarness(t)

	h.coord.Request(pointPlace("sj-1", sjDestination))
	timer := h.timers.last(t)

	status := h.coord.Request(pointPlace("sj-1", sjDestination))
	assert.Equal(t, Cancelled, status.State)
	assert.True(t, timer.stopped)
	assert.False(t, h.tracker.IsTracking())

	timer.f()
	assert.Equal(t, Cancelled, h.coord.Status().State, "stale timeout ignored")

	h.tracker.fix(sjOrigin)
	assert.Equal(t, Cancelled, h.coord.Status().State, "stale fix ignored")
	assert.Zero(t, h.fetcher.callCount())
}

func TestTapsWhileComputingAreIgnored(t *testing.T) {
	h := newHarness(t)
	h.fetcher.release = make(chan struct{})
	h.tracker.position = &position.Position{Coordinates: sjOrigin}

	h.coord.Request(pointPlace("sj-1", sjDestination))
	for range 2 {
		status := h.coord.Request(pointPlace("sj-1", sjDestination))
		assert.Equal(t, ComputingRoute, status.State)
	}

	close(h.fetcher.release)
	h.waitFor(t, Succeeded)
	assert.Equal(t, 1, h.fetcher.callCount())
}

func TestCancelWhileComputingDropsResult(t *testing.T) {
	h := newHarness(t)
	h.fetcher.release = make(chan struct{})
	h.tracker.position = &position.Position{Coordinates: sjOrigin}

	h.coord.Request(pointPlace("sj-1", sjDestination))
	require.Eventually(t, func() bool { return h.fetcher.callCount() == 1 }, time.Second, 5*time.Millisecond)

	status := h.coord.Cancel()
	assert.Equal(t, Cancelled, status.State)

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, h.fetcher.returned(), "cancel leaves the route request running")

	close(h.fetcher.release)
	require.Eventually(t, func() bool { return len(h.fetcher.returned()) == 1 }, time.Second, 5*time.Millisecond)
	assert.NoError(t, h.fetcher.returned()[0], "the request completed with a live context")

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, Cancelled, h.coord.Status().State)
	assert.Nil(t, h.coord.Status().Route)
}

func TestResetStopsRouteRequest(t *testing.T) {
	h := newHarness(t)
	h.fetcher.release = make(chan struct{})
	h.tracker.position = &position.Position{Coordinates: sjOrigin}

	h.coord.Request(pointPlace("sj-1", sjDestination))
	require.Eventually(t, func() bool { return h.fetcher.callCount() == 1 }, time.Second, 5*time.Millisecond)

	h.coord.Reset()
	require.Eventually(t, func() bool { return len(h.fetcher.returned()) == 1 }, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, h.fetcher.returned()[0], context.Canceled)
	assert.Equal(t, Idle, h.coord.Status().State)
}

func TestRequestValidation(t *testing.T) {
	tests := []struct {
		name        string
		place       places.Place
		origin      models.Coordinates
		wantErr     error
		wantFetches int
	}{
		{
			name:    "destination outside every campus",
			place:   pointPlace("far", offCampus),
			origin:  sjOrigin,
			wantErr: ErrDestinationOutOfBounds,
		},
		{
			name:    "campus without routing",
			place:   pointPlace("cc-1", ccPoint),
			origin:  ccPoint,
			wantErr: ErrRoutingUnavailable,
		},
		{
			name:    "origin outside campus",
			place:   pointPlace("sj-1", sjDestination),
			origin:  offCampus,
			wantErr: ErrOriginOutOfBounds,
		},
		{
			name:    "origin on another campus",
			place:   pointPlace("sj-1", sjDestination),
			origin:  lcPoint,
			wantErr: ErrCrossCampus,
		},
		{
			name: "line geometry",
			place: places.Place{
				Identifier: "path",
				Geometry:   json.RawMessage(`{"type":"LineString","coordinates":[[-70.615,-33.498],[-70.612,-33.499]]}`),
			},
			origin:  sjOrigin,
			wantErr: ErrUnroutablePlace,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.tracker.position = &position.Position{Coordinates: tt.origin}

			status := h.coord.Request(tt.place)
			assert.Equal(t, Failed, status.State)
			assert.ErrorIs(t, status.Err, tt.wantErr)
			assert.Equal(t, ErrorKind(tt.wantErr), status.ErrorKind)
			assert.Equal(t, tt.wantFetches, h.fetcher.callCount())
			assert.Empty(t, h.tracker.calls())
		})
	}
}

func TestRoutingUnavailableReasonNamesCampus(t *testing.T) {
	h := newHarness(t)
	place := pointPlace("cc-1", ccPoint)
	place.Campus = "CC"

	status := h.coord.Request(place)
	assert.Equal(t, "Routes on CC are not active.", status.Reason)
}

func TestFetchFailure(t *testing.T) {
	h := newHarness(t)
	h.fetcher.err = directions.ErrNoRouteFound
	h.tracker.position = &position.Position{Coordinates: sjOrigin}

	h.coord.Request(pointPlace("sj-1", sjDestination))
	status := h.waitFor(t, Failed)
	assert.Equal(t, "no_route_found", status.ErrorKind)
	assert.Equal(t, "We could not get the route.", status.Reason)
}

func TestTerminalStateRestarts(t *testing.T) {
	h := newHarness(t)

	first := h.coord.Request(pointPlace("sj-1", sjDestination))
	h.timers.last(t).fire()
	require.Equal(t, Failed, h.coord.Status().State)

	second := h.coord.Request(pointPlace("sj-1", sjDestination))
	assert.Equal(t, AwaitingLocation, second.State)
	assert.Greater(t, second.Attempt, first.Attempt)
	assert.Len(t, h.timers.timers, 2)

	h.tracker.fix(sjOrigin)
	h.waitFor(t, Succeeded)
}

func TestResetAndClose(t *testing.T) {
	h := newHarness(t)

	h.coord.Request(pointPlace("sj-1", sjDestination))
	status := h.coord.Reset()
	assert.Equal(t, Idle, status.State)
	assert.True(t, h.timers.last(t).stopped)
	assert.False(t, h.tracker.IsTracking())

	h.coord.Request(pointPlace("sj-1", sjDestination))
	h.coord.Close()
	assert.False(t, h.tracker.IsTracking())

	status = h.coord.Request(pointPlace("sj-1", sjDestination))
	assert.Equal(t, AwaitingLocation, status.State, "closed coordinator ignores requests")
	assert.Len(t, h.timers.timers, 2)
}

func TestListenerRemoval(t *testing.T) {
	h := newHarness(t)
	var count int
	remove := h.coord.OnChange(func(Status) { count++ })

	h.coord.Request(pointPlace("far", offCampus))
	remove()
	remove()
	h.coord.Request(pointPlace("far", offCampus))

	assert.Equal(t, 1, count)
}

func TestCoordinatorWithPositionService(t *testing.T) {
	web := position.NewWebSensor()
	service := position.NewService(web, position.NewOrientationHub(), position.Options{})
	t.Cleanup(service.Close)

	tracker := position.NewTrackingController(service, position.ControllerOptions{})
	fetcher := &fakeFetcher{}
	coord := NewCoordinator(tracker, fetcher, campus.DefaultCatalog(), Config{CloseTracker: true})
	t.Cleanup(coord.Close)

	status := coord.Request(pointPlace("sj-1", sjDestination))
	require.Equal(t, AwaitingLocation, status.State)
	assert.True(t, tracker.IsTracking())
	assert.True(t, service.Watching())

	require.True(t, web.Push(sjOrigin))

	require.Eventually(t, func() bool { return coord.Status().State == Succeeded }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return !service.Watching() }, time.Second, 5*time.Millisecond)
	assert.False(t, tracker.IsTracking())

	// the cached fix now serves the next request without a new watch
	status = coord.Request(pointPlace("sj-1", sjDestination))
	assert.Equal(t, ComputingRoute, status.State)
	assert.False(t, service.Watching())
}

func TestRegistry(t *testing.T) {
	catalog := campus.DefaultCatalog()
	var built []string
	registry := NewRegistry(func(id string) *Coordinator {
		built = append(built, id)
		return NewCoordinator(newFakeTracker(), &fakeFetcher{}, catalog, Config{})
	}, RegistryConfig{Max: 2})
	t.Cleanup(registry.Close)

	a, err := registry.Get("a")
	require.NoError(t, err)
	again, err := registry.Get("a")
	require.NoError(t, err)
	assert.Same(t, a, again)

	_, err = registry.Get("b")
	require.NoError(t, err)

	_, err = registry.Get("c")
	assert.ErrorIs(t, err, ErrTooManyCoordinators)
	assert.Equal(t, []string{"a", "b"}, registry.IDs())

	assert.True(t, registry.Remove("a"))
	assert.False(t, registry.Remove("a"))
	_, err = registry.Get("c")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, built)

	_, ok := registry.Lookup("missing")
	assert.False(t, ok)
}
