package navigation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"ubicate.osuc.dev/internal/campus"
	"ubicate.osuc.dev/internal/directions"
	"ubicate.osuc.dev/internal/logging"
	"ubicate.osuc.dev/internal/models"
	"ubicate.osuc.dev/internal/places"
	"ubicate.osuc.dev/internal/position"
)

const (
	DefaultWaitTimeout  = 10 * time.Second
	DefaultRouteTimeout = 20 * time.Second
)

// Tracker is the slice of a TrackingController the coordinator drives.
type Tracker interface {
	SetTracking(active bool)
	IsTracking() bool
	Position() *position.Position
	OnUpdate(fn func(position.View)) func()
}

// RouteFetcher resolves a walking route between two points.
type RouteFetcher interface {
	FetchBestRoute(ctx context.Context, origin, destination models.Coordinates) (directions.Result, error)
}

// Stopper is a stoppable pending timer. Stop must be safe to call more than once.
type Stopper interface {
	Stop() bool
}

// AfterFunc arms a timer that calls f once after d.
type AfterFunc func(d time.Duration, f func()) Stopper

func realAfterFunc(d time.Duration, f func()) Stopper {
	return time.AfterFunc(d, f)
}

type Config struct {
	WaitTimeout  time.Duration
	RouteTimeout time.Duration
	AfterFunc    AfterFunc
	Now          func() time.Time
	Logger       *slog.Logger
	// CloseTracker closes the tracker with the coordinator when it has a Close method.
	CloseTracker bool
}

// attempt is the work of one directions request.
type attempt struct {
	place       places.Place
	campusName  string
	destination models.Coordinates
}

// Coordinator is the state machine behind one "get directions" control.
// Every asynchronous continuation carries the attempt token it was started with
// and is discarded when the token is no longer current.
type Coordinator struct {
	tracker     Tracker
	fetcher     RouteFetcher
	catalog     *campus.Catalog
	config      Config
	logger      *slog.Logger
	instruments instruments
	stopUpdates func()

	mu           sync.Mutex
	status       Status
	seq          uint64
	token        uint64
	current      *attempt
	timer        Stopper
	cancelFetch  context.CancelFunc
	ownsTracking bool
	closed       bool

	// trackMu orders SetTracking calls; activated is guarded by it.
	trackMu   sync.Mutex
	activated bool

	emitMu      sync.Mutex
	lastEmitted uint64
	listeners   map[uint64]func(Status)
	nextID      uint64
}

func NewCoordinator(tracker Tracker, fetcher RouteFetcher, catalog *campus.Catalog, config Config) *Coordinator {
	if config.WaitTimeout <= 0 {
		config.WaitTimeout = DefaultWaitTimeout
	}
	if config.RouteTimeout <= 0 {
		config.RouteTimeout = DefaultRouteTimeout
	}
	if config.AfterFunc == nil {
		config.AfterFunc = realAfterFunc
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "route_coordinator"))

	inst, err := newInstruments()
	if err != nil {
		logging.LogError(logger, "failed to register navigation metrics", err)
	}

	c := &Coordinator{
		tracker:     tracker,
		fetcher:     fetcher,
		catalog:     catalog,
		config:      config,
		logger:      logger,
		instruments: inst,
		status:      Status{State: Idle, UpdatedAt: config.Now()},
		listeners:   make(map[uint64]func(Status)),
	}
	c.stopUpdates = tracker.OnUpdate(c.onView)
	return c
}

// Request is a tap on the directions control for place.
// A tap while waiting for a location cancels the wait; a tap while computing is ignored.
func (c *Coordinator) Request(place places.Place) Status {
	c.mu.Lock()
	if c.closed {
		s := c.status
		c.mu.Unlock()
		return s
	}

	c.instruments.requests.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("state", c.status.State.String())))

	switch c.status.State {
	case AwaitingLocation:
		c.cancelLocked()
		s := c.status
		c.mu.Unlock()
		c.emit(s)
		c.syncTracking()
		return s
	case ComputingRoute:
		s := c.status
		c.mu.Unlock()
		return s
	}

	// Idle or terminal: start over from Idle.
	c.token++
	c.current = &attempt{place: place}
	c.status = Status{
		State:     Idle,
		Attempt:   c.token,
		PlaceID:   place.Identifier,
		PlaceName: place.Name,
	}

	var launch func()
	dest, campusName, err := c.resolveDestination(place)
	c.current.campusName = campusName
	switch {
	case err != nil:
		c.finishLocked(Failed, err, nil)
	default:
		c.current.destination = dest
		c.status.Destination = &dest
		if pos := c.tracker.Position(); pos != nil {
			launch = c.computeLocked(pos.Coordinates)
		} else {
			c.ownsTracking = !c.tracker.IsTracking()
			c.setStateLocked(AwaitingLocation)
			tok := c.token
			c.timer = c.config.AfterFunc(c.config.WaitTimeout, func() { c.onTimeout(tok) })
		}
	}

	s := c.status
	c.mu.Unlock()

	c.emit(s)
	c.syncTracking()
	if launch != nil {
		launch()
	}
	return s
}

// Cancel abandons the current wait or route computation.
func (c *Coordinator) Cancel() Status {
	c.mu.Lock()
	if c.status.State != AwaitingLocation && c.status.State != ComputingRoute {
		s := c.status
		c.mu.Unlock()
		return s
	}
	c.cancelLocked()
	s := c.status
	c.mu.Unlock()

	c.emit(s)
	c.syncTracking()
	return s
}

// Reset returns the coordinator to Idle from any state.
func (c *Coordinator) Reset() Status {
	c.mu.Lock()
	c.stopTimerLocked()
	c.stopFetchLocked()
	c.token++
	c.current = nil
	c.status = Status{Attempt: c.token}
	c.setStateLocked(Idle)
	s := c.status
	c.mu.Unlock()

	c.emit(s)
	c.syncTracking()
	return s
}

func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// OnChange registers fn for every state change and returns a function that removes it.
// Listeners are called in order and must not call back into the coordinator.
func (c *Coordinator) OnChange(fn func(Status)) func() {
	c.emitMu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.emitMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.emitMu.Lock()
			delete(c.listeners, id)
			c.emitMu.Unlock()
		})
	}
}

// Close stops every pending continuation and releases tracking opened by the coordinator.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.stopTimerLocked()
	c.stopFetchLocked()
	c.token++
	c.ownsTracking = false
	c.mu.Unlock()

	c.stopUpdates()
	c.syncTracking()

	if closer, ok := c.tracker.(interface{ Close() }); ok && c.config.CloseTracker {
		closer.Close()
	}
}

func (c *Coordinator) onView(v position.View) {
	if v.Position == nil {
		return
	}

	c.mu.Lock()
	if c.status.State != AwaitingLocation {
		c.mu.Unlock()
		return
	}
	c.stopTimerLocked()
	launch := c.computeLocked(v.Position.Coordinates)
	s := c.status
	c.mu.Unlock()

	c.emit(s)
	// called from inside the tracker's fan-out, so tracking changes must not block on it
	go c.syncTracking()
	if launch != nil {
		launch()
	}
}

func (c *Coordinator) onTimeout(tok uint64) {
	c.mu.Lock()
	if tok != c.token || c.status.State != AwaitingLocation {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.finishLocked(Failed, ErrLocationAcquisitionTimeout, nil)
	s := c.status
	c.mu.Unlock()

	c.emit(s)
	c.syncTracking()
}

func (c *Coordinator) fetch(ctx context.Context, tok uint64, origin, destination models.Coordinates) {
	result, err := c.fetcher.FetchBestRoute(ctx, origin, destination)

	c.mu.Lock()
	if tok != c.token || c.status.State != ComputingRoute {
		c.mu.Unlock()
		return
	}
	if err != nil {
		c.finishLocked(Failed, err, nil)
	} else {
		c.finishLocked(Succeeded, nil, &result)
	}
	s := c.status
	c.mu.Unlock()

	c.emit(s)
}

// computeLocked validates the origin and enters ComputingRoute. The returned function
// starts the fetch and must be called after the lock is released and the state emitted.
func (c *Coordinator) computeLocked(origin models.Coordinates) func() {
	c.status.Origin = &origin
	if err := c.validateOrigin(origin); err != nil {
		c.finishLocked(Failed, err, nil)
		return nil
	}

	c.setStateLocked(ComputingRoute)
	ctx, cancel := context.WithTimeout(context.Background(), c.config.RouteTimeout)
	c.cancelFetch = cancel
	tok := c.token
	destination := c.current.destination

	return func() {
		go func() {
			defer cancel()
			c.fetch(ctx, tok, origin, destination)
		}()
	}
}

func (c *Coordinator) resolveDestination(place places.Place) (models.Coordinates, string, error) {
	dest, err := place.Destination()
	if err != nil {
		return models.Coordinates{}, place.Campus, fmt.Errorf("%w: %v", ErrUnroutablePlace, err)
	}

	core, ok := c.catalog.CoreCampusForPoint(dest)
	if !ok {
		return models.Coordinates{}, place.Campus, fmt.Errorf("%w: %s", ErrDestinationOutOfBounds, dest)
	}

	name := place.Campus
	if name == "" {
		name = core.ID
	}
	if !c.catalog.RoutingEnabled(name) {
		return models.Coordinates{}, name, fmt.Errorf("%w: %s", ErrRoutingUnavailable, name)
	}
	return dest, name, nil
}

func (c *Coordinator) validateOrigin(origin models.Coordinates) error {
	if err := origin.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrOriginOutOfBounds, err)
	}
	if _, ok := c.catalog.CoreCampusForPoint(origin); !ok {
		return fmt.Errorf("%w: %s", ErrOriginOutOfBounds, origin)
	}

	originCampus, _ := c.catalog.CampusForPoint(origin)
	destCampus, _ := c.catalog.CampusForPoint(c.current.destination)
	if originCampus.ID != destCampus.ID {
		return fmt.Errorf("%w: %s and %s", ErrCrossCampus, originCampus.ID, destCampus.ID)
	}
	return nil
}

func (c *Coordinator) setStateLocked(state State) {
	c.seq++
	c.status.Seq = c.seq
	c.status.State = state
	c.status.UpdatedAt = c.config.Now()
}

func (c *Coordinator) finishLocked(state State, err error, result *directions.Result) {
	c.stopTimerLocked()
	c.stopFetchLocked()

	c.status.Err = err
	c.status.ErrorKind = ErrorKind(err)
	c.status.Route = result
	c.status.Reason = ""
	if state == Failed {
		campusName := ""
		if c.current != nil {
			campusName = c.current.campusName
		}
		c.status.Reason = reason(err, campusName)
	}
	c.setStateLocked(state)

	c.instruments.outcomes.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("state", state.String()),
		attribute.String("error_kind", c.status.ErrorKind),
	))
	if err != nil {
		logging.LogError(c.logger, "directions attempt failed", err,
			slog.Uint64("attempt", c.token),
			slog.String("place_id", c.status.PlaceID))
	} else {
		logging.LogOperation(c.logger, "directions attempt finished",
			slog.Uint64("attempt", c.token),
			slog.String("state", state.String()))
	}
}

// cancelLocked moves to Cancelled and invalidates the running attempt.
func (c *Coordinator) cancelLocked() {
	c.stopTimerLocked()
	// An in-flight fetch runs to completion under its own timeout; the token check drops it.
	c.cancelFetch = nil
	c.token++
	c.status.Attempt = c.token
	c.status.Err = nil
	c.status.ErrorKind = ""
	c.status.Reason = ""
	c.status.Route = nil
	c.setStateLocked(Cancelled)
	logging.LogOperation(c.logger, "directions attempt cancelled", slog.String("place_id", c.status.PlaceID))
}

func (c *Coordinator) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Coordinator) stopFetchLocked() {
	if c.cancelFetch != nil {
		c.cancelFetch()
		c.cancelFetch = nil
	}
}

// syncTracking turns tracking on while this coordinator waits for a location it asked for,
// and off otherwise. It is idempotent.
func (c *Coordinator) syncTracking() {
	c.trackMu.Lock()
	defer c.trackMu.Unlock()

	c.mu.Lock()
	want := c.status.State == AwaitingLocation && c.ownsTracking && !c.closed
	c.mu.Unlock()

	switch {
	case want && !c.activated:
		c.activated = true
		c.tracker.SetTracking(true)
	case !want && c.activated:
		c.activated = false
		c.tracker.SetTracking(false)
	}
}

// emit delivers s to every listener, dropping it when a newer status was already delivered.
func (c *Coordinator) emit(s Status) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	if s.Seq <= c.lastEmitted {
		return
	}
	c.lastEmitted = s.Seq
	for _, fn := range c.listeners {
		fn(s)
	}
}
