package position

import (
	"sync"

	"ubicate.osuc.dev/internal/utils"
)

// View is what a single widget renders.
type View struct {
	Position   *Position    `json:"position"`
	Alpha      *float64     `json:"alpha"`
	Rotation   float64      `json:"rotation"`
	Cardinal   string       `json:"cardinal"`
	Calibrated bool         `json:"calibrated"`
	IsTracking bool         `json:"isTracking"`
	Err        *SensorError `json:"error,omitempty"`
}

type ControllerOptions struct {
	MapBearing float64
}

// TrackingController is the per-consumer facade over the shared Service. Each controller
// owns at most one subscription, so toggling one never disturbs another.
type TrackingController struct {
	service *Service

	mu           sync.Mutex
	tracking     bool
	gen          uint64
	sub          *Subscription
	snapshot     Snapshot
	hasSnapshot  bool
	mapBearing   float64
	rotation     float64
	listeners    map[uint64]func(View)
	nextListener uint64
	closed       bool
}

func NewTrackingController(service *Service, opts ControllerOptions) *TrackingController {
	return &TrackingController{
		service:    service,
		mapBearing: utils.NormalizeAngle(opts.MapBearing),
		listeners:  make(map[uint64]func(View)),
	}
}

// SetTracking subscribes to or releases the shared service.
func (c *TrackingController) SetTracking(active bool) {
	c.mu.Lock()
	if c.closed || c.tracking == active {
		c.mu.Unlock()
		return
	}
	c.tracking = active
	c.gen++
	gen := c.gen
	old := c.sub
	c.sub = nil
	c.mu.Unlock()

	if !active {
		if old != nil {
			old.Release()
		}
		c.notify()
		return
	}

	sub := c.service.Subscribe(func(snap Snapshot) { c.handle(gen, snap) })

	c.mu.Lock()
	if c.gen != gen {
		// toggled off while subscribing
		c.mu.Unlock()
		sub.Release()
		return
	}
	c.sub = sub
	c.mu.Unlock()
}

func (c *TrackingController) handle(gen uint64, snap Snapshot) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.snapshot = snap
	c.hasSnapshot = true
	if snap.Alpha != nil {
		c.rotation = utils.DisplayRotation(*snap.Alpha, c.mapBearing)
	}
	view, listeners := c.viewLocked(), c.listenersLocked()
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(view)
	}
}

// SetMapBearing recomputes the display rotation against the new map bearing.
func (c *TrackingController) SetMapBearing(bearing float64) {
	c.mu.Lock()
	c.mapBearing = utils.NormalizeAngle(bearing)
	if c.hasSnapshot && c.snapshot.Alpha != nil {
		c.rotation = utils.DisplayRotation(*c.snapshot.Alpha, c.mapBearing)
	}
	c.mu.Unlock()

	c.notify()
}

func (c *TrackingController) IsTracking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracking
}

// Snapshot returns the current view. A controller that is not tracking shows the
// service's cached state without subscribing.
func (c *TrackingController) Snapshot() View {
	c.mu.Lock()
	if c.tracking && c.hasSnapshot {
		defer c.mu.Unlock()
		return c.viewLocked()
	}
	mapBearing, rotation, tracking := c.mapBearing, c.rotation, c.tracking
	c.mu.Unlock()

	snap := c.service.Current()
	if snap.Alpha != nil {
		rotation = utils.DisplayRotation(*snap.Alpha, mapBearing)
	}
	return viewOf(snap, rotation, tracking)
}

func (c *TrackingController) Position() *Position {
	return c.Snapshot().Position
}

// OnUpdate registers fn for every view change and returns a function that removes it.
func (c *TrackingController) OnUpdate(fn func(View)) func() {
	c.mu.Lock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

// Close stops tracking and drops every listener.
func (c *TrackingController) Close() {
	c.SetTracking(false)

	c.mu.Lock()
	c.closed = true
	c.listeners = make(map[uint64]func(View))
	c.mu.Unlock()
}

func (c *TrackingController) notify() {
	view := c.Snapshot()

	c.mu.Lock()
	listeners := c.listenersLocked()
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(view)
	}
}

func (c *TrackingController) viewLocked() View {
	return viewOf(c.snapshot, c.rotation, c.tracking)
}

func (c *TrackingController) listenersLocked() []func(View) {
	listeners := make([]func(View), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	return listeners
}

func viewOf(snap Snapshot, rotation float64, tracking bool) View {
	return View{
		Position:   snap.Position,
		Alpha:      snap.Alpha,
		Rotation:   rotation,
		Cardinal:   snap.Cardinal,
		Calibrated: snap.Calibrated,
		IsTracking: tracking,
		Err:        snap.Err,
	}
}
