package position

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"ubicate.osuc.dev/internal/logging"
	"ubicate.osuc.dev/internal/models"
	"ubicate.osuc.dev/internal/utils"
)

// Position is one fix. It is replaced wholesale on every sensor callback.
type Position struct {
	Coordinates models.Coordinates `json:"coordinates"`
	AcquiredAt  time.Time          `json:"acquiredAt"`
}

// Snapshot is the read-only state handed to subscribers.
type Snapshot struct {
	Seq        uint64       `json:"-"`
	Position   *Position    `json:"position"`
	Alpha      *float64     `json:"alpha"`
	Cardinal   string       `json:"cardinal"`
	Calibrated bool         `json:"calibrated"`
	Err        *SensorError `json:"error,omitempty"`
	UpdatedAt  time.Time    `json:"updatedAt"`
}

// HasLocation mirrors the client-side flag: a fix is held and the last sensor event was not an error.
func (s Snapshot) HasLocation() bool {
	return s.Position != nil && s.Err == nil
}

type Callback func(Snapshot)

// Options configures a Service.
type Options struct {
	CardinalPoints utils.CardinalPoints
	// MaximumAge bounds how old a cached fix RequestLocation accepts.
	MaximumAge time.Duration
	// PermissionTimeout bounds the sensor permission prompt.
	PermissionTimeout time.Duration
	Logger            *slog.Logger
	Now               func() time.Time
}

const (
	DefaultMaximumAge        = 60 * time.Second
	DefaultPermissionTimeout = 15 * time.Second
)

// Subscription is the handle returned by Subscribe. Release is idempotent.
type Subscription struct {
	id       string
	service  *Service
	callback Callback
	released atomic.Bool

	mu        sync.Mutex
	delivered bool
	lastSeq   uint64
}

func (s *Subscription) ID() string { return s.id }

func (s *Subscription) Active() bool { return !s.released.Load() }

func (s *Subscription) Release() { s.service.Unsubscribe(s) }

// deliver drops snapshots older than the last one this subscriber saw.
func (s *Subscription) deliver(snap Snapshot) {
	if s.released.Load() {
		return
	}
	s.mu.Lock()
	if s.delivered && snap.Seq <= s.lastSeq {
		s.mu.Unlock()
		return
	}
	s.delivered = true
	s.lastSeq = snap.Seq
	s.mu.Unlock()

	s.callback(snap)
}

// Service owns the single sensor subscription of the process and reference-counts its consumers.
// The sensor runs iff at least one subscription is live.
type Service struct {
	sensor      Sensor
	orientation OrientationSource
	options     Options
	logger      *slog.Logger
	instruments instruments

	// lifecycle serializes subscribe, unsubscribe and the sensor start/stop they trigger.
	lifecycle sync.Mutex

	mu                sync.Mutex
	subscribers       map[string]*Subscription
	active            bool
	generation        uint64
	watchID           WatchID
	hasWatch          bool
	stopOrientation   func()
	snapshot          Snapshot
	rawAlpha          *float64
	calibrationOffset float64
	closed            bool
}

func NewService(sensor Sensor, orientation OrientationSource, options Options) *Service {
	if options.MaximumAge <= 0 {
		options.MaximumAge = DefaultMaximumAge
	}
	if options.PermissionTimeout <= 0 {
		options.PermissionTimeout = DefaultPermissionTimeout
	}
	if options.Now == nil {
		options.Now = time.Now
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "position_service"), slog.String("sensor", sensor.Name()))

	inst, err := newInstruments()
	if err != nil {
		logging.LogError(logger, "failed to register position metrics", err)
	}

	return &Service{
		sensor:      sensor,
		orientation: orientation,
		options:     options,
		logger:      logger,
		instruments: inst,
		subscribers: make(map[string]*Subscription),
		snapshot:    Snapshot{Cardinal: utils.DefaultCardinal},
	}
}

// Subscribe registers callback for every future update and immediately hands it the
// last-known snapshot. The first subscriber starts the sensor, and so does any later one
// while the sensor failed to start.
func (s *Service) Subscribe(callback Callback) *Subscription {
	sub := &Subscription{id: uuid.NewString(), service: s, callback: callback}

	s.lifecycle.Lock()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.lifecycle.Unlock()
		sub.released.Store(true)
		return sub
	}
	s.subscribers[sub.id] = sub
	first := !s.active
	// a start that was denied or found no sensor is retried by the next subscriber
	retry := s.active && !s.hasWatch
	s.mu.Unlock()

	if retry {
		s.stop()
	}
	if first || retry {
		s.start()
	}
	s.lifecycle.Unlock()

	s.instruments.subscribers.Add(context.Background(), 1)
	sub.deliver(s.Current())
	return sub
}

// Unsubscribe releases sub. The last release stops the sensor.
func (s *Service) Unsubscribe(sub *Subscription) {
	if sub == nil || !sub.released.CompareAndSwap(false, true) {
		return
	}

	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	if _, ok := s.subscribers[sub.id]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.subscribers, sub.id)
	last := len(s.subscribers) == 0 && s.active
	s.mu.Unlock()

	s.instruments.subscribers.Add(context.Background(), -1)
	if last {
		s.stop()
	}
}

// start must be called with lifecycle held.
func (s *Service) start() {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.active = true
	s.mu.Unlock()

	if s.orientation != nil {
		stop := s.orientation.Listen(func(sample OrientationSample) { s.handleOrientation(gen, sample) })
		s.mu.Lock()
		s.stopOrientation = stop
		s.mu.Unlock()
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.options.PermissionTimeout)
	err := s.sensor.RequestPermission(ctx)
	cancel()
	if err != nil {
		s.handleError(gen, asSensorError(err, PermissionDenied))
		return
	}

	id, err := s.sensor.Watch(
		func(c models.Coordinates) { s.handlePosition(gen, c) },
		func(e *SensorError) { s.handleError(gen, e) },
	)
	if err != nil {
		s.handleError(gen, asSensorError(err, SensorAbsent))
		return
	}

	s.mu.Lock()
	s.watchID = id
	s.hasWatch = true
	s.mu.Unlock()

	s.instruments.sensorStarts.Add(context.Background(), 1)
	logging.LogOperation(s.logger, "location sensor started", slog.String("watch_id", string(id)))
}

// stop must be called with lifecycle held.
func (s *Service) stop() {
	s.mu.Lock()
	id, hasWatch := s.watchID, s.hasWatch
	stopOrientation := s.stopOrientation
	s.active = false
	s.hasWatch = false
	s.watchID = ""
	s.stopOrientation = nil
	s.generation++
	s.mu.Unlock()

	if stopOrientation != nil {
		stopOrientation()
	}
	if hasWatch {
		s.sensor.ClearWatch(id)
		s.instruments.sensorStops.Add(context.Background(), 1)
		logging.LogOperation(s.logger, "location sensor stopped", slog.String("watch_id", string(id)))
	}
}

func (s *Service) handlePosition(gen uint64, c models.Coordinates) {
	s.mu.Lock()
	if gen != s.generation || !s.active {
		s.mu.Unlock()
		return
	}
	s.snapshot.Position = &Position{Coordinates: c, AcquiredAt: s.options.Now()}
	s.snapshot.Err = nil
	snap, subs := s.publishLocked()
	s.mu.Unlock()

	fanOut(subs, snap)
}

// handleError broadcasts the error. The cached position is kept.
func (s *Service) handleError(gen uint64, sensorErr *SensorError) {
	s.mu.Lock()
	if gen != s.generation || !s.active {
		s.mu.Unlock()
		return
	}
	s.snapshot.Err = sensorErr
	snap, subs := s.publishLocked()
	s.mu.Unlock()

	s.instruments.sensorErrors.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("code", sensorErr.Code.String())))
	s.logger.Warn("location sensor error",
		slog.String("code", sensorErr.Code.String()),
		slog.String("message", sensorErr.Message))

	fanOut(subs, snap)
}

func (s *Service) handleOrientation(gen uint64, sample OrientationSample) {
	if sample.Alpha == nil {
		return
	}
	raw := *sample.Alpha

	s.mu.Lock()
	if gen != s.generation || !s.active {
		s.mu.Unlock()
		return
	}
	s.rawAlpha = &raw
	s.applyAlphaLocked()
	snap, subs := s.publishLocked()
	s.mu.Unlock()

	fanOut(subs, snap)
}

func (s *Service) applyAlphaLocked() {
	if s.rawAlpha == nil {
		return
	}
	alpha := *s.rawAlpha
	if s.snapshot.Calibrated {
		alpha -= s.calibrationOffset
	}
	alpha = utils.NormalizeAngle(alpha)
	s.snapshot.Alpha = &alpha
	s.snapshot.Cardinal = utils.Cardinal(alpha, s.options.CardinalPoints)
}

func (s *Service) publishLocked() (Snapshot, []*Subscription) {
	s.snapshot.Seq++
	s.snapshot.UpdatedAt = s.options.Now()

	subs := make([]*Subscription, 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		subs = append(subs, sub)
	}
	return s.snapshot, subs
}

func fanOut(subs []*Subscription, snap Snapshot) {
	for _, sub := range subs {
		sub.deliver(snap)
	}
}

// Calibrate takes the current heading as the new north.
func (s *Service) Calibrate() error {
	s.mu.Lock()
	if s.stopOrientation == nil {
		s.mu.Unlock()
		return ErrOrientationUnavailable
	}
	if s.rawAlpha == nil {
		s.mu.Unlock()
		return ErrNoOrientationData
	}
	s.calibrationOffset = *s.rawAlpha
	s.snapshot.Calibrated = true
	s.applyAlphaLocked()
	snap, subs := s.publishLocked()
	offset := s.calibrationOffset
	s.mu.Unlock()

	logging.LogOperation(s.logger, "compass calibrated", slog.Float64("offset", offset))
	fanOut(subs, snap)
	return nil
}

// RequestLocation returns a fix no older than MaximumAge, waiting for the sensor through a
// temporary subscription when needed. A sensor error raised after the call started ends the wait.
func (s *Service) RequestLocation(ctx context.Context) (Position, error) {
	startedAt := s.options.Now()

	type outcome struct {
		position Position
		err      error
	}
	result := make(chan outcome, 1)

	sub := s.Subscribe(func(snap Snapshot) {
		var o outcome
		switch {
		case snap.Position != nil && startedAt.Sub(snap.Position.AcquiredAt) <= s.options.MaximumAge:
			o.position = *snap.Position
		case snap.Err != nil && !snap.UpdatedAt.Before(startedAt):
			o.err = snap.Err
		default:
			return
		}
		select {
		case result <- o:
		default:
		}
	})
	defer sub.Release()

	if !sub.Active() {
		return Position{}, ErrServiceClosed
	}

	select {
	case o := <-result:
		return o.position, o.err
	case <-ctx.Done():
		return Position{}, NewSensorError(SensorTimeout, ctx.Err().Error())
	}
}

// Current returns the latest snapshot.
func (s *Service) Current() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

func (s *Service) LastPosition() *Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot.Position
}

func (s *Service) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers)
}

// Watching reports whether the sensor has an active watch.
func (s *Service) Watching() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasWatch
}

func (s *Service) SensorName() string { return s.sensor.Name() }

// Close releases every subscription and stops the sensor. Later subscriptions are born released.
func (s *Service) Close() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for id, sub := range s.subscribers {
		sub.released.Store(true)
		delete(s.subscribers, id)
	}
	active := s.active
	s.mu.Unlock()

	if active {
		s.stop()
	}
}

func asSensorError(err error, fallback SensorErrorCode) *SensorError {
	var sensorErr *SensorError
	if errors.As(err, &sensorErr) {
		return sensorErr
	}
	return NewSensorError(fallback, err.Error())
}
