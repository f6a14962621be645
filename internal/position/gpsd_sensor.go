package position

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"ubicate.osuc.dev/internal/logging"
	"ubicate.osuc.dev/internal/models"
)

const gpsdWatchCommand = `?WATCH={"enable":true,"json":true};` + "\n"

// GPSDConfig configures the native backend.
type GPSDConfig struct {
	Address     string
	DialTimeout time.Duration
	Dial        func(ctx context.Context, network, address string) (net.Conn, error)
	Logger      *slog.Logger
}

// gpsdReport covers the fields of the gpsd JSON reports we consume.
type gpsdReport struct {
	Class   string       `json:"class"`
	Mode    int          `json:"mode"`
	Lat     *float64     `json:"lat"`
	Lon     *float64     `json:"lon"`
	Devices []gpsdDevice `json:"devices"`
	Message string       `json:"message"`
}

type gpsdDevice struct {
	Path string `json:"path"`
}

type gpsdWatch struct {
	conn    net.Conn
	cleared chan struct{}
	once    sync.Once
}

func (w *gpsdWatch) clear() {
	w.once.Do(func() {
		close(w.cleared)
		_ = w.conn.Close()
	})
}

func (w *gpsdWatch) isCleared() bool {
	select {
	case <-w.cleared:
		return true
	default:
		return false
	}
}

// GPSDSensor is the native positioning backend used inside packaged shells and kiosks,
// where a gpsd daemon owns the receiver. Each Watch opens its own gpsd session.
type GPSDSensor struct {
	config GPSDConfig
	logger *slog.Logger

	mu      sync.Mutex
	watches map[WatchID]*gpsdWatch
}

func NewGPSDSensor(config GPSDConfig) *GPSDSensor {
	if config.DialTimeout <= 0 {
		config.DialTimeout = 2 * time.Second
	}
	if config.Dial == nil {
		dialer := &net.Dialer{}
		config.Dial = dialer.DialContext
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &GPSDSensor{
		config:  config,
		logger:  logger.With(slog.String("component", "gpsd_sensor")),
		watches: make(map[WatchID]*gpsdWatch),
	}
}

func (s *GPSDSensor) Name() string { return string(PlatformNative) }

// RequestPermission checks that the daemon answers; gpsd has no permission model of its own.
func (s *GPSDSensor) RequestPermission(ctx context.Context) error {
	conn, err := s.dial(ctx)
	if err != nil {
		return err
	}
	logging.SafeCloseWithLogging(conn, s.logger, "gpsd_permission_probe")
	return nil
}

func (s *GPSDSensor) Watch(onPosition PositionFunc, onError ErrorFunc) (WatchID, error) {
	conn, err := s.dial(context.Background())
	if err != nil {
		return "", err
	}

	if _, err := conn.Write([]byte(gpsdWatchCommand)); err != nil {
		logging.SafeCloseWithLogging(conn, s.logger, "gpsd_watch")
		return "", NewSensorError(PositionUnavailable, fmt.Sprintf("gpsd watch request failed: %v", err))
	}

	id := WatchID(uuid.NewString())
	watch := &gpsdWatch{conn: conn, cleared: make(chan struct{})}

	s.mu.Lock()
	s.watches[id] = watch
	s.mu.Unlock()

	go s.read(id, watch, onPosition, onError)

	return id, nil
}

func (s *GPSDSensor) ClearWatch(id WatchID) {
	s.mu.Lock()
	watch, ok := s.watches[id]
	delete(s.watches, id)
	s.mu.Unlock()

	if ok {
		watch.clear()
	}
}

func (s *GPSDSensor) dial(ctx context.Context) (net.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.DialTimeout)
	defer cancel()

	conn, err := s.config.Dial(ctx, "tcp", s.config.Address)
	if err != nil {
		return nil, NewSensorError(SensorAbsent, fmt.Sprintf("gpsd unreachable at %s: %v", s.config.Address, err))
	}
	return conn, nil
}

func (s *GPSDSensor) read(id WatchID, watch *gpsdWatch, onPosition PositionFunc, onError ErrorFunc) {
	scanner := bufio.NewScanner(watch.conn)
	for scanner.Scan() {
		if watch.isCleared() {
			return
		}

		var report gpsdReport
		if err := json.Unmarshal(scanner.Bytes(), &report); err != nil {
			s.logger.Debug("skipping malformed gpsd report", slog.String("error", err.Error()))
			continue
		}

		switch report.Class {
		case "DEVICES":
			if len(report.Devices) == 0 && onError != nil {
				onError(NewSensorError(SensorAbsent, "no GPS receiver attached to gpsd"))
			}
		case "TPV":
			// mode 2 and 3 are 2D and 3D fixes; anything lower has no usable position yet
			if report.Mode < 2 || report.Lat == nil || report.Lon == nil {
				continue
			}
			c, err := models.NewCoordinates(*report.Lon, *report.Lat)
			if err != nil {
				continue
			}
			if onPosition != nil {
				onPosition(c)
			}
		case "ERROR":
			if onError != nil {
				onError(NewSensorError(PositionUnavailable, report.Message))
			}
		}
	}

	if watch.isCleared() {
		return
	}

	s.mu.Lock()
	delete(s.watches, id)
	s.mu.Unlock()

	msg := "gpsd connection closed"
	if err := scanner.Err(); err != nil {
		msg = fmt.Sprintf("gpsd connection lost: %v", err)
	}
	if onError != nil {
		onError(NewSensorError(PositionUnavailable, msg))
	}
}
