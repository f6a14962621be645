package position

import (
	"context"
	"log/slog"
	"net"
	"time"

	"ubicate.osuc.dev/internal/logging"
	"ubicate.osuc.dev/internal/models"
)

// WatchID identifies one active watch on a Sensor.
type WatchID string

type PositionFunc func(models.Coordinates)

type ErrorFunc func(*SensorError)

// Sensor is the capability every location backend is adapted to.
// Implementations must deliver callbacks asynchronously, never from inside Watch.
type Sensor interface {
	Name() string
	RequestPermission(ctx context.Context) error
	Watch(onPosition PositionFunc, onError ErrorFunc) (WatchID, error)
	ClearWatch(id WatchID)
}

// Platform names the backend chosen at startup.
type Platform string

const (
	PlatformWeb    Platform = "web"
	PlatformNative Platform = "native"
)

// DetectOptions drives DetectSensor.
type DetectOptions struct {
	// GPSDAddress is the host:port of a gpsd daemon in packaged shells. Empty means browser only.
	GPSDAddress string
	DialTimeout time.Duration
	Dial        func(ctx context.Context, network, address string) (net.Conn, error)
	Logger      *slog.Logger
}

// DetectSensor prefers the native gpsd backend when one is configured and reachable,
// otherwise it falls back to the browser-fed web sensor.
func DetectSensor(ctx context.Context, opts DetectOptions, web *WebSensor) (Sensor, Platform) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "platform_detection"))

	if opts.GPSDAddress == "" {
		logging.LogOperation(logger, "using web location sensor")
		return web, PlatformWeb
	}

	dial := opts.Dial
	if dial == nil {
		dialer := &net.Dialer{}
		dial = dialer.DialContext
	}
	timeout := opts.DialTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := dial(probeCtx, "tcp", opts.GPSDAddress)
	if err != nil {
		logging.LogError(logger, "gpsd not reachable, using web location sensor", err,
			slog.String("address", opts.GPSDAddress))
		return web, PlatformWeb
	}
	logging.SafeCloseWithLogging(conn, logger, "gpsd_probe")

	logging.LogOperation(logger, "using native location sensor",
		slog.String("address", opts.GPSDAddress))
	return NewGPSDSensor(GPSDConfig{
		Address:     opts.GPSDAddress,
		DialTimeout: timeout,
		Dial:        opts.Dial,
		Logger:      opts.Logger,
	}), PlatformNative
}
