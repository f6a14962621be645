package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"ubicate.osuc.dev/internal/appconf"
	"ubicate.osuc.dev/internal/campus"
	"ubicate.osuc.dev/internal/directions"
	"ubicate.osuc.dev/internal/logging"
	"ubicate.osuc.dev/internal/models"
	"ubicate.osuc.dev/internal/navigation"
	"ubicate.osuc.dev/internal/places"
	"ubicate.osuc.dev/internal/position"
	"ubicate.osuc.dev/internal/utils"
)

// Application holds the dependencies for our HTTP handlers, helpers, and middleware.
type Application struct {
	Config   appconf.Config
	Logger   *slog.Logger
	Platform position.Platform

	Campuses    *campus.Catalog
	Places      *places.Directory
	WebSensor   *position.WebSensor
	Orientation *position.OrientationHub
	Position    *position.Service
	Directions  *directions.Fetcher
	Navigation  *navigation.Registry
}

// New wires every component from cfg. The caller owns the result and must Close it.
func New(ctx context.Context, cfg appconf.Config, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = slog.Default()
	}

	catalog, err := cfg.Catalog()
	if err != nil {
		return nil, fmt.Errorf("error building campus catalog: %w", err)
	}

	directory, err := places.Open(ctx, places.Options{
		DBPath:        cfg.DBPath,
		ResolveCampus: campusResolver(catalog),
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}

	if cfg.PlacesFile != "" {
		if err := importPlaces(ctx, directory, cfg.PlacesFile, logger); err != nil {
			logging.SafeCloseWithLogging(directory, logger, "places_directory")
			return nil, err
		}
	}

	web := position.NewWebSensor()
	sensor, platform := position.DetectSensor(ctx, position.DetectOptions{
		GPSDAddress: cfg.Sensor.GPSDAddress,
		Logger:      logger,
	}, web)

	hub := position.NewOrientationHub()
	service := position.NewService(sensor, hub, position.Options{
		CardinalPoints:    utils.CardinalPoints(cfg.Sensor.CardinalPoints),
		MaximumAge:        cfg.Sensor.MaximumAge,
		PermissionTimeout: cfg.Sensor.PermissionTimeout,
		Logger:            logger,
	})

	fetcher := directions.NewFetcher(directions.NewClient(directions.Config{
		BaseURL:           cfg.Directions.BaseURL,
		AccessToken:       cfg.Directions.AccessToken,
		Timeout:           cfg.Directions.Timeout,
		RequestsPerSecond: cfg.Directions.RequestsPerSecond,
		Burst:             cfg.Directions.Burst,
		Logger:            logger,
	}), logger)

	app := &Application{
		Config:      cfg,
		Logger:      logger,
		Platform:    platform,
		Campuses:    catalog,
		Places:      directory,
		WebSensor:   web,
		Orientation: hub,
		Position:    service,
		Directions:  fetcher,
	}
	app.Navigation = navigation.NewRegistry(app.newCoordinator, navigation.RegistryConfig{
		Max:        cfg.Navigation.MaxCoordinators,
		IdleAfter:  cfg.Navigation.IdleTimeout,
		SweepEvery: cfg.Navigation.IdleTimeout,
	})

	logging.LogOperation(logger, "application initialized",
		slog.String("env", cfg.Env.String()),
		slog.String("platform", string(platform)),
		slog.Int("campuses", len(catalog.All())))
	return app, nil
}

// newCoordinator gives each directions control its own tracking controller over the shared service.
func (app *Application) newCoordinator(id string) *navigation.Coordinator {
	tracker := position.NewTrackingController(app.Position, position.ControllerOptions{})
	return navigation.NewCoordinator(tracker, app.Directions, app.Campuses, navigation.Config{
		WaitTimeout:  app.Config.Navigation.WaitTimeout,
		RouteTimeout: app.Config.Navigation.RouteTimeout,
		Logger:       app.Logger.With(slog.String("button", id)),
		CloseTracker: true,
	})
}

// Close releases every component in reverse order of construction.
func (app *Application) Close() error {
	if app.Navigation != nil {
		app.Navigation.Close()
	}
	if app.Position != nil {
		app.Position.Close()
	}
	if app.Places != nil {
		return app.Places.Close()
	}
	return nil
}

func campusResolver(catalog *campus.Catalog) places.CampusResolver {
	return func(c models.Coordinates) string {
		if found, ok := catalog.CampusForPoint(c); ok {
			return found.ID
		}
		return ""
	}
}

func importPlaces(ctx context.Context, directory *places.Directory, path string, logger *slog.Logger) (err error) {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("error opening places file: %w", err)
	}
	defer logging.HandleDeferredError(&err, f.Close, logger, "places_file")

	n, err := directory.ImportGeoJSON(ctx, f)
	if err != nil {
		return fmt.Errorf("error importing places: %w", err)
	}
	if n == 0 {
		return errors.New("places file contains no features")
	}
	logging.LogOperation(logger, "places imported", slog.Int("count", n), slog.String("path", path))
	return nil
}
