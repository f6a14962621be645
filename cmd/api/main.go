package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"ubicate.osuc.dev/internal/app"
	"ubicate.osuc.dev/internal/appconf"
	"ubicate.osuc.dev/internal/logging"
	"ubicate.osuc.dev/internal/restapi"
)

const shutdownTimeout = 10 * time.Second

type flags struct {
	configFile string
	port       int
	env        string
	apiKeys    string
	places     string
}

func main() {
	var f flags
	flag.StringVar(&f.configFile, "config", "", "Path to a YAML, JSON or TOML config file")
	flag.IntVar(&f.port, "port", 0, "API server port (overrides config)")
	flag.StringVar(&f.env, "env", "", "Environment (development|test|production)")
	flag.StringVar(&f.apiKeys, "api-keys", "", "Comma Separated API Keys (test, etc)")
	flag.StringVar(&f.places, "places", "", "GeoJSON FeatureCollection of places to import at startup")
	flag.Parse()

	cfg, err := loadConfig(f)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := logging.NewStructuredLogger(os.Stdout, logging.ParseLevel(cfg.LogLevel))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logging.LogError(logger, "server stopped", err)
		os.Exit(1)
	}
}

// loadConfig applies command-line flags on top of the file and environment settings.
func loadConfig(f flags) (appconf.Config, error) {
	cfg, err := appconf.Load(f.configFile)
	if err != nil {
		return appconf.Config{}, err
	}

	if f.port != 0 {
		cfg.Port = f.port
	}
	if f.env != "" {
		cfg.Env = appconf.EnvFlagToEnvironment(f.env)
	}
	if f.apiKeys != "" {
		keys := strings.Split(f.apiKeys, ",")
		for i := range keys {
			keys[i] = strings.TrimSpace(keys[i])
		}
		cfg.ApiKeys = keys
	}
	if f.places != "" {
		cfg.PlacesFile = f.places
	}

	return cfg, cfg.Validate()
}

func run(cfg appconf.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if err := application.Close(); err != nil {
			logging.LogError(logger, "closing application", err)
		}
	}()

	api := restapi.NewRestAPI(application)
	defer api.Close()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: api.Handler(),
		// the location stream clears its own write deadline
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
		// open location streams end when the signal arrives
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	serveErr := make(chan error, 1)
	go func() {
		logging.LogOperation(logger, "starting server",
			slog.String("addr", srv.Addr),
			slog.String("env", cfg.Env.String()),
			slog.String("sensor", application.Position.SensorName()))
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logging.LogOperation(logger, "shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
