package directions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"ubicate.osuc.dev/internal/logging"
	"ubicate.osuc.dev/internal/models"
)

const (
	UnbiasedWalkway = 0.0
	// AvoidWalkwayBias nudges the router away from walkway artifacts inside campus.
	AvoidWalkwayBias = -0.2
)

// Router is anything that can answer a single walking directions call.
type Router interface {
	Walking(ctx context.Context, origin, destination models.Coordinates, bias float64) (Candidate, error)
}

// Fetcher runs the unbiased and biased trials and keeps the faster one.
type Fetcher struct {
	router      Router
	logger      *slog.Logger
	instruments instruments
}

func NewFetcher(router Router, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "route_fetcher"))

	inst, err := newInstruments()
	if err != nil {
		logging.LogError(logger, "failed to register directions metrics", err)
	}

	return &Fetcher{router: router, logger: logger, instruments: inst}
}

type trial struct {
	candidate Candidate
	err       error
}

// FetchBestRoute issues both trials concurrently. When both succeed the strictly faster
// one wins and a tie keeps the unbiased route. It fails only when both trials fail.
func (f *Fetcher) FetchBestRoute(ctx context.Context, origin, destination models.Coordinates) (Result, error) {
	var wg sync.WaitGroup
	var unbiased, biased trial

	wg.Add(1)
	go func() {
		defer wg.Done()
		unbiased = f.runTrial(ctx, origin, destination, UnbiasedWalkway)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		biased = f.runTrial(ctx, origin, destination, AvoidWalkwayBias)
	}()

	wg.Wait()

	if err := ctx.Err(); err != nil {
		f.record("cancelled")
		return Result{}, fmt.Errorf("%w: %v", ErrRouteServiceUnavailable, err)
	}

	var chosen Candidate
	switch {
	case unbiased.err == nil && biased.err == nil:
		chosen = unbiased.candidate
		if biased.candidate.DurationSeconds < unbiased.candidate.DurationSeconds {
			chosen = biased.candidate
		}
	case unbiased.err == nil:
		chosen = unbiased.candidate
	case biased.err == nil:
		chosen = biased.candidate
	default:
		f.record("failed")
		if errors.Is(unbiased.err, ErrNoRouteFound) && errors.Is(biased.err, ErrNoRouteFound) {
			return Result{}, fmt.Errorf("%w: %v", ErrNoRouteFound, errors.Join(unbiased.err, biased.err))
		}
		return Result{}, fmt.Errorf("%w: %v", ErrRouteServiceUnavailable, errors.Join(unbiased.err, biased.err))
	}

	f.record("ok")
	logging.LogOperation(f.logger, "walking route selected",
		slog.Float64("bias", chosen.Bias),
		slog.Float64("duration_s", chosen.DurationSeconds),
		slog.Float64("distance_m", chosen.DistanceMeters))

	return Result{Candidate: chosen, Origin: origin, Destination: destination}, nil
}

func (f *Fetcher) runTrial(ctx context.Context, origin, destination models.Coordinates, bias float64) trial {
	start := time.Now()
	candidate, err := f.router.Walking(ctx, origin, destination, bias)
	elapsed := time.Since(start).Seconds()
	candidate.Bias = bias

	outcome := "ok"
	switch {
	case errors.Is(err, ErrNoRouteFound):
		outcome = "no_route"
	case err != nil:
		outcome = "unavailable"
	}
	attrs := metric.WithAttributes(
		attribute.Float64("bias", bias),
		attribute.String("outcome", outcome),
	)
	f.instruments.trials.Add(ctx, 1, attrs)
	f.instruments.trialTime.Record(ctx, elapsed, attrs)

	if err != nil {
		logging.LogError(f.logger, "walking directions trial failed", err,
			slog.Float64("bias", bias),
			slog.String("origin", origin.String()),
			slog.String("destination", destination.String()))
	}
	return trial{candidate: candidate, err: err}
}

func (f *Fetcher) record(outcome string) {
	f.instruments.fetches.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("outcome", outcome)))
}
