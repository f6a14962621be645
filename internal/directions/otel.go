package directions

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "ubicate.osuc.dev/internal/directions"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

type instruments struct {
	trials    metric.Int64Counter
	fetches   metric.Int64Counter
	trialTime metric.Float64Histogram
}

func newInstruments() (instruments, error) {
	inst, err := buildInstruments(meter())
	if err != nil {
		fallback, _ := buildInstruments(noop.NewMeterProvider().Meter(instrumentationName))
		return fallback, err
	}
	return inst, nil
}

func buildInstruments(m metric.Meter) (instruments, error) {
	var inst instruments
	var err error

	inst.trials, err = m.Int64Counter(
		"directions.trials",
		metric.WithDescription("Walking direction calls by bias and outcome"),
	)
	if err != nil {
		return inst, err
	}

	inst.fetches, err = m.Int64Counter(
		"directions.fetches",
		metric.WithDescription("Best-route fetches by outcome"),
	)
	if err != nil {
		return inst, err
	}

	inst.trialTime, err = m.Float64Histogram(
		"directions.trial.duration",
		metric.WithDescription("Latency of a single walking direction call"),
		metric.WithUnit("s"),
	)
	return inst, err
}
