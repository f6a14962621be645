package position

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "ubicate.osuc.dev/internal/position"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

type instruments struct {
	sensorStarts metric.Int64Counter
	sensorStops  metric.Int64Counter
	sensorErrors metric.Int64Counter
	subscribers  metric.Int64UpDownCounter
}

// newInstruments uses the global meter provider and falls back to no-op instruments
// when registration fails.
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

	inst.sensorStarts, err = m.Int64Counter(
		"position.sensor.starts",
		metric.WithDescription("Times the shared location sensor was started"),
	)
	if err != nil {
		return inst, err
	}

	inst.sensorStops, err = m.Int64Counter(
		"position.sensor.stops",
		metric.WithDescription("Times the shared location sensor was stopped"),
	)
	if err != nil {
		return inst, err
	}

	inst.sensorErrors, err = m.Int64Counter(
		"position.sensor.errors",
		metric.WithDescription("Sensor errors broadcast to subscribers"),
	)
	if err != nil {
		return inst, err
	}

	inst.subscribers, err = m.Int64UpDownCounter(
		"position.subscribers",
		metric.WithDescription("Live position subscriptions"),
	)
	return inst, err
}
