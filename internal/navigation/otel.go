package navigation

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "ubicate.osuc.dev/internal/navigation"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

type instruments struct {
	requests metric.Int64Counter
	outcomes metric.Int64Counter
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

	inst.requests, err = m.Int64Counter(
		"navigation.requests",
		metric.WithDescription("Directions taps by the state they found the coordinator in"),
	)
	if err != nil {
		return inst, err
	}

	inst.outcomes, err = m.Int64Counter(
		"navigation.outcomes",
		metric.WithDescription("Finished directions attempts by terminal state and error kind"),
	)
	return inst, err
}
