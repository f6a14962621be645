package navigation

import (
	"errors"
	"fmt"

	"ubicate.osuc.dev/internal/directions"
)

var (
	// ErrLocationAcquisitionTimeout is the coordinator's bounded wait expiring, not a sensor timeout.
	ErrLocationAcquisitionTimeout = errors.New("could not acquire location")
	ErrDestinationOutOfBounds     = errors.New("destination is outside campus bounds")
	ErrOriginOutOfBounds          = errors.New("origin is outside campus bounds")
	ErrRoutingUnavailable         = errors.New("routing is not enabled for this campus")
	ErrCrossCampus                = errors.New("origin and destination are on different campuses")
	ErrUnroutablePlace            = errors.New("place cannot be routed to")
	ErrTooManyCoordinators        = errors.New("too many directions controls")
)

// ErrorKind returns the stable identifier of a failure, used by API clients.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrLocationAcquisitionTimeout):
		return "location_acquisition_timeout"
	case errors.Is(err, ErrDestinationOutOfBounds):
		return "destination_out_of_bounds"
	case errors.Is(err, ErrOriginOutOfBounds):
		return "origin_out_of_bounds"
	case errors.Is(err, ErrRoutingUnavailable):
		return "routing_unavailable"
	case errors.Is(err, ErrCrossCampus):
		return "cross_campus"
	case errors.Is(err, ErrUnroutablePlace):
		return "unroutable_place"
	case errors.Is(err, directions.ErrNoRouteFound):
		return "no_route_found"
	case errors.Is(err, directions.ErrRouteServiceUnavailable):
		return "route_service_unavailable"
	default:
		return "unknown"
	}
}

// reason is the short message shown to the user for a failure.
func reason(err error, campusName string) string {
	switch {
	case errors.Is(err, ErrLocationAcquisitionTimeout):
		return "We could not get your location. Check that location permissions are enabled."
	case errors.Is(err, ErrDestinationOutOfBounds):
		return "The destination is not inside any campus. Please report this place."
	case errors.Is(err, ErrOriginOutOfBounds):
		return "We cannot compute a route while you are outside the campus."
	case errors.Is(err, ErrRoutingUnavailable):
		if campusName == "" {
			return "Routes are not active for this campus."
		}
		return fmt.Sprintf("Routes on %s are not active.", campusName)
	case errors.Is(err, ErrCrossCampus):
		return "We cannot compute a route between different campuses."
	case errors.Is(err, ErrUnroutablePlace):
		return "We cannot compute a route to this place."
	default:
		return "We could not get the route."
	}
}
