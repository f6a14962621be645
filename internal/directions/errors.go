package directions

import "errors"

var (
	// ErrRouteServiceUnavailable covers transport failures, bad HTTP statuses and unexpected service codes.
	ErrRouteServiceUnavailable = errors.New("walking directions service unavailable")
	// ErrNoRouteFound means the service answered but has no walkable path between the points.
	ErrNoRouteFound = errors.New("no walking route found")
)

// noRouteCodes are the service codes that mean "answered, but no path".
var noRouteCodes = map[string]bool{
	"NoRoute":   true,
	"NoSegment": true,
}
