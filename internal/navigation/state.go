package navigation

import (
	"fmt"
	"time"

	"ubicate.osuc.dev/internal/directions"
	"ubicate.osuc.dev/internal/models"
)

// State of one directions control.
type State int

const (
	Idle State = iota
	AwaitingLocation
	ComputingRoute
	Succeeded
	Failed
	Cancelled
)

var stateNames = [...]string{
	Idle:             "idle",
	AwaitingLocation: "awaiting_location",
	ComputingRoute:   "computing_route",
	Succeeded:        "succeeded",
	Failed:           "failed",
	Cancelled:        "cancelled",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether the next request starts a new attempt from Idle.
func (s State) Terminal() bool {
	return s == Succeeded || s == Failed || s == Cancelled
}

// Status is an immutable view of a coordinator.
type Status struct {
	Seq         uint64              `json:"-"`
	State       State               `json:"state"`
	Attempt     uint64              `json:"attempt"`
	PlaceID     string              `json:"placeId,omitempty"`
	PlaceName   string              `json:"placeName,omitempty"`
	Origin      *models.Coordinates `json:"origin,omitempty"`
	Destination *models.Coordinates `json:"destination,omitempty"`
	Reason      string              `json:"reason,omitempty"`
	ErrorKind   string              `json:"errorKind,omitempty"`
	Err         error               `json:"-"`
	Route       *directions.Result  `json:"-"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}
