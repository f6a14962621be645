package restapi

import (
	"errors"
	"net/http"

	"ubicate.osuc.dev/internal/directions"
	"ubicate.osuc.dev/internal/navigation"
	"ubicate.osuc.dev/internal/places"
	"ubicate.osuc.dev/internal/utils"
)

type routeEntry struct {
	Duration        string            `json:"duration"`
	DurationMinutes int               `json:"durationMinutes"`
	Distance        string            `json:"distance"`
	DistanceMeters  int               `json:"distanceMeters"`
	Polyline        string            `json:"polyline"`
	Heading         string            `json:"heading,omitempty"`
	Bias            float64           `json:"walkwayBias"`
	Steps           []directions.Step `json:"steps"`
}

type directionsEntry struct {
	Button string `json:"button"`
	navigation.Status
	Route *routeEntry `json:"route,omitempty"`
}

func newDirectionsEntry(button string, status navigation.Status) directionsEntry {
	entry := directionsEntry{Button: button, Status: status}
	if r := status.Route; r != nil {
		steps := r.Steps
		if steps == nil {
			steps = []directions.Step{}
		}
		entry.Route = &routeEntry{
			Duration:        r.FormatDuration(),
			DurationMinutes: r.DurationMinutes(),
			Distance:        r.FormatDistance(),
			DistanceMeters:  r.WholeMeters(),
			Polyline:        r.EncodedPolyline(),
			Heading:         r.InitialHeading(),
			Bias:            r.Bias,
			Steps:           steps,
		}
	}
	return entry
}

// buttonID extracts and validates the directions control id, writing the error response itself.
func (api *RestAPI) buttonID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := utils.ExtractIDFromParams(r)
	if err := utils.ValidateID(id); err != nil {
		api.validationErrorResponse(w, r, map[string][]string{"id": {err.Error()}})
		return "", false
	}
	return id, true
}

// requestDirectionsHandler is a tap on a directions control.
func (api *RestAPI) requestDirectionsHandler(w http.ResponseWriter, r *http.Request) {
	button, ok := api.buttonID(w, r)
	if !ok {
		return
	}

	placeID := r.URL.Query().Get("place")
	if err := utils.ValidateID(placeID); err != nil {
		api.validationErrorResponse(w, r, map[string][]string{"place": {err.Error()}})
		return
	}

	place, err := api.Places.Get(r.Context(), placeID)
	if errors.Is(err, places.ErrPlaceNotFound) {
		api.sendNotFound(w, r)
		return
	}
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}

	coordinator, err := api.Navigation.Get(button)
	if errors.Is(err, navigation.ErrTooManyCoordinators) {
		api.tooManyResponse(w, r, "too many directions controls")
		return
	}
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}

	api.sendEntry(w, r, newDirectionsEntry(button, coordinator.Request(place)))
}

func (api *RestAPI) directionsStatusHandler(w http.ResponseWriter, r *http.Request) {
	button, ok := api.buttonID(w, r)
	if !ok {
		return
	}

	coordinator, found := api.Navigation.Lookup(button)
	if !found {
		api.sendEntry(w, r, newDirectionsEntry(button, navigation.Status{State: navigation.Idle}))
		return
	}
	api.sendEntry(w, r, newDirectionsEntry(button, coordinator.Status()))
}

func (api *RestAPI) cancelDirectionsHandler(w http.ResponseWriter, r *http.Request) {
	button, ok := api.buttonID(w, r)
	if !ok {
		return
	}

	coordinator, found := api.Navigation.Lookup(button)
	if !found {
		api.sendNotFound(w, r)
		return
	}
	api.sendEntry(w, r, newDirectionsEntry(button, coordinator.Cancel()))
}
