package restapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"ubicate.osuc.dev/internal/models"
	"ubicate.osuc.dev/internal/places"
	"ubicate.osuc.dev/internal/utils"
)

type placeEntry struct {
	Identifier  string          `json:"identifier"`
	Name        string          `json:"name"`
	Information string          `json:"information,omitempty"`
	Categories  []string        `json:"categories"`
	Campus      string          `json:"campus"`
	Faculties   []string        `json:"faculties,omitempty"`
	Floors      []int           `json:"floors"`
	Geometry    json.RawMessage `json:"geometry"`
	// Destination is where a route to the place ends; absent for geometries that cannot be routed to.
	Destination *models.Coordinates `json:"destination,omitempty"`
	Routable    bool                `json:"routable"`
}

func (api *RestAPI) newPlaceEntry(p places.Place) placeEntry {
	entry := placeEntry{
		Identifier:  p.Identifier,
		Name:        p.Name,
		Information: p.Information,
		Categories:  p.Categories,
		Campus:      p.Campus,
		Faculties:   p.Faculties,
		Floors:      p.Floors,
		Geometry:    p.Geometry,
	}
	if dest, err := p.Destination(); err == nil {
		entry.Destination = &dest
		entry.Routable = api.Campuses.RoutingEnabled(p.Campus)
	}
	return entry
}

func (api *RestAPI) placeHandler(w http.ResponseWriter, r *http.Request) {
	id := utils.ExtractIDFromParams(r)
	if err := utils.ValidateID(id); err != nil {
		api.validationErrorResponse(w, r, map[string][]string{"id": {err.Error()}})
		return
	}

	place, err := api.Places.Get(r.Context(), id)
	if errors.Is(err, places.ErrPlaceNotFound) {
		api.sendNotFound(w, r)
		return
	}
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}

	api.sendEntry(w, r, api.newPlaceEntry(place))
}

func (api *RestAPI) placesHandler(w http.ResponseWriter, r *http.Request) {
	campusName := r.URL.Query().Get("campus")
	if campusName != "" {
		c, ok := api.Campuses.Lookup(campusName)
		if !ok {
			api.validationErrorResponse(w, r, map[string][]string{"campus": {"unknown campus"}})
			return
		}
		campusName = c.ID
	}

	found, err := api.Places.List(r.Context(), campusName)
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}

	list := make([]placeEntry, 0, len(found))
	for _, p := range found {
		list = append(list, api.newPlaceEntry(p))
	}
	api.sendList(w, r, list)
}
