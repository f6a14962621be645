package restapi

import (
	"net/http"

	"ubicate.osuc.dev/internal/campus"
	"ubicate.osuc.dev/internal/models"
	"ubicate.osuc.dev/internal/utils"
)

type campusEntry struct {
	ID      string              `json:"id"`
	Name    string              `json:"name"`
	Routing bool                `json:"routing"`
	Core    campus.Bounds       `json:"core"`
	Max     campus.Bounds       `json:"max"`
	Entry   *models.Coordinates `json:"entry,omitempty"`
	// InCore is set on lookups by point: whether the point is inside the built-up area.
	InCore *bool `json:"inCore,omitempty"`
}

func newCampusEntry(c campus.Campus) campusEntry {
	entry := campusEntry{
		ID:      c.ID,
		Name:    c.Name,
		Routing: c.Routing,
		Core:    c.Core,
		Max:     c.Max,
	}
	if p, ok := c.EntryPoint(); ok {
		entry.Entry = &p
	}
	return entry
}

func (api *RestAPI) campusesHandler(w http.ResponseWriter, r *http.Request) {
	all := api.Campuses.All()
	list := make([]campusEntry, 0, len(all))
	for _, c := range all {
		list = append(list, newCampusEntry(c))
	}
	api.sendList(w, r, list)
}

func (api *RestAPI) campusForLocationHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	fieldErrors := make(map[string][]string)

	lat, latOK := utils.ParseFloatParam(query, "lat", fieldErrors)
	lon, lonOK := utils.ParseFloatParam(query, "lon", fieldErrors)
	if !latOK && len(fieldErrors["lat"]) == 0 {
		fieldErrors["lat"] = []string{`Missing required field "lat".`}
	}
	if !lonOK && len(fieldErrors["lon"]) == 0 {
		fieldErrors["lon"] = []string{`Missing required field "lon".`}
	}
	if latOK && lonOK {
		for k, v := range utils.ValidateLocationParams(lat, lon) {
			fieldErrors[k] = append(fieldErrors[k], v...)
		}
	}
	if len(fieldErrors) > 0 {
		api.validationErrorResponse(w, r, fieldErrors)
		return
	}

	point := models.Coordinates{Lng: lon, Lat: lat}
	found, ok := api.Campuses.CampusForPoint(point)
	if !ok {
		api.sendNotFound(w, r)
		return
	}

	entry := newCampusEntry(found)
	inCore := found.InCore(point)
	entry.InCore = &inCore
	api.sendEntry(w, r, entry)
}
