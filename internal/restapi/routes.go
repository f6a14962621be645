package restapi

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

const locationStreamPath = "/api/where/location/stream"

type handlerFunc func(w http.ResponseWriter, r *http.Request)

func validateAPIKey(api *RestAPI, finalHandler handlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if api.RequestHasInvalidAPIKey(r) {
			api.invalidAPIKeyResponse(w, r)
			return
		}
		finalHandler(w, r)
	})
}

// Routes registers every endpoint. Path parameters may carry a ".json" suffix.
func (api *RestAPI) Routes() *httprouter.Router {
	router := httprouter.New()
	router.HandleMethodNotAllowed = true
	router.HandleOPTIONS = false
	router.NotFound = http.HandlerFunc(api.sendNotFound)

	handle := func(method, path string, h handlerFunc) {
		router.Handler(method, path, validateAPIKey(api, h))
	}

	handle(http.MethodGet, "/api/where/location.json", api.currentLocationHandler)
	handle(http.MethodPost, "/api/where/location.json", api.pushLocationHandler)
	handle(http.MethodGet, locationStreamPath, api.locationStreamHandler)
	handle(http.MethodPost, locationStreamPath+"/:id", api.streamMapBearingHandler)
	handle(http.MethodPost, "/api/where/orientation.json", api.pushOrientationHandler)
	handle(http.MethodPost, "/api/where/compass/calibrate.json", api.calibrateCompassHandler)
	handle(http.MethodGet, "/api/where/bearing.json", api.bearingHandler)

	handle(http.MethodGet, "/api/where/campuses.json", api.campusesHandler)
	handle(http.MethodGet, "/api/where/campus-for-location.json", api.campusForLocationHandler)
	handle(http.MethodGet, "/api/where/places.json", api.placesHandler)
	handle(http.MethodGet, "/api/where/place/:id", api.placeHandler)

	handle(http.MethodGet, "/api/where/directions/:id", api.directionsStatusHandler)
	handle(http.MethodPost, "/api/where/directions/:id", api.requestDirectionsHandler)
	handle(http.MethodDelete, "/api/where/directions/:id", api.cancelDirectionsHandler)

	return router
}
