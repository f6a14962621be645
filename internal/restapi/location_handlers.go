package restapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"ubicate.osuc.dev/internal/models"
	"ubicate.osuc.dev/internal/position"
	"ubicate.osuc.dev/internal/utils"
)

const (
	maxBodyBytes = 1 << 16
	maxWait      = 60 * time.Second
)

// locationBody is one browser geolocation callback: either a fix or an error.
type locationBody struct {
	Lng   *float64           `json:"lng" validate:"required_without=Error,omitempty,longitude"`
	Lat   *float64           `json:"lat" validate:"required_without=Error,omitempty,latitude"`
	Error *locationErrorBody `json:"error"`
}

type locationErrorBody struct {
	Code    int    `json:"code"`
	Name    string `json:"name"`
	Message string `json:"message" validate:"max=500"`
}

type locationEntry struct {
	position.Snapshot
	HasLocation bool   `json:"hasLocation"`
	Watching    bool   `json:"watching"`
	Platform    string `json:"platform"`
}

type pushEntry struct {
	// Accepted is false when no watch was active, in which case the reading is dropped.
	Accepted bool `json:"accepted"`
}

func (api *RestAPI) locationEntry(snap position.Snapshot) locationEntry {
	return locationEntry{
		Snapshot:    snap,
		HasLocation: snap.HasLocation(),
		Watching:    api.Position.Watching(),
		Platform:    string(api.Platform),
	}
}

// decodeBody decodes a JSON body and runs struct validation, writing the error response itself.
func (api *RestAPI) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		api.validationErrorResponse(w, r, map[string][]string{"body": {"Invalid JSON body."}})
		return false
	}
	if err := api.validate.Struct(dst); err != nil {
		api.validationErrorResponse(w, r, fieldErrorsFrom(err))
		return false
	}
	return true
}

func (api *RestAPI) currentLocationHandler(w http.ResponseWriter, r *http.Request) {
	fieldErrors := make(map[string][]string)
	wait, hasWait := utils.ParseFloatParam(r.URL.Query(), "wait", fieldErrors)
	if hasWait && (wait <= 0 || time.Duration(wait*float64(time.Second)) > maxWait) {
		fieldErrors["wait"] = append(fieldErrors["wait"], fmt.Sprintf("wait must be between 0 and %d seconds", int(maxWait.Seconds())))
	}
	if len(fieldErrors) > 0 {
		api.validationErrorResponse(w, r, fieldErrors)
		return
	}

	if !hasWait {
		api.sendEntry(w, r, api.locationEntry(api.Position.Current()))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(wait*float64(time.Second)))
	defer cancel()

	_, err := api.Position.RequestLocation(ctx)
	var sensorErr *position.SensorError
	switch {
	case err == nil, errors.As(err, &sensorErr):
		snap := api.Position.Current()
		if sensorErr != nil {
			snap.Err = sensorErr
		}
		api.sendEntry(w, r, api.locationEntry(snap))
	case errors.Is(err, position.ErrServiceClosed):
		api.conflictResponse(w, r, "location service is shutting down")
	default:
		api.serverErrorResponse(w, r, err)
	}
}

func (api *RestAPI) pushLocationHandler(w http.ResponseWriter, r *http.Request) {
	if api.Platform != position.PlatformWeb {
		api.conflictResponse(w, r, "location is read from the native sensor")
		return
	}

	var body locationBody
	if !api.decodeBody(w, r, &body) {
		return
	}

	if body.Error != nil {
		code, err := position.ParseSensorErrorCode(body.Error.Code, body.Error.Name)
		if err != nil {
			api.validationErrorResponse(w, r, map[string][]string{"error.code": {err.Error()}})
			return
		}
		accepted := api.WebSensor.PushError(position.NewSensorError(code, body.Error.Message))
		api.sendEntry(w, r, pushEntry{Accepted: accepted})
		return
	}

	accepted := api.WebSensor.Push(models.Coordinates{Lng: *body.Lng, Lat: *body.Lat})
	api.sendEntry(w, r, pushEntry{Accepted: accepted})
}
