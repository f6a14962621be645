package restapi

import (
	"errors"
	"net/http"

	"ubicate.osuc.dev/internal/position"
	"ubicate.osuc.dev/internal/utils"
)

type orientationBody struct {
	// Alpha is null when the device reports no heading.
	Alpha *float64 `json:"alpha"`
}

type calibrationEntry struct {
	Cardinal   string   `json:"cardinal"`
	Alpha      *float64 `json:"alpha"`
	Calibrated bool     `json:"calibrated"`
}

func (api *RestAPI) pushOrientationHandler(w http.ResponseWriter, r *http.Request) {
	var body orientationBody
	if !api.decodeBody(w, r, &body) {
		return
	}
	if body.Alpha != nil {
		if err := utils.ValidateAngle(*body.Alpha); err != nil {
			api.validationErrorResponse(w, r, map[string][]string{"alpha": {err.Error()}})
			return
		}
	}

	accepted := api.Orientation.Push(position.OrientationSample{Alpha: body.Alpha})
	api.sendEntry(w, r, pushEntry{Accepted: accepted})
}

func (api *RestAPI) calibrateCompassHandler(w http.ResponseWriter, r *http.Request) {
	err := api.Position.Calibrate()
	switch {
	case errors.Is(err, position.ErrOrientationUnavailable):
		api.conflictResponse(w, r, "orientation is not being tracked")
		return
	case errors.Is(err, position.ErrNoOrientationData):
		api.conflictResponse(w, r, "no orientation reading yet")
		return
	case err != nil:
		api.serverErrorResponse(w, r, err)
		return
	}

	snap := api.Position.Current()
	api.sendEntry(w, r, calibrationEntry{
		Cardinal:   snap.Cardinal,
		Alpha:      snap.Alpha,
		Calibrated: snap.Calibrated,
	})
}
