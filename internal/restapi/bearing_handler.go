package restapi

import (
	"net/http"

	"ubicate.osuc.dev/internal/utils"
)

type bearingEntry struct {
	Alpha      float64 `json:"alpha"`
	MapBearing float64 `json:"mapBearing"`
	Rotation   float64 `json:"rotation"`
	Cardinal   string  `json:"cardinal"`
}

// bearingHandler exposes the stateless heading math so thin clients need not reimplement it.
func (api *RestAPI) bearingHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	fieldErrors := make(map[string][]string)

	alpha, ok := utils.ParseFloatParam(query, "alpha", fieldErrors)
	if !ok && len(fieldErrors["alpha"]) == 0 {
		fieldErrors["alpha"] = []string{`Missing required field "alpha".`}
	} else if ok {
		if err := utils.ValidateAngle(alpha); err != nil {
			fieldErrors["alpha"] = append(fieldErrors["alpha"], err.Error())
		}
	}

	mapBearing, ok := utils.ParseFloatParam(query, "mapBearing", fieldErrors)
	if ok {
		if err := utils.ValidateAngle(mapBearing); err != nil {
			fieldErrors["mapBearing"] = append(fieldErrors["mapBearing"], err.Error())
		}
	}

	points := int(utils.EightPoints)
	if p, ok := utils.ParseIntParam(query, "points", fieldErrors); ok {
		if err := utils.ValidateCardinalPoints(p); err != nil {
			fieldErrors["points"] = append(fieldErrors["points"], err.Error())
		}
		points = p
	}

	if len(fieldErrors) > 0 {
		api.validationErrorResponse(w, r, fieldErrors)
		return
	}

	normalized := utils.NormalizeAngle(alpha)
	api.sendEntry(w, r, bearingEntry{
		Alpha:      normalized,
		MapBearing: utils.NormalizeAngle(mapBearing),
		Rotation:   utils.DisplayRotation(normalized, mapBearing),
		Cardinal:   utils.Cardinal(normalized, utils.CardinalPoints(points)),
	})
}
