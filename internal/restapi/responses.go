package restapi

import (
	"encoding/json"
	"net/http"

	"ubicate.osuc.dev/internal/models"
)

func (api *RestAPI) sendResponse(w http.ResponseWriter, r *http.Request, response models.ResponseModel) {
	setJSONResponseType(w)
	if response.Code != 0 && response.Code != http.StatusOK {
		w.WriteHeader(response.Code)
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		api.serverErrorResponse(w, r, err)
	}
}

func (api *RestAPI) sendEntry(w http.ResponseWriter, r *http.Request, entry interface{}) {
	api.sendResponse(w, r, models.NewEntryResponse(entry))
}

func (api *RestAPI) sendList(w http.ResponseWriter, r *http.Request, list interface{}) {
	api.sendResponse(w, r, models.NewListResponse(list))
}

func setJSONResponseType(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
}
