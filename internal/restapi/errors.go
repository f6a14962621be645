package restapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"ubicate.osuc.dev/internal/logging"
	"ubicate.osuc.dev/internal/models"
)

// errorEnvelope is the body of every non-2xx response. Errors carry version 1.
type errorEnvelope struct {
	Code        int    `json:"code"`
	CurrentTime int64  `json:"currentTime"`
	Text        string `json:"text"`
	Version     int    `json:"version"`
}

func (api *RestAPI) writeError(w http.ResponseWriter, status int, text string) {
	setJSONResponseType(w)
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(errorEnvelope{
		Code:        status,
		CurrentTime: models.ResponseCurrentTime(),
		Text:        text,
		Version:     1,
	})
	if err != nil {
		logging.LogError(api.Logger, "failed to encode error response", err, slog.Int("status", status))
	}
}

func (api *RestAPI) invalidAPIKeyResponse(w http.ResponseWriter, r *http.Request) {
	api.writeError(w, http.StatusUnauthorized, "permission denied")
}

func (api *RestAPI) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	logging.LogError(logging.FromContext(r.Context()), "request failed", err,
		slog.String("path", r.URL.Path))
	api.writeError(w, http.StatusInternalServerError, "internal server error")
}

func (api *RestAPI) sendNotFound(w http.ResponseWriter, r *http.Request) {
	api.writeError(w, http.StatusNotFound, "resource not found")
}

// conflictResponse reports a request the current server state cannot honour.
func (api *RestAPI) conflictResponse(w http.ResponseWriter, r *http.Request, text string) {
	api.writeError(w, http.StatusConflict, text)
}

func (api *RestAPI) tooManyResponse(w http.ResponseWriter, r *http.Request, text string) {
	api.writeError(w, http.StatusTooManyRequests, text)
}

// validationErrorResponse sends a 400 Bad Request response with field-specific validation errors
func (api *RestAPI) validationErrorResponse(w http.ResponseWriter, r *http.Request, fieldErrors map[string][]string) {
	setJSONResponseType(w)
	w.WriteHeader(http.StatusBadRequest)
	response := struct {
		FieldErrors map[string][]string `json:"fieldErrors"`
	}{
		FieldErrors: fieldErrors,
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logging.LogError(api.Logger, "failed to encode validation error response", err)
	}
}
