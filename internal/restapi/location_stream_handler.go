package restapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"ubicate.osuc.dev/internal/logging"
	"ubicate.osuc.dev/internal/position"
	"ubicate.osuc.dev/internal/utils"
)

var streamHeartbeat = 15 * time.Second

// streamSet indexes open location streams so a client can retune one without reconnecting.
type streamSet struct {
	mu      sync.Mutex
	streams map[string]*position.TrackingController
}

func newStreamSet() *streamSet {
	return &streamSet{streams: make(map[string]*position.TrackingController)}
}

func (s *streamSet) add(tracker *position.TrackingController) string {
	id := uuid.NewString()
	s.mu.Lock()
	s.streams[id] = tracker
	s.mu.Unlock()
	return id
}

func (s *streamSet) remove(id string) {
	s.mu.Lock()
	delete(s.streams, id)
	s.mu.Unlock()
}

func (s *streamSet) get(id string) (*position.TrackingController, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tracker, ok := s.streams[id]
	return tracker, ok
}

type streamEntry struct {
	ID string `json:"id"`
}

type mapBearingBody struct {
	MapBearing *float64 `json:"mapBearing"`
}

// locationStreamHandler streams the view of one tracking widget as Server-Sent Events.
// Each connection is its own TrackingController, so closing one stream never stops another.
func (api *RestAPI) locationStreamHandler(w http.ResponseWriter, r *http.Request) {
	fieldErrors := make(map[string][]string)
	mapBearing, ok := utils.ParseFloatParam(r.URL.Query(), "mapBearing", fieldErrors)
	if ok {
		if err := utils.ValidateAngle(mapBearing); err != nil {
			fieldErrors["mapBearing"] = append(fieldErrors["mapBearing"], err.Error())
		}
	}
	if len(fieldErrors) > 0 {
		api.validationErrorResponse(w, r, fieldErrors)
		return
	}

	logger := logging.FromContext(r.Context()).With(slog.String("component", "location_stream"))
	rc := http.NewResponseController(w)

	tracker := position.NewTrackingController(api.Position, position.ControllerOptions{MapBearing: mapBearing})
	defer tracker.Close()
	streamID := api.streams.add(tracker)
	defer api.streams.remove(streamID)
	logger = logger.With(slog.String("stream_id", streamID))

	// only the latest view matters to a slow reader
	views := make(chan position.View, 1)
	remove := tracker.OnUpdate(func(v position.View) {
		for {
			select {
			case views <- v:
				return
			default:
			}
			select {
			case <-views:
			default:
			}
		}
	})
	defer remove()

	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		logger.Debug("write deadline not adjustable", slog.String("error", err.Error()))
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-store")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// the first event names the stream for later map bearing updates
	if err := writeEvent(w, "stream", streamEntry{ID: streamID}); err != nil {
		logging.LogError(logger, "location stream write failed", err)
		return
	}

	tracker.SetTracking(true)
	logging.LogOperation(logger, "location stream opened", slog.Float64("map_bearing", mapBearing))

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	for {
		var err error
		select {
		case <-r.Context().Done():
			logging.LogOperation(logger, "location stream closed")
			return
		case v := <-views:
			err = writeEvent(w, "position", v)
		case <-heartbeat.C:
			_, err = fmt.Fprint(w, ": ping\n\n")
		}
		if err == nil {
			err = rc.Flush()
		}
		if err != nil {
			logging.LogError(logger, "location stream write failed", err)
			return
		}
	}
}

// streamMapBearingHandler changes the map bearing of an open stream. The stream emits a
// fresh view with the new rotation.
func (api *RestAPI) streamMapBearingHandler(w http.ResponseWriter, r *http.Request) {
	id := utils.ExtractIDFromParams(r)
	tracker, ok := api.streams.get(id)
	if !ok {
		api.sendNotFound(w, r)
		return
	}

	var body mapBearingBody
	if !api.decodeBody(w, r, &body) {
		return
	}
	if body.MapBearing == nil {
		api.validationErrorResponse(w, r, map[string][]string{"mapBearing": {"mapBearing is required"}})
		return
	}
	if err := utils.ValidateAngle(*body.MapBearing); err != nil {
		api.validationErrorResponse(w, r, map[string][]string{"mapBearing": {err.Error()}})
		return
	}

	tracker.SetMapBearing(*body.MapBearing)
	api.sendEntry(w, r, tracker.Snapshot())
}

func writeEvent(w http.ResponseWriter, event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
