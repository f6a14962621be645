package restapi

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectionsFlow(t *testing.T) {
	api := createTestApi(t)
	server := newTestServer(t, api)

	resp, model := doRequest(t, server, http.MethodGet, "/api/where/directions/btn-1.json?key=TEST", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "idle", entryOf(t, model)["state"])

	resp, model = doRequest(t, server, http.MethodPost, "/api/where/directions/btn-1.json?key=TEST&place=sj-lib", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entry := entryOf(t, model)
	assert.Equal(t, "awaiting_location", entry["state"])
	assert.Equal(t, "btn-1", entry["button"])
	assert.Equal(t, "sj-lib", entry["placeId"])
	assert.True(t, api.Position.Watching())

	resp, model = doRequest(t, server, http.MethodPost, "/api/where/location.json?key=TEST",
		map[string]float64{"lng": sjOriginForTest.Lng, "lat": sjOriginForTest.Lat})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, entryOf(t, model)["accepted"])

	require.Eventually(t, func() bool {
		_, model := doRequest(t, server, http.MethodGet, "/api/where/directions/btn-1.json?key=TEST", nil)
		return entryOf(t, model)["state"] == "succeeded"
	}, 2*time.Second, 10*time.Millisecond)

	_, model = doRequest(t, server, http.MethodGet, "/api/where/directions/btn-1.json?key=TEST", nil)
	entry = entryOf(t, model)
	route, ok := entry["route"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "6 min", route["duration"])
	assert.Equal(t, "520 m", route["distance"])
	assert.InDelta(t, -0.2, route["walkwayBias"], 1e-9)
	assert.Equal(t, "E", route["heading"])
	assert.NotEmpty(t, route["polyline"])
	assert.Len(t, route["steps"], 2)
	assert.NotContains(t, entry, "reason")

	require.Eventually(t, func() bool { return !api.Position.Watching() }, time.Second, 5*time.Millisecond)
}

func TestDirectionsImmediateFailures(t *testing.T) {
	server := newTestServer(t, createTestApi(t))

	tests := []struct {
		name     string
		button   string
		place    string
		wantKind string
	}{
		{name: "campus without routing", button: "cc", place: "cc-patio", wantKind: "routing_unavailable"},
		{name: "line geometry", button: "path", place: "sj-path", wantKind: "unroutable_place"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, model := doRequest(t, server, http.MethodPost, "/api/where/directions/"+tt.button+".json?key=TEST&place="+tt.place, nil)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			entry := entryOf(t, model)
			assert.Equal(t, "failed", entry["state"])
			assert.Equal(t, tt.wantKind, entry["errorKind"])
			assert.NotEmpty(t, entry["reason"])
		})
	}
}

func TestDirectionsCancel(t *testing.T) {
	api := createTestApi(t)
	server := newTestServer(t, api)

	resp, _ := doRequest(t, server, http.MethodDelete, "/api/where/directions/btn-2.json?key=TEST", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "unknown control")

	_, model := doRequest(t, server, http.MethodPost, "/api/where/directions/btn-2.json?key=TEST&place=sj-hall", nil)
	require.Equal(t, "awaiting_location", entryOf(t, model)["state"])

	resp, model = doRequest(t, server, http.MethodDelete, "/api/where/directions/btn-2.json?key=TEST", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "cancelled", entryOf(t, model)["state"])
	assert.False(t, api.Position.Watching())

	// a second tap on a cancelled control starts over
	_, model = doRequest(t, server, http.MethodPost, "/api/where/directions/btn-2.json?key=TEST&place=sj-hall", nil)
	assert.Equal(t, "awaiting_location", entryOf(t, model)["state"])
}

func TestDirectionsTapWhileAwaitingCancels(t *testing.T) {
	server := newTestServer(t, createTestApi(t))

	_, model := doRequest(t, server, http.MethodPost, "/api/where/directions/btn-3.json?key=TEST&place=sj-lib", nil)
	require.Equal(t, "awaiting_location", entryOf(t, model)["state"])

	_, model = doRequest(t, server, http.MethodPost, "/api/where/directions/btn-3.json?key=TEST&place=sj-lib", nil)
	assert.Equal(t, "cancelled", entryOf(t, model)["state"])
}

func TestDirectionsRequestValidation(t *testing.T) {
	server := newTestServer(t, createTestApi(t))

	tests := []struct {
		name       string
		endpoint   string
		wantStatus int
	}{
		{name: "missing place", endpoint: "/api/where/directions/btn.json?key=TEST", wantStatus: http.StatusBadRequest},
		{name: "unknown place", endpoint: "/api/where/directions/btn.json?key=TEST&place=nope", wantStatus: http.StatusNotFound},
		{name: "bad button id", endpoint: "/api/where/directions/b%21n.json?key=TEST&place=sj-lib", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := doRequest(t, server, http.MethodPost, tt.endpoint, nil)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}
