package restapi

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"ubicate.osuc.dev/internal/logging"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	tests := []struct {
		name        string
		rate        int
		key         string
		exempt      []string
		requests    int
		wantAllowed int
	}{
		{name: "burst then blocked", rate: 5, key: "web", requests: 10, wantAllowed: 5},
		{name: "requests without key share a bucket", rate: 3, key: "", requests: 6, wantAllowed: 3},
		{name: "exempt key", rate: 1, key: "kiosk", exempt: []string{"kiosk"}, requests: 10, wantAllowed: 10},
		{name: "zero rate blocks everything", rate: 0, key: "web", requests: 3, wantAllowed: 0},
		{name: "negative rate disables limiting", rate: -1, key: "web", requests: 20, wantAllowed: 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := NewRateLimitMiddleware(tt.rate, time.Minute, tt.exempt...)
			t.Cleanup(rl.Stop)
			handler := rl.Handler(okHandler())

			allowed := 0
			for i := 0; i < tt.requests; i++ {
				w := httptest.NewRecorder()
				handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/where/bearing.json?key="+tt.key, nil))
				switch w.Code {
				case http.StatusOK:
					allowed++
				case http.StatusTooManyRequests:
					assert.NotEmpty(t, w.Header().Get("Retry-After"))
					assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
				default:
					t.Fatalf("unexpected status %d", w.Code)
				}
			}
			assert.Equal(t, tt.wantAllowed, allowed)
		})
	}
}

func TestRateLimitKeysAreIndependent(t *testing.T) {
	rl := NewRateLimitMiddleware(1, time.Minute)
	t.Cleanup(rl.Stop)
	handler := rl.Handler(okHandler())

	for _, key := range []string{"a", "b", "c"} {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/?key="+key, nil))
		assert.Equal(t, http.StatusOK, w.Code, key)
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/?key=a", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	var body struct {
		Code int    `json:"code"`
		Text string `json:"text"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, http.StatusTooManyRequests, body.Code)

	rl.Stop()
	rl.Stop()
}

func TestCompressionMiddleware(t *testing.T) {
	large := strings.Repeat(`{"lng":-70.6120,"lat":-33.4990}`, 200)
	handler := CompressionMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(large))
	}))

	t.Run("gzip when accepted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
		zr, err := gzip.NewReader(w.Body)
		require.NoError(t, err)
		body, err := io.ReadAll(zr)
		require.NoError(t, err)
		assert.Equal(t, large, string(body))
	})

	t.Run("identity otherwise", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Empty(t, w.Header().Get("Content-Encoding"))
		assert.Equal(t, large, w.Body.String())
	})

	t.Run("small bodies untouched", func(t *testing.T) {
		small := CompressionMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"ok":true}`))
		}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		w := httptest.NewRecorder()
		small.ServeHTTP(w, req)
		assert.Empty(t, w.Header().Get("Content-Encoding"))
	})
}

func TestSecurityHeaders(t *testing.T) {
	handler := securityHeaders(okHandler())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/where/bearing.json", nil)
	req.Header.Set("Origin", "https://mapa.osuc.dev")
	handler.ServeHTTP(w, req)

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/where/location.json", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"), "no CORS headers without Origin")
}

func TestRequestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewStructuredLogger(&buf, slog.LevelInfo)

	var fromContext *slog.Logger
	handler := NewRequestLoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromContext = logging.FromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/where/place/sj-lib.json?key=secret", nil))

	assert.Same(t, logger, fromContext)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, "/api/where/place/sj-lib.json", entry["path"])
	assert.EqualValues(t, http.StatusTeapot, entry["status"])
	assert.NotContains(t, buf.String(), "secret", "query string is not logged")
}
