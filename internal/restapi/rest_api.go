package restapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"ubicate.osuc.dev/internal/app"
)

type RestAPI struct {
	*app.Application
	rateLimiter *RateLimitMiddleware
	validate    *validator.Validate
	streams     *streamSet
}

// NewRestAPI creates a new RestAPI instance with initialized rate limiter
func NewRestAPI(app *app.Application) *RestAPI {
	if app.Logger == nil {
		app.Logger = slog.Default()
	}
	return &RestAPI{
		Application: app,
		rateLimiter: NewRateLimitMiddleware(app.Config.RateLimit, time.Second),
		validate:    validator.New(),
		streams:     newStreamSet(),
	}
}

// Handler returns the routes wrapped in the middleware stack.
func (api *RestAPI) Handler() http.Handler {
	router := api.Routes()
	compressed := CompressionMiddleware(router)

	// event streams bypass compression so every event is flushed as written
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == locationStreamPath {
			router.ServeHTTP(w, r)
			return
		}
		compressed.ServeHTTP(w, r)
	})

	return NewRequestLoggingMiddleware(api.Logger)(
		api.WithSecurityHeaders(
			api.rateLimiter.Handler(handler)))
}

// Close stops background work owned by the API layer.
func (api *RestAPI) Close() {
	api.rateLimiter.Stop()
}
