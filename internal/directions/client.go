package directions

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/peterstace/simplefeatures/geom"
	"golang.org/x/time/rate"
	"ubicate.osuc.dev/internal/logging"
	"ubicate.osuc.dev/internal/models"
)

const DefaultBaseURL = "https://api.mapbox.com"

// Config for the walking directions client.
type Config struct {
	BaseURL     string
	AccessToken string
	Timeout     time.Duration
	// RequestsPerSecond throttles outbound calls. Zero disables throttling.
	RequestsPerSecond float64
	Burst             int
	HTTPClient        *http.Client
	Logger            *slog.Logger
}

// Step is one turn-by-turn instruction.
type Step struct {
	Instruction     string  `json:"instruction"`
	Name            string  `json:"name"`
	DurationSeconds float64 `json:"durationSeconds"`
	DistanceMeters  float64 `json:"distanceMeters"`
}

// Candidate is the first route of one directions call.
type Candidate struct {
	Geometry        geom.LineString
	DurationSeconds float64
	DistanceMeters  float64
	Bias            float64
	Steps           []Step
}

type walkingResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Routes  []walkingRoute `json:"routes"`
}

type walkingRoute struct {
	Duration float64 `json:"duration"`
	Distance float64 `json:"distance"`
	Geometry struct {
		Type        string       `json:"type"`
		Coordinates [][2]float64 `json:"coordinates"`
	} `json:"geometry"`
	Legs []struct {
		Steps []struct {
			Name     string  `json:"name"`
			Duration float64 `json:"duration"`
			Distance float64 `json:"distance"`
			Maneuver struct {
				Instruction string `json:"instruction"`
			} `json:"maneuver"`
		} `json:"steps"`
	} `json:"legs"`
}

// Client calls a Mapbox-compatible walking directions endpoint.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

func NewClient(config Config) *Client {
	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if config.RequestsPerSecond > 0 {
		burst := config.Burst
		if burst <= 0 {
			burst = 2
		}
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), burst)
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    baseURL,
		token:      config.AccessToken,
		httpClient: httpClient,
		limiter:    limiter,
		logger:     logger.With(slog.String("component", "directions_client")),
	}
}

func (c *Client) walkingURL(origin, destination models.Coordinates, bias float64) string {
	q := url.Values{}
	q.Set("geometries", "geojson")
	q.Set("steps", "true")
	q.Set("overview", "full")
	q.Set("walkway_bias", strconv.FormatFloat(bias, 'f', -1, 64))
	q.Set("access_token", c.token)

	return fmt.Sprintf("%s/directions/v5/mapbox/walking/%s,%s;%s,%s?%s",
		c.baseURL,
		formatCoord(origin.Lng), formatCoord(origin.Lat),
		formatCoord(destination.Lng), formatCoord(destination.Lat),
		q.Encode())
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Walking fetches one walking route with the given walkway bias.
func (c *Client) Walking(ctx context.Context, origin, destination models.Coordinates, bias float64) (Candidate, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Candidate{}, fmt.Errorf("%w: %v", ErrRouteServiceUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.walkingURL(origin, destination, bias), nil)
	if err != nil {
		return Candidate{}, fmt.Errorf("%w: %v", ErrRouteServiceUnavailable, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Candidate{}, fmt.Errorf("%w: %v", ErrRouteServiceUnavailable, err)
	}
	defer logging.SafeCloseWithLogging(resp.Body, c.logger, "directions_response_body")

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Candidate{}, fmt.Errorf("%w: reading response: %v", ErrRouteServiceUnavailable, err)
	}

	var parsed walkingResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Candidate{}, fmt.Errorf("%w: status %d: %v", ErrRouteServiceUnavailable, resp.StatusCode, err)
	}

	if parsed.Code != "Ok" {
		message := parsed.Message
		if message == "" {
			message = "Unknown error"
		}
		if noRouteCodes[parsed.Code] {
			return Candidate{}, fmt.Errorf("%w: %s - %s", ErrNoRouteFound, parsed.Code, message)
		}
		return Candidate{}, fmt.Errorf("%w: %s - %s (status %d)", ErrRouteServiceUnavailable, parsed.Code, message, resp.StatusCode)
	}
	if len(parsed.Routes) == 0 {
		return Candidate{}, fmt.Errorf("%w: empty route list", ErrNoRouteFound)
	}

	return candidateFromRoute(parsed.Routes[0], bias), nil
}

func candidateFromRoute(route walkingRoute, bias float64) Candidate {
	flat := make([]float64, 0, len(route.Geometry.Coordinates)*2)
	for _, pt := range route.Geometry.Coordinates {
		flat = append(flat, pt[0], pt[1])
	}

	var steps []Step
	for _, leg := range route.Legs {
		for _, s := range leg.Steps {
			steps = append(steps, Step{
				Instruction:     s.Maneuver.Instruction,
				Name:            s.Name,
				DurationSeconds: s.Duration,
				DistanceMeters:  s.Distance,
			})
		}
	}

	return Candidate{
		Geometry:        geom.NewLineString(geom.NewSequence(flat, geom.DimXY)),
		DurationSeconds: route.Duration,
		DistanceMeters:  route.Distance,
		Bias:            bias,
		Steps:           steps,
	}
}
