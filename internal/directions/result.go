package directions

import (
	"fmt"
	"math"

	"github.com/twpayne/go-polyline"
	"ubicate.osuc.dev/internal/models"
	"ubicate.osuc.dev/internal/utils"
)

// Result is the route chosen by FetchBestRoute.
type Result struct {
	Candidate
	Origin      models.Coordinates
	Destination models.Coordinates
}

// DurationMinutes floors the duration to whole minutes for display.
func (r Result) DurationMinutes() int {
	return int(math.Floor(r.DurationSeconds / 60))
}

// WholeMeters floors the distance to whole meters for display.
func (r Result) WholeMeters() int {
	return int(math.Floor(r.DistanceMeters))
}

func (r Result) FormatDuration() string {
	return fmt.Sprintf("%d min", r.DurationMinutes())
}

func (r Result) FormatDistance() string {
	return fmt.Sprintf("%d m", r.WholeMeters())
}

// Path returns the route vertices in order.
func (r Result) Path() []models.Coordinates {
	seq := r.Geometry.Coordinates()
	path := make([]models.Coordinates, seq.Length())
	for i := 0; i < seq.Length(); i++ {
		path[i] = models.CoordinatesFromXY(seq.GetXY(i))
	}
	return path
}

// EncodedPolyline encodes the path in the Google polyline format (lat,lng order).
func (r Result) EncodedPolyline() string {
	path := r.Path()
	coords := make([][]float64, 0, len(path))
	for _, c := range path {
		coords = append(coords, []float64{c.Lat, c.Lng})
	}
	return string(polyline.EncodeCoords(coords))
}

// InitialHeading is the compass label of the first leg, or empty for degenerate paths.
func (r Result) InitialHeading() string {
	path := r.Path()
	for i := 1; i < len(path); i++ {
		if path[i] != path[0] {
			return utils.CompassDirection(path[0].Lat, path[0].Lng, path[i].Lat, path[i].Lng)
		}
	}
	return ""
}

// StraightLineMeters is the great-circle distance between the requested endpoints.
func (r Result) StraightLineMeters() float64 {
	return r.Origin.DistanceTo(r.Destination)
}
