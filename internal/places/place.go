package places

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/peterstace/simplefeatures/geom"
	"ubicate.osuc.dev/internal/models"
)

var (
	ErrPlaceNotFound = errors.New("place not found")
	// ErrUnroutableGeometry is returned for geometries that are neither a point nor a polygon.
	ErrUnroutableGeometry = errors.New("place geometry cannot be routed to")
)

// Place is one mapped location on a campus.
type Place struct {
	Identifier  string          `json:"identifier" validate:"required,max=100"`
	Name        string          `json:"name" validate:"required"`
	Information string          `json:"information"`
	Categories  []string        `json:"categories"`
	Campus      string          `json:"campus"`
	Faculties   Faculties       `json:"faculties"`
	Floors      []int           `json:"floors"`
	Geometry    json.RawMessage `json:"geometry" validate:"required"`
}

// Faculties lists the faculty ids a place belongs to. Exports carry either an array
// or a single bare string; an empty string means none.
type Faculties []string

func (f *Faculties) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*f = nil
		} else {
			*f = Faculties{single}
		}
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("faculties must be a string or an array of strings: %w", err)
	}
	*f = list
	return nil
}

// Shape decodes the GeoJSON geometry.
func (p Place) Shape() (geom.Geometry, error) {
	g, err := geom.UnmarshalGeoJSON(p.Geometry)
	if err != nil {
		return geom.Geometry{}, fmt.Errorf("place %s: %w", p.Identifier, err)
	}
	return g, nil
}

// Destination is where a walking route to the place ends: the point itself,
// or the centroid of a polygon.
func (p Place) Destination() (models.Coordinates, error) {
	g, err := p.Shape()
	if err != nil {
		return models.Coordinates{}, err
	}

	switch g.Type() {
	case geom.TypePoint, geom.TypePolygon:
	default:
		return models.Coordinates{}, fmt.Errorf("%w: %s is a %s", ErrUnroutableGeometry, p.Identifier, g.Type())
	}

	xy, ok := g.Centroid().XY()
	if !ok {
		return models.Coordinates{}, fmt.Errorf("%w: %s is empty", ErrUnroutableGeometry, p.Identifier)
	}

	c := models.CoordinatesFromXY(xy)
	if err := c.Validate(); err != nil {
		return models.Coordinates{}, fmt.Errorf("place %s: %w", p.Identifier, err)
	}
	return c, nil
}
