package models

import (
	"errors"
	"fmt"

	"github.com/peterstace/simplefeatures/geom"
	"ubicate.osuc.dev/internal/utils"
)

// ErrInvalidCoordinates is returned when a longitude/latitude pair is out of range.
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// Coordinates is a WGS84 longitude/latitude pair, in GeoJSON axis order.
type Coordinates struct {
	Lng float64 `json:"lng"`
	Lat float64 `json:"lat"`
}

// NewCoordinates validates and builds a coordinate pair.
func NewCoordinates(lng, lat float64) (Coordinates, error) {
	c := Coordinates{Lng: lng, Lat: lat}
	if err := c.Validate(); err != nil {
		return Coordinates{}, err
	}
	return c, nil
}

// Validate reports whether both axes are within WGS84 range.
func (c Coordinates) Validate() error {
	if err := utils.ValidateLongitude(c.Lng); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCoordinates, err)
	}
	if err := utils.ValidateLatitude(c.Lat); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCoordinates, err)
	}
	return nil
}

// XY converts to a simplefeatures planar coordinate (X=lng, Y=lat).
func (c Coordinates) XY() geom.XY {
	return geom.XY{X: c.Lng, Y: c.Lat}
}

// Point converts to a simplefeatures point.
func (c Coordinates) Point() geom.Point {
	return geom.NewPoint(geom.Coordinates{XY: c.XY(), Type: geom.DimXY})
}

// CoordinatesFromXY converts a simplefeatures coordinate back.
func CoordinatesFromXY(xy geom.XY) Coordinates {
	return Coordinates{Lng: xy.X, Lat: xy.Y}
}

// DistanceTo returns the great-circle distance in meters.
func (c Coordinates) DistanceTo(other Coordinates) float64 {
	return utils.Haversine(c.Lat, c.Lng, other.Lat, other.Lng)
}

// BearingTo returns the initial bearing in degrees towards other.
func (c Coordinates) BearingTo(other Coordinates) float64 {
	return utils.BearingBetweenPoints(c.Lat, c.Lng, other.Lat, other.Lng)
}

func (c Coordinates) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lng, c.Lat)
}
