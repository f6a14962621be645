package campus

import (
	"errors"
	"fmt"
	"strings"

	"github.com/peterstace/simplefeatures/geom"
	"ubicate.osuc.dev/internal/models"
)

var ErrUnknownCampus = errors.New("unknown campus")

// Bounds is a lng/lat rectangle.
type Bounds struct {
	MinLng float64 `json:"minLng" mapstructure:"min_lng"`
	MinLat float64 `json:"minLat" mapstructure:"min_lat"`
	MaxLng float64 `json:"maxLng" mapstructure:"max_lng"`
	MaxLat float64 `json:"maxLat" mapstructure:"max_lat"`
}

func (b Bounds) envelope() geom.Envelope {
	return geom.NewEnvelope(
		geom.XY{X: b.MinLng, Y: b.MinLat},
		geom.XY{X: b.MaxLng, Y: b.MaxLat},
	)
}

func (b Bounds) validate() error {
	if b.MinLng >= b.MaxLng || b.MinLat >= b.MaxLat {
		return fmt.Errorf("empty bounds %+v", b)
	}
	for _, c := range []models.Coordinates{{Lng: b.MinLng, Lat: b.MinLat}, {Lng: b.MaxLng, Lat: b.MaxLat}} {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Definition is the configurable description of one campus.
type Definition struct {
	ID      string   `json:"id" mapstructure:"id"`
	Name    string   `json:"name" mapstructure:"name"`
	Aliases []string `json:"aliases" mapstructure:"aliases"`
	// Core is the built-up area; routing endpoints must fall inside it.
	Core Bounds `json:"core" mapstructure:"core"`
	// Max is the area the map may pan to, used to name the campus a point belongs to.
	Max     Bounds    `json:"max" mapstructure:"max"`
	Routing bool      `json:"routing" mapstructure:"routing"`
	Entry   []float64 `json:"entry,omitempty" mapstructure:"entry"`
}

// Campus is a validated Definition with its envelopes built.
type Campus struct {
	Definition
	core  geom.Envelope
	outer geom.Envelope
}

// EntryPoint returns the campus main entrance when one is known.
func (c Campus) EntryPoint() (models.Coordinates, bool) {
	if len(c.Entry) != 2 {
		return models.Coordinates{}, false
	}
	return models.Coordinates{Lng: c.Entry[0], Lat: c.Entry[1]}, true
}

func (c Campus) InCore(p models.Coordinates) bool {
	return c.core.Contains(p.XY())
}

func (c Campus) InMaxBounds(p models.Coordinates) bool {
	return c.outer.Contains(p.XY())
}

// Catalog holds the campuses in lookup order.
type Catalog struct {
	campuses []Campus
	byName   map[string]int
}

func NewCatalog(defs []Definition) (*Catalog, error) {
	catalog := &Catalog{byName: make(map[string]int)}

	for _, def := range defs {
		if def.ID == "" {
			return nil, errors.New("campus definition without id")
		}
		if err := def.Core.validate(); err != nil {
			return nil, fmt.Errorf("campus %s core bounds: %w", def.ID, err)
		}
		if err := def.Max.validate(); err != nil {
			return nil, fmt.Errorf("campus %s max bounds: %w", def.ID, err)
		}
		if len(def.Entry) != 0 && len(def.Entry) != 2 {
			return nil, fmt.Errorf("campus %s entry point needs [lng, lat]", def.ID)
		}

		idx := len(catalog.campuses)
		for _, name := range append([]string{def.ID, def.Name}, def.Aliases...) {
			key := normalizeName(name)
			if key == "" {
				continue
			}
			if other, dup := catalog.byName[key]; dup && other != idx {
				return nil, fmt.Errorf("campus name %q used twice", name)
			}
			catalog.byName[key] = idx
		}

		catalog.campuses = append(catalog.campuses, Campus{
			Definition: def,
			core:       def.Core.envelope(),
			outer:      def.Max.envelope(),
		})
	}

	return catalog, nil
}

func normalizeName(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", ""))
}

// Lookup finds a campus by id, name or alias, ignoring case and spaces.
func (c *Catalog) Lookup(name string) (Campus, bool) {
	idx, ok := c.byName[normalizeName(name)]
	if !ok {
		return Campus{}, false
	}
	return c.campuses[idx], true
}

// CampusForPoint names the campus whose max bounds contain p.
func (c *Catalog) CampusForPoint(p models.Coordinates) (Campus, bool) {
	for _, campus := range c.campuses {
		if campus.InMaxBounds(p) {
			return campus, true
		}
	}
	return Campus{}, false
}

// CoreCampusForPoint finds the campus whose core area contains p.
func (c *Catalog) CoreCampusForPoint(p models.Coordinates) (Campus, bool) {
	for _, campus := range c.campuses {
		if campus.InCore(p) {
			return campus, true
		}
	}
	return Campus{}, false
}

func (c *Catalog) RoutingEnabled(name string) bool {
	campus, ok := c.Lookup(name)
	return ok && campus.Routing
}

func (c *Catalog) EntryPoint(name string) (models.Coordinates, bool) {
	campus, ok := c.Lookup(name)
	if !ok {
		return models.Coordinates{}, false
	}
	return campus.EntryPoint()
}

func (c *Catalog) All() []Campus {
	out := make([]Campus, len(c.campuses))
	copy(out, c.campuses)
	return out
}
