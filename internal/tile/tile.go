// Package tile renders AED and country vector tiles (spec.md §4.8,
// C8): slippy-map tile math, Birch clustering hookup, and MVT
// encoding via the paulmach/orb ecosystem.
package tile

import (
	"fmt"

	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"

	"github.com/openaedmap/aedcore/internal/cluster"
	"github.com/openaedmap/aedcore/internal/core/model"
)

// Extent is the MVT coordinate space each tile is quantized into.
const Extent = 4096

// ExtendPercent pads an AED tile's query bbox before clustering, so
// points just outside the tile don't flicker out of groups near the
// edge (spec.md §4.8).
const ExtendPercent = 0.5

// BBoxForTile returns the WGS84 bounding box of slippy-map tile z/x/y.
func BBoxForTile(z, x, y int) model.BBox {
	t := maptile.New(uint32(x), uint32(y), maptile.Zoom(z))
	b := t.Bound()
	return model.BBox{
		P1: model.LonLat{Lon: b.Min[0], Lat: b.Min[1]},
		P2: model.LonLat{Lon: b.Max[0], Lat: b.Max[1]},
	}
}

// Abbreviate renders n with SI-style compaction matching the tile
// layer's point_count_abbreviated property.
func Abbreviate(n int) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fm", float64(n)/1e6)
	case n >= 1_000:
		return fmt.Sprintf("%.1fk", float64(n)/1e3)
	default:
		return fmt.Sprintf("%d", n)
	}
}

// CountryFeature is a country polygon plus its precomputed AED count,
// assembled by the caller from C4/C6 lookups.
type CountryFeature struct {
	Country model.Country
	Count   int
	Lang    string
}

// AEDFeature is a single AED or cluster result to render as a point
// feature.
type AEDFeature = cluster.Group

// EncodeCountryTile renders the z ≤ TILE_COUNTRIES_MAX_Z tile: one
// "countries" polygon layer and one "defibrillators" label-point
// layer, both carrying country_name/country_code/point_count*.
func EncodeCountryTile(z, x, y int, countries []CountryFeature) ([]byte, error) {
	t := maptile.New(uint32(x), uint32(y), maptile.Zoom(z))
	tol := cluster.CountrySimplifyTolerance(z)

	polyFC := geojson.NewFeatureCollection()
	labelFC := geojson.NewFeatureCollection()

	for _, cf := range countries {
		geom := cf.Country.Geometry
		if tol > 0 {
			geom = simplifyGeometry(geom, tol)
		}

		props := map[string]interface{}{
			"country_name":            cf.Country.NameFor(cf.Lang),
			"country_code":            cf.Country.Code,
			"point_count":             cf.Count,
			"point_count_abbreviated": Abbreviate(cf.Count),
		}

		pf := geojson.NewFeature(geom)
		pf.Properties = props
		polyFC.Append(pf)

		lf := geojson.NewFeature(cf.Country.LabelPosition.Point())
		lf.Properties = props
		labelFC.Append(lf)
	}

	layers := mvt.NewLayers(map[string]*geojson.FeatureCollection{
		"countries":      polyFC,
		"defibrillators": labelFC,
	})
	return marshalLayers(layers, t)
}

// EncodeAEDTile renders a z > TILE_COUNTRIES_MAX_Z tile: one
// "defibrillators" layer of singleton AEDs ({node_id, access}) and/or
// clustered groups ({point_count, point_count_abbreviated, access}).
func EncodeAEDTile(z, x, y int, groups []cluster.Group) ([]byte, error) {
	t := maptile.New(uint32(x), uint32(y), maptile.Zoom(z))

	fc := geojson.NewFeatureCollection()
	for _, g := range groups {
		f := geojson.NewFeature(g.Position().Point())
		if g.AED != nil {
			f.Properties = map[string]interface{}{
				"node_id": g.AED.ID,
				"access":  g.AED.Access(),
			}
		} else {
			f.Properties = map[string]interface{}{
				"point_count":             g.Group.Count,
				"point_count_abbreviated": Abbreviate(g.Group.Count),
				"access":                  g.Group.Access,
			}
		}
		fc.Append(f)
	}

	layers := mvt.NewLayers(map[string]*geojson.FeatureCollection{
		"defibrillators": fc,
	})
	return marshalLayers(layers, t)
}

func marshalLayers(layers mvt.Layers, t maptile.Tile) ([]byte, error) {
	layers.ProjectToTile(t)
	layers.Clip(mvt.MapboxGLDefaultExtentBound)
	layers.RemoveEmpty(1.0, 1.0)
	return mvt.Marshal(layers)
}
