// Package model defines the domain types shared across the ingestion
// and serving paths.
package model

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// LonLat is a WGS84 geographic coordinate pair.
type LonLat struct {
	Lon, Lat float64
}

func (p LonLat) Point() orb.Point { return orb.Point{p.Lon, p.Lat} }

func (p LonLat) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Lon, p.Lat)
}

// Valid reports whether the coordinate lies within the WGS84 domain.
func (p LonLat) Valid() bool {
	return math.Abs(p.Lat) <= 90 && math.Abs(p.Lon) <= 180
}

// BBox is an axis-aligned WGS84 bounding box, P1 the south-west corner
// and P2 the north-east corner.
type BBox struct {
	P1, P2 LonLat
}

func BBoxFromTuple(x1, y1, x2, y2 float64) BBox {
	return BBox{LonLat{x1, y1}, LonLat{x2, y2}}
}

// Extend grows the box by percentage on each axis, used to pad a tile's
// bbox before clustering so points near the edge aren't orphaned.
func (b BBox) Extend(percentage float64) BBox {
	lonSpan := b.P2.Lon - b.P1.Lon
	latSpan := b.P2.Lat - b.P1.Lat
	lonDelta := lonSpan * percentage
	latDelta := latSpan * percentage
	return BBox{
		LonLat{b.P1.Lon - lonDelta, b.P1.Lat - latDelta},
		LonLat{b.P2.Lon + lonDelta, b.P2.Lat + latDelta},
	}
}

// ToPolygon materializes a bbox as a closed 5-point ring.
func (b BBox) ToPolygon() orb.Polygon {
	return orb.Polygon{orb.Ring{
		{b.P1.Lon, b.P1.Lat},
		{b.P2.Lon, b.P1.Lat},
		{b.P2.Lon, b.P2.Lat},
		{b.P1.Lon, b.P2.Lat},
		{b.P1.Lon, b.P1.Lat},
	}}
}

// ToPolygonSubdivided materializes the bbox with nodesPerEdge vertices
// per edge, better approximating the tile's curved boundary in
// geodesic space than a 4-corner rectangle.
func (b BBox) ToPolygonSubdivided(nodesPerEdge int) orb.Polygon {
	if nodesPerEdge < 1 {
		nodesPerEdge = 1
	}
	corners := [4][2]float64{
		{b.P1.Lon, b.P1.Lat},
		{b.P2.Lon, b.P1.Lat},
		{b.P2.Lon, b.P2.Lat},
		{b.P1.Lon, b.P2.Lat},
	}
	ring := make(orb.Ring, 0, 4*nodesPerEdge+1)
	for i := 0; i < 4; i++ {
		a := corners[i]
		b2 := corners[(i+1)%4]
		for n := 0; n < nodesPerEdge; n++ {
			t := float64(n) / float64(nodesPerEdge)
			ring = append(ring, orb.Point{a[0] + (b2[0]-a[0])*t, a[1] + (b2[1]-a[1])*t})
		}
	}
	ring = append(ring, ring[0])
	return orb.Polygon{ring}
}

// SplitAntimeridian splits a bbox that crosses the antimeridian
// (P1.Lon > P2.Lon) into its eastern and western halves. A bbox that
// does not cross returns itself as the sole element.
func (b BBox) SplitAntimeridian() []BBox {
	if b.P1.Lon <= b.P2.Lon {
		return []BBox{b}
	}
	return []BBox{
		{b.P1, LonLat{180, b.P2.Lat}},
		{LonLat{-180, b.P1.Lat}, b.P2},
	}
}

// AED is the point feature carrying a defibrillator tag, identified by
// its upstream OSM node id.
type AED struct {
	ID           int64
	Version      int64
	Tags         map[string]string
	Position     LonLat
	CountryCodes []string // nil means "not yet assigned"; empty means "assigned, no match"
}

// Access returns the AED's access tag, defaulting to the empty string.
func (a AED) Access() string {
	return a.Tags["access"]
}

// Valid checks the positional and tag invariants spec.md §3 requires
// at creation time.
func (a AED) Valid() bool {
	return a.Position.Valid() && IsDefibrillator(a.Tags)
}

// Marker tag/value identifying an AED node.
const (
	MarkerTag   = "emergency"
	MarkerValue = "defibrillator"
)

// IsDefibrillator reports whether the tag set carries the marker.
func IsDefibrillator(tags map[string]string) bool {
	return tags[MarkerTag] == MarkerValue
}

// AEDGroup is a clustered representative of two or more nearby AEDs.
type AEDGroup struct {
	Position LonLat
	Count    int
	Access   string
}

// accessTiers ranks access values from most to least permissive; lower
// is more permissive. Unrecognized values are ignored by DecideAccess.
var accessTiers = map[string]int{
	"yes":        0,
	"permissive": 1,
	"customers":  2,
	"":           3,
	"unknown":    3,
	"private":    4,
	"no":         5,
}

// DecideAccess picks the most permissive access tier among accesses,
// short-circuiting on the first "yes". Idempotent: folding the result
// of one call back into a further DecideAccess call over the union of
// inputs yields the same answer as calling it once over the union.
func DecideAccess(accesses []string) string {
	best := "no"
	bestTier := accessTiers["no"]
	for _, a := range accesses {
		if a == "yes" {
			return "yes"
		}
		tier, ok := accessTiers[a]
		if !ok {
			continue
		}
		if tier < bestTier {
			best, bestTier = a, tier
		}
	}
	return best
}

// Country is the polygon feature an AED may fall within.
type Country struct {
	Code          string
	Names         map[string]string
	Geometry      orb.Geometry // Polygon or MultiPolygon
	LabelPosition LonLat
}

// Name returns the default display name.
func (c Country) Name() string { return c.Names["default"] }

// NameFor returns the localized name for lang (an ISO-like code),
// falling back to the default name.
func (c Country) NameFor(lang string) string {
	if v, ok := c.Names[upper(lang)]; ok {
		return v
	}
	return c.Name()
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}

// ProcessState is the persisted, version-gated document tracked per
// background task (keys "aed", "country").
type ProcessState struct {
	UpdateTimestamp float64 `json:"update_timestamp"`
	Version         int     `json:"version"`
}

// ReplicationSequence names a point on the upstream minute-diff stream.
type ReplicationSequence struct {
	Number    int
	Timestamp float64
}
