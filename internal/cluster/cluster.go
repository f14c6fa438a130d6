// Package cluster implements the zoom-dependent hierarchical
// clustering engine (spec.md §4.7, C7): a Birch-style incremental
// clustering over a deterministically down-sampled prefix of the
// point set, predicting labels for every point against the fitted
// centers.
package cluster

import (
	"math"

	"github.com/openaedmap/aedcore/internal/core/model"
)

// MaxFitSamples bounds how many points the clustering model is fit
// against; beyond that the fit runs on an evenly-spaced prefix.
const MaxFitSamples = 7000

// Group mirrors a predicted cluster result: either a single AED or an
// AEDGroup of two-or-more members sharing a representative center.
type Group struct {
	AED   *model.AED
	Group *model.AEDGroup
}

// Access returns the access tier shared by both result shapes.
func (g Group) Access() string {
	if g.AED != nil {
		return g.AED.Access()
	}
	return g.Group.Access
}

// Position returns the WGS84 position of either shape.
func (g Group) Position() model.LonLat {
	if g.AED != nil {
		return g.AED.Position
	}
	return g.Group.Position
}

// Cluster groups aeds by proximity within eps (same units as the
// positions — degrees, since inputs are WGS84 lon/lat). A nil eps, or
// fewer than 2 points, returns the input unclustered.
func Cluster(aeds []model.AED, eps *float64) []Group {
	if len(aeds) <= 1 || eps == nil {
		return identity(aeds)
	}

	points := make([][2]float64, len(aeds))
	for i, a := range aeds {
		points[i] = [2]float64{a.Position.Lon, a.Position.Lat}
	}

	fitPoints := downsamplePrefix(points, MaxFitSamples)
	centers := fitCenters(fitPoints, *eps)
	if len(centers) == 0 {
		return identity(aeds)
	}

	labels := predict(points, centers)

	members := make([][]int, len(centers))
	for i, label := range labels {
		members[label] = append(members[label], i)
	}

	result := make([]Group, 0, len(aeds))
	for ci, idxs := range members {
		switch len(idxs) {
		case 0:
			continue
		case 1:
			a := aeds[idxs[0]]
			result = append(result, Group{AED: &a})
		default:
			accesses := make([]string, len(idxs))
			for i, idx := range idxs {
				accesses[i] = aeds[idx].Access()
			}
			result = append(result, Group{Group: &model.AEDGroup{
				Position: model.LonLat{Lon: centers[ci][0], Lat: centers[ci][1]},
				Count:    len(idxs),
				Access:   model.DecideAccess(accesses),
			}})
		}
	}
	return result
}

func identity(aeds []model.AED) []Group {
	result := make([]Group, len(aeds))
	for i := range aeds {
		a := aeds[i]
		result[i] = Group{AED: &a}
	}
	return result
}

// downsamplePrefix mirrors numpy's
// linspace(0, len(points), max, endpoint=False, dtype=int) index
// selection: deterministic, evenly spaced across the full range.
func downsamplePrefix(points [][2]float64, max int) [][2]float64 {
	if len(points) <= max {
		return points
	}
	out := make([][2]float64, max)
	n := float64(len(points))
	for i := 0; i < max; i++ {
		idx := int(n * float64(i) / float64(max))
		if idx >= len(points) {
			idx = len(points) - 1
		}
		out[i] = points[idx]
	}
	return out
}

// fitCenters performs single-pass threshold clustering: each point
// joins the nearest existing center if within threshold, updating that
// center's running mean, otherwise it seeds a new center. This is the
// leaf-level behavior of Birch(threshold=eps, n_clusters=None).
func fitCenters(points [][2]float64, threshold float64) [][2]float64 {
	type acc struct {
		sum   [2]float64
		count int
	}
	var accs []acc

	for _, p := range points {
		best := -1
		bestDist := math.Inf(1)
		for i, a := range accs {
			cx, cy := a.sum[0]/float64(a.count), a.sum[1]/float64(a.count)
			d := dist(p, [2]float64{cx, cy})
			if d < bestDist {
				bestDist = d
				best = i
			}
		}
		if best >= 0 && bestDist <= threshold {
			accs[best].sum[0] += p[0]
			accs[best].sum[1] += p[1]
			accs[best].count++
		} else {
			accs = append(accs, acc{sum: p, count: 1})
		}
	}

	centers := make([][2]float64, len(accs))
	for i, a := range accs {
		centers[i] = [2]float64{a.sum[0] / float64(a.count), a.sum[1] / float64(a.count)}
	}
	return centers
}

// predict assigns each point to its nearest center's index.
func predict(points [][2]float64, centers [][2]float64) []int {
	labels := make([]int, len(points))
	for i, p := range points {
		best := 0
		bestDist := math.Inf(1)
		for ci, c := range centers {
			d := dist(p, c)
			if d < bestDist {
				bestDist = d
				best = ci
			}
		}
		labels[i] = best
	}
	return labels
}

func dist(a, b [2]float64) float64 {
	dx := a[0] - b[0]
	dy := a[1] - b[1]
	return math.Sqrt(dx*dx + dy*dy)
}

// EpsilonForZoom derives the clustering threshold from a tile zoom
// level, per spec.md §4.7. At or above maxZ clustering is disabled.
func EpsilonForZoom(z, maxZ int) *float64 {
	if z >= maxZ {
		return nil
	}
	v := 9.6 / math.Pow(2, float64(z))
	return &v
}

// CountrySimplifyTolerance derives the polygon simplification
// tolerance for a country tile at zoom z.
func CountrySimplifyTolerance(z int) float64 {
	return 0.5 / math.Pow(2, float64(z))
}
