package store

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"

	"github.com/openaedmap/aedcore/internal/core/model"
)

func encodeWKB(geom orb.Geometry) ([]byte, error) {
	return wkb.Marshal(geom, 4326)
}

func decodePoint(b []byte) (model.LonLat, error) {
	geom, err := wkb.Unmarshal(b)
	if err != nil {
		return model.LonLat{}, fmt.Errorf("decode point: %w", err)
	}
	p, ok := geom.(orb.Point)
	if !ok {
		return model.LonLat{}, fmt.Errorf("decode point: unexpected geometry %T", geom)
	}
	return model.LonLat{Lon: p[0], Lat: p[1]}, nil
}

func decodeGeometry(b []byte) (orb.Geometry, error) {
	geom, err := wkb.Unmarshal(b)
	if err != nil {
		return nil, fmt.Errorf("decode geometry: %w", err)
	}
	return geom, nil
}
