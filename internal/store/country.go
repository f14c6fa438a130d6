package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/paulmach/orb"

	"github.com/openaedmap/aedcore/internal/core/apperr"
	"github.com/openaedmap/aedcore/internal/core/model"
)

// CountryRepo reads and writes the country table.
type CountryRepo struct{ s *Store }

func (s *Store) Countries() *CountryRepo { return &CountryRepo{s: s} }

const countryColumns = `code, names, ST_AsBinary(geometry), ST_AsBinary(label_position)`

func scanCountry(rows pgx.Rows) (model.Country, error) {
	var (
		code     string
		namesRaw []byte
		geomRaw  []byte
		labelRaw []byte
	)
	if err := rows.Scan(&code, &namesRaw, &geomRaw, &labelRaw); err != nil {
		return model.Country{}, fmt.Errorf("scan country: %w", err)
	}
	var names map[string]string
	if err := json.Unmarshal(namesRaw, &names); err != nil {
		return model.Country{}, fmt.Errorf("unmarshal names: %w", err)
	}
	geom, err := decodeGeometry(geomRaw)
	if err != nil {
		return model.Country{}, err
	}
	label, err := decodePoint(labelRaw)
	if err != nil {
		return model.Country{}, err
	}
	return model.Country{Code: code, Names: names, Geometry: geom, LabelPosition: label}, nil
}

// GetAll returns every country.
func (r *CountryRepo) GetAll(ctx context.Context) ([]model.Country, error) {
	rows, err := r.s.pool.Query(ctx, `SELECT `+countryColumns+` FROM country`)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrStorage, err)
	}
	defer rows.Close()
	return collectCountries(rows)
}

// GetByCode returns a single country, or apperr.ErrNotFound.
func (r *CountryRepo) GetByCode(ctx context.Context, code string) (model.Country, error) {
	rows, err := r.s.pool.Query(ctx, `SELECT `+countryColumns+` FROM country WHERE code = $1`, code)
	if err != nil {
		return model.Country{}, fmt.Errorf("%w: %w", apperr.ErrStorage, err)
	}
	defer rows.Close()
	if !rows.Next() {
		return model.Country{}, apperr.ErrNotFound
	}
	return scanCountry(rows)
}

// GetIntersecting returns countries whose geometry intersects geom.
func (r *CountryRepo) GetIntersecting(ctx context.Context, geom orb.Geometry) ([]model.Country, error) {
	wkb, err := encodeWKB(geom)
	if err != nil {
		return nil, fmt.Errorf("encode geometry: %w", err)
	}
	rows, err := r.s.pool.Query(ctx,
		`SELECT `+countryColumns+` FROM country WHERE ST_Intersects(geometry, ST_GeomFromWKB($1, 4326))`, wkb)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrStorage, err)
	}
	defer rows.Close()
	return collectCountries(rows)
}

func collectCountries(rows pgx.Rows) ([]model.Country, error) {
	var out []model.Country
	for rows.Next() {
		c, err := scanCountry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrStorage, err)
	}
	return out, nil
}

// ReplaceAll truncates the country table and bulk-inserts countries in
// one transaction (spec.md §4.4).
func (r *CountryRepo) ReplaceAll(ctx context.Context, countries []model.Country) error {
	return r.s.withTx(ctx, func(ctx context.Context, tx pgxTx) error {
		if _, err := tx.Exec(ctx, `TRUNCATE country CASCADE`); err != nil {
			return fmt.Errorf("%w: truncate country: %w", apperr.ErrStorage, err)
		}
		batch := &pgx.Batch{}
		for _, c := range countries {
			geom, err := encodeWKB(c.Geometry)
			if err != nil {
				return fmt.Errorf("encode geometry: %w", err)
			}
			label, err := encodeWKB(c.LabelPosition.Point())
			if err != nil {
				return fmt.Errorf("encode label position: %w", err)
			}
			names, err := json.Marshal(c.Names)
			if err != nil {
				return fmt.Errorf("marshal names: %w", err)
			}
			batch.Queue(
				`INSERT INTO country (code, names, geometry, label_position)
				 VALUES ($1, $2, ST_GeomFromWKB($3, 4326), ST_GeomFromWKB($4, 4326))`,
				c.Code, names, geom, label)
		}
		br := tx.SendBatch(ctx, batch)
		defer br.Close()
		for range countries {
			if _, err := br.Exec(); err != nil {
				return fmt.Errorf("%w: insert country: %w", apperr.ErrStorage, err)
			}
		}
		return nil
	})
}

// Analyze refreshes planner statistics after a bulk load.
func (r *CountryRepo) Analyze(ctx context.Context) error {
	if _, err := r.s.pool.Exec(ctx, `ANALYZE country`); err != nil {
		return fmt.Errorf("%w: analyze country: %w", apperr.ErrStorage, err)
	}
	return nil
}
