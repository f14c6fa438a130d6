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

// AEDRepo reads and writes the aed table.
type AEDRepo struct{ s *Store }

func (s *Store) AEDs() *AEDRepo { return &AEDRepo{s: s} }

func scanAED(rows pgx.Rows) (model.AED, error) {
	var (
		id, version int64
		tagsRaw     []byte
		posRaw      []byte
		codes       []string
	)
	if err := rows.Scan(&id, &version, &tagsRaw, &posRaw, &codes); err != nil {
		return model.AED{}, fmt.Errorf("scan aed: %w", err)
	}
	var tags map[string]string
	if err := json.Unmarshal(tagsRaw, &tags); err != nil {
		return model.AED{}, fmt.Errorf("unmarshal tags: %w", err)
	}
	pos, err := decodePoint(posRaw)
	if err != nil {
		return model.AED{}, err
	}
	return model.AED{ID: id, Version: version, Tags: tags, Position: pos, CountryCodes: codes}, nil
}

const aedColumns = `id, version, tags, ST_AsBinary(position), country_codes`

// GetByID returns a single AED, or apperr.ErrNotFound.
func (r *AEDRepo) GetByID(ctx context.Context, id int64) (model.AED, error) {
	rows, err := r.s.pool.Query(ctx, `SELECT `+aedColumns+` FROM aed WHERE id = $1`, id)
	if err != nil {
		return model.AED{}, fmt.Errorf("%w: %w", apperr.ErrStorage, err)
	}
	defer rows.Close()
	if !rows.Next() {
		return model.AED{}, apperr.ErrNotFound
	}
	return scanAED(rows)
}

// GetAll returns every AED.
func (r *AEDRepo) GetAll(ctx context.Context) ([]model.AED, error) {
	rows, err := r.s.pool.Query(ctx, `SELECT `+aedColumns+` FROM aed`)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrStorage, err)
	}
	defer rows.Close()
	return collectAEDs(rows)
}

// GetByCountryCode returns AEDs whose country_codes includes code.
func (r *AEDRepo) GetByCountryCode(ctx context.Context, code string) ([]model.AED, error) {
	rows, err := r.s.pool.Query(ctx, `SELECT `+aedColumns+` FROM aed WHERE $1 = ANY(country_codes)`, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrStorage, err)
	}
	defer rows.Close()
	return collectAEDs(rows)
}

// CountByCountryCode returns the raw row count; C6 layers a TTL cache
// on top of this.
func (r *AEDRepo) CountByCountryCode(ctx context.Context, code string) (int, error) {
	var n int
	err := r.s.pool.QueryRow(ctx, `SELECT count(*) FROM aed WHERE $1 = ANY(country_codes)`, code).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", apperr.ErrStorage, err)
	}
	return n, nil
}

// GetIntersecting returns AEDs whose position intersects geom.
func (r *AEDRepo) GetIntersecting(ctx context.Context, geom orb.Geometry) ([]model.AED, error) {
	wkb, err := encodeWKB(geom)
	if err != nil {
		return nil, fmt.Errorf("encode geometry: %w", err)
	}
	rows, err := r.s.pool.Query(ctx,
		`SELECT `+aedColumns+` FROM aed WHERE ST_Intersects(position, ST_GeomFromWKB($1, 4326))`, wkb)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrStorage, err)
	}
	defer rows.Close()
	return collectAEDs(rows)
}

func collectAEDs(rows pgx.Rows) ([]model.AED, error) {
	var out []model.AED
	for rows.Next() {
		a, err := scanAED(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrStorage, err)
	}
	return out, nil
}

// ReplaceSnapshot truncates the aed table and bulk-inserts aeds in one
// transaction (spec.md §4.5 snapshot mode).
func (r *AEDRepo) ReplaceSnapshot(ctx context.Context, aeds []model.AED) error {
	return r.s.withTx(ctx, func(ctx context.Context, tx pgxTx) error {
		if _, err := tx.Exec(ctx, `TRUNCATE aed CASCADE`); err != nil {
			return fmt.Errorf("%w: truncate aed: %w", apperr.ErrStorage, err)
		}
		batch := &pgx.Batch{}
		for _, a := range aeds {
			pos, err := encodeWKB(a.Position.Point())
			if err != nil {
				return fmt.Errorf("encode position: %w", err)
			}
			tags, err := json.Marshal(a.Tags)
			if err != nil {
				return fmt.Errorf("marshal tags: %w", err)
			}
			batch.Queue(
				`INSERT INTO aed (id, version, tags, position, country_codes)
				 VALUES ($1, $2, $3, ST_GeomFromWKB($4, 4326), $5)`,
				a.ID, a.Version, tags, pos, a.CountryCodes)
		}
		br := tx.SendBatch(ctx, batch)
		defer br.Close()
		for range aeds {
			if _, err := br.Exec(); err != nil {
				return fmt.Errorf("%w: insert aed: %w", apperr.ErrStorage, err)
			}
		}
		return nil
	})
}

// UpsertDiff applies a replication diff's net effect: version-deduped
// creates/modifies upserted, deletes removed by id (spec.md §4.5 diff
// mode).
func (r *AEDRepo) UpsertDiff(ctx context.Context, upserts []model.AED, deleteIDs []int64) error {
	return r.s.withTx(ctx, func(ctx context.Context, tx pgxTx) error {
		if len(upserts) > 0 {
			batch := &pgx.Batch{}
			for _, a := range upserts {
				pos, err := encodeWKB(a.Position.Point())
				if err != nil {
					return fmt.Errorf("encode position: %w", err)
				}
				tags, err := json.Marshal(a.Tags)
				if err != nil {
					return fmt.Errorf("marshal tags: %w", err)
				}
				batch.Queue(
					`INSERT INTO aed (id, version, tags, position, country_codes)
					 VALUES ($1, $2, $3, ST_GeomFromWKB($4, 4326), NULL)
					 ON CONFLICT (id) DO UPDATE SET
					   version = EXCLUDED.version,
					   tags = EXCLUDED.tags,
					   position = EXCLUDED.position,
					   country_codes = NULL`,
					a.ID, a.Version, tags, pos)
			}
			br := tx.SendBatch(ctx, batch)
			for range upserts {
				if _, err := br.Exec(); err != nil {
					br.Close()
					return fmt.Errorf("%w: upsert aed: %w", apperr.ErrStorage, err)
				}
			}
			br.Close()
		}
		if len(deleteIDs) > 0 {
			if _, err := tx.Exec(ctx, `DELETE FROM aed WHERE id = ANY($1)`, deleteIDs); err != nil {
				return fmt.Errorf("%w: delete aed: %w", apperr.ErrStorage, err)
			}
		}
		return nil
	})
}

// AssignCountryCodesFor recomputes country_codes for exactly the given
// ids, the "small set" strategy used after an AED diff touches a
// handful of nodes.
func (r *AEDRepo) AssignCountryCodesFor(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.s.pool.Exec(ctx, `
		UPDATE aed
		SET country_codes = COALESCE(sub.codes, '{}')
		FROM (
			SELECT a.id, array_remove(array_agg(c.code), NULL) AS codes
			FROM aed a
			LEFT JOIN country c ON ST_Intersects(c.geometry, a.position)
			WHERE a.id = ANY($1)
			GROUP BY a.id
		) sub
		WHERE aed.id = sub.id`, ids)
	if err != nil {
		return fmt.Errorf("%w: assign country codes: %w", apperr.ErrStorage, err)
	}
	return nil
}

// ReassignAllCountryCodes recomputes country_codes for every AED, the
// "large set" strategy run once after the country table reloads.
func (r *AEDRepo) ReassignAllCountryCodes(ctx context.Context) error {
	_, err := r.s.pool.Exec(ctx, `
		UPDATE aed
		SET country_codes = COALESCE(sub.codes, '{}')
		FROM (
			SELECT a.id, array_remove(array_agg(c.code), NULL) AS codes
			FROM aed a
			LEFT JOIN country c ON ST_Intersects(c.geometry, a.position)
			GROUP BY a.id
		) sub
		WHERE aed.id = sub.id`)
	if err != nil {
		return fmt.Errorf("%w: reassign country codes: %w", apperr.ErrStorage, err)
	}
	return nil
}

// Analyze refreshes planner statistics after a bulk load.
func (r *AEDRepo) Analyze(ctx context.Context) error {
	if _, err := r.s.pool.Exec(ctx, `ANALYZE aed`); err != nil {
		return fmt.Errorf("%w: analyze aed: %w", apperr.ErrStorage, err)
	}
	return nil
}
