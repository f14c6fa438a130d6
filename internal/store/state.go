package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/openaedmap/aedcore/internal/core/apperr"
	"github.com/openaedmap/aedcore/internal/core/model"
)

// StateRepo tracks the per-task progress documents ("aed", "country")
// used to gate snapshot-vs-diff decisions across restarts.
type StateRepo struct{ s *Store }

func (s *Store) State() *StateRepo { return &StateRepo{s: s} }

// Get returns the state document for key, or (nil, nil) if absent.
func (r *StateRepo) Get(ctx context.Context, key string) (*model.ProcessState, error) {
	var raw []byte
	err := r.s.pool.QueryRow(ctx, `SELECT data FROM state WHERE key = $1`, key).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: get state %q: %w", apperr.ErrStorage, key, err)
	}
	var doc model.ProcessState
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal state %q: %w", key, err)
	}
	return &doc, nil
}

// Set upserts the state document for key.
func (r *StateRepo) Set(ctx context.Context, key string, doc model.ProcessState) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal state %q: %w", key, err)
	}
	_, err = r.s.pool.Exec(ctx, `
		INSERT INTO state (key, data) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data`, key, raw)
	if err != nil {
		return fmt.Errorf("%w: set state %q: %w", apperr.ErrStorage, key, err)
	}
	return nil
}
