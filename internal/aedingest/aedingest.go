// Package aedingest keeps the aed table current (spec.md §4.5, C5):
// a full Overpass rebuild when state is missing or badly stale, a
// merged replication-diff apply otherwise.
package aedingest

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/openaedmap/aedcore/internal/core/apperr"
	"github.com/openaedmap/aedcore/internal/core/model"
	"github.com/openaedmap/aedcore/internal/core/observability"
	"github.com/openaedmap/aedcore/internal/diffparser"
	"github.com/openaedmap/aedcore/internal/invalidate"
	"github.com/openaedmap/aedcore/internal/scheduler"
	"github.com/openaedmap/aedcore/internal/store"
	"github.com/openaedmap/aedcore/internal/upstream"
)

// overpassQuery matches spec.md §4.5: every node carrying the
// defibrillator marker, with version metadata.
const overpassQuery = `node[emergency=defibrillator];out meta qt;`

// minAEDVersion gates a stored state document as current.
const minAEDVersion = 3

// Service runs the recurring AED-table refresh task.
type Service struct {
	Store             *store.Store
	HTTPClient        *http.Client
	OverpassURL       string
	ReplicationURL    string
	OverpassTimeout   time.Duration
	PlanetDiffTimeout time.Duration
	UpdateDelay       time.Duration
	RebuildThreshold  time.Duration
	Logger            *slog.Logger
	Invalidator       *invalidate.Publisher
}

func (s *Service) Task() *scheduler.Task {
	return &scheduler.Task{
		Name:   "aed-ingest",
		Delay:  s.UpdateDelay,
		Logger: s.Logger,
		Run: func(ctx context.Context) error {
			err := scheduler.RetryExponential(ctx, s.Logger, "aed-ingest", 0, 4*time.Second, s.runOnce)
			observability.ObserveIngestRun("aed", err)
			if err == nil {
				observability.SetIngestLastSuccess("aed", float64(time.Now().Unix()))
			}
			return err
		},
		IsCurrent: func(ctx context.Context) bool {
			required, _, err := s.shouldUpdate(ctx)
			return err == nil && !required
		},
	}
}

func (s *Service) shouldUpdate(ctx context.Context) (bool, float64, error) {
	doc, err := s.Store.State().Get(ctx, "aed")
	if err != nil {
		return false, 0, err
	}
	if doc == nil || doc.Version < minAEDVersion {
		return true, 0, nil
	}
	age := float64(time.Now().Unix()) - doc.UpdateTimestamp
	if age > s.UpdateDelay.Seconds() {
		return true, doc.UpdateTimestamp, nil
	}
	return false, doc.UpdateTimestamp, nil
}

func (s *Service) runOnce(ctx context.Context) error {
	required, lastUpdate, err := s.shouldUpdate(ctx)
	if err != nil {
		return err
	}
	if !required {
		return nil
	}

	age := float64(time.Now().Unix()) - lastUpdate
	if age > s.RebuildThreshold.Seconds() {
		return s.updateSnapshot(ctx)
	}
	return s.updateDiffs(ctx, lastUpdate)
}

func (s *Service) updateSnapshot(ctx context.Context) error {
	if s.Logger != nil {
		s.Logger.Info("updating aed database (overpass)")
	}

	nodes, dataTimestamp, err := upstream.FetchOverpass(ctx, s.HTTPClient, s.OverpassURL, overpassQuery, s.OverpassTimeout, true)
	if err != nil {
		return err
	}

	aeds := make([]model.AED, len(nodes))
	for i, n := range nodes {
		if !model.IsDefibrillator(n.Tags) {
			return fmt.Errorf("%w: overpass returned a non-defibrillator node", apperr.ErrMalformedSnapshot)
		}
		aeds[i] = model.AED{ID: n.ID, Version: n.Version, Tags: n.Tags, Position: model.LonLat{Lon: n.Lon, Lat: n.Lat}}
	}

	if err := s.Store.AEDs().ReplaceSnapshot(ctx, aeds); err != nil {
		return err
	}
	if err := s.Store.State().Set(ctx, "aed", model.ProcessState{UpdateTimestamp: dataTimestamp, Version: minAEDVersion}); err != nil {
		return err
	}

	if len(aeds) > 0 {
		if s.Logger != nil {
			s.Logger.Info("updating country codes")
		}
		if err := s.Store.AEDs().ReassignAllCountryCodes(ctx); err != nil {
			return err
		}
		if s.Logger != nil {
			s.Logger.Info("updating statistics")
		}
		if err := s.Store.AEDs().Analyze(ctx); err != nil {
			return err
		}
	}

	if s.Invalidator != nil {
		if err := s.Invalidator.PublishAEDCountryCodesChanged(ctx); err != nil && s.Logger != nil {
			s.Logger.Warn("failed to publish invalidation event", "err", err)
		}
	}

	if s.Logger != nil {
		s.Logger.Info("aed update finished", "count", len(aeds))
	}
	return nil
}

func (s *Service) updateDiffs(ctx context.Context, lastUpdate float64) error {
	if s.Logger != nil {
		s.Logger.Info("updating aed database (diff)")
	}

	diffCtx, cancel := context.WithTimeout(ctx, s.PlanetDiffTimeout)
	defer cancel()

	docs, dataTimestamp, err := upstream.FetchDiffs(diffCtx, s.HTTPClient, s.ReplicationURL, lastUpdate)
	if err != nil {
		return err
	}
	if dataTimestamp <= lastUpdate {
		if s.Logger != nil {
			s.Logger.Info("nothing to update")
		}
		return nil
	}

	var allActions []diffparser.Action
	for _, doc := range docs {
		actions, err := diffparser.Parse(bytes.NewReader(doc))
		if err != nil {
			return err
		}
		allActions = append(allActions, actions...)
	}

	upsertByID, deleteSet := mergeActions(allActions)

	upserts := make([]model.AED, 0, len(upsertByID))
	touchedIDs := make([]int64, 0, len(upsertByID))
	for id, a := range upsertByID {
		upserts = append(upserts, a)
		touchedIDs = append(touchedIDs, id)
	}
	deletes := make([]int64, 0, len(deleteSet))
	for id := range deleteSet {
		deletes = append(deletes, id)
	}

	if err := s.Store.AEDs().UpsertDiff(ctx, upserts, deletes); err != nil {
		return err
	}
	if err := s.Store.State().Set(ctx, "aed", model.ProcessState{UpdateTimestamp: dataTimestamp, Version: minAEDVersion}); err != nil {
		return err
	}

	if len(touchedIDs) > 0 {
		if s.Logger != nil {
			s.Logger.Info("updating country codes")
		}
		if err := s.Store.AEDs().AssignCountryCodesFor(ctx, touchedIDs); err != nil {
			return err
		}
		if s.Invalidator != nil {
			if err := s.Invalidator.PublishAEDCountryCodesChanged(ctx); err != nil && s.Logger != nil {
				s.Logger.Warn("failed to publish invalidation event", "err", err)
			}
		}
	}

	if s.Logger != nil {
		s.Logger.Info("aed update finished", "added", len(upserts), "removed", len(deletes))
	}
	return nil
}

// mergeActions folds a sequence of osmChange actions (already ordered
// oldest-sequence-first) into a net upsert/delete set: within a
// batch, only the highest version of each node survives as an
// upsert, and a marker-removed create/modify or an explicit delete
// both count as a delete (spec.md §4.5).
func mergeActions(actions []diffparser.Action) (map[int64]model.AED, map[int64]bool) {
	upsertByID := make(map[int64]model.AED)
	deleteIDs := make(map[int64]bool)

	for _, action := range actions {
		for _, n := range action.Nodes {
			if action.Type == diffparser.ActionDelete || !model.IsDefibrillator(n.Tags) {
				deleteIDs[n.ID] = true
				delete(upsertByID, n.ID)
				continue
			}
			prev, ok := upsertByID[n.ID]
			if !ok || prev.Version < n.Version {
				upsertByID[n.ID] = model.AED{
					ID:       n.ID,
					Version:  n.Version,
					Tags:     n.Tags,
					Position: model.LonLat{Lon: n.Lon, Lat: n.Lat},
				}
				delete(deleteIDs, n.ID)
			}
		}
	}

	return upsertByID, deleteIDs
}
