// Package countryingest refreshes the country polygon table from the
// zstd-compressed GeoJSON feed (spec.md §4.4, C4) and triggers a full
// AED country-code reassignment whenever it changes the table.
package countryingest

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openaedmap/aedcore/internal/core/model"
	"github.com/openaedmap/aedcore/internal/core/observability"
	"github.com/openaedmap/aedcore/internal/invalidate"
	"github.com/openaedmap/aedcore/internal/scheduler"
	"github.com/openaedmap/aedcore/internal/store"
	"github.com/openaedmap/aedcore/internal/upstream"
)

// minCountryVersion gates a stored state document as current; older
// schema versions force a rebuild on first start after an upgrade.
const minCountryVersion = 2

// minFeedFeatures below this, the feed is treated as suspicious and
// the cycle aborts without touching the database.
const minFeedFeatures = 210

// Service runs the recurring country-table refresh task.
type Service struct {
	Store       *store.Store
	HTTPClient  *http.Client
	FeedURL     string
	UpdateDelay time.Duration
	Logger      *slog.Logger
	Invalidator *invalidate.Publisher // optional; nil disables cache invalidation
}

// Task builds the scheduler.Task this service runs under.
func (s *Service) Task() *scheduler.Task {
	return &scheduler.Task{
		Name:   "country-ingest",
		Delay:  s.UpdateDelay,
		Logger: s.Logger,
		Run: func(ctx context.Context) error {
			err := scheduler.RetryExponential(ctx, s.Logger, "country-ingest", 0, 4*time.Second, s.runOnce)
			observability.ObserveIngestRun("country", err)
			if err == nil {
				observability.SetIngestLastSuccess("country", float64(time.Now().Unix()))
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
	doc, err := s.Store.State().Get(ctx, "country")
	if err != nil {
		return false, 0, err
	}
	if doc == nil || doc.Version < minCountryVersion {
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

	if s.Logger != nil {
		s.Logger.Info("updating country database")
	}

	features, err := upstream.FetchCountryFeed(ctx, s.HTTPClient, s.FeedURL)
	if err != nil {
		return err
	}

	dataTimestamp := -1.0
	for _, f := range features {
		if f.Timestamp > dataTimestamp {
			dataTimestamp = f.Timestamp
		}
	}
	if len(features) == 0 {
		dataTimestamp = -1
	}

	if dataTimestamp <= lastUpdate {
		if s.Logger != nil {
			s.Logger.Info("nothing to update")
		}
		return nil
	}

	if len(features) < minFeedFeatures {
		if s.Logger != nil {
			s.Logger.Warn("country feed looks suspicious, skipping this cycle",
				"features", len(features), "min_features", minFeedFeatures)
		}
		return nil
	}

	assigner := NewCodeAssigner()
	countries := make([]model.Country, len(features))
	for i, f := range features {
		countries[i] = model.Country{
			Code:          assigner.Unique(f.Tags),
			Names:         namesFromTags(f.Tags),
			Geometry:      f.Geometry,
			LabelPosition: model.LonLat{Lon: f.RepresentativePoint[0], Lat: f.RepresentativePoint[1]},
		}
	}

	if err := s.Store.Countries().ReplaceAll(ctx, countries); err != nil {
		return err
	}
	if err := s.Store.State().Set(ctx, "country", model.ProcessState{UpdateTimestamp: dataTimestamp, Version: minCountryVersion}); err != nil {
		return err
	}

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
	if err := s.Store.Countries().Analyze(ctx); err != nil {
		return err
	}

	if s.Invalidator != nil {
		if err := s.Invalidator.PublishCountriesChanged(ctx); err != nil && s.Logger != nil {
			s.Logger.Warn("failed to publish country invalidation event", "err", err)
		}
	}

	if s.Logger != nil {
		s.Logger.Info("country update finished", "count", len(countries))
	}
	return nil
}

// namesFromTags builds the display-name map: a "default" entry from
// the first of name:en/int_name/name present, plus one entry per
// per-language name:XX tag.
func namesFromTags(tags map[string]string) map[string]string {
	names := make(map[string]string)

	for _, key := range []string{"name:en", "int_name", "name"} {
		if v := tags[key]; v != "" {
			names["default"] = v
			break
		}
	}

	for k, v := range tags {
		if lang, ok := strings.CutPrefix(k, "name:"); ok {
			names[strings.ToUpper(lang)] = v
		}
	}

	return names
}
