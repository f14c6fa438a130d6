// Package httpapi is the read-only HTTP surface described by spec.md
// §6: country listings, per-node lookup, and vector tiles. Every
// handler is read-path only; all writes happen in the background
// ingestion services and are invisible to this package.
package httpapi

import (
	"log/slog"

	"github.com/openaedmap/aedcore/internal/core/config"
	"github.com/openaedmap/aedcore/internal/query"
)

// Handler wires the query service into the HTTP surface.
type Handler struct {
	Query   *query.Service
	Config  config.Config
	Logger  *slog.Logger
	Version string
}
