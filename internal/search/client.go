// Package search implements listing/job search against PostgreSQL.
//
// The feed core only depends on the Client interface; the pgx-backed Store
// is one implementation of it. The backend contract is a single
// parameterized search returning one page of rows plus an opaque cursor.
package search

import (
	"context"

	"servimap/feed-service/internal/model"
)

// Query carries every parameter of one search call.
type Query struct {
	Filters  model.Filters
	Location *model.GeoPoint // nil when the user coordinate is unresolved
	Cursor   string          // opaque; empty for the first page
	PageSize int

	// ExcludeIDs removes rows already present in the caller's accumulated
	// set. Used by the sparse-supply expansion tier.
	ExcludeIDs []string

	// RadiusOverrideKm, when > 0, replaces Filters.RadiusKm. Used by the
	// expansion tier's wide-radius pass.
	RadiusOverrideKm float64
}

// EffectiveRadiusKm returns the radius bound for this query, 0 meaning
// unbounded.
func (q Query) EffectiveRadiusKm() float64 {
	if q.RadiusOverrideKm > 0 {
		return q.RadiusOverrideKm
	}
	return q.Filters.RadiusKm
}

// Client is the search backend as seen by the feed core.
type Client interface {
	Search(ctx context.Context, q Query) (*model.ResultPage, error)
}
