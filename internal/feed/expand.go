package feed

import (
	"context"
	"fmt"

	"servimap/feed-service/internal/model"
	"servimap/feed-service/internal/search"
)

// EligibilityPolicy decides which caller roles get the sparse-supply
// expansion. Injected rather than hard-coded so the role set is a product
// knob, not pipeline logic.
type EligibilityPolicy interface {
	CanExpand(role model.Role) bool
}

// CustomerOnly limits expansion to plain end-customers browsing the feed.
// Providers, hybrids and admins see the unexpanded result.
type CustomerOnly struct{}

func (CustomerOnly) CanExpand(role model.Role) bool { return role == model.RoleCustomer }

// Expander fetches the wide-radius secondary tier when the primary tier
// is sparse.
type Expander struct {
	Client      search.Client
	RadiusKm    float64 // wide-radius bound for the secondary tier
	Eligibility EligibilityPolicy
}

// Eligible reports whether an expansion may apply at all for this cycle:
// the role must qualify and a user location must be known. The count
// threshold is evaluated later by the reducer, once the primary tier size
// is known.
func (e *Expander) Eligible(role model.Role, loc *model.GeoPoint) bool {
	return e.Eligibility.CanExpand(role) && loc != nil
}

// FetchTier runs the wide-radius query, excluding ids already present in
// the primary tier, and returns the appended items flagged for
// de-emphasized presentation.
func (e *Expander) FetchTier(
	ctx context.Context,
	filters model.Filters,
	loc *model.GeoPoint,
	excludeIDs []string,
	pageSize int,
) ([]model.Listing, *model.ExpansionMetadata, error) {
	page, err := e.Client.Search(ctx, search.Query{
		Filters:          filters,
		Location:         loc,
		PageSize:         pageSize,
		ExcludeIDs:       excludeIDs,
		RadiusOverrideKm: e.RadiusKm,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("expansion fetch: %w", err)
	}

	tier := make([]model.Listing, 0, len(page.Items))
	for _, it := range page.Items {
		it.IsExpanded = true
		tier = append(tier, it)
	}

	return tier, &model.ExpansionMetadata{
		AppendedCount: len(tier),
		RadiusKm:      e.RadiusKm,
	}, nil
}
