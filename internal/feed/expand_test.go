package feed_test

import (
	"context"
	"testing"

	"servimap/feed-service/internal/feed"
	"servimap/feed-service/internal/model"
	"servimap/feed-service/internal/search"
)

func TestCustomerOnly_Eligibility(t *testing.T) {
	policy := feed.CustomerOnly{}
	cases := map[model.Role]bool{
		model.RoleCustomer: true,
		model.RoleProvider: false,
		model.RoleHybrid:   false,
		model.RoleAdmin:    false,
	}
	for role, want := range cases {
		if got := policy.CanExpand(role); got != want {
			t.Errorf("CanExpand(%s) = %t, want %t", role, got, want)
		}
	}
}

func TestExpander_Eligible(t *testing.T) {
	e := &feed.Expander{RadiusKm: 100, Eligibility: feed.CustomerOnly{}}
	loc := &model.GeoPoint{Lat: 19.4, Lng: -99.1}

	if !e.Eligible(model.RoleCustomer, loc) {
		t.Error("customer with a location must be eligible")
	}
	if e.Eligible(model.RoleCustomer, nil) {
		t.Error("no location must never be eligible")
	}
	if e.Eligible(model.RoleProvider, loc) {
		t.Error("provider role must never be eligible")
	}
}

func TestExpander_FetchTier(t *testing.T) {
	client := &stubClient{
		respond: func(q search.Query) (*model.ResultPage, error) {
			return pageOf("", "far-1", "far-2", "far-3"), nil
		},
	}
	e := &feed.Expander{Client: client, RadiusKm: 100, Eligibility: feed.CustomerOnly{}}
	loc := &model.GeoPoint{Lat: 19.4, Lng: -99.1}

	tier, meta, err := e.FetchTier(context.Background(), model.Filters{Category: "cleaning"}, loc, []string{"near-1", "near-2"}, 20)
	if err != nil {
		t.Fatalf("FetchTier: %v", err)
	}

	for _, it := range tier {
		if !it.IsExpanded {
			t.Errorf("tier item %s must be flagged isExpanded", it.ID)
		}
	}
	if meta == nil || meta.AppendedCount != 3 || meta.RadiusKm != 100 {
		t.Errorf("metadata = %+v, want count 3 at radius 100", meta)
	}

	qs := client.Queries()
	if len(qs) != 1 {
		t.Fatalf("backend called %d times, want 1", len(qs))
	}
	q := qs[0]
	if q.RadiusOverrideKm != 100 {
		t.Errorf("RadiusOverrideKm = %v, want 100", q.RadiusOverrideKm)
	}
	if q.EffectiveRadiusKm() != 100 {
		t.Errorf("EffectiveRadiusKm = %v, want the override", q.EffectiveRadiusKm())
	}
	if len(q.ExcludeIDs) != 2 {
		t.Errorf("ExcludeIDs = %v, want the two primary ids", q.ExcludeIDs)
	}
}
