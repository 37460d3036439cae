package fingerprint_test

import (
	"strings"
	"testing"

	"servimap/feed-service/internal/fingerprint"
	"servimap/feed-service/internal/model"
)

func baseFilters() model.Filters {
	pmin, pmax := 10, 200
	return model.Filters{
		SearchText:   "plumber",
		Category:     "home-repair",
		PriceMin:     &pmin,
		PriceMax:     &pmax,
		RatingFloor:  4.0,
		RadiusKm:     15,
		Sort:         model.SortDistance,
		VerifiedOnly: true,
		ListingType:  model.ListingService,
	}
}

// ── Determinism ────────────────────────────────────────────────────────────

func TestCompute_Deterministic(t *testing.T) {
	loc := &model.GeoPoint{Lat: 19.4326, Lng: -99.1332}
	a := fingerprint.Compute(baseFilters(), loc)
	b := fingerprint.Compute(baseFilters(), loc)
	if a != b {
		t.Errorf("equal inputs produced different fingerprints: %s vs %s", a, b)
	}
}

func TestCompute_PointerEqualityIrrelevant(t *testing.T) {
	f1 := baseFilters()
	f2 := baseFilters() // fresh pointers, same values
	loc := &model.GeoPoint{Lat: 19.4326, Lng: -99.1332}
	if fingerprint.Compute(f1, loc) != fingerprint.Compute(f2, loc) {
		t.Error("value-equal filters with distinct pointers must fingerprint equally")
	}
}

// ── Sensitivity: every filter field must change the fingerprint ────────────

func TestCompute_FieldSensitivity(t *testing.T) {
	loc := &model.GeoPoint{Lat: 19.4326, Lng: -99.1332}
	base := fingerprint.Compute(baseFilters(), loc)

	mutations := map[string]func(*model.Filters){
		"searchText":   func(f *model.Filters) { f.SearchText = "electrician" },
		"category":     func(f *model.Filters) { f.Category = "gardening" },
		"priceMin":     func(f *model.Filters) { v := 50; f.PriceMin = &v },
		"priceMax":     func(f *model.Filters) { f.PriceMax = nil },
		"ratingFloor":  func(f *model.Filters) { f.RatingFloor = 3.0 },
		"radiusKm":     func(f *model.Filters) { f.RadiusKm = 25 },
		"sort":         func(f *model.Filters) { f.Sort = model.SortPriceAsc },
		"verifiedOnly": func(f *model.Filters) { f.VerifiedOnly = false },
		"listingType":  func(f *model.Filters) { f.ListingType = model.ListingJob },
	}

	for name, mutate := range mutations {
		f := baseFilters()
		mutate(&f)
		if got := fingerprint.Compute(f, loc); got == base {
			t.Errorf("changing %s did not change the fingerprint", name)
		}
	}
}

func TestCompute_LocationSensitivity(t *testing.T) {
	f := baseFilters()
	base := fingerprint.Compute(f, &model.GeoPoint{Lat: 19.4326, Lng: -99.1332})

	moved := fingerprint.Compute(f, &model.GeoPoint{Lat: 19.4426, Lng: -99.1332})
	if moved == base {
		t.Error("a rounded-coordinate change must change the fingerprint")
	}

	noLoc := fingerprint.Compute(f, nil)
	if noLoc == base {
		t.Error("no-location must fingerprint differently from a located query")
	}
}

// Rounding: moves below the rounding grid must NOT change the fingerprint,
// so GPS jitter does not invalidate the snapshot cache.
func TestCompute_SubGridJitterIgnored(t *testing.T) {
	f := baseFilters()
	a := fingerprint.Compute(f, &model.GeoPoint{Lat: 19.43261, Lng: -99.13321})
	b := fingerprint.Compute(f, &model.GeoPoint{Lat: 19.43264, Lng: -99.13318})
	if a != b {
		t.Error("sub-grid coordinate jitter must not change the fingerprint")
	}
}

func TestCanonical_NoLocationMarker(t *testing.T) {
	c := fingerprint.Canonical(baseFilters(), nil)
	if !strings.Contains(c, fingerprint.NoLocation) {
		t.Errorf("Canonical without location must contain %q, got %q", fingerprint.NoLocation, c)
	}
}
