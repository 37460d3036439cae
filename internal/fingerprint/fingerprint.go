// Package fingerprint derives the deterministic cache/dedupe key for a feed
// query. Two requests with equal fingerprints are the same logical query:
// the snapshot cache, the in-flight request guard, and the optimistic
// reconciliation compare all key on this value.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"servimap/feed-service/internal/model"
)

// coordPrecision is the number of decimal places the user coordinate is
// rounded to before entering the fingerprint. Three decimals is roughly a
// 110 m grid — small moves do not churn the cache key.
const coordPrecision = 3

// NoLocation marks a query issued without a resolved user coordinate.
const NoLocation = "noloc"

// Compute returns the fingerprint for the given filters and optional user
// location. The canonical string is hashed so the key is fixed-length and
// safe to embed in Redis keys and URLs.
func Compute(f model.Filters, loc *model.GeoPoint) string {
	sum := sha256.Sum256([]byte(Canonical(f, loc)))
	return hex.EncodeToString(sum[:16])
}

// Canonical renders the fingerprint-relevant fields in a fixed order.
// Every field that affects result content must appear here; adding a
// filter without extending this function breaks cache invalidation.
func Canonical(f model.Filters, loc *model.GeoPoint) string {
	var b strings.Builder

	fmt.Fprintf(&b, "q=%s|cat=%s|", strings.ToLower(strings.TrimSpace(f.SearchText)), f.Category)
	if f.PriceMin != nil {
		fmt.Fprintf(&b, "pmin=%d|", *f.PriceMin)
	} else {
		b.WriteString("pmin=|")
	}
	if f.PriceMax != nil {
		fmt.Fprintf(&b, "pmax=%d|", *f.PriceMax)
	} else {
		b.WriteString("pmax=|")
	}
	fmt.Fprintf(&b, "rf=%.1f|rad=%.1f|sort=%s|ver=%t|type=%s|",
		f.RatingFloor, f.RadiusKm, f.Sort, f.VerifiedOnly, f.ListingType)

	if loc == nil {
		b.WriteString(NoLocation)
	} else {
		fmt.Fprintf(&b, "lat=%.*f,lng=%.*f", coordPrecision, loc.Lat, coordPrecision, loc.Lng)
	}

	return b.String()
}
