// Package model defines shared data structures for the feed service.
package model

import "time"

// GeoPoint is a WGS84 coordinate.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ListingType distinguishes the two halves of the combined home feed.
type ListingType string

const (
	ListingService ListingType = "SERVICE"
	ListingJob     ListingType = "JOB"
)

// SortOrder values accepted by the search backend.
type SortOrder string

const (
	SortRelevance SortOrder = "RELEVANCE"
	SortDistance  SortOrder = "DISTANCE"
	SortPriceAsc  SortOrder = "PRICE_ASC"
	SortPriceDesc SortOrder = "PRICE_DESC"
	SortRating    SortOrder = "RATING"
	SortNewest    SortOrder = "NEWEST"
)

// Role is the acting user's account class, forwarded by the Gateway.
// It drives the sparse-supply expansion eligibility policy only.
type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleProvider Role = "PROVIDER"
	RoleHybrid   Role = "HYBRID"
	RoleAdmin    Role = "ADMIN"
)

// Filters is the full fingerprint-relevant filter set for a feed query.
type Filters struct {
	SearchText   string      `json:"searchText,omitempty"`
	Category     string      `json:"category,omitempty"`
	PriceMin     *int        `json:"priceMin,omitempty"`
	PriceMax     *int        `json:"priceMax,omitempty"`
	RatingFloor  float64     `json:"ratingFloor,omitempty"`
	RadiusKm     float64     `json:"radiusKm,omitempty"`
	Sort         SortOrder   `json:"sort,omitempty"`
	VerifiedOnly bool        `json:"verifiedOnly,omitempty"`
	ListingType  ListingType `json:"listingType,omitempty"`
}

// Listing is a read-only feed record mirroring backend fields.
// It is replaced wholesale by a fresh fetch, never patched in place.
type Listing struct {
	ID            string      `json:"id"`
	Type          ListingType `json:"type"`
	Title         string      `json:"title"`
	Description   string      `json:"description,omitempty"`
	Price         *int        `json:"price,omitempty"`
	QuoteOnDemand bool        `json:"quoteOnDemand,omitempty"`
	Location      GeoPoint    `json:"location"`
	ImageURL      string      `json:"imageUrl,omitempty"`
	ProviderID    string      `json:"providerId"`
	ProviderName  string      `json:"providerName"`
	Rating        float64     `json:"rating,omitempty"`
	Verified      bool        `json:"verified,omitempty"`
	DistanceKm    float64     `json:"distanceKm,omitempty"`
	IsExpanded    bool        `json:"isExpanded,omitempty"`
	PublishedAt   time.Time   `json:"publishedAt"`
}

// ResultPage is one ordered page of listings plus an opaque cursor.
// NextCursor is empty when the result set is exhausted.
type ResultPage struct {
	Items      []Listing `json:"items"`
	NextCursor string    `json:"nextCursor,omitempty"`
}

// ExpansionMetadata records that a wide-radius secondary tier was appended
// to a load cycle's primary result set.
type ExpansionMetadata struct {
	AppendedCount int     `json:"appendedCount"`
	RadiusKm      float64 `json:"radiusKm"`
}
