package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"servimap/feed-service/internal/model"
)

// DefaultPageSize is used when a Query does not set PageSize.
const DefaultPageSize = 20

// Store runs feed searches against the listings table.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore returns a Store backed by the given pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Search executes one parameterized, keyset-paginated page query.
// Ordering is stable under the declared sort key with id as tiebreaker, so
// appending subsequent pages never reorders already-returned rows.
func (s *Store) Search(ctx context.Context, q Query) (*model.ResultPage, error) {
	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	where = append(where, "is_active = true")

	hasLoc := q.Location != nil
	distExpr := "0.0"
	if hasLoc {
		latP := arg(q.Location.Lat)
		lngP := arg(q.Location.Lng)
		distExpr = fmt.Sprintf(
			`6371 * acos(least(1.0,
			   cos(radians(%[1]s)) * cos(radians(lat)) * cos(radians(lng) - radians(%[2]s)) +
			   sin(radians(%[1]s)) * sin(radians(lat))))`,
			latP, lngP,
		)
	}

	f := q.Filters
	if f.ListingType != "" {
		where = append(where, "listing_type = "+arg(string(f.ListingType)))
	}
	if f.Category != "" {
		where = append(where, "category = "+arg(f.Category))
	}
	if text := strings.TrimSpace(f.SearchText); text != "" {
		p := arg("%" + text + "%")
		where = append(where, fmt.Sprintf("(title ILIKE %[1]s OR description ILIKE %[1]s)", p))
	}
	if f.PriceMin != nil {
		where = append(where, "price >= "+arg(*f.PriceMin))
	}
	if f.PriceMax != nil {
		where = append(where, "price <= "+arg(*f.PriceMax))
	}
	if f.RatingFloor > 0 {
		where = append(where, "rating >= "+arg(f.RatingFloor))
	}
	if f.VerifiedOnly {
		where = append(where, "verified = true")
	}
	if radius := q.EffectiveRadiusKm(); hasLoc && radius > 0 {
		where = append(where, fmt.Sprintf("(%s) <= %s", distExpr, arg(radius)))
	}
	if len(q.ExcludeIDs) > 0 {
		where = append(where, fmt.Sprintf("NOT (id = ANY(%s))", arg(q.ExcludeIDs)))
	}

	sortExpr, descending := sortSpec(f.Sort, hasLoc, distExpr)

	if q.Cursor != "" {
		c, err := decodeCursor(q.Cursor)
		if err != nil {
			return nil, err
		}
		valP := arg(c.SortVal)
		idP := arg(c.LastID)
		cmp := ">"
		if descending {
			cmp = "<"
		}
		where = append(where, fmt.Sprintf(
			"((%[1]s) %[2]s %[3]s OR ((%[1]s) = %[3]s AND id > %[4]s))",
			sortExpr, cmp, valP, idP,
		))
	}

	dir := "ASC"
	if descending {
		dir = "DESC"
	}

	sql := fmt.Sprintf(
		`SELECT id, listing_type, title, COALESCE(description, ''), price,
		        quote_on_demand, lat, lng, COALESCE(image_url, ''),
		        provider_id, provider_name, rating, verified, published_at,
		        (%s) AS distance_km, (%s) AS sort_val
		 FROM listings
		 WHERE %s
		 ORDER BY sort_val %s, id ASC
		 LIMIT %s`,
		distExpr, sortExpr, strings.Join(where, " AND "), dir, arg(pageSize),
	)

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()

	page := &model.ResultPage{Items: make([]model.Listing, 0, pageSize)}
	var lastSortVal float64
	for rows.Next() {
		var (
			l       model.Listing
			typeStr string
			distKm  float64
			sortVal float64
		)
		if err := rows.Scan(
			&l.ID, &typeStr, &l.Title, &l.Description, &l.Price,
			&l.QuoteOnDemand, &l.Location.Lat, &l.Location.Lng, &l.ImageURL,
			&l.ProviderID, &l.ProviderName, &l.Rating, &l.Verified,
			&l.PublishedAt, &distKm, &sortVal,
		); err != nil {
			return nil, fmt.Errorf("search scan: %w", err)
		}
		l.Type = model.ListingType(typeStr)
		if hasLoc {
			l.DistanceKm = distKm
		}
		page.Items = append(page.Items, l)
		lastSortVal = sortVal
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search rows: %w", err)
	}

	if len(page.Items) == pageSize {
		page.NextCursor = encodeCursor(cursor{
			SortVal: lastSortVal,
			LastID:  page.Items[len(page.Items)-1].ID,
		})
	}

	return page, nil
}

// sortSpec maps the declared sort order to a SQL expression and direction.
// Distance sort without a resolved location falls back to newest-first.
func sortSpec(sort model.SortOrder, hasLoc bool, distExpr string) (expr string, descending bool) {
	switch sort {
	case model.SortDistance:
		if hasLoc {
			return distExpr, false
		}
	case model.SortPriceAsc:
		return "COALESCE(price, 2147483647)", false
	case model.SortPriceDesc:
		return "COALESCE(price, 0)", true
	case model.SortRating:
		return "rating", true
	}
	// RELEVANCE and NEWEST both rank by recency; ranking signals beyond
	// recency live in the backend and are out of scope here.
	return "EXTRACT(EPOCH FROM published_at)", true
}
