package search

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// cursor is the keyset position after the last row of a page: the row's
// sort value plus its id as a tiebreaker. It crosses the API boundary
// base64-encoded and is opaque to callers.
type cursor struct {
	SortVal float64 `json:"v"`
	LastID  string  `json:"id"`
}

func encodeCursor(c cursor) string {
	raw, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeCursor(s string) (cursor, error) {
	var c cursor
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return c, fmt.Errorf("decode cursor: %w", err)
	}
	if err := json.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("decode cursor: %w", err)
	}
	if c.LastID == "" {
		return c, fmt.Errorf("decode cursor: missing id")
	}
	return c, nil
}
