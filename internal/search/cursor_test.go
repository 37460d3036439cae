package search

import "testing"

func TestCursor_RoundTrip(t *testing.T) {
	in := cursor{SortVal: 12.5, LastID: "listing-42"}
	out, err := decodeCursor(encodeCursor(in))
	if err != nil {
		t.Fatalf("decodeCursor error: %v", err)
	}
	if out != in {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
}

func TestDecodeCursor_RejectsGarbage(t *testing.T) {
	for _, s := range []string{"not base64!!", "aGVsbG8", ""} {
		if _, err := decodeCursor(s); err == nil {
			t.Errorf("decodeCursor(%q) expected error, got nil", s)
		}
	}
}

func TestDecodeCursor_RejectsMissingID(t *testing.T) {
	enc := encodeCursor(cursor{SortVal: 1})
	if _, err := decodeCursor(enc); err == nil {
		t.Error("decodeCursor must reject a cursor without an id")
	}
}
