//go:build go1.18

package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParseActorID checks that parsing never panics on arbitrary input
// and that accepted values round-trip.
func FuzzParseActorID(f *testing.F) {
	f.Add("")
	f.Add("777000")
	f.Add("-1001234567890")
	f.Add("0")
	f.Add("'; DROP TABLE word_tables;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseActorID(input)
		if err == nil {
			roundTrip, err2 := ParseActorID(id.String())
			if err2 != nil {
				t.Errorf("valid id failed round-trip: %v", err2)
			}
			if roundTrip != id {
				t.Error("round-trip changed id value")
			}
		}
		if !utf8.ValidString(input) && err == nil {
			t.Error("non-UTF8 input was accepted")
		}
	})
}

// FuzzParseConflictToken checks token parsing at the reply boundary.
func FuzzParseConflictToken(f *testing.F) {
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")

	f.Fuzz(func(t *testing.T, input string) {
		tok, err := ParseConflictToken(input)
		if err == nil && tok.IsNil() {
			t.Error("nil token was accepted")
		}
	})
}
