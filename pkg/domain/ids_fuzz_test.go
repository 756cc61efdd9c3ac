//go:build go1.18

package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParsePrincipal checks that parsing never panics on arbitrary input
// and that accepted addresses round-trip.
func FuzzParsePrincipal(f *testing.F) {
	f.Add("")
	f.Add("0x5fbdb2315678afecb367f032d93f642f64180aa3")
	f.Add("0x0000000000000000000000000000000000000000")
	f.Add("0X5FBDB2315678AFECB367F032D93F642F64180AA3")
	f.Add("'; DROP TABLE identities;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		p, err := ParsePrincipal(input)
		if err != nil {
			return
		}
		if p.IsZero() {
			t.Error("zero address was accepted")
		}
		roundTrip, err := ParsePrincipal(p.String())
		if err != nil {
			t.Errorf("valid principal failed round-trip: %v", err)
		}
		if roundTrip != p {
			t.Error("round-trip changed principal value")
		}
		if !utf8.ValidString(input) {
			t.Error("non-UTF8 input was accepted")
		}
	})
}

// FuzzParseRecordID ensures record ids round-trip through their string form.
func FuzzParseRecordID(f *testing.F) {
	f.Add("1")
	f.Add("")
	f.Add("18446744073709551615")

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseRecordID(input)
		if err != nil {
			return
		}
		again, err := ParseRecordID(id.String())
		if err != nil || again != id {
			t.Errorf("record id %q did not round-trip", input)
		}
	})
}
