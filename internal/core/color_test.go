package core

import "testing"

func TestNormalizeColor(t *testing.T) {
	cases := []struct{ in, out string }{
		{"abc123", "#abc123"},
		{"#abc123", "#abc123"},
		{"FF0000", "#FF0000"},
	}
	for _, tc := range cases {
		if got := NormalizeColor(tc.in); got != tc.out {
			t.Fatalf("%q expected %q, got %q", tc.in, tc.out, got)
		}
	}
}

func TestDeriveTextColor(t *testing.T) {
	cases := []struct{ in, out string }{
		{"#FF0000", "#ffffff"}, // red is dark under perceived brightness
		{"#ffffff", "#000000"},
		{"#000000", "#ffffff"},
		{"#ffff00", "#000000"},
		{"#fff", "#000000"}, // shorthand expands to ffffff
		{"#00f", "#ffffff"},
		{"#abcd", "#ffffff"},  // invalid length falls back to white
		{"#zzzzzz", "#ffffff"},
	}
	for _, tc := range cases {
		if got := DeriveTextColor(tc.in); got != tc.out {
			t.Fatalf("%q expected %q, got %q", tc.in, tc.out, got)
		}
	}
}
