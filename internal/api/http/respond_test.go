package http

import "testing"

func TestParseIntDefault(t *testing.T) {
	cases := []struct {
		in   string
		def  int
		want int
	}{
		{"", 50, 50},
		{"0", 50, 0},
		{"25", 50, 25},
		{"007", 50, 7},
		{"abc", 50, 50},
		{"-1", 50, 50},
		{"12x", 50, 50},
		{"999999999", 50, 999999999},
		// long digit strings must fall back instead of overflowing negative
		{"9999999999999999999", 50, 50},
	}
	for _, c := range cases {
		if got := parseIntDefault(c.in, c.def); got != c.want {
			t.Fatalf("parseIntDefault(%q, %d) = %d, want %d", c.in, c.def, got, c.want)
		}
	}
}
