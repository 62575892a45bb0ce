package normalize

import "testing"

func TestParseStringList(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"['W', 'U']", "W, U", true},
		{"['W']", "W", true},
		{`["B", "G"]`, "B, G", true},
		{"[]", "", true},
		{"  ['R' , 'W']  ", "R, W", true},
		{"['W', \"U\"]", "W, U", true},
		{"not a list", "", false},
		{"['unterminated", "", false},
		{"[W, U]", "", false},
		{"['W' 'U']", "", false},
		{"", "", false},
		{"[", "", false},
	}

	for _, tc := range cases {
		got, ok := parseStringList(tc.in)
		if ok != tc.ok {
			t.Errorf("parseStringList(%q) ok = %v, want %v", tc.in, ok, tc.ok)
			continue
		}
		if ok && got != tc.want {
			t.Errorf("parseStringList(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestConcatList(t *testing.T) {
	cases := []struct {
		name     string
		in       any
		want     string
		fellBack bool
	}{
		{"nil", nil, "", false},
		{"native list", []any{"W", "U"}, "W, U", false},
		{"string slice", []string{"B"}, "B", false},
		{"empty native list", []any{}, "", false},
		{"literal string", "['W', 'U']", "W, U", false},
		{"empty string", "", "", false},
		{"unparseable string", "colorless mostly", "colorless mostly", true},
		{"number", 3.0, "", false},
	}

	for _, tc := range cases {
		got, fellBack := concatList(tc.in)
		if got != tc.want || fellBack != tc.fellBack {
			t.Errorf("%s: concatList(%v) = (%q, %v), want (%q, %v)",
				tc.name, tc.in, got, fellBack, tc.want, tc.fellBack)
		}
	}
}
