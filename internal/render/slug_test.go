package render

import "testing"

func TestSlugify(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "Hello World", "hello-world"},
		{"accents folded", "Café au lait", "cafe-au-lait"},
		{"diaeresis folded", "ünïcödé", "unicode"},
		{"punctuation collapsed", "  --weird__name!! ", "weird-name"},
		{"digits kept", "Page 2", "page-2"},
		{"path chars removed", "../evil/../../slug", "evil-slug"},
		{"empty", "", ""},
		{"only punctuation", "!!!", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Slugify(tc.in); got != tc.want {
				t.Errorf("Slugify(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
