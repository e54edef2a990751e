package utils

import "testing"

func TestNormalizeURL(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"bare domain", "Example.com", "https://example.com"},
		{"http collapses to https", "http://a.com/x", "https://a.com/x"},
		{"trailing slash", "https://a.com/x/", "https://a.com/x"},
		{"www stripped", "https://www.a.com/x", "https://a.com/x"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeURL(tc.in); got != tc.want {
				t.Errorf("NormalizeURL(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestCompareURLsSchemeVariants(t *testing.T) {
	if got := CompareURLs("http://a.com/x", "https://a.com/x/"); got != 1.0 {
		t.Errorf("scheme/slash variants should match exactly, got %v", got)
	}
	if got := CompareURLs("https://a.com/x", "https://a.com/y"); got != 0.8 {
		t.Errorf("same domain different path should score 0.8, got %v", got)
	}
}
