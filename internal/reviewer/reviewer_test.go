package reviewer

import (
	"testing"

	"service-marketplace/internal/domain"
)

func TestParseContentVerdict(t *testing.T) {
	cases := []struct {
		name       string
		raw        string
		wantOK     bool
		wantAccept bool
		wantReason string
	}{
		{
			name:       "clean json accept",
			raw:        `{"suitable": true, "reason": "helpful guide"}`,
			wantOK:     true,
			wantAccept: true,
			wantReason: "helpful guide",
		},
		{
			name:       "clean json reject",
			raw:        `{"suitable": false, "reason": "spam links"}`,
			wantOK:     true,
			wantAccept: false,
			wantReason: "spam links",
		},
		{
			name:       "fenced json",
			raw:        "```json\n{\"suitable\": true, \"reason\": \"fine\"}\n```",
			wantOK:     true,
			wantAccept: true,
			wantReason: "fine",
		},
		{
			name:       "prose wrapped falls back to regex",
			raw:        `Sure! Here is my verdict: "suitable": false, "reason": "scam content" based on the text.`,
			wantOK:     true,
			wantAccept: false,
			wantReason: "scam content",
		},
		{
			name:   "unparseable",
			raw:    "I cannot help with that.",
			wantOK: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := parseContentVerdict(tc.raw)
			if !tc.wantOK {
				if err == nil {
					t.Fatalf("expected parse error, got %+v", v)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if v.Kind != domain.VerdictContent {
				t.Errorf("kind = %q, want content", v.Kind)
			}
			if v.Accepted != tc.wantAccept {
				t.Errorf("accepted = %v, want %v", v.Accepted, tc.wantAccept)
			}
			if v.Reason != tc.wantReason {
				t.Errorf("reason = %q, want %q", v.Reason, tc.wantReason)
			}
			if len(v.Sources) != 0 {
				t.Errorf("content verdict should not carry sources, got %v", v.Sources)
			}
		})
	}
}

func TestParseEventVerdict(t *testing.T) {
	raw := `{"legitimate": true, "reason": "venue and date check out", "sources": ["https://example.com/events", "http://example.com/events/", "https://other.org"]}`
	v, err := parseEventVerdict(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Kind != domain.VerdictEvent {
		t.Errorf("kind = %q, want event", v.Kind)
	}
	if !v.Accepted {
		t.Error("expected legitimate verdict")
	}
	// http/https and trailing slash variants collapse to one source
	if len(v.Sources) != 2 {
		t.Errorf("sources = %v, want 2 after dedupe", v.Sources)
	}
}

func TestParseEventVerdictRegexFallback(t *testing.T) {
	raw := `The event looks fake. "legitimate": false, "reason": "no such venue exists"`
	v, err := parseEventVerdict(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Accepted {
		t.Error("expected rejection")
	}
	if v.Reason != "no such venue exists" {
		t.Errorf("reason = %q", v.Reason)
	}
}

func TestDedupeSources(t *testing.T) {
	cases := []struct {
		name string
		in   []string
		want int
	}{
		{"nil", nil, 0},
		{"empties dropped", []string{"", "  "}, 0},
		{"distinct kept", []string{"https://a.com", "https://b.com"}, 2},
		{"variants collapse", []string{"https://a.com/x", "http://a.com/x/"}, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := dedupeSources(tc.in); len(got) != tc.want {
				t.Errorf("got %v, want %d entries", got, tc.want)
			}
		})
	}
}

func TestStripFences(t *testing.T) {
	in := "```json\n{\"a\":1}\n```"
	if got := stripFences(in); got != `{"a":1}` {
		t.Errorf("stripFences = %q", got)
	}
	if got := stripFences(`{"a":1}`); got != `{"a":1}` {
		t.Errorf("plain input changed: %q", got)
	}
}
